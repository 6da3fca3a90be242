package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/facility-access/internal/models"
)

func insertAccessLog(ctx context.Context, execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, entry models.AccessLog) error {
	_, err := execer.ExecContext(ctx,
		`INSERT INTO access_logs (user_uid, subscription_id, action, validation_result, scanner_location)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.UserUID, entry.SubscriptionID, entry.Action, entry.Result, entry.ScannerLocation)
	return err
}

// InsertAccessLog добавляет запись о попытке прохода. Используется для
// всех итогов, не изменяющих счётчик посетителей.
func (s *Storage) InsertAccessLog(ctx context.Context, entry models.AccessLog) error {
	const op = "storage.InsertAccessLog"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if err := insertAccessLog(ctx, s.DB, entry); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RegisterEntry атомарно проверяет предел посетителей плана, увеличивает
// счётчик и пишет запись журнала в одной транзакции. Условное обновление
// счётчика в SQL исключает гонку двух одновременных входов: превысить
// max_capacity невозможно. Возвращает false, если предел уже достигнут;
// в этом случае в журнал пишется итог CAPACITY_FULL.
func (s *Storage) RegisterEntry(ctx context.Context, planID int64, entry models.AccessLog) (bool, error) {
	const op = "storage.RegisterEntry"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`UPDATE plans SET current_capacity = current_capacity + 1
		 WHERE id = $1 AND (max_capacity IS NULL OR current_capacity < max_capacity)`, planID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	allowed := rowsAffected > 0
	if allowed {
		entry.Result = models.ResultSuccess
	} else {
		entry.Result = models.ResultCapacityFull
	}
	if err := insertAccessLog(ctx, tx, entry); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return allowed, nil
}

// RegisterExit уменьшает счётчик посетителей плана (не ниже нуля)
// и пишет запись журнала в одной транзакции. Выход не ограничивается
// ни слотами, ни пределом посетителей.
func (s *Storage) RegisterExit(ctx context.Context, planID int64, entry models.AccessLog) error {
	const op = "storage.RegisterExit"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`UPDATE plans SET current_capacity = GREATEST(current_capacity - 1, 0) WHERE id = $1`, planID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	entry.Result = models.ResultSuccess
	if err := insertAccessLog(ctx, tx, entry); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Внутри считается пользователь, чья последняя запись журнала
// с итогом SUCCESS имеет действие ENTRY.
const insideCountQuery = `
	SELECT COUNT(*) FROM (
		SELECT DISTINCT ON (l.user_uid) l.action
		FROM access_logs l
		JOIN subscriptions s ON s.id = l.subscription_id
		WHERE l.validation_result = 'SUCCESS'
		  AND s.status = 'ACTIVE'
		  AND ($1::bigint IS NULL OR s.plan_id = $1)
		ORDER BY l.user_uid, l.created_at DESC, l.id DESC
	) last WHERE last.action = 'ENTRY'`

// CountInside возвращает количество посетителей внутри, выведенное
// из журнала проходов. При planID = nil считает по всему объекту.
func (s *Storage) CountInside(ctx context.Context, planID *int64) (int, error) {
	const op = "storage.CountInside"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var count int
	if err := s.DB.QueryRowContext(ctx, insideCountQuery, planID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// ReconcilePlanCapacity пересчитывает счётчик посетителей плана
// по журналу проходов и сохраняет его, ограничивая сверху max_capacity.
// Возвращает новое значение счётчика.
func (s *Storage) ReconcilePlanCapacity(ctx context.Context, planID int64) (int, error) {
	const op = "storage.ReconcilePlanCapacity"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `
		WITH inside AS (` + insideCountQuery + `)
		UPDATE plans p
		SET current_capacity = LEAST(inside.count, COALESCE(p.max_capacity, inside.count))
		FROM inside
		WHERE p.id = $1
		RETURNING p.current_capacity`
	var count int
	if err := s.DB.QueryRowContext(ctx, query, planID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}
