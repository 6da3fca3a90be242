package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/facility-access/internal/lib/errs"
	"github.com/magabrotheeeer/facility-access/internal/models"
)

// ReadReceipt возвращает платёжную квитанцию по её ID.
func (s *Storage) ReadReceipt(ctx context.Context, id int64) (*models.PaymentReceipt, error) {
	const op = "storage.ReadReceipt"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, subscription_id, amount, status, processed_at, processed_by, admin_notes, created_at
			  FROM payment_receipts WHERE id = $1`
	var receipt models.PaymentReceipt
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&receipt.ID, &receipt.SubscriptionID,
		&receipt.Amount, &receipt.Status, &receipt.ProcessedAt, &receipt.ProcessedBy,
		&receipt.AdminNotes, &receipt.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &receipt, nil
}

// ApproveReceipt одобряет квитанцию и активирует связанный абонемент
// в одной транзакции: оба перехода выполняются вместе или не выполняются
// вовсе. Возвращает ID активированного абонемента. Если квитанция или
// абонемент не в состоянии PENDING, возвращает ErrStateViolation.
func (s *Storage) ApproveReceipt(ctx context.Context, receiptID int64, adminUID string, at time.Time) (int64, error) {
	const op = "storage.ApproveReceipt"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var subscriptionID int64
	err = tx.QueryRowContext(ctx,
		`UPDATE payment_receipts
		 SET status = 'APPROVED', processed_at = $2, processed_by = $3
		 WHERE id = $1 AND status = 'PENDING'
		 RETURNING subscription_id`, receiptID, at, adminUID).Scan(&subscriptionID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", op, errs.ErrStateViolation)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE subscriptions
		 SET status = 'ACTIVE', approved_at = $2, approved_by = $3
		 WHERE id = $1 AND status = 'PENDING'`, subscriptionID, at, adminUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return 0, fmt.Errorf("%s: %w", op, errs.ErrStateViolation)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return subscriptionID, nil
}

// RejectReceipt отклоняет квитанцию в состоянии PENDING.
func (s *Storage) RejectReceipt(ctx context.Context, receiptID int64, adminUID string, at time.Time, notes string) (int, error) {
	const op = "storage.RejectReceipt"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx,
		`UPDATE payment_receipts
		 SET status = 'REJECTED', processed_at = $2, processed_by = $3, admin_notes = $4
		 WHERE id = $1 AND status = 'PENDING'`, receiptID, at, adminUID, notes)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
