package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/facility-access/internal/lib/errs"
	"github.com/magabrotheeeer/facility-access/internal/models"
)

// Код unique_violation PostgreSQL.
const pgUniqueViolation = "23505"

const subscriptionColumns = `id, user_uid, plan_id, access_code, qr_token, time_slot,
			start_date, end_date, grace_end_date, status, approved_at, approved_by, admin_notes, created_at`

func scanSubscription(row interface{ Scan(dest ...any) error }) (*models.Subscription, error) {
	var sub models.Subscription
	var slot sql.NullString
	err := row.Scan(&sub.ID, &sub.UserUID, &sub.PlanID, &sub.AccessCode, &sub.QRToken, &slot,
		&sub.StartDate, &sub.EndDate, &sub.GraceEndDate, &sub.Status,
		&sub.ApprovedAt, &sub.ApprovedBy, &sub.AdminNotes, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	if slot.Valid {
		ts := models.TimeSlot(slot.String)
		sub.TimeSlot = &ts
	}
	return &sub, nil
}

func timeSlotArg(sub models.Subscription) *string {
	if sub.TimeSlot == nil {
		return nil
	}
	v := string(*sub.TimeSlot)
	return &v
}

const insertSubscriptionQuery = `INSERT INTO subscriptions (user_uid, plan_id, access_code, time_slot,
			start_date, end_date, grace_end_date, status, approved_at, approved_by, admin_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

func mapInsertError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		if pgErr.ConstraintName == "subscriptions_access_code_key" {
			return fmt.Errorf("%s: %w", op, errs.ErrAccessCodeTaken)
		}
		return fmt.Errorf("%s: %w", op, errs.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// CreateSubscription вставляет новый абонемент вместе с квитанцией
// об оплате в одной транзакции и возвращает ID абонемента.
// Статус квитанции соответствует статусу абонемента: PENDING для
// самостоятельной покупки, APPROVED при прямой активации администратором.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription, amount float64) (int64, error) {
	const op = "storage.CreateSubscription"
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

	var newID int64
	err = tx.QueryRowContext(ctx, insertSubscriptionQuery,
		sub.UserUID, sub.PlanID, sub.AccessCode, timeSlotArg(sub),
		sub.StartDate, sub.EndDate, sub.GraceEndDate, sub.Status,
		sub.ApprovedAt, sub.ApprovedBy, sub.AdminNotes).Scan(&newID)
	if err != nil {
		return 0, mapInsertError(op, err)
	}

	receiptStatus := models.ReceiptPending
	if sub.Status == models.StatusActive {
		receiptStatus = models.ReceiptApproved
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO payment_receipts (subscription_id, amount, status, processed_at, processed_by)
		 VALUES ($1, $2, $3, $4, $5)`,
		newID, amount, receiptStatus, sub.ApprovedAt, sub.ApprovedBy)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ReadSubscription возвращает абонемент по его ID.
func (s *Storage) ReadSubscription(ctx context.Context, id int64) (*models.Subscription, error) {
	const op = "storage.ReadSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// FindSubscriptionByToken возвращает абонемент по коду доступа
// или QR-токену вместе с его тарифным планом.
func (s *Storage) FindSubscriptionByToken(ctx context.Context, token string) (*models.Subscription, *models.Plan, error) {
	const op = "storage.FindSubscriptionByToken"
	select {
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE access_code = $1 OR qr_token = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%s: %w", op, errs.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	plan, err := s.ReadPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, plan, nil
}

// FindSubscriptionByCode возвращает абонемент по коду доступа.
func (s *Storage) FindSubscriptionByCode(ctx context.Context, code string) (*models.Subscription, error) {
	const op = "storage.FindSubscriptionByCode"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE access_code = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// FindOpenSubscriptionByUser возвращает незакрытый абонемент пользователя
// (PENDING, ACTIVE или IN_GRACE_PERIOD), если он существует.
func (s *Storage) FindOpenSubscriptionByUser(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.FindOpenSubscriptionByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE user_uid = $1 AND status IN ('PENDING', 'ACTIVE', 'IN_GRACE_PERIOD')`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// UpdateSubscriptionStatus переводит абонемент из состояния from в to
// и возвращает количество изменённых строк. Переход выполняется только
// из ожидаемого состояния, обратные переходы невозможны.
func (s *Storage) UpdateSubscriptionStatus(ctx context.Context, id int64, from, to models.SubscriptionStatus) (int, error) {
	const op = "storage.UpdateSubscriptionStatus"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx,
		`UPDATE subscriptions SET status = $1 WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ExpireSubscription принудительно переводит незакрытый абонемент в EXPIRED.
func (s *Storage) ExpireSubscription(ctx context.Context, id int64) (int, error) {
	const op = "storage.ExpireSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx,
		`UPDATE subscriptions SET status = 'EXPIRED'
		 WHERE id = $1 AND status IN ('PENDING', 'ACTIVE', 'IN_GRACE_PERIOD')`, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// SetQRToken сохраняет QR-токен абонемента. Токен выдаётся один раз:
// повторная запись не изменяет существующее значение.
func (s *Storage) SetQRToken(ctx context.Context, id int64, token string) (int, error) {
	const op = "storage.SetQRToken"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx,
		`UPDATE subscriptions SET qr_token = $1 WHERE id = $2 AND qr_token IS NULL`, token, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// RenewSubscription создаёт новый абонемент взамен исходного в одной
// транзакции. Исходный абонемент переводится в EXPIRED только если он
// был ACTIVE; уже истёкший источник не изменяется.
func (s *Storage) RenewSubscription(ctx context.Context, sourceID int64, newSub models.Subscription, amount float64) (int64, error) {
	const op = "storage.RenewSubscription"
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

	_, err = tx.ExecContext(ctx,
		`UPDATE subscriptions SET status = 'EXPIRED' WHERE id = $1 AND status = 'ACTIVE'`, sourceID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var newID int64
	err = tx.QueryRowContext(ctx, insertSubscriptionQuery,
		newSub.UserUID, newSub.PlanID, newSub.AccessCode, timeSlotArg(newSub),
		newSub.StartDate, newSub.EndDate, newSub.GraceEndDate, newSub.Status,
		newSub.ApprovedAt, newSub.ApprovedBy, newSub.AdminNotes).Scan(&newID)
	if err != nil {
		return 0, mapInsertError(op, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payment_receipts (subscription_id, amount, status) VALUES ($1, $2, 'PENDING')`,
		newID, amount)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// FindSubscriptionsExpiringBetween возвращает незакрытые абонементы,
// дата окончания которых попадает в полуинтервал [from, to).
func (s *Storage) FindSubscriptionsExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.ExpiryInfo, error) {
	const op = "storage.FindSubscriptionsExpiringBetween"
	return s.queryExpiryInfos(ctx, op,
		`SELECT s.id, s.user_uid, p.name, s.end_date, s.grace_end_date, s.status, s.access_code
		 FROM subscriptions s
		 JOIN plans p ON p.id = s.plan_id
		 WHERE s.status IN ('ACTIVE', 'IN_GRACE_PERIOD')
		   AND s.end_date >= $1 AND s.end_date < $2`, from, to)
}

// FindSubscriptionsExpiredBetween возвращает ACTIVE абонементы,
// дата окончания которых прошла в полуинтервале (from, to].
func (s *Storage) FindSubscriptionsExpiredBetween(ctx context.Context, from, to time.Time) ([]*models.ExpiryInfo, error) {
	const op = "storage.FindSubscriptionsExpiredBetween"
	return s.queryExpiryInfos(ctx, op,
		`SELECT s.id, s.user_uid, p.name, s.end_date, s.grace_end_date, s.status, s.access_code
		 FROM subscriptions s
		 JOIN plans p ON p.id = s.plan_id
		 WHERE s.status = 'ACTIVE'
		   AND s.end_date > $1 AND s.end_date <= $2`, from, to)
}

// ListOpenSubscriptionsPastEnd возвращает все незакрытые абонементы,
// дата окончания которых уже прошла, без ограничения окна. Используется
// обслуживающим проходом для добора пропущенных переходов.
func (s *Storage) ListOpenSubscriptionsPastEnd(ctx context.Context, now time.Time) ([]*models.ExpiryInfo, error) {
	const op = "storage.ListOpenSubscriptionsPastEnd"
	return s.queryExpiryInfos(ctx, op,
		`SELECT s.id, s.user_uid, p.name, s.end_date, s.grace_end_date, s.status, s.access_code
		 FROM subscriptions s
		 JOIN plans p ON p.id = s.plan_id
		 WHERE s.status IN ('ACTIVE', 'IN_GRACE_PERIOD')
		   AND s.end_date <= $1`, now)
}

func (s *Storage) queryExpiryInfos(ctx context.Context, op, query string, args ...any) ([]*models.ExpiryInfo, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var result []*models.ExpiryInfo
	for rows.Next() {
		var item models.ExpiryInfo
		if err := rows.Scan(&item.SubscriptionID, &item.UserUID, &item.PlanName,
			&item.EndDate, &item.GraceEndDate, &item.Status, &item.AccessCode); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	err = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
