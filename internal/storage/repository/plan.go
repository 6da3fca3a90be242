package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/facility-access/internal/lib/errs"
	"github.com/magabrotheeeer/facility-access/internal/models"
)

const planColumns = `id, name, price, time_unit, duration, plan_type, default_time_slot,
			max_capacity, current_capacity, is_custom, window_start, window_end, is_active, notes`

func scanPlan(row interface{ Scan(dest ...any) error }) (*models.Plan, error) {
	var p models.Plan
	var slot sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.TimeUnit, &p.Duration, &p.PlanType, &slot,
		&p.MaxCapacity, &p.CurrentCapacity, &p.IsCustom, &p.WindowStart, &p.WindowEnd, &p.IsActive, &p.Notes)
	if err != nil {
		return nil, err
	}
	if slot.Valid {
		ts := models.TimeSlot(slot.String)
		p.DefaultTimeSlot = &ts
	}
	return &p, nil
}

// CreatePlan вставляет новый тарифный план и возвращает его ID.
func (s *Storage) CreatePlan(ctx context.Context, plan models.Plan) (int64, error) {
	const op = "storage.CreatePlan"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var slot *string
	if plan.DefaultTimeSlot != nil {
		v := string(*plan.DefaultTimeSlot)
		slot = &v
	}

	query := `INSERT INTO plans (name, price, time_unit, duration, plan_type, default_time_slot,
			      max_capacity, current_capacity, is_custom, window_start, window_end, is_active, notes)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, $10, TRUE, $11)
			  RETURNING id`
	var newID int64
	err := s.DB.QueryRowContext(ctx, query,
		plan.Name, plan.Price, plan.TimeUnit, plan.Duration, plan.PlanType, slot,
		plan.MaxCapacity, plan.IsCustom, plan.WindowStart, plan.WindowEnd, plan.Notes).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ReadPlan возвращает тарифный план по его ID.
func (s *Storage) ReadPlan(ctx context.Context, id int64) (*models.Plan, error) {
	const op = "storage.ReadPlan"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`
	plan, err := scanPlan(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return plan, nil
}

// UpdatePlan обновляет изменяемые поля плана по его ID
// и возвращает количество изменённых строк.
func (s *Storage) UpdatePlan(ctx context.Context, plan models.Plan) (int, error) {
	const op = "storage.UpdatePlan"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE plans
			  SET name = $1, price = $2, max_capacity = $3, is_active = $4, notes = $5
			  WHERE id = $6`
	result, err := s.DB.ExecContext(ctx, query,
		plan.Name, plan.Price, plan.MaxCapacity, plan.IsActive, plan.Notes, plan.ID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// DeactivatePlan выполняет мягкое удаление плана и возвращает
// количество изменённых строк.
func (s *Storage) DeactivatePlan(ctx context.Context, id int64) (int, error) {
	const op = "storage.DeactivatePlan"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, `UPDATE plans SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ListActivePlans возвращает все активные планы, упорядоченные
// по единице длительности и цене по возрастанию.
func (s *Storage) ListActivePlans(ctx context.Context) ([]*models.Plan, error) {
	const op = "storage.ListActivePlans"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + planColumns + `
			  FROM plans
			  WHERE is_active = TRUE
			  ORDER BY time_unit, price`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var result []*models.Plan
	for rows.Next() {
		item, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, item)
	}
	err = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListPlanIDsWithCapacity возвращает ID планов с заданным пределом
// посетителей. Используется обслуживающим проходом для сверки счётчиков.
func (s *Storage) ListPlanIDsWithCapacity(ctx context.Context) ([]int64, error) {
	const op = "storage.ListPlanIDsWithCapacity"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT id FROM plans WHERE max_capacity IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var result []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, id)
	}
	err = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
