// Package services отвечает за учёт заполненности: сколько человек
// сейчас внутри по плану и по объекту в целом, и периодическую сверку
// счётчиков планов с журналом проходов.
package services

import (
	"context"
	"fmt"
	"log/slog"
)

// CapacityRepository определяет методы для учёта заполненности в хранилище.
type CapacityRepository interface {
	// CountInside возвращает число пользователей внутри: по плану,
	// если planID задан, иначе по всему объекту.
	CountInside(ctx context.Context, planID *int64) (int, error)
	// ReconcilePlanCapacity пересчитывает счётчик плана из журнала проходов.
	ReconcilePlanCapacity(ctx context.Context, planID int64) (int, error)
	// ListPlanIDsWithCapacity возвращает активные планы с ограничением мест.
	ListPlanIDsWithCapacity(ctx context.Context) ([]int64, error)
}

// Occupancy — текущая заполненность объекта.
type Occupancy struct {
	Inside      int `json:"inside"`
	MaxCapacity int `json:"max_capacity"`
}

// CapacityService реализует учёт заполненности.
type CapacityService struct {
	repo        CapacityRepository
	log         *slog.Logger
	maxCapacity int
}

// NewCapacityService создает новый экземпляр CapacityService.
// maxCapacity — общий предел объекта из конфигурации, справочный.
func NewCapacityService(repo CapacityRepository, log *slog.Logger, maxCapacity int) *CapacityService {
	return &CapacityService{
		repo:        repo,
		log:         log,
		maxCapacity: maxCapacity,
	}
}

// CurrentOccupancy возвращает число пользователей внутри по одному плану.
func (c *CapacityService) CurrentOccupancy(ctx context.Context, planID int64) (int, error) {
	return c.repo.CountInside(ctx, &planID)
}

// FacilityOccupancy возвращает заполненность объекта в целом.
func (c *CapacityService) FacilityOccupancy(ctx context.Context) (*Occupancy, error) {
	inside, err := c.repo.CountInside(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Occupancy{Inside: inside, MaxCapacity: c.maxCapacity}, nil
}

// Reconcile пересчитывает счётчик заполненности одного плана из журнала
// проходов и возвращает новое значение. Счётчик не может превышать
// предел плана.
func (c *CapacityService) Reconcile(ctx context.Context, planID int64) (int, error) {
	count, err := c.repo.ReconcilePlanCapacity(ctx, planID)
	if err != nil {
		return 0, err
	}
	c.log.Info("reconciled plan capacity",
		slog.Int64("plan_id", planID), slog.Int("current_capacity", count))
	return count, nil
}

// ReconcileAll пересчитывает счётчики всех планов с ограничением мест.
// Сбой по одному плану не останавливает сверку остальных.
func (c *CapacityService) ReconcileAll(ctx context.Context) error {
	planIDs, err := c.repo.ListPlanIDsWithCapacity(ctx)
	if err != nil {
		return err
	}

	var failed int
	for _, planID := range planIDs {
		if _, err := c.Reconcile(ctx, planID); err != nil {
			failed++
			c.log.Error("failed to reconcile plan capacity",
				slog.Int64("plan_id", planID), slog.Any("err", err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to reconcile %d of %d plans", failed, len(planIDs))
	}
	return nil
}
