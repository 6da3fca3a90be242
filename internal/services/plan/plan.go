// Package services содержит бизнес-логику каталога тарифных планов.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/facility-access/internal/lib/errs"
	"github.com/magabrotheeeer/facility-access/internal/models"
)

// PlanRepository определяет методы для работы с планами в хранилище.
type PlanRepository interface {
	// CreatePlan добавляет новый план и возвращает его ID.
	CreatePlan(ctx context.Context, plan models.Plan) (int64, error)
	// ReadPlan возвращает план по ID.
	ReadPlan(ctx context.Context, id int64) (*models.Plan, error)
	// UpdatePlan обновляет изменяемые поля плана.
	UpdatePlan(ctx context.Context, plan models.Plan) (int, error)
	// DeactivatePlan выполняет мягкое удаление плана.
	DeactivatePlan(ctx context.Context, id int64) (int, error)
	// ListActivePlans возвращает активные планы, упорядоченные по (time_unit, price).
	ListActivePlans(ctx context.Context) ([]*models.Plan, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// PlanGroup объединяет активные планы с одной единицей длительности
// для отображения каталога.
type PlanGroup struct {
	TimeUnit models.TimeUnit `json:"time_unit"`
	Plans    []*models.Plan  `json:"plans"`
}

// PlanService реализует бизнес-логику каталога планов, включая кеширование.
type PlanService struct {
	repo  PlanRepository
	cache Cache
	log   *slog.Logger
}

const activePlansKey = "plans:active"

// NewPlanService создает новый экземпляр PlanService.
func NewPlanService(repo PlanRepository, cache Cache, log *slog.Logger) *PlanService {
	return &PlanService{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Create создает кастомный тарифный план и возвращает его ID.
// Планы, создаваемые через API, всегда кастомные; системные планы
// заводятся миграциями.
func (s *PlanService) Create(ctx context.Context, req models.DummyPlan) (int64, error) {
	unit := models.TimeUnit(req.TimeUnit)
	if !unit.Valid() {
		return 0, fmt.Errorf("unknown time unit %q: %w", req.TimeUnit, errs.ErrValidation)
	}

	plan := models.Plan{
		Name:     req.Name,
		Price:    req.Price,
		TimeUnit: unit,
		Duration: req.Duration,
		PlanType: models.PlanType(req.PlanType),
		IsCustom: true,
		Notes:    req.Notes,
	}

	if req.DefaultTimeSlot != "" {
		slot := models.TimeSlot(req.DefaultTimeSlot)
		if !slot.Valid() {
			return 0, fmt.Errorf("unknown time slot %q: %w", req.DefaultTimeSlot, errs.ErrValidation)
		}
		plan.DefaultTimeSlot = &slot
	}
	plan.MaxCapacity = req.MaxCapacity

	if (req.WindowStart == "") != (req.WindowEnd == "") {
		return 0, fmt.Errorf("window bounds must be set together: %w", errs.ErrValidation)
	}
	if req.WindowStart != "" {
		start, err := time.Parse(time.RFC3339, req.WindowStart)
		if err != nil {
			return 0, fmt.Errorf("invalid window start: %w", errs.ErrValidation)
		}
		end, err := time.Parse(time.RFC3339, req.WindowEnd)
		if err != nil {
			return 0, fmt.Errorf("invalid window end: %w", errs.ErrValidation)
		}
		if !end.After(start) {
			return 0, fmt.Errorf("window end must be after window start: %w", errs.ErrValidation)
		}
		plan.WindowStart = &start
		plan.WindowEnd = &end
	}

	id, err := s.repo.CreatePlan(ctx, plan)
	if err != nil {
		return 0, err
	}
	s.log.Info("created new plan", slog.Int64("id", id), slog.String("name", plan.Name))

	s.invalidateCatalog()
	return id, nil
}

// Update обновляет изменяемые поля кастомного плана. Системные планы
// неизменяемы: попытка обновления завершается ErrForbidden.
func (s *PlanService) Update(ctx context.Context, id int64, patch models.DummyPlanPatch) (*models.Plan, error) {
	plan, err := s.repo.ReadPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if !plan.IsCustom {
		return nil, fmt.Errorf("plan %d is a system plan: %w", id, errs.ErrForbidden)
	}

	if patch.Name != nil {
		plan.Name = *patch.Name
	}
	if patch.Price != nil {
		plan.Price = *patch.Price
	}
	if patch.MaxCapacity != nil {
		plan.MaxCapacity = patch.MaxCapacity
	}
	if patch.IsActive != nil {
		plan.IsActive = *patch.IsActive
	}
	if patch.Notes != nil {
		plan.Notes = *patch.Notes
	}

	if _, err := s.repo.UpdatePlan(ctx, *plan); err != nil {
		return nil, err
	}
	s.log.Info("updated plan", slog.Int64("id", id))

	s.invalidateCatalog()
	return plan, nil
}

// Deactivate выполняет мягкое удаление кастомного плана. Системные
// планы не удаляются: попытка завершается ErrForbidden.
func (s *PlanService) Deactivate(ctx context.Context, id int64) error {
	plan, err := s.repo.ReadPlan(ctx, id)
	if err != nil {
		return err
	}
	if !plan.IsCustom {
		return fmt.Errorf("plan %d is a system plan: %w", id, errs.ErrForbidden)
	}

	if _, err := s.repo.DeactivatePlan(ctx, id); err != nil {
		return err
	}
	s.log.Info("deactivated plan", slog.Int64("id", id))

	s.invalidateCatalog()
	return nil
}

// ListActive возвращает активные планы, сгруппированные по единице
// длительности, используя кеш или репозиторий. Порядок групп и планов
// внутри группы — по (time_unit, price) по возрастанию.
func (s *PlanService) ListActive(ctx context.Context) ([]PlanGroup, error) {
	var groups []PlanGroup
	found, err := s.cache.Get(activePlansKey, &groups)
	if err != nil {
		return nil, err
	}
	if found {
		return groups, nil
	}

	plans, err := s.repo.ListActivePlans(ctx)
	if err != nil {
		return nil, err
	}

	for _, p := range plans {
		if len(groups) == 0 || groups[len(groups)-1].TimeUnit != p.TimeUnit {
			groups = append(groups, PlanGroup{TimeUnit: p.TimeUnit})
		}
		groups[len(groups)-1].Plans = append(groups[len(groups)-1].Plans, p)
	}

	if err := s.cache.Set(activePlansKey, groups, time.Hour); err != nil {
		s.log.Warn("failed to cache plan catalog", slog.String("key", activePlansKey), slog.Any("err", err))
	}
	return groups, nil
}

func (s *PlanService) invalidateCatalog() {
	if err := s.cache.Invalidate(activePlansKey); err != nil {
		s.log.Warn("failed to invalidate plan catalog cache", slog.Any("err", err))
	}
}
