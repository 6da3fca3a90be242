// Package services содержит бизнес-логику жизненного цикла абонементов:
// создание с вычислением дат окончания и льготного периода, выдачу
// кодов доступа, продление и активацию по платёжной квитанции.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/facility-access/internal/cache"
	"github.com/magabrotheeeer/facility-access/internal/lib/accesscode"
	"github.com/magabrotheeeer/facility-access/internal/lib/errs"
	"github.com/magabrotheeeer/facility-access/internal/models"
)

// SubscriptionRepository определяет методы для работы с абонементами в хранилище.
type SubscriptionRepository interface {
	// CreateSubscription вставляет абонемент вместе с квитанцией в одной транзакции.
	CreateSubscription(ctx context.Context, sub models.Subscription, amount float64) (int64, error)
	// ReadSubscription возвращает абонемент по ID.
	ReadSubscription(ctx context.Context, id int64) (*models.Subscription, error)
	// FindSubscriptionByCode возвращает абонемент по коду доступа.
	FindSubscriptionByCode(ctx context.Context, code string) (*models.Subscription, error)
	// FindOpenSubscriptionByUser возвращает незакрытый абонемент пользователя.
	FindOpenSubscriptionByUser(ctx context.Context, userUID string) (*models.Subscription, error)
	// ExpireSubscription принудительно переводит незакрытый абонемент в EXPIRED.
	ExpireSubscription(ctx context.Context, id int64) (int, error)
	// RenewSubscription создаёт новый абонемент взамен исходного в одной транзакции.
	RenewSubscription(ctx context.Context, sourceID int64, newSub models.Subscription, amount float64) (int64, error)
	// SetQRToken сохраняет QR-токен абонемента, если он ещё не выдан.
	SetQRToken(ctx context.Context, id int64, token string) (int, error)
	// ApproveReceipt одобряет квитанцию и активирует абонемент в одной транзакции.
	ApproveReceipt(ctx context.Context, receiptID int64, adminUID string, at time.Time) (int64, error)
	// RejectReceipt отклоняет квитанцию, абонемент остаётся в PENDING.
	RejectReceipt(ctx context.Context, receiptID int64, adminUID string, at time.Time, notes string) (int, error)
	// ReadPlan возвращает тарифный план по ID.
	ReadPlan(ctx context.Context, id int64) (*models.Plan, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Количество попыток генерации кода доступа при коллизиях.
const maxCodeAttempts = 5

// SubscriptionService реализует бизнес-логику жизненного цикла абонементов.
type SubscriptionService struct {
	repo  SubscriptionRepository
	cache Cache
	log   *slog.Logger
	now   func() time.Time
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
func NewSubscriptionService(repo SubscriptionRepository, cache Cache, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:  repo,
		cache: cache,
		log:   log,
		now:   time.Now,
	}
}

// ComputeEndDate возвращает дату окончания абонемента: план прибавляет
// свою длительность к дате начала в своих единицах.
func ComputeEndDate(plan *models.Plan, startDate time.Time) time.Time {
	return plan.TimeUnit.Shift(startDate, plan.Duration)
}

// ComputeGraceEndDate возвращает конец льготного периода: дата окончания
// плюс семь дней, только для планов класса MONTHLY, иначе nil.
func ComputeGraceEndDate(plan *models.Plan, endDate time.Time) *time.Time {
	if plan.PlanType != models.PlanMonthly {
		return nil
	}
	graceEnd := endDate.AddDate(0, 0, models.GraceDays)
	return &graceEnd
}

// Create создает новый абонемент в состоянии PENDING и возвращает его.
// Дата начала не может быть в прошлом (сравнение только по дате);
// у пользователя не может быть второго незакрытого абонемента, при этом
// найденный, но уже просроченный абонемент лениво переводится в EXPIRED.
func (s *SubscriptionService) Create(ctx context.Context, req models.DummySubscription) (*models.Subscription, error) {
	return s.create(ctx, req, nil)
}

// CreateActivated создает абонемент сразу в состоянии ACTIVE от имени
// администратора; квитанция об оплате синтезируется одобренной.
func (s *SubscriptionService) CreateActivated(ctx context.Context, req models.DummySubscription, adminUID string) (*models.Subscription, error) {
	return s.create(ctx, req, &adminUID)
}

func (s *SubscriptionService) create(ctx context.Context, req models.DummySubscription, adminUID *string) (*models.Subscription, error) {
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date: %w", errs.ErrValidation)
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if startDate.Before(today) {
		return nil, fmt.Errorf("start date must not be earlier than today: %w", errs.ErrValidation)
	}

	plan, err := s.repo.ReadPlan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, fmt.Errorf("plan %d is not active: %w", req.PlanID, errs.ErrNotFound)
	}

	if err := s.ensureNoOpenSubscription(ctx, req.UserUID, now); err != nil {
		return nil, err
	}

	endDate := ComputeEndDate(plan, startDate)
	sub := models.Subscription{
		UserUID:      req.UserUID,
		PlanID:       plan.ID,
		TimeSlot:     resolveTimeSlot(req.TimeSlot, plan),
		StartDate:    startDate,
		EndDate:      endDate,
		GraceEndDate: ComputeGraceEndDate(plan, endDate),
		Status:       models.StatusPending,
		AdminNotes:   req.AdminNotes,
	}
	if adminUID != nil {
		sub.Status = models.StatusActive
		sub.ApprovedAt = &now
		sub.ApprovedBy = adminUID
	}

	id, code, err := s.insertWithFreshCode(sub, func(sub models.Subscription) (int64, error) {
		return s.repo.CreateSubscription(ctx, sub, plan.Price)
	})
	if err != nil {
		return nil, err
	}
	sub.ID = id
	sub.AccessCode = code

	s.log.Info("created new subscription",
		slog.Int64("id", id),
		slog.String("user_uid", sub.UserUID),
		slog.String("status", string(sub.Status)))
	return &sub, nil
}

// ensureNoOpenSubscription проверяет, что у пользователя нет второго
// незакрытого абонемента. Найденный, но уже недействительный абонемент
// лениво переводится в EXPIRED: планировщик — не единственное место,
// где происходит этот переход.
func (s *SubscriptionService) ensureNoOpenSubscription(ctx context.Context, userUID string, now time.Time) error {
	existing, err := s.repo.FindOpenSubscriptionByUser(ctx, userUID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if !now.After(existing.EffectiveEnd()) {
		return fmt.Errorf("user %s already has subscription %d in status %s: %w",
			userUID, existing.ID, existing.Status, errs.ErrConflict)
	}

	if _, err := s.repo.ExpireSubscription(ctx, existing.ID); err != nil {
		return err
	}
	s.invalidateCode(existing.AccessCode)
	s.log.Info("lazily expired stale subscription", slog.Int64("id", existing.ID))
	return nil
}

// resolveTimeSlot выбирает слот нового абонемента: явный запрос
// сохраняется как есть, иначе берётся слот плана по умолчанию
// (у месячного плана с доступом на весь день это ALL); nil означает
// "весь день".
func resolveTimeSlot(requested string, plan *models.Plan) *models.TimeSlot {
	if requested != "" {
		slot := models.TimeSlot(requested)
		return &slot
	}
	return plan.DefaultTimeSlot
}

// insertWithFreshCode генерирует код доступа и вставляет абонемент,
// повторяя генерацию при коллизии с существующим кодом. Уникальность
// проверяется ограничением в хранилище по живым строкам.
func (s *SubscriptionService) insertWithFreshCode(sub models.Subscription,
	insert func(models.Subscription) (int64, error)) (int64, string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := accesscode.NewCode()
		if err != nil {
			return 0, "", err
		}
		sub.AccessCode = code

		id, err := insert(sub)
		if errors.Is(err, errs.ErrAccessCodeTaken) {
			s.log.Warn("access code collision, retrying", slog.String("code", code))
			continue
		}
		if err != nil {
			return 0, "", err
		}
		return id, code, nil
	}
	return 0, "", fmt.Errorf("failed to generate unique access code after %d attempts", maxCodeAttempts)
}

// Renew продлевает абонемент: создаёт новый в состоянии PENDING
// с параметрами исходного плана и новой датой начала. Разрешено только
// для абонементов в состоянии ACTIVE или EXPIRED; исходный ACTIVE
// принудительно переводится в EXPIRED в той же транзакции.
func (s *SubscriptionService) Renew(ctx context.Context, id int64) (*models.Subscription, error) {
	source, err := s.repo.ReadSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	if source.Status != models.StatusActive && source.Status != models.StatusExpired {
		return nil, fmt.Errorf("subscription %d in status %s cannot be renewed: %w",
			id, source.Status, errs.ErrStateViolation)
	}

	plan, err := s.repo.ReadPlan(ctx, source.PlanID)
	if err != nil {
		return nil, err
	}

	startDate := s.now()
	endDate := ComputeEndDate(plan, startDate)
	newSub := models.Subscription{
		UserUID:      source.UserUID,
		PlanID:       source.PlanID,
		TimeSlot:     source.TimeSlot,
		StartDate:    startDate,
		EndDate:      endDate,
		GraceEndDate: ComputeGraceEndDate(plan, endDate),
		Status:       models.StatusPending,
	}

	newID, code, err := s.insertWithFreshCode(newSub, func(sub models.Subscription) (int64, error) {
		return s.repo.RenewSubscription(ctx, source.ID, sub, plan.Price)
	})
	if err != nil {
		return nil, err
	}
	newSub.ID = newID
	newSub.AccessCode = code

	s.invalidateCode(source.AccessCode)
	s.log.Info("renewed subscription",
		slog.Int64("source_id", source.ID), slog.Int64("new_id", newID))
	return &newSub, nil
}

// ApprovePayment одобряет платёжную квитанцию и активирует связанный
// абонемент. Оба перехода атомарны: наполовину применённое одобрение
// недопустимо. Кеш абонемента по коду сбрасывается: там лежит PENDING.
func (s *SubscriptionService) ApprovePayment(ctx context.Context, receiptID int64, adminUID string) (int64, error) {
	subscriptionID, err := s.repo.ApproveReceipt(ctx, receiptID, adminUID, s.now())
	if err != nil {
		return 0, err
	}

	sub, err := s.repo.ReadSubscription(ctx, subscriptionID)
	if err != nil {
		// Одобрение уже зафиксировано, кеш доживёт до конца TTL.
		s.log.Warn("failed to read subscription for cache invalidation",
			slog.Int64("subscription_id", subscriptionID), slog.Any("err", err))
	} else {
		s.invalidateCode(sub.AccessCode)
	}

	s.log.Info("approved payment, subscription activated",
		slog.Int64("receipt_id", receiptID),
		slog.Int64("subscription_id", subscriptionID))
	return subscriptionID, nil
}

// RejectPayment отклоняет платёжную квитанцию. Абонемент остаётся
// в состоянии PENDING: пользователь может предъявить новую оплату.
func (s *SubscriptionService) RejectPayment(ctx context.Context, receiptID int64, adminUID, notes string) error {
	rows, err := s.repo.RejectReceipt(ctx, receiptID, adminUID, s.now(), notes)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("receipt %d is not pending: %w", receiptID, errs.ErrStateViolation)
	}
	s.log.Info("rejected payment", slog.Int64("receipt_id", receiptID))
	return nil
}

// GetByCode возвращает абонемент по коду доступа, используя кеш или репозиторий.
func (s *SubscriptionService) GetByCode(ctx context.Context, code string) (*models.Subscription, error) {
	var result *models.Subscription
	cacheKey := cache.SubscriptionCodeKey(code)
	found, err := s.cache.Get(cacheKey, &result)
	if err != nil {
		return nil, err
	}
	if found {
		return result, nil
	}

	result, err = s.repo.FindSubscriptionByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(cacheKey, result, time.Hour); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", cacheKey), slog.Any("err", err))
	}
	return result, nil
}

// IssueQRToken лениво выдаёт QR-токен абонемента. Токен неизменяем:
// повторный вызов возвращает уже сохранённое значение.
func (s *SubscriptionService) IssueQRToken(ctx context.Context, id int64) (string, error) {
	token := accesscode.NewToken()
	rows, err := s.repo.SetQRToken(ctx, id, token)
	if err != nil {
		return "", err
	}
	if rows > 0 {
		s.log.Info("issued qr token", slog.Int64("subscription_id", id))
		return token, nil
	}

	sub, err := s.repo.ReadSubscription(ctx, id)
	if err != nil {
		return "", err
	}
	if sub.QRToken == nil {
		return "", fmt.Errorf("qr token for subscription %d was not stored", id)
	}
	return *sub.QRToken, nil
}

func (s *SubscriptionService) invalidateCode(code string) {
	if err := s.cache.Invalidate(cache.SubscriptionCodeKey(code)); err != nil {
		s.log.Warn("failed to invalidate subscription cache", slog.Any("err", err))
	}
}
