// Package services реализует проверку сканов на терминалах: поиск
// абонемента по коду или QR-токену, ленивые переходы жизненного цикла,
// проверку слота времени суток и атомарный учёт заполненности.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/facility-access/internal/cache"
	"github.com/magabrotheeeer/facility-access/internal/lib/errs"
	"github.com/magabrotheeeer/facility-access/internal/models"
)

// AccessRepository определяет методы для проверки сканов в хранилище.
type AccessRepository interface {
	// FindSubscriptionByToken возвращает абонемент и его план по коду
	// доступа или QR-токену.
	FindSubscriptionByToken(ctx context.Context, token string) (*models.Subscription, *models.Plan, error)
	// UpdateSubscriptionStatus переводит абонемент из одного состояния
	// в другое, только если он всё ещё в исходном состоянии.
	UpdateSubscriptionStatus(ctx context.Context, id int64, from, to models.SubscriptionStatus) (int, error)
	// InsertAccessLog записывает попытку прохода в журнал.
	InsertAccessLog(ctx context.Context, entry models.AccessLog) error
	// RegisterEntry атомарно занимает место в плане и пишет запись журнала.
	RegisterEntry(ctx context.Context, planID int64, entry models.AccessLog) (bool, error)
	// RegisterExit освобождает место в плане и пишет запись журнала.
	RegisterExit(ctx context.Context, planID int64, entry models.AccessLog) error
}

// Cache сбрасывает закэшированные представления абонементов после
// ленивых переходов жизненного цикла.
type Cache interface {
	Invalidate(key string) error
}

// ValidationOutcome — итог проверки скана для ответа терминалу.
type ValidationOutcome struct {
	Result       models.ValidationResult
	Subscription *models.Subscription
	PlanName     string
	Message      string
}

// accessPolicy решает, действителен ли абонемент в момент скана.
// Две реализации: обычные планы со статусами и слотами и кастомные
// планы с явным окном действия.
type accessPolicy interface {
	evaluate(ctx context.Context, sub *models.Subscription, action models.Action,
		now time.Time) (models.ValidationResult, string, error)
}

// AccessService реализует проверку сканов.
type AccessService struct {
	repo  AccessRepository
	cache Cache
	log   *slog.Logger
	now   func() time.Time
}

// NewAccessService создает новый экземпляр AccessService.
func NewAccessService(repo AccessRepository, cacheInvalidator Cache, log *slog.Logger) *AccessService {
	return &AccessService{
		repo:  repo,
		cache: cacheInvalidator,
		log:   log,
		now:   time.Now,
	}
}

// Validate проверяет скан и записывает попытку в журнал. Любой итог,
// кроме SUCCESS, — это решение об отказе, а не ошибка: ошибка
// возвращается только при сбое хранилища.
func (a *AccessService) Validate(ctx context.Context, req models.DummyValidate) (*ValidationOutcome, error) {
	const op = "services.access.Validate"

	action := models.Action(req.Action)
	now := a.now()

	sub, plan, err := a.repo.FindSubscriptionByToken(ctx, req.Token)
	if errors.Is(err, errs.ErrNotFound) {
		// Журнал требует ссылки на абонемент, поэтому неизвестный
		// токен отражается только в логах и метриках.
		a.log.Warn("scan with unknown token",
			slog.String("scanner_location", req.ScannerLocation))
		validationsTotal.WithLabelValues(string(models.ResultDenied), req.Action).Inc()
		return &ValidationOutcome{
			Result:  models.ResultDenied,
			Message: "unknown access code or token",
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result, message, err := a.policyFor(plan).evaluate(ctx, sub, action, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entry := models.AccessLog{
		UserUID:         sub.UserUID,
		SubscriptionID:  sub.ID,
		Action:          action,
		Result:          result,
		ScannerLocation: req.ScannerLocation,
	}
	if err := a.record(ctx, plan, entry, &result, &message); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	validationsTotal.WithLabelValues(string(result), req.Action).Inc()
	a.log.Info("validated scan",
		slog.Int64("subscription_id", sub.ID),
		slog.String("action", req.Action),
		slog.String("result", string(result)))
	return &ValidationOutcome{
		Result:       result,
		Subscription: sub,
		PlanName:     plan.Name,
		Message:      message,
	}, nil
}

// policyFor выбирает политику проверки по плану: кастомный план с явным
// окном действия проверяется по окну, остальные — по статусу и слоту.
func (a *AccessService) policyFor(plan *models.Plan) accessPolicy {
	if plan.HasExplicitWindow() {
		return &windowPolicy{start: *plan.WindowStart, end: *plan.WindowEnd}
	}
	return &lifecyclePolicy{repo: a.repo, cache: a.cache, log: a.log}
}

// windowPolicy проверяет абонемент кастомного плана: действительность
// определяется явным окном дат плана, поле статуса и слоты не участвуют.
type windowPolicy struct {
	start, end time.Time
}

func (p *windowPolicy) evaluate(_ context.Context, _ *models.Subscription,
	_ models.Action, now time.Time) (models.ValidationResult, string, error) {
	if now.Before(p.start) {
		return models.ResultDenied, "plan window has not opened yet", nil
	}
	if now.After(p.end) {
		return models.ResultExpired, "plan window has closed", nil
	}
	return models.ResultSuccess, "", nil
}

// lifecyclePolicy проверяет абонемент обычного плана по состоянию
// жизненного цикла и слоту времени суток. Переходы происходят лениво
// прямо здесь: планировщик — не единственное место, где абонемент
// переходит в IN_GRACE_PERIOD или EXPIRED.
type lifecyclePolicy struct {
	repo  AccessRepository
	cache Cache
	log   *slog.Logger
}

func (p *lifecyclePolicy) evaluate(ctx context.Context, sub *models.Subscription,
	action models.Action, now time.Time) (models.ValidationResult, string, error) {
	switch sub.Status {
	case models.StatusPending:
		return models.ResultDenied, "subscription is awaiting payment approval", nil
	case models.StatusExpired:
		return models.ResultExpired, "subscription has expired", nil
	}

	if now.Before(sub.StartDate) {
		return models.ResultDenied, "subscription has not started yet", nil
	}

	if now.After(sub.EffectiveEnd()) {
		if _, err := p.repo.UpdateSubscriptionStatus(ctx, sub.ID, sub.Status, models.StatusExpired); err != nil {
			return "", "", err
		}
		p.invalidateCode(sub.AccessCode)
		p.log.Info("lazily expired subscription", slog.Int64("subscription_id", sub.ID))
		sub.Status = models.StatusExpired
		return models.ResultExpired, "subscription has expired", nil
	}

	if sub.Status == models.StatusActive && now.After(sub.EndDate) && sub.GraceEndDate != nil {
		if _, err := p.repo.UpdateSubscriptionStatus(ctx, sub.ID,
			models.StatusActive, models.StatusInGracePeriod); err != nil {
			return "", "", err
		}
		p.invalidateCode(sub.AccessCode)
		p.log.Info("subscription entered grace period", slog.Int64("subscription_id", sub.ID))
		sub.Status = models.StatusInGracePeriod
	}

	// Слот проверяется только на входе: выход разрешён в любое время.
	if action == models.ActionEntry && sub.TimeSlot != nil && !sub.TimeSlot.Contains(now) {
		return models.ResultInvalidTime, "outside allowed time window", nil
	}

	return models.ResultSuccess, "", nil
}

// invalidateCode сбрасывает кеш абонемента по коду доступа после
// ленивого перехода. Сбой кеша не влияет на итог проверки.
func (p *lifecyclePolicy) invalidateCode(code string) {
	if err := p.cache.Invalidate(cache.SubscriptionCodeKey(code)); err != nil {
		p.log.Warn("failed to invalidate subscription cache",
			slog.String("code", code), slog.Any("err", err))
	}
}

// record фиксирует итог в журнале. Успешный вход проходит через
// атомарный захват места: при заполненном плане итог превращается
// в CAPACITY_FULL уже внутри той же транзакции.
func (a *AccessService) record(ctx context.Context, plan *models.Plan,
	entry models.AccessLog, result *models.ValidationResult, message *string) error {
	if *result == models.ResultSuccess {
		switch entry.Action {
		case models.ActionEntry:
			allowed, err := a.repo.RegisterEntry(ctx, plan.ID, entry)
			if err != nil {
				return err
			}
			if !allowed {
				*result = models.ResultCapacityFull
				*message = "plan capacity is full"
			}
			return nil
		case models.ActionExit:
			return a.repo.RegisterExit(ctx, plan.ID, entry)
		}
	}

	entry.Result = *result
	return a.repo.InsertAccessLog(ctx, entry)
}
