// Package services реализует фоновый обход абонементов: узкие проверки
// истекающих и только что истёкших абонементов с публикацией уведомлений
// в RabbitMQ и редкий обслуживающий проход, догоняющий пропущенные
// переходы и сверяющий счётчики заполненности.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/facility-access/internal/cache"
	"github.com/magabrotheeeer/facility-access/internal/config"
	"github.com/magabrotheeeer/facility-access/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/facility-access/internal/lib/sl"
	"github.com/magabrotheeeer/facility-access/internal/models"
)

// SweeperRepository определяет методы обхода абонементов в хранилище.
type SweeperRepository interface {
	// FindSubscriptionsExpiringBetween возвращает незакрытые абонементы,
	// срок действия которых заканчивается в [from, to).
	FindSubscriptionsExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.ExpiryInfo, error)
	// FindSubscriptionsExpiredBetween возвращает активные абонементы,
	// срок действия которых закончился в (from, to].
	FindSubscriptionsExpiredBetween(ctx context.Context, from, to time.Time) ([]*models.ExpiryInfo, error)
	// ListOpenSubscriptionsPastEnd возвращает незакрытые абонементы,
	// пережившие свою дату окончания, для обслуживающего прохода.
	ListOpenSubscriptionsPastEnd(ctx context.Context, now time.Time) ([]*models.ExpiryInfo, error)
	// UpdateSubscriptionStatus переводит абонемент из одного состояния
	// в другое, только если он всё ещё в исходном состоянии.
	UpdateSubscriptionStatus(ctx context.Context, id int64, from, to models.SubscriptionStatus) (int, error)
}

// CapacityReconciler пересчитывает счётчики заполненности планов.
type CapacityReconciler interface {
	ReconcileAll(ctx context.Context) error
}

// Publisher публикует сообщения в обменник. Сигнатура совпадает
// с (*amqp.Channel).Publish.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// CacheInvalidator сбрасывает закэшированные представления абонементов
// после переходов жизненного цикла.
type CacheInvalidator interface {
	Invalidate(key string) error
}

// Sweeper периодически обходит абонементы.
type Sweeper struct {
	repo       SweeperRepository
	capacity   CapacityReconciler
	publisher  Publisher
	cache      CacheInvalidator
	log        *slog.Logger
	cfg        config.Sweeper
	now        func() time.Time
	inProgress atomic.Bool
}

// New создает новый экземпляр Sweeper.
func New(repo SweeperRepository, capacity CapacityReconciler, publisher Publisher,
	cacheInvalidator CacheInvalidator, log *slog.Logger, cfg config.Sweeper) *Sweeper {
	return &Sweeper{
		repo:      repo,
		capacity:  capacity,
		publisher: publisher,
		cache:     cacheInvalidator,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run запускает обходы по таймерам и блокируется до отмены контекста.
func (s *Sweeper) Run(ctx context.Context) {
	sweepTicker := time.NewTicker(s.cfg.TickInterval)
	defer sweepTicker.Stop()
	maintenanceTicker := time.NewTicker(s.cfg.MaintenanceInterval)
	defer maintenanceTicker.Stop()

	if s.cfg.RunOnStart {
		s.Sweep(ctx)
		s.Maintain(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-sweepTicker.C:
			s.Sweep(ctx)
		case <-maintenanceTicker.C:
			s.Maintain(ctx)
		}
	}
}

// Sweep выполняет один узкий обход: уведомляет об истекающих абонементах
// и переводит истёкшие. Если предыдущий обход ещё не завершился, новый
// детерминированно пропускается целиком.
func (s *Sweeper) Sweep(ctx context.Context) {
	if !s.inProgress.CompareAndSwap(false, true) {
		s.log.Warn("previous sweep still running, skipping this tick")
		return
	}
	defer s.inProgress.Store(false)

	now := s.now()
	s.notifyExpiring(ctx, now)
	s.transitionExpired(ctx, now)
}

// notifyExpiring публикует уведомления об абонементах, срок действия
// которых заканчивается в ближайшем окне.
func (s *Sweeper) notifyExpiring(ctx context.Context, now time.Time) {
	infos, err := s.repo.FindSubscriptionsExpiringBetween(ctx, now, now.Add(s.cfg.ExpiringWindow))
	if err != nil {
		s.log.Error("failed to find expiring subscriptions", sl.Err(err))
		return
	}
	for _, info := range infos {
		if err := s.publish(rabbitmq.RoutingKeyExpiring, info); err != nil {
			s.log.Error("failed to publish expiring notification",
				slog.Int64("subscription_id", info.SubscriptionID), sl.Err(err))
			continue
		}
	}
	if len(infos) > 0 {
		s.log.Info("notified expiring subscriptions", slog.Int("count", len(infos)))
	}
}

// transitionExpired переводит абонементы, срок действия которых только
// что закончился: в льготный период, если он положен по плану, иначе
// в EXPIRED. Сбой по одной строке не останавливает обработку остальных.
func (s *Sweeper) transitionExpired(ctx context.Context, now time.Time) {
	infos, err := s.repo.FindSubscriptionsExpiredBetween(ctx, now.Add(-s.cfg.ExpiredLookback), now)
	if err != nil {
		s.log.Error("failed to find expired subscriptions", sl.Err(err))
		return
	}
	for _, info := range infos {
		if err := s.transitionOne(ctx, info, now); err != nil {
			s.log.Error("failed to transition subscription",
				slog.Int64("subscription_id", info.SubscriptionID), sl.Err(err))
		}
	}
	if len(infos) > 0 {
		s.log.Info("transitioned expired subscriptions", slog.Int("count", len(infos)))
	}
}

// transitionOne переводит один абонемент и публикует уведомление.
// Переход защищён условием на исходное состояние: абонемент мог уже
// перейти лениво при проверке скана.
func (s *Sweeper) transitionOne(ctx context.Context, info *models.ExpiryInfo, now time.Time) error {
	// Льготный период положен, только если он ещё не закончился:
	// при большом окне добора grace_end_date мог уже пройти.
	target := models.StatusExpired
	if info.GraceEndDate != nil && now.Before(*info.GraceEndDate) {
		target = models.StatusInGracePeriod
	}

	rows, err := s.repo.UpdateSubscriptionStatus(ctx, info.SubscriptionID, info.Status, target)
	if err != nil {
		return err
	}
	if rows == 0 {
		s.log.Info("subscription already transitioned elsewhere",
			slog.Int64("subscription_id", info.SubscriptionID))
		return nil
	}

	info.Status = target
	s.invalidateCode(info.AccessCode)
	return s.publish(rabbitmq.RoutingKeyExpired, info)
}

// Maintain выполняет обслуживающий проход: догоняет переходы,
// пропущенные узкими обходами, и сверяет счётчики заполненности.
func (s *Sweeper) Maintain(ctx context.Context) {
	now := s.now()

	infos, err := s.repo.ListOpenSubscriptionsPastEnd(ctx, now)
	if err != nil {
		s.log.Error("failed to list stale subscriptions", sl.Err(err))
	} else {
		for _, info := range infos {
			if err := s.maintainOne(ctx, info, now); err != nil {
				s.log.Error("failed to transition stale subscription",
					slog.Int64("subscription_id", info.SubscriptionID), sl.Err(err))
			}
		}
		if len(infos) > 0 {
			s.log.Info("caught up stale subscriptions", slog.Int("count", len(infos)))
		}
	}

	if err := s.capacity.ReconcileAll(ctx); err != nil {
		s.log.Error("failed to reconcile capacities", sl.Err(err))
	}
}

// maintainOne переводит один застрявший абонемент в актуальное состояние.
// Абонемент в льготном периоде, который ещё не закончился, находится
// ровно там, где должен быть: такая строка пропускается.
func (s *Sweeper) maintainOne(ctx context.Context, info *models.ExpiryInfo, now time.Time) error {
	graceRunning := info.GraceEndDate != nil && now.Before(*info.GraceEndDate)
	if info.Status == models.StatusInGracePeriod && graceRunning {
		return nil
	}

	target := models.StatusExpired
	if info.Status == models.StatusActive && graceRunning {
		target = models.StatusInGracePeriod
	}

	rows, err := s.repo.UpdateSubscriptionStatus(ctx, info.SubscriptionID, info.Status, target)
	if err != nil {
		return err
	}
	if rows == 0 {
		return nil
	}

	info.Status = target
	s.invalidateCode(info.AccessCode)
	return s.publish(rabbitmq.RoutingKeyExpired, info)
}

// invalidateCode сбрасывает кеш абонемента по коду доступа: статус
// в кеше устарел после перехода. Сбой кеша не прерывает обход.
func (s *Sweeper) invalidateCode(code string) {
	if err := s.cache.Invalidate(cache.SubscriptionCodeKey(code)); err != nil {
		s.log.Warn("failed to invalidate subscription cache",
			slog.String("code", code), sl.Err(err))
	}
}

// publish сериализует уведомление и отправляет его в обменник уведомлений.
func (s *Sweeper) publish(routingKey string, info *models.ExpiryInfo) error {
	body, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return s.publisher.Publish(rabbitmq.ExchangeName, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}
