// Package facility собирает основное HTTP-приложение: хранилище,
// миграции, кеш, сервисы и маршруты.
package facility

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/facility-access/internal/cache"
	"github.com/magabrotheeeer/facility-access/internal/config"
	"github.com/magabrotheeeer/facility-access/internal/migrations"
	accessservice "github.com/magabrotheeeer/facility-access/internal/services/access"
	capacityservice "github.com/magabrotheeeer/facility-access/internal/services/capacity"
	planservice "github.com/magabrotheeeer/facility-access/internal/services/plan"
	subscriptionservice "github.com/magabrotheeeer/facility-access/internal/services/subscription"
	"github.com/magabrotheeeer/facility-access/internal/storage/repository"
)

// App представляет основное приложение системы контроля доступа.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
}

// New создает приложение: подключает PostgreSQL, применяет миграции,
// инициализирует Redis и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	planService := planservice.NewPlanService(db, cacheRedis, logger)
	subscriptionService := subscriptionservice.NewSubscriptionService(db, cacheRedis, logger)
	accessService := accessservice.NewAccessService(db, cacheRedis, logger)
	capacityService := capacityservice.NewCapacityService(db, logger, cfg.Facility.MaxCapacity)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, db,
		planService, subscriptionService, accessService, capacityService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
	}, nil
}

// Run запускает HTTP-сервер и блокируется до отмены контекста
// или ошибки сервера.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if closeErr := a.db.DB.Close(); closeErr != nil {
			a.logger.Error("failed to close storage", slog.Any("err", closeErr))
		}
		return err
	}
}
