package facility

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	accessvalidate "github.com/magabrotheeeer/facility-access/internal/http/handlers/access/validate"
	"github.com/magabrotheeeer/facility-access/internal/http/handlers/capacity/occupancy"
	"github.com/magabrotheeeer/facility-access/internal/http/handlers/health"
	paymentapprove "github.com/magabrotheeeer/facility-access/internal/http/handlers/payment/approve"
	paymentreject "github.com/magabrotheeeer/facility-access/internal/http/handlers/payment/reject"
	plancreate "github.com/magabrotheeeer/facility-access/internal/http/handlers/plan/create"
	plandeactivate "github.com/magabrotheeeer/facility-access/internal/http/handlers/plan/deactivate"
	planlist "github.com/magabrotheeeer/facility-access/internal/http/handlers/plan/list"
	planupdate "github.com/magabrotheeeer/facility-access/internal/http/handlers/plan/update"
	subcreate "github.com/magabrotheeeer/facility-access/internal/http/handlers/subscription/create"
	subqr "github.com/magabrotheeeer/facility-access/internal/http/handlers/subscription/qr"
	subread "github.com/magabrotheeeer/facility-access/internal/http/handlers/subscription/read"
	subrenew "github.com/magabrotheeeer/facility-access/internal/http/handlers/subscription/renew"
	"github.com/magabrotheeeer/facility-access/internal/http/middlewarectx"
	accessservice "github.com/magabrotheeeer/facility-access/internal/services/access"
	capacityservice "github.com/magabrotheeeer/facility-access/internal/services/capacity"
	planservice "github.com/magabrotheeeer/facility-access/internal/services/plan"
	subscriptionservice "github.com/magabrotheeeer/facility-access/internal/services/subscription"
	"github.com/magabrotheeeer/facility-access/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
// Аутентификация выполняется внешним шлюзом: административные маршруты
// требуют заголовок X-Admin-UID, терминалы ходят на /access/validate напрямую.
func RegisterRoutes(r chi.Router, logger *slog.Logger, db *repository.Storage,
	planService *planservice.PlanService,
	subscriptionService *subscriptionservice.SubscriptionService,
	accessService *accessservice.AccessService,
	capacityService *capacityservice.CapacityService,
) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Терминалы контроля доступа
		r.Post("/access/validate", accessvalidate.New(logger, accessService).ServeHTTP)

		// Самостоятельное оформление и просмотр
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Get("/plans", planlist.New(logger, planService).ServeHTTP)
			r.Post("/subscriptions", subcreate.New(logger, subscriptionService).ServeHTTP)
			r.Get("/subscriptions/code/{code}", subread.New(logger, subscriptionService).ServeHTTP)
			r.Post("/subscriptions/{id}/qr", subqr.New(logger, subscriptionService).ServeHTTP)
		})

		// Административные операции
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RequireAdmin)
			r.Post("/plans", plancreate.New(logger, planService).ServeHTTP)
			r.Patch("/plans/{id}", planupdate.New(logger, planService).ServeHTTP)
			r.Delete("/plans/{id}", plandeactivate.New(logger, planService).ServeHTTP)
			r.Post("/admin/subscriptions", subcreate.New(logger, subscriptionService).ServeHTTP)
			r.Post("/subscriptions/{id}/renew", subrenew.New(logger, subscriptionService).ServeHTTP)
			r.Post("/receipts/{id}/approve", paymentapprove.New(logger, subscriptionService).ServeHTTP)
			r.Post("/receipts/{id}/reject", paymentreject.New(logger, subscriptionService).ServeHTTP)
			r.Get("/occupancy", occupancy.New(logger, capacityService).ServeHTTP)
			r.Get("/occupancy/{planID}", occupancy.New(logger, capacityService).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, db).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
