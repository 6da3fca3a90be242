// Package list реализует HTTP-обработчик каталога активных тарифных
// планов, сгруппированных по единице длительности.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/facility-access/internal/http/response"
	"github.com/magabrotheeeer/facility-access/internal/lib/sl"
	planservice "github.com/magabrotheeeer/facility-access/internal/services/plan"
)

// Handler управляет HTTP-запросами на получение каталога планов.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики каталога планов
}

// Service описывает интерфейс бизнес-логики каталога.
type Service interface {
	ListActive(ctx context.Context) ([]planservice.PlanGroup, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Каталог активных тарифных планов
// @Description Возвращает активные планы, сгруппированные по единице длительности.
// @Tags Plans
// @Produce  json
// @Success 200 {object} map[string]any "Каталог планов"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /plans [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	groups, err := h.service.ListActive(r.Context())
	if err != nil {
		log.Error("failed to list plans", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list plans"))
		return
	}

	log.Info("success to list plans", slog.Int("groups", len(groups)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"groups": groups,
	}))
}
