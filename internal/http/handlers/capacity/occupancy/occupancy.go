// Package occupancy реализует HTTP-обработчик текущей заполненности:
// по объекту в целом или по одному тарифному плану.
package occupancy

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/facility-access/internal/http/response"
	"github.com/magabrotheeeer/facility-access/internal/lib/sl"
	capacityservice "github.com/magabrotheeeer/facility-access/internal/services/capacity"
)

// Handler управляет HTTP-запросами на получение заполненности.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики учёта заполненности
}

// Service описывает интерфейс бизнес-логики учёта заполненности.
type Service interface {
	CurrentOccupancy(ctx context.Context, planID int64) (int, error)
	FacilityOccupancy(ctx context.Context) (*capacityservice.Occupancy, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Текущая заполненность
// @Description Возвращает число посетителей внутри: по плану, если указан planID, иначе по объекту в целом.
// @Tags Capacity
// @Produce  json
// @Param planID path int false "ID плана"
// @Success 200 {object} map[string]any "Заполненность"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID плана"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /occupancy [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.capacity.occupancy"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if raw := chi.URLParam(r, "planID"); raw != "" {
		planID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Error("failed to decode plan id from url", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("failed to decode plan id from url"))
			return
		}

		inside, err := h.service.CurrentOccupancy(r.Context(), planID)
		if err != nil {
			log.Error("failed to count occupancy", sl.Err(err))
			w.WriteHeader(response.StatusCode(err))
			render.JSON(w, r, response.Error("could not count occupancy"))
			return
		}

		render.JSON(w, r, response.OKWithData(map[string]any{
			"plan_id": planID,
			"inside":  inside,
		}))
		return
	}

	occupancy, err := h.service.FacilityOccupancy(r.Context())
	if err != nil {
		log.Error("failed to count occupancy", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not count occupancy"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"inside":       occupancy.Inside,
		"max_capacity": occupancy.MaxCapacity,
	}))
}
