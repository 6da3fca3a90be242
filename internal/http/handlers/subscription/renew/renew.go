// Package renew реализует HTTP-обработчик продления абонемента.
// Продление создаёт новый абонемент в состоянии PENDING с новым кодом
// доступа; исходный активный абонемент закрывается.
package renew

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
	"github.com/magabrotheeeer/facility-access/internal/models"
)

// Handler управляет HTTP-запросами на продление абонементов.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики жизненного цикла
}

// Service описывает интерфейс бизнес-логики продления.
type Service interface {
	Renew(ctx context.Context, id int64) (*models.Subscription, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Продлить абонемент
// @Description Создает новый абонемент в состоянии PENDING с параметрами исходного. Разрешено только для абонементов в состояниях ACTIVE и EXPIRED.
// @Tags Subscriptions
// @Produce  json
// @Param id path int true "ID исходного абонемента"
// @Success 200 {object} map[string]any "Новый абонемент с кодом доступа"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 404 {object} response.ErrorResponse "Абонемент не найден"
// @Failure 409 {object} response.ErrorResponse "Абонемент в состоянии, не допускающем продления"
// @Router /subscriptions/{id}/renew [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.renew"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		log.Error("failed to decode id from url", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode id from url"))
		return
	}

	sub, err := h.service.Renew(r.Context(), id)
	if err != nil {
		log.Error("failed to renew subscription", sl.Err(err))
		w.WriteHeader(response.StatusCode(err))
		render.JSON(w, r, response.Error("could not renew subscription"))
		return
	}

	log.Info("success to renew subscription",
		slog.Int64("source_id", id), slog.Int64("new_id", sub.ID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"subscription_id": sub.ID,
		"access_code":     sub.AccessCode,
		"status":          sub.Status,
		"start_date":      sub.StartDate,
		"end_date":        sub.EndDate,
	}))
}
