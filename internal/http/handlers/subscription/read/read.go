// Package read реализует HTTP-обработчик для получения абонемента
// по коду доступа.
package read

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/facility-access/internal/http/response"
	"github.com/magabrotheeeer/facility-access/internal/lib/sl"
	"github.com/magabrotheeeer/facility-access/internal/models"
)

// Handler обрабатывает запросы на получение абонемента по коду доступа.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики жизненного цикла
}

// Service описывает интерфейс бизнес-логики чтения абонемента.
type Service interface {
	GetByCode(ctx context.Context, code string) (*models.Subscription, error)
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить абонемент по коду доступа
// @Description Возвращает абонемент по шестизначному коду доступа.
// @Tags Subscriptions
// @Produce  json
// @Param code path string true "Код доступа"
// @Success 200 {object} map[string]any "Данные абонемента"
// @Failure 404 {object} response.ErrorResponse "Абонемент не найден"
// @Router /subscriptions/code/{code} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.read"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	code := chi.URLParam(r, "code")
	sub, err := h.service.GetByCode(r.Context(), code)
	if err != nil {
		log.Error("failed to read subscription", sl.Err(err))
		w.WriteHeader(response.StatusCode(err))
		render.JSON(w, r, response.Error("could not read subscription"))
		return
	}

	log.Info("success to read subscription", slog.Int64("id", sub.ID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"subscription": sub,
	}))
}
