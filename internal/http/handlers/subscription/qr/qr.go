// Package qr реализует HTTP-обработчик выдачи QR-токена абонемента.
// Токен выдается лениво и неизменяем: повторный запрос возвращает
// уже сохранённое значение.
package qr

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
)

// Handler управляет HTTP-запросами на выдачу QR-токенов.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики жизненного цикла
}

// Service описывает интерфейс бизнес-логики выдачи QR-токена.
type Service interface {
	IssueQRToken(ctx context.Context, id int64) (string, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Выдать QR-токен абонемента
// @Description Возвращает QR-токен абонемента, создавая его при первом запросе.
// @Tags Subscriptions
// @Produce  json
// @Param id path int true "ID абонемента"
// @Success 200 {object} map[string]any "QR-токен"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 404 {object} response.ErrorResponse "Абонемент не найден"
// @Router /subscriptions/{id}/qr [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.qr"
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

	token, err := h.service.IssueQRToken(r.Context(), id)
	if err != nil {
		log.Error("failed to issue qr token", sl.Err(err))
		w.WriteHeader(response.StatusCode(err))
		render.JSON(w, r, response.Error("could not issue qr token"))
		return
	}

	log.Info("success to issue qr token", slog.Int64("subscription_id", id))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"qr_token": token,
	}))
}
