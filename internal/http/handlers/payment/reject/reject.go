// Package reject реализует HTTP-обработчик отклонения платёжной квитанции.
// Абонемент остаётся в состоянии PENDING: владелец может предъявить
// новую оплату.
package reject

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/facility-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/facility-access/internal/http/response"
	"github.com/magabrotheeeer/facility-access/internal/lib/sl"
)

// Handler управляет HTTP-запросами на отклонение квитанций.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики жизненного цикла
}

// Service описывает интерфейс бизнес-логики отклонения оплаты.
type Service interface {
	RejectPayment(ctx context.Context, receiptID int64, adminUID, notes string) error
}

// request — тело запроса с причиной отклонения.
type request struct {
	Notes string `json:"notes,omitempty"`
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Отклонить платёжную квитанцию
// @Description Отклоняет квитанцию с указанием причины. Абонемент остаётся в PENDING.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param id path int true "ID квитанции"
// @Param request body request false "Причина отклонения"
// @Success 200 {object} map[string]any "Квитанция отклонена"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 401 {object} response.ErrorResponse "Нет идентификатора администратора"
// @Failure 409 {object} response.ErrorResponse "Квитанция уже обработана"
// @Router /receipts/{id}/reject [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.reject"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	receiptID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		log.Error("failed to decode id from url", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode id from url"))
		return
	}

	var req request
	// Тело опционально, битый JSON всё же отклоняем.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	adminUID, ok := middlewarectx.AdminFromContext(r.Context())
	if !ok {
		log.Error("admin uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	if err := h.service.RejectPayment(r.Context(), receiptID, adminUID, req.Notes); err != nil {
		log.Error("failed to reject payment", sl.Err(err))
		w.WriteHeader(response.StatusCode(err))
		render.JSON(w, r, response.Error("could not reject payment"))
		return
	}

	log.Info("success to reject payment", slog.Int64("receipt_id", receiptID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"receipt_id": receiptID,
	}))
}
