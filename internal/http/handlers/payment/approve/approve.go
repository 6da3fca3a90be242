// Package approve реализует HTTP-обработчик одобрения платёжной квитанции.
// Одобрение атомарно активирует связанный абонемент.
package approve

import (
	"context"
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

// Handler управляет HTTP-запросами на одобрение квитанций.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики жизненного цикла
}

// Service описывает интерфейс бизнес-логики одобрения оплаты.
type Service interface {
	ApprovePayment(ctx context.Context, receiptID int64, adminUID string) (int64, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Одобрить платёжную квитанцию
// @Description Одобряет квитанцию и активирует связанный абонемент в одной транзакции.
// @Tags Payments
// @Produce  json
// @Param id path int true "ID квитанции"
// @Success 200 {object} map[string]any "ID активированного абонемента"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 401 {object} response.ErrorResponse "Нет идентификатора администратора"
// @Failure 409 {object} response.ErrorResponse "Квитанция уже обработана"
// @Router /receipts/{id}/approve [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.approve"
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

	adminUID, ok := middlewarectx.AdminFromContext(r.Context())
	if !ok {
		log.Error("admin uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	subscriptionID, err := h.service.ApprovePayment(r.Context(), receiptID, adminUID)
	if err != nil {
		log.Error("failed to approve payment", sl.Err(err))
		w.WriteHeader(response.StatusCode(err))
		render.JSON(w, r, response.Error("could not approve payment"))
		return
	}

	log.Info("success to approve payment",
		slog.Int64("receipt_id", receiptID), slog.Int64("subscription_id", subscriptionID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"subscription_id": subscriptionID,
	}))
}
