// Package create реализует HTTP-обработчик для оформления новых абонементов.
//
// Handler принимает JSON-запрос с данными абонемента, валидирует их и
// вызывает бизнес-логику. Самостоятельное оформление создаёт абонемент
// в состоянии PENDING; администратор через свой маршрут активирует сразу.
// Код доступа возвращается один раз в ответе на создание.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/facility-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/facility-access/internal/http/response"
	"github.com/magabrotheeeer/facility-access/internal/lib/sl"
	"github.com/magabrotheeeer/facility-access/internal/models"
)

// Handler управляет HTTP-запросами на оформление абонементов.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики жизненного цикла
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики оформления абонемента.
type Service interface {
	Create(ctx context.Context, req models.DummySubscription) (*models.Subscription, error)
	CreateActivated(ctx context.Context, req models.DummySubscription, adminUID string) (*models.Subscription, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Оформить новый абонемент
// @Description Создает абонемент в состоянии PENDING до подтверждения оплаты. На административном маршруте абонемент активируется сразу. Код доступа возвращается один раз.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param request body models.DummySubscription true "Данные нового абонемента"
// @Success 200 {object} map[string]any "Созданный абонемент с кодом доступа"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "План не найден или неактивен"
// @Failure 409 {object} response.ErrorResponse "У пользователя уже есть незакрытый абонемент"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /subscriptions [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummySubscription
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	log.Info("request body decoded", slog.Any("request", req))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	var sub *models.Subscription
	var err error
	if adminUID, ok := middlewarectx.AdminFromContext(r.Context()); ok {
		sub, err = h.service.CreateActivated(r.Context(), req, adminUID)
	} else {
		sub, err = h.service.Create(r.Context(), req)
	}
	if err != nil {
		log.Error("failed to create subscription", sl.Err(err))
		w.WriteHeader(response.StatusCode(err))
		render.JSON(w, r, response.Error("could not create subscription"))
		return
	}

	log.Info("success to create subscription",
		slog.Int64("id", sub.ID), slog.String("status", string(sub.Status)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"subscription_id": sub.ID,
		"access_code":     sub.AccessCode,
		"status":          sub.Status,
		"start_date":      sub.StartDate,
		"end_date":        sub.EndDate,
		"grace_end_date":  sub.GraceEndDate,
	}))
}
