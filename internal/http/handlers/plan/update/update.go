// Package update реализует HTTP-обработчик для частичного обновления
// кастомного тарифного плана. Попытка изменить системный план отклоняется.
package update

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/facility-access/internal/http/response"
	"github.com/magabrotheeeer/facility-access/internal/lib/sl"
	"github.com/magabrotheeeer/facility-access/internal/models"
)

// Handler управляет HTTP-запросами на обновление тарифных планов.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики каталога планов
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики обновления плана.
type Service interface {
	Update(ctx context.Context, id int64, patch models.DummyPlanPatch) (*models.Plan, error)
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
// @Summary Обновить кастомный тарифный план
// @Description Частично обновляет изменяемые поля кастомного плана. Системные планы неизменяемы.
// @Tags Plans
// @Accept  json
// @Produce  json
// @Param id path int true "ID плана"
// @Param request body models.DummyPlanPatch true "Изменяемые поля"
// @Success 200 {object} map[string]any "Обновлённый план"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ID"
// @Failure 403 {object} response.ErrorResponse "Попытка изменить системный план"
// @Failure 404 {object} response.ErrorResponse "План не найден"
// @Router /plans/{id} [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.update"
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

	var patch models.DummyPlanPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(patch); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	plan, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		log.Error("failed to update plan", sl.Err(err))
		w.WriteHeader(response.StatusCode(err))
		render.JSON(w, r, response.Error("could not update plan"))
		return
	}

	log.Info("success to update plan", slog.Int64("id", id))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"plan": plan,
	}))
}
