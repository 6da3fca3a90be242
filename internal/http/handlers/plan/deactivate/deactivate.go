// Package deactivate реализует HTTP-обработчик мягкого удаления кастомного
// тарифного плана. План исчезает из каталога, существующие абонементы
// продолжают действовать.
package deactivate

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

// Handler управляет HTTP-запросами на деактивацию тарифных планов.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики каталога планов
}

// Service описывает интерфейс бизнес-логики деактивации плана.
type Service interface {
	Deactivate(ctx context.Context, id int64) error
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Деактивировать кастомный тарифный план
// @Description Выполняет мягкое удаление кастомного плана. Системные планы не удаляются.
// @Tags Plans
// @Produce  json
// @Param id path int true "ID плана"
// @Success 200 {object} map[string]any "План деактивирован"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 403 {object} response.ErrorResponse "Попытка удалить системный план"
// @Failure 404 {object} response.ErrorResponse "План не найден"
// @Router /plans/{id} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.deactivate"
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

	if err := h.service.Deactivate(r.Context(), id); err != nil {
		log.Error("failed to deactivate plan", sl.Err(err))
		w.WriteHeader(response.StatusCode(err))
		render.JSON(w, r, response.Error("could not deactivate plan"))
		return
	}

	log.Info("success to deactivate plan", slog.Int64("id", id))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"plan_id": id,
	}))
}
