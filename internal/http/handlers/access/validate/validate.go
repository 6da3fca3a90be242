// Package validate реализует HTTP-обработчик проверки скана на терминале.
//
// Handler принимает код доступа или QR-токен, направление прохода и
// расположение терминала. Отказ — это бизнес-итог с HTTP-статусом 200:
// терминал различает итоги по полю validation_result.
package validate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/facility-access/internal/http/response"
	"github.com/magabrotheeeer/facility-access/internal/lib/sl"
	"github.com/magabrotheeeer/facility-access/internal/models"
	accessservice "github.com/magabrotheeeer/facility-access/internal/services/access"
)

// Handler управляет HTTP-запросами терминалов на проверку сканов.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики проверки сканов
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики проверки скана.
type Service interface {
	Validate(ctx context.Context, req models.DummyValidate) (*accessservice.ValidationOutcome, error)
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
// @Summary Проверить скан на терминале
// @Description Проверяет код доступа или QR-токен и записывает попытку прохода в журнал. Отказ возвращается со статусом 200 и итогом в validation_result.
// @Tags Access
// @Accept  json
// @Produce  json
// @Param request body models.DummyValidate true "Данные скана"
// @Success 200 {object} map[string]any "Итог проверки"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /access/validate [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.access.validate"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyValidate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	outcome, err := h.service.Validate(r.Context(), req)
	if err != nil {
		log.Error("failed to validate scan", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not validate scan"))
		return
	}

	data := map[string]any{
		"validation_result": outcome.Result,
	}
	if outcome.Subscription != nil {
		data["user"] = map[string]any{
			"user_uid": outcome.Subscription.UserUID,
			"plan":     outcome.PlanName,
		}
	}
	if outcome.Message != "" {
		data["message"] = outcome.Message
	}

	log.Info("scan validated", slog.String("result", string(outcome.Result)))
	render.JSON(w, r, response.OKWithData(data))
}
