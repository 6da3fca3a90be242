// Package health реализует HTTP-обработчик проверки живости сервиса
// и готовности хранилища.
package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/facility-access/internal/http/response"
	"github.com/magabrotheeeer/facility-access/internal/lib/sl"
)

// Handler обрабатывает запросы на проверку готовности сервиса.
type Handler struct {
	log     *slog.Logger
	storage Storage
}

// Storage описывает проверку готовности хранилища.
type Storage interface {
	CheckDatabaseReady(ctx context.Context) error
}

// New создает новый Handler.
func New(log *slog.Logger, storage Storage) *Handler {
	return &Handler{
		log:     log,
		storage: storage,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	if err := h.storage.CheckDatabaseReady(r.Context()); err != nil {
		h.log.Error("database is not ready", slog.String("op", op), sl.Err(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("database is not ready"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"status": "ok",
	}))
}
