// Package middlewarectx содержит HTTP-middleware и ключи контекста запроса.
// Аутентификацию выполняет внешний шлюз: сюда запрос приходит уже
// проверенным, с идентификатором администратора в заголовке.
package middlewarectx

import (
	"context"
	"net/http"

	"github.com/go-chi/render"
)

type contextKey string

// AdminUID — ключ контекста с идентификатором администратора.
const AdminUID contextKey = "admin_uid"

// Заголовок, который проставляет шлюз после проверки прав.
const adminHeader = "X-Admin-UID"

// RequireAdmin пропускает запрос дальше, только если шлюз проставил
// идентификатор администратора, и кладёт его в контекст.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		adminUID := r.Header.Get(adminHeader)
		if adminUID == "" {
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, "missing admin identity")
			return
		}
		ctx := context.WithValue(r.Context(), AdminUID, adminUID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminFromContext возвращает идентификатор администратора из контекста.
func AdminFromContext(ctx context.Context) (string, bool) {
	adminUID, ok := ctx.Value(AdminUID).(string)
	return adminUID, ok && adminUID != ""
}
