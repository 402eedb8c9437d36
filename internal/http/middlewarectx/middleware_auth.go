// Package middlewarectx содержит HTTP middleware внутреннего API движка.
//
// ServiceTokenMiddleware проверяет сервисный токен в заголовке Authorization:
// внутренние API вызываются только слоем бота и другими сервисами движка,
// токен подтверждает вызывающую сторону. Имя вызывающего сервиса кладётся
// в контекст запроса.
//
// В случае ошибки проверки возвращает HTTP 401 Unauthorized с сообщением об ошибке.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/numerology-bot/internal/http/response"
	"github.com/magabrotheeeer/numerology-bot/internal/lib/sl"
	"github.com/magabrotheeeer/numerology-bot/internal/lib/token"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// Caller — ключ для имени вызывающего сервиса в контексте.
const Caller Key = "caller"

// ServiceTokenMiddleware возвращает HTTP middleware, который проверяет
// сервисный токен в заголовке Authorization.
//
// Если токен валиден, добавляет имя вызывающего сервиса в контекст запроса,
// иначе возвращает ошибку с HTTP статусом 401 Unauthorized.
func ServiceTokenMiddleware(secret string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.ServiceTokenMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Error("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			caller, err := token.Validate(secret, tokenStr)
			if err != nil {
				log.Error("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}
			ctx := context.WithValue(r.Context(), Caller, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
