// Package mware содержит middleware HTTP-сервера: проверку JWT-токена
// сессии с прокидыванием uid, роли и признака имперсонации в контекст,
// а также ограничение частоты запросов.
package mware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/nadimanwar794-eng/nst-core/internal/http-server/response"
	"github.com/nadimanwar794-eng/nst-core/internal/lib/jwt"
	"github.com/nadimanwar794-eng/nst-core/internal/lib/sl"
)

// Key — тип ключей контекста запроса.
type Key string

const (
	// UserUID — uid пользователя сессии.
	UserUID Key = "uid"
	// Role — роль пользователя.
	Role Key = "role"
	// Impersonated — признак админской имперсонации.
	Impersonated Key = "impersonated"
)

// UID извлекает uid пользователя из контекста запроса.
func UID(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(UserUID).(string)
	return uid, ok && uid != ""
}

// IsImpersonated сообщает, ведётся ли сессия администратором от чужого имени.
func IsImpersonated(ctx context.Context) bool {
	v, ok := ctx.Value(Impersonated).(bool)
	return ok && v
}

// JWTMiddleware проверяет токен из заголовка Authorization и кладёт
// данные сессии в контекст запроса.
func JWTMiddleware(jwtMaker jwt.Maker, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "mware.JWTMiddleware"

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

			claims, err := jwtMaker.ParseToken(tokenStr)
			if err != nil {
				log.Error("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))

				return
			}

			ctx := context.WithValue(r.Context(), UserUID, claims.UID)
			ctx = context.WithValue(ctx, Role, claims.Role)
			ctx = context.WithValue(ctx, Impersonated, claims.Impersonated())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

var limiter = rate.NewLimiter(50, 100)

// RateLimitMiddleware отбрасывает запросы сверх общего лимита сервера.
func RateLimitMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				log.Error("too many requests")
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.Error("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
