// Package nstcore предоставляет маршруты для основного приложения.
package nstcore

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/nadimanwar794-eng/nst-core/internal/http-server/handlers/auth"
	"github.com/nadimanwar794-eng/nst-core/internal/http-server/handlers/goal"
	"github.com/nadimanwar794-eng/nst-core/internal/http-server/handlers/inbox"
	"github.com/nadimanwar794-eng/nst-core/internal/http-server/handlers/me"
	"github.com/nadimanwar794-eng/nst-core/internal/http-server/handlers/open"
	"github.com/nadimanwar794-eng/nst-core/internal/http-server/handlers/profileupdate"
	"github.com/nadimanwar794-eng/nst-core/internal/http-server/handlers/purchase"
	"github.com/nadimanwar794-eng/nst-core/internal/http-server/handlers/redeemcode"
	"github.com/nadimanwar794-eng/nst-core/internal/http-server/handlers/rewardclaim"
	"github.com/nadimanwar794-eng/nst-core/internal/http-server/handlers/rewardignore"
	"github.com/nadimanwar794-eng/nst-core/internal/http-server/handlers/session"
	"github.com/nadimanwar794-eng/nst-core/internal/http-server/handlers/spinwheel"
	"github.com/nadimanwar794-eng/nst-core/internal/http-server/handlers/testresult"
	"github.com/nadimanwar794-eng/nst-core/internal/http-server/mware"

	"github.com/nadimanwar794-eng/nst-core/internal/lib/jwt"
	"github.com/nadimanwar794-eng/nst-core/internal/services/content"
	"github.com/nadimanwar794-eng/nst-core/internal/services/milestone"
	"github.com/nadimanwar794-eng/nst-core/internal/services/reconcile"
	"github.com/nadimanwar794-eng/nst-core/internal/services/redeem"
	"github.com/nadimanwar794-eng/nst-core/internal/services/spin"
	"github.com/nadimanwar794-eng/nst-core/internal/services/wallet"
	"github.com/nadimanwar794-eng/nst-core/internal/store"
)

// Services — собранные зависимости HTTP-слоя.
type Services struct {
	Store      *store.DualStore
	Wallet     *wallet.Service
	Engine     *milestone.Engine
	Reconciler *reconcile.Service
	Redeem     *redeem.Service
	Spin       *spin.Service
	Content    *content.Service
	JWTMaker   jwt.Maker
	Settings   *reconcile.SettingsHolder
}

// RegisterRoutes регистрирует все маршруты приложения. appCtx — контекст
// процесса: сессии и подписки, созданные обработчиками, живут дольше
// одного HTTP-запроса.
func RegisterRoutes(appCtx context.Context, r chi.Router, logger *slog.Logger, s *Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		authHandler := auth.New(logger, s.Store, s.JWTMaker, s.Settings)
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(mware.JWTMiddleware(s.JWTMaker, logger))
			r.Use(mware.RateLimitMiddleware(logger))

			sessionHandler := session.New(appCtx, logger, s.Engine, s.Reconciler)
			r.Post("/session/start", sessionHandler.Start)
			r.Post("/session/end", sessionHandler.End)

			r.Post("/content/open", open.New(logger, s.Engine, s.Content).ServeHTTP)
			r.Post("/rewards/claim", rewardclaim.New(logger, s.Engine).ServeHTTP)
			r.Post("/rewards/ignore", rewardignore.New(logger, s.Engine).ServeHTTP)
			r.Get("/rewards/inbox", inbox.New(logger, s.Engine).ServeHTTP)

			goalHandler := goal.New(logger, s.Engine)
			r.Post("/goal", goalHandler.Set)
			r.Get("/goal", goalHandler.Progress)
			r.Post("/goal/claim", goalHandler.Claim)

			r.Post("/redeem", redeemcode.New(logger, s.Engine, s.Redeem).ServeHTTP)
			r.Post("/spin", spinwheel.New(logger, s.Engine, s.Spin).ServeHTTP)
			r.Post("/purchase", purchase.New(logger, s.Engine, s.Content).ServeHTTP)
			r.Post("/tests/result", testresult.New(logger, s.Engine, s.Content).ServeHTTP)

			r.Get("/me", me.New(logger, s.Engine).ServeHTTP)
			r.Post("/profile", profileupdate.New(logger, s.Engine, s.Wallet).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}
