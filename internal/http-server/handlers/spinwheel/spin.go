// Package spinwheel реализует HTTP-обработчик вращения колеса фортуны.
package spinwheel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/nadimanwar794-eng/nst-core/internal/http-server/mware"
	"github.com/nadimanwar794-eng/nst-core/internal/http-server/response"
	"github.com/nadimanwar794-eng/nst-core/internal/lib/sl"
	"github.com/nadimanwar794-eng/nst-core/internal/models"
	"github.com/nadimanwar794-eng/nst-core/internal/services/spin"
)

// Users даёт доступ к снапшоту пользователя текущей сессии.
type Users interface {
	WithUser(ctx context.Context, uid string, fn func(*models.User) error) error
}

// Service — сервис колеса.
type Service interface {
	Spin(ctx context.Context, user *models.User) (int, error)
}

type Handler struct {
	log     *slog.Logger
	users   Users
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, users Users, service Service) *Handler {
	return &Handler{log: log, users: users, service: service}
}

// ServeHTTP godoc
// @Summary Крутить колесо фортуны
// @Description Дневной лимит вращений зависит от уровня подписки; выигрыш начисляется в кошелёк.
// @Tags Wallet
// @Produce  json
// @Success 200 {object} response.Response "Результат вращения"
// @Failure 401 {object} response.Response "Пользователь не авторизован"
// @Failure 403 {object} response.Response "Игра отключена"
// @Failure 429 {object} response.Response "Дневной лимит исчерпан"
// @Router /api/v1/spin [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.spinwheel"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	uid, ok := mware.UID(r.Context())
	if !ok {
		log.Error("uid not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var prize, balance, spins int
	err := h.users.WithUser(r.Context(), uid, func(user *models.User) error {
		var spinErr error
		prize, spinErr = h.service.Spin(r.Context(), user)
		balance = user.Credits
		spins = user.DailySpinCount
		return spinErr
	})
	if err != nil {
		switch {
		case errors.Is(err, spin.ErrGameDisabled):
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.Error("game is disabled"))
		case errors.Is(err, spin.ErrLimitExceeded):
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, response.Error("daily spin limit exceeded"))
		default:
			log.Error("failed to spin", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not spin"))
		}
		return
	}

	log.Info("wheel spun", slog.String("uid", uid), slog.Int("prize", prize))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"prize":       prize,
		"credits":     balance,
		"spins_today": spins,
	}))
}
