// Package inbox реализует HTTP-обработчик списка отложенных наград.
package inbox

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/nadimanwar794-eng/nst-core/internal/http-server/mware"
	"github.com/nadimanwar794-eng/nst-core/internal/http-server/response"
	"github.com/nadimanwar794-eng/nst-core/internal/lib/sl"
	"github.com/nadimanwar794-eng/nst-core/internal/models"
	"github.com/nadimanwar794-eng/nst-core/internal/services/milestone"
)

// Service — движок наград.
type Service interface {
	Inbox(uid string) ([]models.InboxMessage, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Список отложенных наград
// @Description Возвращает сообщения inbox с ещё живыми наградами.
// @Tags Rewards
// @Produce  json
// @Success 200 {object} response.Response "Список сообщений"
// @Failure 401 {object} response.Response "Пользователь не авторизован"
// @Failure 409 {object} response.Response "Нет активной сессии"
// @Router /api/v1/rewards/inbox [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.inbox"
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

	messages, err := h.service.Inbox(uid)
	if err != nil {
		if errors.Is(err, milestone.ErrNoSession) {
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error("no active session"))
			return
		}
		log.Error("failed to list inbox", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list inbox"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"messages": messages,
	}))
}
