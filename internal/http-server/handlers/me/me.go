// Package me реализует HTTP-обработчик текущего снапшота пользователя.
package me

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/nadimanwar794-eng/nst-core/internal/http-server/mware"
	"github.com/nadimanwar794-eng/nst-core/internal/http-server/response"
	"github.com/nadimanwar794-eng/nst-core/internal/lib/sl"
	"github.com/nadimanwar794-eng/nst-core/internal/models"
)

// Service — реестр сессий с доступом к хранилищу.
type Service interface {
	User(uid string) (models.User, bool)
	LoadUser(ctx context.Context, uid string) (models.User, error)
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
// @Summary Текущий пользователь
// @Description Возвращает снапшот пользователя: сессионный при активной сессии, иначе из хранилища.
// @Tags Profile
// @Produce  json
// @Success 200 {object} response.Response "Снапшот пользователя"
// @Failure 401 {object} response.Response "Пользователь не авторизован"
// @Failure 404 {object} response.Response "Пользователь не найден"
// @Router /api/v1/me [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.me"
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

	user, ok := h.service.User(uid)
	if !ok {
		var err error
		user, err = h.service.LoadUser(r.Context(), uid)
		if err != nil {
			log.Error("failed to load user", sl.Err(err))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
			return
		}
	}

	user.PasswordHash = ""
	render.JSON(w, r, response.OKWithData(user))
}
