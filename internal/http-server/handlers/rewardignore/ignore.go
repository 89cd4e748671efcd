// Package rewardignore реализует HTTP-обработчик откладывания живого
// предложения награды в inbox.
package rewardignore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/nadimanwar794-eng/nst-core/internal/http-server/mware"
	"github.com/nadimanwar794-eng/nst-core/internal/http-server/response"
	"github.com/nadimanwar794-eng/nst-core/internal/lib/sl"
	"github.com/nadimanwar794-eng/nst-core/internal/models"
	"github.com/nadimanwar794-eng/nst-core/internal/services/milestone"
)

type Request struct {
	OfferID string `json:"offer_id" validate:"required,uuid"`
}

// Service — движок наград.
type Service interface {
	IgnoreOffer(ctx context.Context, uid, offerID string) (models.User, error)
}

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Отложить награду
// @Description Убирает живое предложение в inbox; срок жизни награды не продлевается.
// @Tags Rewards
// @Accept  json
// @Produce  json
// @Param request body Request true "Идентификатор предложения"
// @Success 200 {object} response.Response "Предложение отложено"
// @Failure 400 {object} response.Response "Некорректный JSON"
// @Failure 401 {object} response.Response "Пользователь не авторизован"
// @Failure 404 {object} response.Response "Предложение не найдено"
// @Router /api/v1/rewards/ignore [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.rewardignore"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	uid, ok := mware.UID(r.Context())
	if !ok {
		log.Error("uid not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	user, err := h.service.IgnoreOffer(r.Context(), uid, req.OfferID)
	if err != nil {
		switch {
		case errors.Is(err, milestone.ErrOfferNotFound):
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("offer not found"))
		case errors.Is(err, milestone.ErrNoSession):
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error("no active session"))
		default:
			log.Error("failed to ignore offer", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not ignore offer"))
		}
		return
	}

	log.Info("offer queued to inbox", slog.String("uid", uid), slog.String("offer_id", req.OfferID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"inbox_size": len(user.Inbox),
	}))
}
