// Package goal реализует HTTP-обработчики дневной цели: установку личной
// цели в часах и получение награды за её выполнение.
package goal

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

// SetRequest — новая дневная цель.
type SetRequest struct {
	Hours int `json:"hours" validate:"required,min=1,max=24"`
}

// Service — движок наград.
type Service interface {
	SetGoal(ctx context.Context, uid string, hours int) (models.User, error)
	ClaimDailyGoal(ctx context.Context, uid string) (models.User, error)
	Progress(uid string) (seconds, goal int, err error)
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

// Set godoc
// @Summary Установить дневную цель
// @Tags Goal
// @Accept  json
// @Produce  json
// @Param request body SetRequest true "Цель в часах"
// @Success 200 {object} response.Response "Цель сохранена"
// @Failure 401 {object} response.Response "Пользователь не авторизован"
// @Failure 422 {object} response.Response "Цель вне диапазона"
// @Router /api/v1/goal [post]
func (h *Handler) Set(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.goal.Set"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req SetRequest
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

	user, err := h.service.SetGoal(r.Context(), uid, req.Hours)
	if err != nil {
		if errors.Is(err, milestone.ErrNoSession) {
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error("no active session"))
			return
		}
		log.Error("failed to set goal", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not set goal"))
		return
	}

	log.Info("goal set", slog.String("uid", uid), slog.Int("hours", req.Hours))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"daily_goal_hours": user.DailyGoalHours,
	}))
}

// Claim godoc
// @Summary Забрать награду за дневную цель
// @Description Награда выдаётся один раз в день после накопления целевого учебного времени.
// @Tags Goal
// @Produce  json
// @Success 200 {object} response.Response "Кредиты начислены"
// @Failure 401 {object} response.Response "Пользователь не авторизован"
// @Failure 409 {object} response.Response "Цель не достигнута или уже забрана"
// @Router /api/v1/goal/claim [post]
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.goal.Claim"
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

	user, err := h.service.ClaimDailyGoal(r.Context(), uid)
	if err != nil {
		switch {
		case errors.Is(err, milestone.ErrGoalNotReached):
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error("daily goal not reached yet"))
		case errors.Is(err, milestone.ErrGoalAlreadyClaimed):
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error("daily goal already claimed today"))
		case errors.Is(err, milestone.ErrNoSession):
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error("no active session"))
		default:
			log.Error("failed to claim goal", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not claim goal"))
		}
		return
	}

	log.Info("daily goal claimed", slog.String("uid", uid))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"credits": user.Credits,
	}))
}

// Progress godoc
// @Summary Прогресс дневной цели
// @Tags Goal
// @Produce  json
// @Success 200 {object} response.Response "Секунды за сегодня и цель"
// @Failure 401 {object} response.Response "Пользователь не авторизован"
// @Router /api/v1/goal [get]
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.goal.Progress"
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

	seconds, goalSeconds, err := h.service.Progress(uid)
	if err != nil {
		if errors.Is(err, milestone.ErrNoSession) {
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error("no active session"))
			return
		}
		log.Error("failed to read progress", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read progress"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"seconds_today": seconds,
		"goal_seconds":  goalSeconds,
	}))
}
