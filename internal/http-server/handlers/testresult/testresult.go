// Package testresult реализует HTTP-обработчик фиксации результата
// еженедельного теста с наградой за участие.
package testresult

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/nadimanwar794-eng/nst-core/internal/http-server/mware"
	"github.com/nadimanwar794-eng/nst-core/internal/http-server/response"
	"github.com/nadimanwar794-eng/nst-core/internal/lib/sl"
	"github.com/nadimanwar794-eng/nst-core/internal/models"
)

type Request struct {
	TestID      string `json:"test_id" validate:"required"`
	TestName    string `json:"test_name,omitempty"`
	StartedAt   string `json:"started_at,omitempty"`
	SubmittedAt string `json:"submitted_at,omitempty"`
	Score       int    `json:"score" validate:"min=0"`
	Total       int    `json:"total" validate:"required,min=1"`
}

// Users даёт доступ к снапшоту пользователя текущей сессии.
type Users interface {
	WithUser(ctx context.Context, uid string, fn func(*models.User) error) error
}

// Service сохраняет попытку и выдаёт награду за участие.
type Service interface {
	RecordTestResult(ctx context.Context, user *models.User, attempt models.TestAttempt) error
}

type Handler struct {
	log      *slog.Logger
	users    Users
	service  Service
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, users Users, service Service) *Handler {
	return &Handler{
		log:      log,
		users:    users,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Зафиксировать результат теста
// @Description Сохраняет попытку и выдаёт суточную подписку за участие.
// @Tags Tests
// @Accept  json
// @Produce  json
// @Param request body Request true "Результат теста"
// @Success 200 {object} response.Response "Попытка сохранена"
// @Failure 400 {object} response.Response "Некорректный JSON"
// @Failure 401 {object} response.Response "Пользователь не авторизован"
// @Failure 422 {object} response.Response "Ошибка валидации"
// @Router /api/v1/tests/result [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.testresult"
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

	var subscription models.Subscription
	err := h.users.WithUser(r.Context(), uid, func(user *models.User) error {
		attempt := models.TestAttempt{
			TestID:      req.TestID,
			TestName:    req.TestName,
			StartedAt:   req.StartedAt,
			SubmittedAt: req.SubmittedAt,
			Score:       req.Score,
			Total:       req.Total,
		}
		if err := h.service.RecordTestResult(r.Context(), user, attempt); err != nil {
			return err
		}
		subscription = user.Subscription
		return nil
	})
	if err != nil {
		log.Error("failed to record test result", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not record test result"))
		return
	}

	log.Info("test result recorded", slog.String("uid", uid), slog.String("test_id", req.TestID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"subscription": subscription,
	}))
}
