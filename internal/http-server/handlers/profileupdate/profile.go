// Package profileupdate реализует HTTP-обработчик изменения профиля:
// доска, класс, поток, дневная цель и необязательная смена пароля.
package profileupdate

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
	"github.com/nadimanwar794-eng/nst-core/internal/lib/password"
	"github.com/nadimanwar794-eng/nst-core/internal/lib/sl"
	"github.com/nadimanwar794-eng/nst-core/internal/models"
)

type Request struct {
	Name        string `json:"name,omitempty"`
	Board       string `json:"board,omitempty"`
	ClassLevel  string `json:"class_level,omitempty"`
	Stream      string `json:"stream,omitempty"`
	GoalHours   int    `json:"goal_hours,omitempty" validate:"omitempty,min=1,max=24"`
	NewPassword string `json:"new_password,omitempty" validate:"omitempty,min=6"`
}

// Users даёт доступ к снапшоту пользователя текущей сессии.
type Users interface {
	WithUser(ctx context.Context, uid string, fn func(*models.User) error) error
}

// Saver сохраняет снапшот пользователя.
type Saver interface {
	Save(ctx context.Context, user *models.User) error
}

type Handler struct {
	log      *slog.Logger
	users    Users
	saver    Saver
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, users Users, saver Saver) *Handler {
	return &Handler{
		log:      log,
		users:    users,
		saver:    saver,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Обновить профиль
// @Description Изменяет учебные атрибуты и, при наличии, пароль. Пустые поля не трогаются.
// @Tags Profile
// @Accept  json
// @Produce  json
// @Param request body Request true "Изменяемые поля"
// @Success 200 {object} response.Response "Профиль обновлён"
// @Failure 400 {object} response.Response "Некорректный JSON"
// @Failure 401 {object} response.Response "Пользователь не авторизован"
// @Failure 422 {object} response.Response "Ошибка валидации"
// @Router /api/v1/profile [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profileupdate"
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

	err := h.users.WithUser(r.Context(), uid, func(user *models.User) error {
		if req.Name != "" {
			user.Name = req.Name
		}
		if req.Board != "" {
			user.Board = req.Board
		}
		if req.ClassLevel != "" {
			user.ClassLevel = req.ClassLevel
		}
		if req.Stream != "" {
			user.Stream = req.Stream
		}
		if req.GoalHours > 0 {
			user.DailyGoalHours = req.GoalHours
		}
		if req.NewPassword != "" {
			hash, err := password.GetHash(req.NewPassword)
			if err != nil {
				return err
			}
			user.PasswordHash = hash
		}
		return h.saver.Save(r.Context(), user)
	})
	if err != nil {
		log.Error("failed to update profile", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not update profile"))
		return
	}

	log.Info("profile updated", slog.String("uid", uid))
	render.JSON(w, r, response.OK())
}
