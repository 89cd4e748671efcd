// Package auth реализует HTTP-обработчики регистрации и входа.
//
// Регистрация создаёт снапшот пользователя с приветственным бонусом из
// настроек. Вход сверяет пароль и выдаёт токен сессии; администратор
// может запросить токен имперсонации от имени студента.
package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/nadimanwar794-eng/nst-core/internal/http-server/response"
	"github.com/nadimanwar794-eng/nst-core/internal/lib/jwt"
	"github.com/nadimanwar794-eng/nst-core/internal/lib/password"
	"github.com/nadimanwar794-eng/nst-core/internal/lib/sl"
	"github.com/nadimanwar794-eng/nst-core/internal/models"
)

// RegisterRequest — данные нового аккаунта.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Board    string `json:"board,omitempty"`
	Class    string `json:"class_level,omitempty"`
	Stream   string `json:"stream,omitempty"`
}

// LoginRequest — данные входа. AsUID заполняет администратор для
// имперсонации студента.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	AsUID    string `json:"as_uid,omitempty"`
}

// Store — слой синхронизации для снапшотов пользователей.
type Store interface {
	Read(ctx context.Context, key string, dest any) (bool, error)
	Write(ctx context.Context, key string, value any) error
}

// SettingsSource отдаёт приветственный бонус.
type SettingsSource interface {
	Current() models.Settings
}

type Handler struct {
	log      *slog.Logger
	store    Store
	maker    jwt.Maker
	settings SettingsSource
	validate *validator.Validate
	now      func() time.Time
}

// New создает новый Handler.
func New(log *slog.Logger, store Store, maker jwt.Maker, settings SettingsSource) *Handler {
	return &Handler{
		log:      log,
		store:    store,
		maker:    maker,
		settings: settings,
		validate: validator.New(),
		now:      time.Now,
	}
}

func emailKey(email string) string { return "email:" + email }
func userKey(uid string) string    { return "user:" + uid }

// Register godoc
// @Summary Зарегистрировать аккаунт
// @Description Создаёт пользователя с приветственным бонусом кредитов и выдаёт токен сессии.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body RegisterRequest true "Данные аккаунта"
// @Success 200 {object} response.Response "Токен сессии"
// @Failure 409 {object} response.Response "Email уже занят"
// @Failure 422 {object} response.Response "Ошибка валидации"
// @Router /api/v1/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Register"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req RegisterRequest
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

	var existingUID string
	found, err := h.store.Read(r.Context(), emailKey(req.Email), &existingUID)
	if err != nil {
		log.Error("failed to check email", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not register"))
		return
	}
	if found {
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("email already registered"))
		return
	}

	hash, err := password.GetHash(req.Password)
	if err != nil {
		log.Error("failed to hash password", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not register"))
		return
	}

	now := h.now()
	user := models.User{
		UID:          uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		Role:         models.RoleStudent,
		Board:        req.Board,
		ClassLevel:   req.Class,
		Stream:       req.Stream,
		PasswordHash: hash,
		Credits:      h.settings.Current().WithDefaults().SignupBonus,
		CreatedAt:    now,
	}

	if err := h.store.Write(r.Context(), userKey(user.UID), user); err != nil {
		log.Error("failed to store user", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not register"))
		return
	}
	if err := h.store.Write(r.Context(), emailKey(req.Email), user.UID); err != nil {
		log.Error("failed to store email index", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not register"))
		return
	}

	token, err := h.maker.GenerateToken(user.UID, user.Name, user.Role, "")
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not register"))
		return
	}

	log.Info("user registered", slog.String("uid", user.UID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"uid":   user.UID,
		"token": token,
	}))
}

// Login godoc
// @Summary Войти в аккаунт
// @Description Сверяет пароль и выдаёт токен сессии. Администратор может запросить токен от имени студента.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body LoginRequest true "Данные входа"
// @Success 200 {object} response.Response "Токен сессии"
// @Failure 401 {object} response.Response "Неверные учётные данные"
// @Failure 403 {object} response.Response "Имперсонация доступна только администратору"
// @Router /api/v1/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Login"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req LoginRequest
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

	user, ok := h.findByEmail(r.Context(), req.Email)
	if !ok || password.CompareHash(user.PasswordHash, req.Password) != nil {
		log.Info("invalid credentials", slog.String("email", req.Email))
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid email or password"))
		return
	}

	subject := user
	impersonator := ""
	if req.AsUID != "" {
		if user.Role != models.RoleAdmin {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.Error("impersonation requires admin role"))
			return
		}
		var target models.User
		found, err := h.store.Read(r.Context(), userKey(req.AsUID), &target)
		if err != nil || !found {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("impersonation target not found"))
			return
		}
		subject = target
		impersonator = user.UID
	}

	token, err := h.maker.GenerateToken(subject.UID, subject.Name, subject.Role, impersonator)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not login"))
		return
	}

	log.Info("user logged in",
		slog.String("uid", subject.UID),
		slog.Bool("impersonated", impersonator != ""),
	)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"uid":   subject.UID,
		"token": token,
	}))
}

func (h *Handler) findByEmail(ctx context.Context, email string) (models.User, bool) {
	var uid string
	found, err := h.store.Read(ctx, emailKey(email), &uid)
	if err != nil || !found {
		return models.User{}, false
	}
	var user models.User
	found, err = h.store.Read(ctx, userKey(uid), &user)
	if err != nil || !found {
		return models.User{}, false
	}
	return user, true
}
