// Package open реализует HTTP-обработчик открытия учебного контента.
//
// Handler принимает дескриптор главы и тип контента, находит пользователя
// текущей сессии и передаёт запрос сервису контента: тот принимает решение
// о доступе, при необходимости списывает кредиты и возвращает материал.
package open

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
	"github.com/nadimanwar794-eng/nst-core/internal/services/content"
	"github.com/nadimanwar794-eng/nst-core/internal/services/wallet"
)

// Request — дескриптор открываемого материала.
type Request struct {
	Board       string `json:"board" validate:"required"`
	ClassLevel  string `json:"class_level" validate:"required"`
	Stream      string `json:"stream,omitempty"`
	Subject     string `json:"subject" validate:"required"`
	ChapterID   string `json:"chapter_id" validate:"required"`
	ContentType string `json:"content_type" validate:"required"`
	Language    string `json:"language,omitempty"`
}

// Users даёт доступ к снапшоту пользователя текущей сессии.
type Users interface {
	WithUser(ctx context.Context, uid string, fn func(*models.User) error) error
}

// Service — сервис контента.
type Service interface {
	Open(ctx context.Context, user *models.User, impersonated bool, key models.ContentKey, contentType models.ContentType, language string) (content.OpenResult, error)
}

// Handler управляет запросами открытия контента.
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
// @Summary Открыть учебный материал
// @Description Принимает решение о доступе, при необходимости списывает кредиты и возвращает материал главы.
// @Tags Content
// @Accept  json
// @Produce  json
// @Param request body Request true "Дескриптор главы и тип контента"
// @Success 200 {object} response.Response "Материал выдан"
// @Failure 400 {object} response.Response "Некорректный JSON"
// @Failure 401 {object} response.Response "Пользователь не авторизован"
// @Failure 402 {object} response.Response "Недостаточно кредитов"
// @Failure 404 {object} response.Response "Контент не загружен"
// @Failure 422 {object} response.Response "Ошибка валидации"
// @Failure 502 {object} response.Response "Сбой генерации контента"
// @Router /api/v1/content/open [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.open"
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

	contentType := models.ContentType(req.ContentType)
	if !contentType.Valid() {
		log.Error("unknown content type", slog.String("type", req.ContentType))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("unknown content type"))
		return
	}

	uid, ok := mware.UID(r.Context())
	if !ok {
		log.Error("uid not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	key := models.ContentKey{
		Board:      req.Board,
		ClassLevel: req.ClassLevel,
		Stream:     req.Stream,
		Subject:    req.Subject,
		ChapterID:  req.ChapterID,
	}

	var res content.OpenResult
	err := h.users.WithUser(r.Context(), uid, func(user *models.User) error {
		var openErr error
		res, openErr = h.service.Open(r.Context(), user, mware.IsImpersonated(r.Context()), key, contentType, req.Language)
		return openErr
	})
	if err != nil {
		switch {
		case errors.Is(err, content.ErrNotUploaded):
			log.Info("content not uploaded", slog.String("key", key.String()))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("content not uploaded yet"))
		case errors.Is(err, content.ErrAccessDenied), errors.Is(err, wallet.ErrInsufficientCredits):
			log.Info("access denied", slog.String("uid", uid), slog.String("key", key.String()))
			render.Status(r, http.StatusPaymentRequired)
			render.JSON(w, r, response.Error("insufficient credits"))
		case errors.Is(err, content.ErrFetchFailed):
			log.Error("content fetch failed", sl.Err(err))
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, response.Error("content generation failed, try again"))
		default:
			log.Error("failed to open content", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not open content"))
		}
		return
	}

	log.Info("content opened",
		slog.String("uid", uid),
		slog.String("outcome", string(res.Outcome)),
	)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"payload": res.Payload,
		"charged": res.Charged,
		"outcome": res.Outcome,
	}))
}
