// Package purchase реализует HTTP-обработчик передачи оплаты пакета
// кредитов во внешний канал. Ядро не проводит платёж: формируется
// глубокая ссылка с заполненным сообщением, ответ канала не ожидается.
package purchase

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
)

type Request struct {
	PackageID string `json:"package_id" validate:"required"`
}

// Users даёт доступ к снапшоту пользователя текущей сессии.
type Users interface {
	WithUser(ctx context.Context, uid string, fn func(*models.User) error) error
}

// Service формирует платёжную ссылку.
type Service interface {
	PaymentLink(user *models.User, packageID string) (string, error)
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
// @Summary Получить платёжную ссылку
// @Tags Wallet
// @Accept  json
// @Produce  json
// @Param request body Request true "Идентификатор пакета"
// @Success 200 {object} response.Response "Ссылка сформирована"
// @Failure 400 {object} response.Response "Неизвестный пакет"
// @Failure 401 {object} response.Response "Пользователь не авторизован"
// @Router /api/v1/purchase [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.purchase"
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

	var link string
	err := h.users.WithUser(r.Context(), uid, func(user *models.User) error {
		var linkErr error
		link, linkErr = h.service.PaymentLink(user, req.PackageID)
		return linkErr
	})
	if err != nil {
		if errors.Is(err, content.ErrUnknownPackage) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("unknown credit package"))
			return
		}
		log.Error("failed to build payment link", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not build payment link"))
		return
	}

	log.Info("payment link issued", slog.String("uid", uid), slog.String("package", req.PackageID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"link": link,
	}))
}
