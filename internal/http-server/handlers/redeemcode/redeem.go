// Package redeemcode реализует HTTP-обработчик обмена одноразового кода
// на кредиты.
package redeemcode

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
	"github.com/nadimanwar794-eng/nst-core/internal/services/redeem"
)

type Request struct {
	Code string `json:"code" validate:"required"`
}

// Users даёт доступ к снапшоту пользователя текущей сессии.
type Users interface {
	WithUser(ctx context.Context, uid string, fn func(*models.User) error) error
}

// Service — сервис обмена кодов.
type Service interface {
	Redeem(ctx context.Context, user *models.User, code string) (int, error)
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
// @Summary Обменять код на кредиты
// @Description Одноразовый код: повторная попытка отклоняется без изменения баланса.
// @Tags Wallet
// @Accept  json
// @Produce  json
// @Param request body Request true "Код"
// @Success 200 {object} response.Response "Кредиты начислены"
// @Failure 400 {object} response.Response "Некорректный JSON или неизвестный код"
// @Failure 401 {object} response.Response "Пользователь не авторизован"
// @Failure 409 {object} response.Response "Код уже использован"
// @Router /api/v1/redeem [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.redeemcode"
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

	var amount int
	var balance int
	err := h.users.WithUser(r.Context(), uid, func(user *models.User) error {
		var redeemErr error
		amount, redeemErr = h.service.Redeem(r.Context(), user, req.Code)
		balance = user.Credits
		return redeemErr
	})
	if err != nil {
		switch {
		case errors.Is(err, redeem.ErrInvalidCode):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid redeem code"))
		case errors.Is(err, redeem.ErrAlreadyRedeemed):
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error("code already redeemed"))
		default:
			log.Error("failed to redeem code", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not redeem code"))
		}
		return
	}

	log.Info("code redeemed", slog.String("uid", uid), slog.Int("amount", amount))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"amount":  amount,
		"credits": balance,
	}))
}
