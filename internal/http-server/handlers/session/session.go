// Package session реализует HTTP-обработчики учебной сессии: старт
// (загрузка снапшота, догоняющая проверка вчерашнего дня, запуск
// секундного цикла, подписка на удалённые обновления) и завершение.
package session

import (
	"context"
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

// Engine — движок учебных сессий.
type Engine interface {
	LoadUser(ctx context.Context, uid string) (models.User, error)
	StartSession(ctx context.Context, user *models.User) (*milestone.Session, error)
	EndSession(uid string)
}

// Watcher следит за удалёнными обновлениями снапшота сессии.
type Watcher interface {
	WatchUser(ctx context.Context, uid string) error
	UnwatchUser(uid string)
}

type Handler struct {
	log     *slog.Logger
	engine  Engine
	watcher Watcher
	// appCtx переживает запрос: им владеют цикл сессии и подписка
	appCtx context.Context
}

// New создает новый Handler. appCtx — контекст процесса, а не запроса:
// цикл сессии должен пережить завершение HTTP-запроса.
func New(appCtx context.Context, log *slog.Logger, engine Engine, watcher Watcher) *Handler {
	return &Handler{
		log:     log,
		engine:  engine,
		watcher: watcher,
		appCtx:  appCtx,
	}
}

// Start godoc
// @Summary Начать учебную сессию
// @Description Загружает снапшот пользователя, выполняет догоняющую проверку вчерашнего дня и запускает счётчик активности.
// @Tags Session
// @Produce  json
// @Success 200 {object} response.Response "Сессия запущена"
// @Failure 401 {object} response.Response "Пользователь не авторизован"
// @Failure 404 {object} response.Response "Пользователь не найден"
// @Router /api/v1/session/start [post]
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.Start"
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

	user, err := h.engine.LoadUser(r.Context(), uid)
	if err != nil {
		if errors.Is(err, milestone.ErrUserNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
			return
		}
		log.Error("failed to load user", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not start session"))
		return
	}

	if _, err := h.engine.StartSession(h.appCtx, &user); err != nil {
		log.Error("failed to start session", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not start session"))
		return
	}

	if err := h.watcher.WatchUser(h.appCtx, uid); err != nil {
		log.Warn("failed to watch user updates", sl.Err(err))
	}

	log.Info("session started", slog.String("uid", uid))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"inbox_size": len(user.Inbox),
	}))
}

// End godoc
// @Summary Завершить учебную сессию
// @Description Останавливает счётчик активности и снимает подписку на обновления.
// @Tags Session
// @Produce  json
// @Success 200 {object} response.Response "Сессия завершена"
// @Failure 401 {object} response.Response "Пользователь не авторизован"
// @Router /api/v1/session/end [post]
func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.End"
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

	h.engine.EndSession(uid)
	h.watcher.UnwatchUser(uid)

	log.Info("session ended", slog.String("uid", uid))
	render.JSON(w, r, response.OK())
}
