// Package reconcile слушает поток удалённых изменений и приводит локальное
// состояние (настройки, снапшоты пользователей активных сессий) к
// авторитетному удалённому. Обратного направления нет: локальные
// оптимистичные записи никогда не выталкиваются отсюда наружу.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/nadimanwar794-eng/nst-core/internal/lib/sl"
	"github.com/nadimanwar794-eng/nst-core/internal/models"
)

// SettingsHolder — процессный снапшот настроек. Загружается один раз на
// старте и дальше замещается целиком удалёнными обновлениями.
type SettingsHolder struct {
	mu sync.RWMutex
	s  models.Settings
}

func NewSettingsHolder(s models.Settings) *SettingsHolder {
	return &SettingsHolder{s: s}
}

func (h *SettingsHolder) Current() models.Settings {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.s
}

func (h *SettingsHolder) Set(s models.Settings) {
	h.mu.Lock()
	h.s = s
	h.mu.Unlock()
}

// Store — часть слоя синхронизации, нужная реконсилиации.
type Store interface {
	Read(ctx context.Context, key string, dest any) (bool, error)
	WriteLocal(ctx context.Context, key string, value any) error
	Subscribe(ctx context.Context, key string, onChange func([]byte)) (context.CancelFunc, error)
}

// Sessions — реестр активных сессий, чьи снапшоты замещаются.
type Sessions interface {
	User(uid string) (models.User, bool)
	UpdateUser(uid string, user models.User)
}

type Service struct {
	log      *slog.Logger
	store    Store
	sessions Sessions
	holder   *SettingsHolder

	mu      sync.Mutex
	watched map[string]context.CancelFunc
}

func New(log *slog.Logger, store Store, sessions Sessions, holder *SettingsHolder) *Service {
	return &Service{
		log:      log,
		store:    store,
		sessions: sessions,
		holder:   holder,
		watched:  make(map[string]context.CancelFunc),
	}
}

// Start загружает настройки из хранилища и подписывается на их поток.
func (s *Service) Start(ctx context.Context) error {
	const op = "reconcile.Start"

	var stored models.Settings
	if found, err := s.store.Read(ctx, "settings", &stored); err != nil {
		s.log.Warn("settings load failed, using defaults", sl.Err(err))
	} else if found {
		s.holder.Set(stored.WithDefaults())
	}

	sub, err := s.store.Subscribe(ctx, "settings", s.applySettings)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	s.watched["settings"] = sub
	s.mu.Unlock()
	return nil
}

// applySettings замещает снапшот настроек, если пришло структурно иное
// состояние. Эхо собственных записей отфильтровывается сравнением.
func (s *Service) applySettings(payload []byte) {
	var incoming models.Settings
	if err := json.Unmarshal(payload, &incoming); err != nil {
		s.log.Error("malformed settings update", sl.Err(err))
		return
	}

	current := s.holder.Current()
	if equalJSON(current, incoming.WithDefaults()) {
		return
	}

	s.holder.Set(incoming.WithDefaults())
	if err := s.store.WriteLocal(context.Background(), "settings", incoming); err != nil {
		s.log.Error("settings cache write failed", sl.Err(err))
	}
	s.log.Info("settings reconciled from remote")
}

// WatchUser подписывает сессию пользователя на удалённые обновления
// её снапшота. Удалённое состояние выигрывает у локального.
func (s *Service) WatchUser(ctx context.Context, uid string) error {
	const op = "reconcile.WatchUser"

	key := "user:" + uid
	sub, err := s.store.Subscribe(ctx, key, func(payload []byte) {
		s.applyUser(uid, payload)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	if cancel, ok := s.watched[key]; ok {
		cancel()
	}
	s.watched[key] = sub
	s.mu.Unlock()
	return nil
}

// UnwatchUser снимает подписку при завершении сессии.
func (s *Service) UnwatchUser(uid string) {
	key := "user:" + uid
	s.mu.Lock()
	if cancel, ok := s.watched[key]; ok {
		cancel()
		delete(s.watched, key)
	}
	s.mu.Unlock()
}

func (s *Service) applyUser(uid string, payload []byte) {
	var incoming models.User
	if err := json.Unmarshal(payload, &incoming); err != nil {
		s.log.Error("malformed user update", slog.String("uid", uid), sl.Err(err))
		return
	}

	current, ok := s.sessions.User(uid)
	if !ok {
		return
	}
	if equalJSON(current, incoming) {
		return
	}

	s.sessions.UpdateUser(uid, incoming)
	if err := s.store.WriteLocal(context.Background(), "user:"+uid, incoming); err != nil {
		s.log.Error("user cache write failed", slog.String("uid", uid), sl.Err(err))
	}
	s.log.Info("user snapshot reconciled from remote", slog.String("uid", uid))
}

// Close снимает все подписки.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, cancel := range s.watched {
		cancel()
		delete(s.watched, key)
	}
}

// equalJSON сравнивает два значения по их нормализованному JSON-образу.
func equalJSON(a, b any) bool {
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	var av, bv any
	if err := json.Unmarshal(aj, &av); err != nil {
		return false
	}
	if err := json.Unmarshal(bj, &bv); err != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}
