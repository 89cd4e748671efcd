// Package milestone ведёт учебные сессии: секундный счётчик активности,
// пороговые награды, дневную цель, бонус первого дня и догоняющую проверку
// вчерашней активности. Один авторитетный цикл на сессию; состояние
// читается по ссылке на каждом тике, а не захватывается замыканием.
package milestone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nadimanwar794-eng/nst-core/internal/lib/daykey"
	"github.com/nadimanwar794-eng/nst-core/internal/lib/sl"
	"github.com/nadimanwar794-eng/nst-core/internal/metrics"
	"github.com/nadimanwar794-eng/nst-core/internal/models"
)

// Ошибки работы с предложениями наград.
var (
	ErrNoSession          = errors.New("no active session")
	ErrUserNotFound       = errors.New("user not found")
	ErrOfferNotFound      = errors.New("offer not found")
	ErrOfferResolved      = errors.New("offer already resolved")
	ErrOfferExpired       = errors.New("offer expired")
	ErrGoalNotReached     = errors.New("daily goal not reached")
	ErrGoalAlreadyClaimed = errors.New("daily goal already claimed today")
)

const (
	// offerTTL — срок жизни предложения с момента создания.
	offerTTL = 24 * time.Hour
	// livenessEvery — каждый N-й тик отправляет liveness-отметку.
	livenessEvery = 10

	firstDayBonusHours  = 1
	lookbackBasicSecs   = 3600
	lookbackUltraSecs   = 10800
	firstDayMinimumSecs = 3600
)

// Store — слой синхронизации, нужный движку.
type Store interface {
	Write(ctx context.Context, key string, value any) error
	WriteLocal(ctx context.Context, key string, value any) error
	Read(ctx context.Context, key string, dest any) (bool, error)
}

// Wallet применяет награды и пополнения.
type Wallet interface {
	ApplyReward(ctx context.Context, user *models.User, offer models.RewardOffer) error
	ApplyCredits(ctx context.Context, user *models.User, amount int) error
	Save(ctx context.Context, user *models.User) error
}

// SettingsSource отдаёт актуальные настройки (таблицу наград, дневной бонус).
type SettingsSource interface {
	Current() models.Settings
}

// Session — одна учебная сессия. Пользовательским снапшотом владеет
// сессия; все мутации идут под её мьютексом.
type Session struct {
	mu     sync.Mutex
	uid    string
	user   *models.User
	day    *models.ActivityDay
	ticks  int
	cancel context.CancelFunc
}

// Engine — реестр сессий и их циклов.
type Engine struct {
	log      *slog.Logger
	store    Store
	wallet   Wallet
	settings SettingsSource
	metrics  *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*Session

	now      func() time.Time
	interval time.Duration
}

func New(log *slog.Logger, store Store, wallet Wallet, settings SettingsSource, m *metrics.Metrics) *Engine {
	return &Engine{
		log:      log,
		store:    store,
		wallet:   wallet,
		settings: settings,
		metrics:  m,
		sessions: make(map[string]*Session),
		now:      time.Now,
		interval: time.Second,
	}
}

func activityKey(uid, day string) string { return "activity:" + uid + ":" + day }

// StartSession регистрирует сессию пользователя и запускает её цикл.
// Счётчик дня перечитывается из хранилища, чтобы не обнулить активность
// после перезапуска. Перед стартом выполняется догоняющая проверка
// вчерашнего дня. Повторный старт заменяет предыдущую сессию.
func (e *Engine) StartSession(ctx context.Context, user *models.User) (*Session, error) {
	const op = "milestone.StartSession"

	now := e.now()
	today := daykey.Day(now)

	day := &models.ActivityDay{UserUID: user.UID, Day: today}
	if _, err := e.store.Read(ctx, activityKey(user.UID, today), day); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	day.UserUID = user.UID
	day.Day = today

	if err := e.lookback(ctx, user, now); err != nil {
		e.log.Warn("lookback failed", slog.String("uid", user.UID), sl.Err(err))
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &Session{uid: user.UID, user: user, day: day, cancel: cancel}

	e.mu.Lock()
	if old, ok := e.sessions[user.UID]; ok {
		old.cancel()
	}
	e.sessions[user.UID] = s
	e.mu.Unlock()

	go e.run(runCtx, s)

	e.log.Info("session started",
		slog.String("uid", user.UID),
		slog.Int("seconds_today", day.Seconds),
	)
	return s, nil
}

// EndSession останавливает цикл сессии и снимает её с учёта.
func (e *Engine) EndSession(uid string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[uid]; ok {
		s.cancel()
		delete(e.sessions, uid)
		e.log.Info("session ended", slog.String("uid", uid))
	}
}

func (e *Engine) session(uid string) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[uid]
	return s, ok
}

// User возвращает копию снапшота пользователя активной сессии.
func (e *Engine) User(uid string) (models.User, bool) {
	s, ok := e.session(uid)
	if !ok {
		return models.User{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.user, true
}

// WithUser выполняет fn над снапшотом пользователя. При активной сессии —
// над её живым снапшотом под замком, иначе над копией из хранилища.
// Мутации сессионного снапшота сериализуются замком сессии.
func (e *Engine) WithUser(ctx context.Context, uid string, fn func(*models.User) error) error {
	const op = "milestone.WithUser"

	if s, ok := e.session(uid); ok {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(s.user)
	}

	var user models.User
	found, err := e.store.Read(ctx, "user:"+uid, &user)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return fn(&user)
}

// LoadUser читает снапшот пользователя из хранилища, минуя сессию.
func (e *Engine) LoadUser(ctx context.Context, uid string) (models.User, error) {
	const op = "milestone.LoadUser"

	var user models.User
	found, err := e.store.Read(ctx, "user:"+uid, &user)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return user, nil
}

// UpdateUser замещает снапшот сессии авторитетным удалённым состоянием.
// Вызывается реконсилиацией: удалённое обновление всегда выигрывает.
func (e *Engine) UpdateUser(uid string, user models.User) {
	s, ok := e.session(uid)
	if !ok {
		return
	}
	s.mu.Lock()
	*s.user = user
	s.mu.Unlock()
}

func (e *Engine) run(ctx context.Context, s *Session) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx, s, e.now())
		}
	}
}

// tick — один шаг цикла: инкремент счётчика, проверка порогов, liveness.
func (e *Engine) tick(ctx context.Context, s *Session, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := daykey.Day(now)
	if s.day.Day != today {
		// полночь: новый счётчик, пороги вчерашнего дня закрыты
		s.day = &models.ActivityDay{UserUID: s.uid, Day: today}
	}

	s.day.Seconds++
	s.ticks++

	if err := e.store.WriteLocal(ctx, activityKey(s.uid, today), s.day); err != nil {
		e.log.Error("activity write failed", slog.String("uid", s.uid), sl.Err(err))
	}

	if s.ticks%livenessEvery == 0 {
		s.user.LastActiveAt = now
		if err := e.store.Write(ctx, "liveness:"+s.uid, map[string]any{
			"uid": s.uid,
			"at":  now,
		}); err != nil {
			e.log.Error("liveness push failed", slog.String("uid", s.uid), sl.Err(err))
		}
	}

	e.checkThresholds(ctx, s, now)
	e.checkFirstDayBonus(ctx, s, now)
}

// checkThresholds сверяет счётчик дня с таблицей наград. Каждый порог
// срабатывает не больше одного раза в день: список сработавших порогов
// сохраняется вместе со счётчиком.
func (e *Engine) checkThresholds(ctx context.Context, s *Session, now time.Time) {
	table := e.settings.Current().WithDefaults().Milestones

	for _, row := range table {
		if s.day.Seconds < row.Seconds || s.day.HasFired(row.Seconds) {
			continue
		}
		s.day.MarkFired(row.Seconds)

		offer := models.RewardOffer{
			ID:            uuid.NewString(),
			Kind:          row.Kind,
			Amount:        row.Amount,
			Tier:          row.Level,
			Level:         row.Level,
			DurationHours: row.DurationHours,
			Label:         row.Label,
			ExpiresAt:     now.Add(offerTTL),
		}
		e.pushPending(s, offer, now)
		e.metrics.MilestoneOffers.WithLabelValues(row.Kind).Inc()

		e.log.Info("milestone fired",
			slog.String("uid", s.uid),
			slog.Int("threshold", row.Seconds),
			slog.String("label", row.Label),
		)

		// сработавший порог должен пережить перезапуск
		if err := e.store.Write(ctx, activityKey(s.uid, s.day.Day), s.day); err != nil {
			e.log.Error("fired threshold persist failed", slog.String("uid", s.uid), sl.Err(err))
		}
		if err := e.wallet.Save(ctx, s.user); err != nil {
			e.log.Error("pending offer persist failed", slog.String("uid", s.uid), sl.Err(err))
		}
	}
}

// pushPending выставляет новое живое предложение. Прежнее неразрешённое
// предложение не теряется: оно уходит в inbox. Забранные предложения
// остаются в очереди с флагом Claimed как история.
func (e *Engine) pushPending(s *Session, offer models.RewardOffer, now time.Time) {
	kept := make([]models.RewardOffer, 0, len(s.user.PendingRewards)+1)
	for _, old := range s.user.PendingRewards {
		if old.Claimed {
			kept = append(kept, old)
			continue
		}
		if !old.Expired(now) {
			e.queueToInbox(s.user, old, now)
		}
	}
	s.user.PendingRewards = append(kept, offer)
}

func (e *Engine) queueToInbox(user *models.User, offer models.RewardOffer, now time.Time) {
	o := offer
	user.Inbox = append(user.Inbox, models.InboxMessage{
		ID:     uuid.NewString(),
		Text:   "Reward waiting: " + offer.Label,
		Date:   now,
		Reward: &o,
	})
}

// checkFirstDayBonus выдаёт разовый бонус нового аккаунта: меньше суток
// с регистрации и час учёбы — короткое окно ULTRA, сразу в кошелёк.
func (e *Engine) checkFirstDayBonus(ctx context.Context, s *Session, now time.Time) {
	if s.user.FirstDayBonusUsed ||
		s.day.Seconds < firstDayMinimumSecs ||
		now.Sub(s.user.CreatedAt) >= 24*time.Hour {
		return
	}
	s.user.FirstDayBonusUsed = true

	offer := models.RewardOffer{
		ID:            uuid.NewString(),
		Kind:          models.RewardSubscription,
		Tier:          models.LevelUltra,
		Level:         models.LevelUltra,
		DurationHours: firstDayBonusHours,
		Label:         "First Day Study Bonus: 1 Hour Ultra",
		ExpiresAt:     now.Add(offerTTL),
	}
	if err := e.wallet.ApplyReward(ctx, s.user, offer); err != nil {
		s.user.FirstDayBonusUsed = false
		e.log.Error("first day bonus failed", slog.String("uid", s.uid), sl.Err(err))
		return
	}
	e.metrics.MilestoneOffers.WithLabelValues(models.RewardSubscription).Inc()
	e.log.Info("first day bonus granted", slog.String("uid", s.uid))
}

// lookback проверяет вчерашний день: если пороги были достигнуты, но
// награда за тот день не оформлена и платной подписки сейчас нет,
// в inbox кладётся отложенное предложение.
func (e *Engine) lookback(ctx context.Context, user *models.User, now time.Time) error {
	const op = "milestone.lookback"

	yesterday := daykey.Yesterday(now)

	var day models.ActivityDay
	found, err := e.store.Read(ctx, activityKey(user.UID, yesterday), &day)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !found || day.LookbackDone || day.Seconds < lookbackBasicSecs {
		return nil
	}
	// часовой порог сработал вживую — награда за тот день уже была предложена
	if day.HasFired(lookbackBasicSecs) {
		return nil
	}
	if user.Subscription.Active(now) && !user.Subscription.GrantedByAdmin {
		return nil
	}

	level := models.LevelBasic
	label := "Yesterday's Study Reward: Basic Sub (4h)"
	if day.Seconds >= lookbackUltraSecs {
		level = models.LevelUltra
		label = "Yesterday's Study Reward: Ultra Sub (4h)"
	}
	offer := models.RewardOffer{
		ID:            uuid.NewString(),
		Kind:          models.RewardSubscription,
		Tier:          level,
		Level:         level,
		DurationHours: 4,
		Label:         label,
		ExpiresAt:     now.Add(offerTTL),
	}
	e.queueToInbox(user, offer, now)
	e.metrics.MilestoneOffers.WithLabelValues(models.RewardSubscription).Inc()

	day.LookbackDone = true
	if err := e.store.Write(ctx, activityKey(user.UID, yesterday), &day); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := e.wallet.Save(ctx, user); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	e.log.Info("lookback offer queued",
		slog.String("uid", user.UID),
		slog.String("level", level),
		slog.Int("seconds", day.Seconds),
	)
	return nil
}
