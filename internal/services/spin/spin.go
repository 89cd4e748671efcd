// Package spin реализует колесо фортуны: дневной лимит вращений по уровню
// подписки и взвешенный розыгрыш призов из настроек.
package spin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/nadimanwar794-eng/nst-core/internal/lib/daykey"
	"github.com/nadimanwar794-eng/nst-core/internal/models"
)

// Ошибки колеса.
var (
	ErrGameDisabled  = errors.New("game disabled")
	ErrLimitExceeded = errors.New("daily spin limit exceeded")
)

// Wallet начисляет выигрыш и сохраняет счётчики вращений.
type Wallet interface {
	ApplyCredits(ctx context.Context, user *models.User, amount int) error
	Save(ctx context.Context, user *models.User) error
}

// SettingsSource отдаёт таблицу призов и лимиты.
type SettingsSource interface {
	Current() models.Settings
}

type Service struct {
	log      *slog.Logger
	wallet   Wallet
	settings SettingsSource
	now      func() time.Time
	intn     func(n int) int
}

func New(log *slog.Logger, wallet Wallet, settings SettingsSource) *Service {
	return &Service{
		log:      log,
		wallet:   wallet,
		settings: settings,
		now:      time.Now,
		intn:     rand.Intn,
	}
}

// Limit возвращает дневной лимит вращений пользователя. Подписка,
// выданная наградой или админом, лимит не поднимает.
func Limit(user *models.User, s models.Settings, now time.Time) int {
	sub := user.Subscription
	if !sub.Active(now) || sub.GrantedByAdmin {
		return s.SpinLimitFree
	}
	switch sub.Level {
	case models.LevelUltra:
		return s.SpinLimitUltra
	case models.LevelBasic:
		return s.SpinLimitBasic
	}
	return s.SpinLimitFree
}

// Spin крутит колесо: проверяет дневной лимит, разыгрывает приз
// обратно-пропорционально его величине и начисляет выигрыш.
// Счётчик вращений сбрасывается со сменой даты.
func (s *Service) Spin(ctx context.Context, user *models.User) (int, error) {
	const op = "spin.Spin"

	settings := s.settings.Current().WithDefaults()
	if settings.GameEnabled != nil && !*settings.GameEnabled {
		return 0, fmt.Errorf("%s: %w", op, ErrGameDisabled)
	}

	now := s.now()
	today := daykey.Day(now)
	if user.DailySpinDate != today {
		user.DailySpinDate = today
		user.DailySpinCount = 0
	}

	if user.DailySpinCount >= Limit(user, settings, now) {
		return 0, fmt.Errorf("%s: %w", op, ErrLimitExceeded)
	}

	prize := s.draw(settings.WheelRewards)
	user.DailySpinCount++

	if prize > 0 {
		if err := s.wallet.ApplyCredits(ctx, user, prize); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		if err := s.wallet.Save(ctx, user); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
	}

	s.log.Info("wheel spun",
		slog.String("uid", user.UID),
		slog.Int("prize", prize),
		slog.Int("spins_today", user.DailySpinCount),
	)
	return prize, nil
}

// draw выбирает приз: вес обратно пропорционален величине, крупные
// призы выпадают реже. Отрицательные значения из удалённого блока
// настроек приводятся к нулю до взвешивания.
func (s *Service) draw(rewards []int) int {
	if len(rewards) == 0 {
		return 0
	}

	clamped := make([]int, len(rewards))
	for i, r := range rewards {
		if r < 0 {
			r = 0
		}
		clamped[i] = r
	}
	rewards = clamped

	weights := make([]float64, len(rewards))
	total := 0.0
	for i, r := range rewards {
		weights[i] = 1.0 / float64(r+1)
		total += weights[i]
	}

	// целочисленный розыгрыш по накопленным весам
	const scale = 1 << 16
	pick := float64(s.intn(scale)) / scale * total
	for i, w := range weights {
		if pick < w {
			return rewards[i]
		}
		pick -= w
	}
	return rewards[len(rewards)-1]
}
