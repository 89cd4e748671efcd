// Package wallet реализует кошелёк: списание кредитов, начисление наград
// и пополнения. Каждая мутация сохраняет полный снапшот пользователя
// через слой синхронизации до того, как считается применённой.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nadimanwar794-eng/nst-core/internal/metrics"
	"github.com/nadimanwar794-eng/nst-core/internal/models"
)

// ErrInsufficientCredits возвращается при попытке списать больше, чем есть.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Store — слой синхронизации, через который кошелёк сохраняет снапшоты.
type Store interface {
	Write(ctx context.Context, key string, value any) error
}

// Service — кошелёк. Все методы мутируют переданного пользователя
// и сохраняют его целиком; вызывающий владеет снапшотом.
type Service struct {
	log     *slog.Logger
	store   Store
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(log *slog.Logger, store Store, m *metrics.Metrics) *Service {
	return &Service{
		log:     log,
		store:   store,
		metrics: m,
		now:     time.Now,
	}
}

func userKey(uid string) string { return "user:" + uid }

// ApplyCharge списывает amount кредитов. Баланс перепроверяется здесь,
// даже если вызывающий уже проверял его: между проверкой и списанием
// состояние могло измениться.
func (s *Service) ApplyCharge(ctx context.Context, user *models.User, amount int) error {
	const op = "wallet.ApplyCharge"

	if amount < 0 {
		return fmt.Errorf("%s: negative amount %d", op, amount)
	}
	if user.Credits < amount {
		return fmt.Errorf("%s: %w", op, ErrInsufficientCredits)
	}

	user.Credits -= amount
	if err := s.store.Write(ctx, userKey(user.UID), user); err != nil {
		user.Credits += amount
		return fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.WalletCharges.Inc()
	s.log.Info("credits charged",
		slog.String("uid", user.UID),
		slog.Int("amount", amount),
		slog.Int("balance", user.Credits),
	)
	return nil
}

// ApplyReward применяет награду: монеты увеличивают баланс, подписка
// выставляет уровень и срок действия от текущего момента. Подписка,
// выданная наградой, помечается как grantedByAdmin, чтобы отличаться
// от платной при проверках вех.
func (s *Service) ApplyReward(ctx context.Context, user *models.User, offer models.RewardOffer) error {
	const op = "wallet.ApplyReward"

	switch offer.Kind {
	case models.RewardCoins:
		user.Credits += offer.Amount
	case models.RewardSubscription:
		end := s.now().Add(time.Duration(offer.DurationHours) * time.Hour)
		user.Subscription = models.Subscription{
			Tier:           offer.Tier,
			Level:          offer.Level,
			EndDate:        &end,
			IsPremium:      true,
			GrantedByAdmin: true,
		}
	default:
		return fmt.Errorf("%s: unknown reward kind %q", op, offer.Kind)
	}

	if err := s.store.Write(ctx, userKey(user.UID), user); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.WalletRewards.WithLabelValues(string(offer.Kind)).Inc()
	s.log.Info("reward applied",
		slog.String("uid", user.UID),
		slog.String("kind", string(offer.Kind)),
		slog.String("label", offer.Label),
	)
	return nil
}

// ApplyCredits пополняет баланс (redeem-коды, дневная цель, колесо).
func (s *Service) ApplyCredits(ctx context.Context, user *models.User, amount int) error {
	const op = "wallet.ApplyCredits"

	if amount < 0 {
		return fmt.Errorf("%s: negative amount %d", op, amount)
	}

	user.Credits += amount
	if err := s.store.Write(ctx, userKey(user.UID), user); err != nil {
		user.Credits -= amount
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("credits added",
		slog.String("uid", user.UID),
		slog.Int("amount", amount),
		slog.Int("balance", user.Credits),
	)
	return nil
}

// Save сохраняет снапшот пользователя без изменения баланса.
// Используется сервисами, меняющими не-кошельковые поля.
func (s *Service) Save(ctx context.Context, user *models.User) error {
	const op = "wallet.Save"

	if err := s.store.Write(ctx, userKey(user.UID), user); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
