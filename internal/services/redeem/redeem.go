// Package redeem обменивает одноразовые коды на кредиты.
package redeem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nadimanwar794-eng/nst-core/internal/metrics"
	"github.com/nadimanwar794-eng/nst-core/internal/models"
)

// Ошибки обмена кода.
var (
	ErrInvalidCode     = errors.New("invalid redeem code")
	ErrAlreadyRedeemed = errors.New("code already redeemed")
)

// Store — слой синхронизации для записей кодов.
type Store interface {
	Read(ctx context.Context, key string, dest any) (bool, error)
	Write(ctx context.Context, key string, value any) error
}

// Wallet начисляет кредиты за код.
type Wallet interface {
	ApplyCredits(ctx context.Context, user *models.User, amount int) error
}

type Service struct {
	log     *slog.Logger
	store   Store
	wallet  Wallet
	metrics *metrics.Metrics
}

func New(log *slog.Logger, store Store, wallet Wallet, m *metrics.Metrics) *Service {
	return &Service{log: log, store: store, wallet: wallet, metrics: m}
}

func codeKey(code string) string { return "redeem:" + code }

// Redeem обменивает код на кредиты. Код одноразовый: повторная попытка
// отклоняется без изменения баланса. Код сначала помечается использованным,
// потом начисляются кредиты, чтобы сбой начисления не оставил код живым
// для бесконечных повторов с чужого аккаунта.
func (s *Service) Redeem(ctx context.Context, user *models.User, rawCode string) (int, error) {
	const op = "redeem.Redeem"

	code := strings.ToUpper(strings.TrimSpace(rawCode))
	if code == "" {
		s.metrics.RedeemAttempts.WithLabelValues("invalid").Inc()
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidCode)
	}

	var record models.RedeemCode
	found, err := s.store.Read(ctx, codeKey(code), &record)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		s.metrics.RedeemAttempts.WithLabelValues("invalid").Inc()
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidCode)
	}
	if record.IsRedeemed {
		s.metrics.RedeemAttempts.WithLabelValues("already_redeemed").Inc()
		return 0, fmt.Errorf("%s: %w", op, ErrAlreadyRedeemed)
	}

	record.IsRedeemed = true
	record.RedeemedBy = user.UID
	if err := s.store.Write(ctx, codeKey(code), record); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	user.RedeemedCodes = append(user.RedeemedCodes, code)
	if err := s.wallet.ApplyCredits(ctx, user, record.Amount); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.RedeemAttempts.WithLabelValues("success").Inc()
	s.log.Info("code redeemed",
		slog.String("uid", user.UID),
		slog.String("code", code),
		slog.Int("amount", record.Amount),
	)
	return record.Amount, nil
}
