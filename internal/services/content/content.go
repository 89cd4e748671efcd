// Package content оркестрирует открытие учебного материала: сборка
// составного ключа, чтение каталога, решение о доступе, списание кредитов
// и выдача полезной нагрузки. Здесь же платёжная передача во внешний канал
// и награда за участие в еженедельном тесте.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/nadimanwar794-eng/nst-core/internal/entitlement"
	"github.com/nadimanwar794-eng/nst-core/internal/lib/sl"
	"github.com/nadimanwar794-eng/nst-core/internal/metrics"
	"github.com/nadimanwar794-eng/nst-core/internal/models"
)

// Ошибки открытия контента.
var (
	ErrNotUploaded    = errors.New("content not uploaded")
	ErrFetchFailed    = errors.New("content fetch failed")
	ErrAccessDenied   = errors.New("access denied")
	ErrUnknownPackage = errors.New("unknown credit package")
)

// Store — слой синхронизации для каталога и результатов тестов.
type Store interface {
	Read(ctx context.Context, key string, dest any) (bool, error)
	Write(ctx context.Context, key string, value any) error
}

// Wallet списывает кредиты и применяет награды.
type Wallet interface {
	ApplyCharge(ctx context.Context, user *models.User, amount int) error
	ApplyReward(ctx context.Context, user *models.User, offer models.RewardOffer) error
}

// SettingsSource отдаёт пакеты кредитов и контакт для оплаты.
type SettingsSource interface {
	Current() models.Settings
}

type Service struct {
	log      *slog.Logger
	store    Store
	wallet   Wallet
	fetcher  Fetcher
	settings SettingsSource
	metrics  *metrics.Metrics
	now      func() time.Time
}

func New(log *slog.Logger, store Store, wallet Wallet, fetcher Fetcher, settings SettingsSource, m *metrics.Metrics) *Service {
	return &Service{
		log:      log,
		store:    store,
		wallet:   wallet,
		fetcher:  fetcher,
		settings: settings,
		metrics:  m,
		now:      time.Now,
	}
}

// OpenResult — итог открытия: полезная нагрузка и сколько списано.
type OpenResult struct {
	Payload string
	Charged int
	Outcome entitlement.Outcome
}

// Open открывает материал главы. Порядок: каталожная запись по основному
// ключу, затем по типовому (исторический формат), для AI-конспектов —
// генерация у внешнего сборщика. Решение о доступе принимает резолвер;
// списание выполняется только после ALLOW_AFTER_CHARGE и до выдачи
// полезной нагрузки.
func (s *Service) Open(ctx context.Context, user *models.User, impersonated bool, key models.ContentKey, contentType models.ContentType, language string) (OpenResult, error) {
	const op = "content.Open"

	record, err := s.lookup(ctx, key, contentType)
	if err != nil {
		return OpenResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if _, _, ok := record.Payload(contentType); !ok && contentType == models.ContentAINotes {
		record, err = s.generate(ctx, key, contentType, language)
		if err != nil {
			return OpenResult{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	decision := entitlement.Resolve(user, impersonated, contentType, record, s.now())
	s.metrics.EntitlementDecisions.WithLabelValues(string(decision.Outcome)).Inc()

	switch decision.Outcome {
	case entitlement.Deny:
		if decision.Reason == entitlement.ReasonNotUploaded {
			return OpenResult{}, fmt.Errorf("%s: %w", op, ErrNotUploaded)
		}
		return OpenResult{}, fmt.Errorf("%s: %w", op, ErrAccessDenied)
	case entitlement.AllowAfterCharge:
		if err := s.wallet.ApplyCharge(ctx, user, decision.Amount); err != nil {
			return OpenResult{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	payload, _, _ := record.Payload(contentType)
	s.log.Info("content opened",
		slog.String("uid", user.UID),
		slog.String("key", key.String()),
		slog.String("type", string(contentType)),
		slog.String("outcome", string(decision.Outcome)),
	)
	return OpenResult{
		Payload: payload,
		Charged: chargedAmount(decision),
		Outcome: decision.Outcome,
	}, nil
}

func chargedAmount(d entitlement.Decision) int {
	if d.Outcome == entitlement.AllowAfterCharge {
		return d.Amount
	}
	return 0
}

// lookup читает каталожную запись: основной ключ, при отсутствии нужного
// типа — типовой ключ исторического формата.
func (s *Service) lookup(ctx context.Context, key models.ContentKey, contentType models.ContentType) (*models.CatalogRecord, error) {
	const op = "content.lookup"

	var record models.CatalogRecord
	found, err := s.store.Read(ctx, key.String(), &record)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if found {
		if _, _, ok := record.Payload(contentType); ok {
			return &record, nil
		}
	}

	var typed models.CatalogRecord
	typedFound, err := s.store.Read(ctx, key.TypeKey(contentType), &typed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if typedFound {
		return &typed, nil
	}
	if found {
		return &record, nil
	}
	return nil, nil
}

// generate запрашивает AI-конспект и сохраняет его в каталог, чтобы
// следующий запрос обслуживался без генерации.
func (s *Service) generate(ctx context.Context, key models.ContentKey, contentType models.ContentType, language string) (*models.CatalogRecord, error) {
	payload, err := s.fetcher.FetchLessonContent(ctx, key, language, contentType)
	if err != nil {
		s.log.Warn("content fetch failed", slog.String("key", key.String()), sl.Err(err))
		return nil, ErrFetchFailed
	}

	record := &models.CatalogRecord{AINotes: payload}
	if err := s.store.Write(ctx, key.TypeKey(contentType), record); err != nil {
		return nil, err
	}
	return record, nil
}

// PaymentLink формирует ссылку передачи оплаты во внешний канал.
// Ответ канала не ожидается: ссылка отдаётся пользователю как есть.
func (s *Service) PaymentLink(user *models.User, packageID string) (string, error) {
	const op = "content.PaymentLink"

	settings := s.settings.Current().WithDefaults()

	var pkg *models.CreditPackage
	for i := range settings.Packages {
		if settings.Packages[i].ID == packageID {
			pkg = &settings.Packages[i]
			break
		}
	}
	if pkg == nil {
		return "", fmt.Errorf("%s: %w", op, ErrUnknownPackage)
	}

	msg := fmt.Sprintf("Hi! I want to buy the %s (%d credits) for Rs.%d. My account: %s",
		pkg.Name, pkg.Credits, pkg.Price, user.Email)
	link := "https://wa.me/91" + settings.AdminPhone + "?text=" + url.QueryEscape(msg)

	s.log.Info("payment handoff",
		slog.String("uid", user.UID),
		slog.String("package", pkg.ID),
	)
	return link, nil
}

// RecordTestResult сохраняет попытку еженедельного теста и выдаёт
// суточную подписку за участие. Награда за участие, не за результат.
func (s *Service) RecordTestResult(ctx context.Context, user *models.User, attempt models.TestAttempt) error {
	const op = "content.RecordTestResult"

	attempt.UserUID = user.UID
	key := "test:" + attempt.TestID + ":" + user.UID
	if err := s.store.Write(ctx, key, attempt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	offer := models.RewardOffer{
		Kind:          models.RewardSubscription,
		Tier:          models.LevelBasic,
		Level:         models.LevelBasic,
		DurationHours: 24,
		Label:         "Weekly Test Participation: Basic Sub (24h)",
	}
	if err := s.wallet.ApplyReward(ctx, user, offer); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("test attempt recorded",
		slog.String("uid", user.UID),
		slog.String("test_id", attempt.TestID),
		slog.Int("score", attempt.Score),
	)
	return nil
}
