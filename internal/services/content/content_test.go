package content

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadimanwar794-eng/nst-core/internal/entitlement"
	"github.com/nadimanwar794-eng/nst-core/internal/metrics"
	"github.com/nadimanwar794-eng/nst-core/internal/models"
)

type storeFake struct {
	data map[string][]byte
}

func newStoreFake() *storeFake {
	return &storeFake{data: make(map[string][]byte)}
}

func (f *storeFake) Read(_ context.Context, key string, dest any) (bool, error) {
	data, ok := f.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (f *storeFake) Write(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = data
	return nil
}

type walletFake struct {
	chargeErr error
	charged   int
	rewards   []models.RewardOffer
}

func (w *walletFake) ApplyCharge(_ context.Context, user *models.User, amount int) error {
	if w.chargeErr != nil {
		return w.chargeErr
	}
	user.Credits -= amount
	w.charged += amount
	return nil
}

func (w *walletFake) ApplyReward(_ context.Context, user *models.User, offer models.RewardOffer) error {
	w.rewards = append(w.rewards, offer)
	return nil
}

type fetcherFake struct {
	payload string
	err     error
	calls   int
}

func (f *fetcherFake) FetchLessonContent(_ context.Context, _ models.ContentKey, _ string, _ models.ContentType) (string, error) {
	f.calls++
	return f.payload, f.err
}

type settingsFake struct{ s models.Settings }

func (f settingsFake) Current() models.Settings { return f.s }

func newService(store *storeFake, wallet *walletFake, fetcher *fetcherFake) *Service {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	svc := New(slog.New(h), store, wallet, fetcher, settingsFake{s: models.DefaultSettings()}, metrics.NewNop())
	svc.now = func() time.Time {
		return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func chapterKey() models.ContentKey {
	return models.ContentKey{
		Board:      "CBSE",
		ClassLevel: "10",
		Subject:    "Science",
		ChapterID:  "ch-3",
	}
}

func seedRecord(t *testing.T, store *storeFake, key string, record models.CatalogRecord) {
	t.Helper()
	require.NoError(t, store.Write(context.Background(), key, record))
}

func TestOpen_ChargesAndReturnsPayload(t *testing.T) {
	store := newStoreFake()
	seedRecord(t, store, chapterKey().String(), models.CatalogRecord{
		PremiumNotesHTML: "<p>notes</p>",
	})
	wallet := &walletFake{}
	svc := newService(store, wallet, &fetcherFake{})

	user := &models.User{UID: "u1", Role: models.RoleStudent, Credits: 10}
	res, err := svc.Open(context.Background(), user, false, chapterKey(), models.ContentPremiumNotes, "en")

	require.NoError(t, err)
	assert.Equal(t, "<p>notes</p>", res.Payload)
	assert.Equal(t, models.DefaultPremiumNotesPrice, res.Charged)
	assert.Equal(t, entitlement.AllowAfterCharge, res.Outcome)
	assert.Equal(t, 5, user.Credits)
}

func TestOpen_SubscriberNotCharged(t *testing.T) {
	store := newStoreFake()
	seedRecord(t, store, chapterKey().String(), models.CatalogRecord{
		UltraPDFLink: "https://cdn.example/ch3.pdf",
	})
	wallet := &walletFake{}
	svc := newService(store, wallet, &fetcherFake{})

	end := time.Date(2026, 8, 30, 16, 0, 0, 0, time.UTC)
	user := &models.User{
		UID:  "u1",
		Role: models.RoleStudent,
		Subscription: models.Subscription{
			Level:     models.LevelUltra,
			EndDate:   &end,
			IsPremium: true,
		},
	}
	res, err := svc.Open(context.Background(), user, false, chapterKey(), models.ContentUltraPDF, "en")

	require.NoError(t, err)
	assert.Zero(t, res.Charged)
	assert.Zero(t, wallet.charged)
}

func TestOpen_NotUploaded(t *testing.T) {
	svc := newService(newStoreFake(), &walletFake{}, &fetcherFake{})

	user := &models.User{UID: "u1", Role: models.RoleStudent, Credits: 100}
	_, err := svc.Open(context.Background(), user, false, chapterKey(), models.ContentPremiumNotes, "en")

	assert.ErrorIs(t, err, ErrNotUploaded)
	assert.Equal(t, 100, user.Credits)
}

func TestOpen_InsufficientCreditsNoPayload(t *testing.T) {
	store := newStoreFake()
	seedRecord(t, store, chapterKey().String(), models.CatalogRecord{
		PremiumNotesHTML: "<p>notes</p>",
	})
	svc := newService(store, &walletFake{}, &fetcherFake{})

	user := &models.User{UID: "u1", Role: models.RoleStudent, Credits: 1}
	_, err := svc.Open(context.Background(), user, false, chapterKey(), models.ContentPremiumNotes, "en")

	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, 1, user.Credits)
}

func TestOpen_TypeKeyFallback(t *testing.T) {
	store := newStoreFake()
	seedRecord(t, store, chapterKey().TypeKey(models.ContentAINotes), models.CatalogRecord{
		AINotes: "generated earlier",
	})
	fetcher := &fetcherFake{}
	svc := newService(store, &walletFake{}, fetcher)

	user := &models.User{UID: "u1", Role: models.RoleStudent}
	res, err := svc.Open(context.Background(), user, false, chapterKey(), models.ContentAINotes, "en")

	require.NoError(t, err)
	assert.Equal(t, "generated earlier", res.Payload)
	assert.Zero(t, fetcher.calls)
}

func TestOpen_GeneratesMissingAINotes(t *testing.T) {
	store := newStoreFake()
	fetcher := &fetcherFake{payload: "fresh notes"}
	svc := newService(store, &walletFake{}, fetcher)

	user := &models.User{UID: "u1", Role: models.RoleStudent}
	res, err := svc.Open(context.Background(), user, false, chapterKey(), models.ContentAINotes, "hi")

	require.NoError(t, err)
	assert.Equal(t, "fresh notes", res.Payload)
	assert.Equal(t, 1, fetcher.calls)

	// сгенерированное сохранено: повторное открытие без генерации
	_, err = svc.Open(context.Background(), user, false, chapterKey(), models.ContentAINotes, "hi")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
}

func TestOpen_FetchFailureNoCharge(t *testing.T) {
	fetcher := &fetcherFake{err: errors.New("upstream timeout")}
	wallet := &walletFake{}
	svc := newService(newStoreFake(), wallet, fetcher)

	user := &models.User{UID: "u1", Role: models.RoleStudent, Credits: 10}
	_, err := svc.Open(context.Background(), user, false, chapterKey(), models.ContentAINotes, "en")

	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, 10, user.Credits)
	assert.Zero(t, wallet.charged)
}

func TestPaymentLink(t *testing.T) {
	svc := newService(newStoreFake(), &walletFake{}, &fetcherFake{})

	user := &models.User{UID: "u1", Email: "asha@example.com"}
	link, err := svc.PaymentLink(user, "pkg-2")

	require.NoError(t, err)
	assert.Contains(t, link, "https://wa.me/918227070298?text=")
	assert.Contains(t, link, "Value+Pack")
}

func TestPaymentLink_UnknownPackage(t *testing.T) {
	svc := newService(newStoreFake(), &walletFake{}, &fetcherFake{})

	_, err := svc.PaymentLink(&models.User{UID: "u1"}, "pkg-999")
	assert.ErrorIs(t, err, ErrUnknownPackage)
}

func TestRecordTestResult(t *testing.T) {
	store := newStoreFake()
	wallet := &walletFake{}
	svc := newService(store, wallet, &fetcherFake{})

	user := &models.User{UID: "u1"}
	err := svc.RecordTestResult(context.Background(), user, models.TestAttempt{
		TestID:   "weekly-35",
		TestName: "Weekly Test 35",
		Score:    7,
		Total:    10,
	})

	require.NoError(t, err)
	_, ok := store.data["test:weekly-35:u1"]
	assert.True(t, ok)

	require.Len(t, wallet.rewards, 1)
	assert.Equal(t, models.RewardSubscription, wallet.rewards[0].Kind)
	assert.Equal(t, 24, wallet.rewards[0].DurationHours)
}
