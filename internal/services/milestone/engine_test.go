package milestone

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadimanwar794-eng/nst-core/internal/lib/daykey"
	"github.com/nadimanwar794-eng/nst-core/internal/metrics"
	"github.com/nadimanwar794-eng/nst-core/internal/models"
)

type storeFake struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newStoreFake() *storeFake {
	return &storeFake{data: make(map[string][]byte)}
}

func (f *storeFake) Write(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = data
	return nil
}

func (f *storeFake) WriteLocal(ctx context.Context, key string, value any) error {
	return f.Write(ctx, key, value)
}

func (f *storeFake) Read(_ context.Context, key string, dest any) (bool, error) {
	f.mu.Lock()
	data, ok := f.data[key]
	f.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

// walletFake применяет награды по-настоящему, чтобы тесты могли проверять
// итоговое состояние пользователя.
type walletFake struct {
	mu      sync.Mutex
	now     func() time.Time
	applied []models.RewardOffer
}

func (w *walletFake) ApplyReward(_ context.Context, user *models.User, offer models.RewardOffer) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch offer.Kind {
	case models.RewardCoins:
		user.Credits += offer.Amount
	case models.RewardSubscription:
		end := w.now().Add(time.Duration(offer.DurationHours) * time.Hour)
		user.Subscription = models.Subscription{
			Tier:           offer.Tier,
			Level:          offer.Level,
			EndDate:        &end,
			IsPremium:      true,
			GrantedByAdmin: true,
		}
	}
	w.applied = append(w.applied, offer)
	return nil
}

func (w *walletFake) ApplyCredits(_ context.Context, user *models.User, amount int) error {
	user.Credits += amount
	return nil
}

func (w *walletFake) Save(_ context.Context, _ *models.User) error { return nil }

type settingsFake struct{ s models.Settings }

func (f settingsFake) Current() models.Settings { return f.s }

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newTestEngine(t *testing.T, store Store, at time.Time) (*Engine, *walletFake) {
	t.Helper()
	now := at
	e := New(newNoopLogger(), store, nil, settingsFake{s: models.DefaultSettings()}, metrics.NewNop())
	e.now = func() time.Time { return now }
	e.interval = time.Hour // циклы сессий в тестах не тикают сами
	w := &walletFake{now: e.now}
	e.wallet = w
	return e, w
}

func startSession(t *testing.T, e *Engine, user *models.User) *Session {
	t.Helper()
	s, err := e.StartSession(context.Background(), user)
	require.NoError(t, err)
	t.Cleanup(func() { e.EndSession(user.UID) })
	return s
}

func TestTick_FiresThresholdOnce(t *testing.T) {
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, newStoreFake(), at)

	user := &models.User{UID: "u1", Role: models.RoleStudent, CreatedAt: at.Add(-48 * time.Hour)}
	s := startSession(t, e, user)

	s.day.Seconds = 599
	e.tick(context.Background(), s, at)

	require.Len(t, user.PendingRewards, 1)
	offer := user.PendingRewards[0]
	assert.Equal(t, models.RewardCoins, offer.Kind)
	assert.Equal(t, 2, offer.Amount)
	assert.True(t, s.day.HasFired(600))

	// следующий тик с тем же порогом ничего не добавляет
	e.tick(context.Background(), s, at)
	require.Len(t, user.PendingRewards, 1)
	assert.Equal(t, offer.ID, user.PendingRewards[0].ID)
}

func TestTick_ReloadedCounterDoesNotRefire(t *testing.T) {
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	store := newStoreFake()
	e, _ := newTestEngine(t, store, at)

	user := &models.User{UID: "u1", Role: models.RoleStudent, CreatedAt: at.Add(-48 * time.Hour)}
	s := startSession(t, e, user)
	s.day.Seconds = 599
	e.tick(context.Background(), s, at)
	require.Len(t, user.PendingRewards, 1)
	e.EndSession("u1")

	// возобновление сессии: счётчик и сработавшие пороги читаются из хранилища
	user2 := &models.User{UID: "u1", Role: models.RoleStudent, CreatedAt: at.Add(-48 * time.Hour)}
	s2 := startSession(t, e, user2)
	assert.Equal(t, 600, s2.day.Seconds)
	assert.True(t, s2.day.HasFired(600))

	e.tick(context.Background(), s2, at)
	assert.Empty(t, user2.PendingRewards)
}

func TestTick_NewOfferQueuesOldToInbox(t *testing.T) {
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, newStoreFake(), at)

	user := &models.User{UID: "u1", Role: models.RoleStudent, CreatedAt: at.Add(-48 * time.Hour)}
	s := startSession(t, e, user)

	s.day.Seconds = 599
	e.tick(context.Background(), s, at)
	require.Len(t, user.PendingRewards, 1)
	first := user.PendingRewards[0]

	s.day.Seconds = 1799
	e.tick(context.Background(), s, at)

	require.Len(t, user.PendingRewards, 1)
	assert.Equal(t, 4, user.PendingRewards[0].Amount)
	require.Len(t, user.Inbox, 1)
	require.NotNil(t, user.Inbox[0].Reward)
	assert.Equal(t, first.ID, user.Inbox[0].Reward.ID)
}

func TestTick_ClaimedOfferKeptInQueue(t *testing.T) {
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, newStoreFake(), at)

	user := &models.User{UID: "u1", Role: models.RoleStudent, CreatedAt: at.Add(-48 * time.Hour)}
	s := startSession(t, e, user)

	s.day.Seconds = 599
	e.tick(context.Background(), s, at)
	require.Len(t, user.PendingRewards, 1)
	first := user.PendingRewards[0]

	_, err := e.ClaimOffer(context.Background(), "u1", first.ID)
	require.NoError(t, err)

	s.day.Seconds = 1799
	e.tick(context.Background(), s, at)

	// забранное предложение остаётся в очереди как история, в inbox не уходит
	require.Len(t, user.PendingRewards, 2)
	assert.Equal(t, first.ID, user.PendingRewards[0].ID)
	assert.True(t, user.PendingRewards[0].Claimed)
	assert.Equal(t, 4, user.PendingRewards[1].Amount)
	assert.Empty(t, user.Inbox)

	// повторный Claim по сохранённой записи отклоняется
	_, err = e.ClaimOffer(context.Background(), "u1", first.ID)
	assert.ErrorIs(t, err, ErrOfferResolved)
}

func TestTick_SubscriptionThresholds(t *testing.T) {
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, newStoreFake(), at)

	user := &models.User{UID: "u1", Role: models.RoleStudent, CreatedAt: at.Add(-48 * time.Hour)}
	s := startSession(t, e, user)

	s.day.Seconds = 7199
	e.tick(context.Background(), s, at)

	// одним тиком пересечены все четыре порога: живым остаётся последний
	require.Len(t, user.PendingRewards, 1)
	last := user.PendingRewards[0]
	assert.Equal(t, models.RewardSubscription, last.Kind)
	assert.Equal(t, models.LevelUltra, last.Level)
	assert.Equal(t, 4, last.DurationHours)
	assert.Len(t, user.Inbox, 3)
}

func TestTick_LivenessEveryTenth(t *testing.T) {
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	store := newStoreFake()
	e, _ := newTestEngine(t, store, at)

	user := &models.User{UID: "u1", Role: models.RoleStudent, CreatedAt: at.Add(-48 * time.Hour)}
	s := startSession(t, e, user)

	for i := 0; i < 9; i++ {
		e.tick(context.Background(), s, at)
	}
	store.mu.Lock()
	_, ok := store.data["liveness:u1"]
	store.mu.Unlock()
	assert.False(t, ok)

	e.tick(context.Background(), s, at)
	store.mu.Lock()
	_, ok = store.data["liveness:u1"]
	store.mu.Unlock()
	assert.True(t, ok)
	assert.Equal(t, at, user.LastActiveAt)
}

func TestTick_DayRollover(t *testing.T) {
	at := time.Date(2026, 8, 30, 23, 59, 59, 0, time.UTC)
	e, _ := newTestEngine(t, newStoreFake(), at)

	user := &models.User{UID: "u1", Role: models.RoleStudent, CreatedAt: at.Add(-48 * time.Hour)}
	s := startSession(t, e, user)
	s.day.Seconds = 5000
	s.day.MarkFired(600)

	e.tick(context.Background(), s, at.Add(time.Second))

	assert.Equal(t, "2026-08-31", s.day.Day)
	assert.Equal(t, 1, s.day.Seconds)
	assert.False(t, s.day.HasFired(600))
}

func TestClaimOffer(t *testing.T) {
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, newStoreFake(), at)

	user := &models.User{UID: "u1", Role: models.RoleStudent, CreatedAt: at.Add(-48 * time.Hour)}
	s := startSession(t, e, user)
	s.day.Seconds = 599
	e.tick(context.Background(), s, at)
	offerID := user.PendingRewards[0].ID

	got, err := e.ClaimOffer(context.Background(), "u1", offerID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Credits)

	_, err = e.ClaimOffer(context.Background(), "u1", offerID)
	assert.ErrorIs(t, err, ErrOfferResolved)
	assert.Equal(t, 2, user.Credits)
}

func TestClaimOffer_Expired(t *testing.T) {
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, newStoreFake(), at)

	user := &models.User{UID: "u1", Role: models.RoleStudent, CreatedAt: at.Add(-48 * time.Hour)}
	s := startSession(t, e, user)
	s.day.Seconds = 599
	e.tick(context.Background(), s, at)
	offerID := user.PendingRewards[0].ID

	e.now = func() time.Time { return at.Add(25 * time.Hour) }

	_, err := e.ClaimOffer(context.Background(), "u1", offerID)
	assert.ErrorIs(t, err, ErrOfferExpired)
	assert.Zero(t, user.Credits)
}

func TestIgnoreOffer(t *testing.T) {
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, newStoreFake(), at)

	user := &models.User{UID: "u1", Role: models.RoleStudent, CreatedAt: at.Add(-48 * time.Hour)}
	s := startSession(t, e, user)
	s.day.Seconds = 599
	e.tick(context.Background(), s, at)
	offerID := user.PendingRewards[0].ID

	got, err := e.IgnoreOffer(context.Background(), "u1", offerID)
	require.NoError(t, err)
	assert.Empty(t, got.PendingRewards)
	require.Len(t, got.Inbox, 1)
	require.NotNil(t, got.Inbox[0].Reward)
	assert.Equal(t, offerID, got.Inbox[0].Reward.ID)

	// отложенную награду всё ещё можно забрать из inbox
	claimed, err := e.ClaimOffer(context.Background(), "u1", offerID)
	require.NoError(t, err)
	assert.Equal(t, 2, claimed.Credits)
}

func TestClaimDailyGoal(t *testing.T) {
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, newStoreFake(), at)

	user := &models.User{UID: "u1", Role: models.RoleStudent, CreatedAt: at.Add(-48 * time.Hour)}
	s := startSession(t, e, user)

	_, err := e.ClaimDailyGoal(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrGoalNotReached)

	s.day.Seconds = user.GoalSeconds()
	got, err := e.ClaimDailyGoal(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Credits)
	assert.Equal(t, daykey.Day(at), got.LastRewardClaimDate)

	_, err = e.ClaimDailyGoal(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrGoalAlreadyClaimed)
	assert.Equal(t, 3, user.Credits)
}

func TestTick_FirstDayBonus(t *testing.T) {
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	e, w := newTestEngine(t, newStoreFake(), at)

	user := &models.User{UID: "u1", Role: models.RoleStudent, CreatedAt: at.Add(-2 * time.Hour)}
	s := startSession(t, e, user)

	s.day.Seconds = 3599
	s.day.MarkFired(600)
	s.day.MarkFired(1800)
	s.day.MarkFired(3600)
	e.tick(context.Background(), s, at)

	assert.True(t, user.FirstDayBonusUsed)
	assert.True(t, user.Subscription.Active(at))
	assert.Equal(t, models.LevelUltra, user.Subscription.Level)

	// бонус разовый
	before := len(w.applied)
	e.tick(context.Background(), s, at)
	assert.Len(t, w.applied, before)
}

func TestTick_NoFirstDayBonusForOldAccount(t *testing.T) {
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	e, w := newTestEngine(t, newStoreFake(), at)

	user := &models.User{UID: "u1", Role: models.RoleStudent, CreatedAt: at.Add(-30 * time.Hour)}
	s := startSession(t, e, user)

	s.day.Seconds = 3599
	s.day.MarkFired(600)
	s.day.MarkFired(1800)
	s.day.MarkFired(3600)
	e.tick(context.Background(), s, at)

	assert.False(t, user.FirstDayBonusUsed)
	assert.Empty(t, w.applied)
}

func TestLookback(t *testing.T) {
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	yesterday := daykey.Yesterday(at)

	tests := []struct {
		name         string
		seconds      int
		fired        []int
		sub          models.Subscription
		wantLevel    string
		wantQueued   bool
	}{
		{name: "basic threshold", seconds: 4000, wantLevel: models.LevelBasic, wantQueued: true},
		{name: "ultra threshold", seconds: 11000, wantLevel: models.LevelUltra, wantQueued: true},
		{name: "below threshold", seconds: 3000, wantQueued: false},
		{
			// награда уже была предложена вживую вчера — второй раз не выдаётся
			name:       "fired live yesterday",
			seconds:    3700,
			fired:      []int{600, 1800, 3600},
			wantQueued: false,
		},
		{
			name:       "ultra fired live yesterday",
			seconds:    11000,
			fired:      []int{600, 1800, 3600, 7200},
			wantQueued: false,
		},
		{
			name:    "active paid sub suppresses",
			seconds: 4000,
			sub: func() models.Subscription {
				end := at.Add(2 * time.Hour)
				return models.Subscription{Level: models.LevelBasic, EndDate: &end, IsPremium: true}
			}(),
			wantQueued: false,
		},
		{
			name:    "granted sub does not suppress",
			seconds: 4000,
			sub: func() models.Subscription {
				end := at.Add(2 * time.Hour)
				return models.Subscription{Level: models.LevelBasic, EndDate: &end, IsPremium: true, GrantedByAdmin: true}
			}(),
			wantLevel:  models.LevelBasic,
			wantQueued: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStoreFake()
			require.NoError(t, store.Write(context.Background(), "activity:u1:"+yesterday, models.ActivityDay{
				UserUID:         "u1",
				Day:             yesterday,
				Seconds:         tt.seconds,
				FiredThresholds: tt.fired,
			}))
			e, _ := newTestEngine(t, store, at)

			user := &models.User{
				UID:          "u1",
				Role:         models.RoleStudent,
				CreatedAt:    at.Add(-72 * time.Hour),
				Subscription: tt.sub,
			}
			startSession(t, e, user)

			if !tt.wantQueued {
				assert.Empty(t, user.Inbox)
				return
			}
			require.Len(t, user.Inbox, 1)
			require.NotNil(t, user.Inbox[0].Reward)
			assert.Equal(t, tt.wantLevel, user.Inbox[0].Reward.Level)
			assert.Equal(t, 4, user.Inbox[0].Reward.DurationHours)
		})
	}
}

func TestLookback_RunsOnce(t *testing.T) {
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	yesterday := daykey.Yesterday(at)
	store := newStoreFake()
	require.NoError(t, store.Write(context.Background(), "activity:u1:"+yesterday, models.ActivityDay{
		UserUID: "u1", Day: yesterday, Seconds: 4000,
	}))
	e, _ := newTestEngine(t, store, at)

	user := &models.User{UID: "u1", Role: models.RoleStudent, CreatedAt: at.Add(-72 * time.Hour)}
	startSession(t, e, user)
	require.Len(t, user.Inbox, 1)
	e.EndSession("u1")

	// вторая сессия того же дня не дублирует отложенное предложение
	user2 := &models.User{UID: "u1", Role: models.RoleStudent, CreatedAt: at.Add(-72 * time.Hour)}
	startSession(t, e, user2)
	assert.Empty(t, user2.Inbox)
}

func TestUpdateUser_RemoteWins(t *testing.T) {
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, newStoreFake(), at)

	user := &models.User{UID: "u1", Role: models.RoleStudent, Credits: 5, CreatedAt: at.Add(-48 * time.Hour)}
	startSession(t, e, user)

	remote := *user
	remote.Credits = 50
	e.UpdateUser("u1", remote)

	got, ok := e.User("u1")
	require.True(t, ok)
	assert.Equal(t, 50, got.Credits)
}
