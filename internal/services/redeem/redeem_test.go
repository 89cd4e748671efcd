package redeem

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

type walletFake struct{}

func (walletFake) ApplyCredits(_ context.Context, user *models.User, amount int) error {
	user.Credits += amount
	return nil
}

func newService(store *storeFake) *Service {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return New(slog.New(h), store, walletFake{}, metrics.NewNop())
}

func seedCode(t *testing.T, store *storeFake, code string, amount int) {
	t.Helper()
	require.NoError(t, store.Write(context.Background(), "redeem:"+code, models.RedeemCode{
		Code:   code,
		Amount: amount,
	}))
}

func TestRedeem_OnlyFirstAttemptWins(t *testing.T) {
	store := newStoreFake()
	seedCode(t, store, "WELCOME10", 10)
	svc := newService(store)

	user := &models.User{UID: "u1", Credits: 2}

	amount, err := svc.Redeem(context.Background(), user, "welcome10")
	require.NoError(t, err)
	assert.Equal(t, 10, amount)
	assert.Equal(t, 12, user.Credits)
	assert.Contains(t, user.RedeemedCodes, "WELCOME10")

	// повторная попытка: баланс не меняется
	_, err = svc.Redeem(context.Background(), user, "WELCOME10")
	assert.ErrorIs(t, err, ErrAlreadyRedeemed)
	assert.Equal(t, 12, user.Credits)
}

func TestRedeem_MarksRedeemedByUser(t *testing.T) {
	store := newStoreFake()
	seedCode(t, store, "BONUS5", 5)
	svc := newService(store)

	user := &models.User{UID: "u1"}
	_, err := svc.Redeem(context.Background(), user, "BONUS5")
	require.NoError(t, err)

	var record models.RedeemCode
	found, err := store.Read(context.Background(), "redeem:BONUS5", &record)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, record.IsRedeemed)
	assert.Equal(t, "u1", record.RedeemedBy)

	// код, использованный одним, закрыт для другого
	other := &models.User{UID: "u2"}
	_, err = svc.Redeem(context.Background(), other, "BONUS5")
	assert.ErrorIs(t, err, ErrAlreadyRedeemed)
	assert.Zero(t, other.Credits)
}

func TestRedeem_UnknownCode(t *testing.T) {
	svc := newService(newStoreFake())

	user := &models.User{UID: "u1"}
	_, err := svc.Redeem(context.Background(), user, "NOPE")
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.Zero(t, user.Credits)
}

func TestRedeem_EmptyCode(t *testing.T) {
	svc := newService(newStoreFake())

	_, err := svc.Redeem(context.Background(), &models.User{UID: "u1"}, "   ")
	assert.ErrorIs(t, err, ErrInvalidCode)
}
