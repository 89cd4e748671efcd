package models

import "time"

// Виды наград.
const (
	RewardCoins        = "COINS"
	RewardSubscription = "SUBSCRIPTION"
)

// RewardOffer — предложение награды, ожидающее решения пользователя.
// Предложение терминально: CLAIMED (слито в кошелёк), EXPIRED (просрочено)
// или перенесено в inbox. Забранное предложение помечается флагом Claimed,
// а не удаляется, чтобы сохранить историю.
type RewardOffer struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Amount        int       `json:"amount,omitempty"`
	Tier          string    `json:"tier,omitempty"`
	Level         string    `json:"level,omitempty"`
	DurationHours int       `json:"duration_hours,omitempty"`
	Label         string    `json:"label"`
	ExpiresAt     time.Time `json:"expires_at"`
	Claimed       bool      `json:"claimed,omitempty"`
}

// Expired сообщает, просрочено ли предложение в момент now.
func (o RewardOffer) Expired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && o.ExpiresAt.Before(now)
}

// InboxMessage — отложенное сообщение пользователю, обычно с вложенной наградой.
type InboxMessage struct {
	ID     string       `json:"id"`
	Text   string       `json:"text"`
	Date   time.Time    `json:"date"`
	Read   bool         `json:"read"`
	Reward *RewardOffer `json:"reward,omitempty"`
}
