// Package models содержит доменные структуры движка: пользователь с балансом
// кредитов и подпиской, каталожные записи контента, награды и настройки системы.
package models

import (
	"encoding/json"
	"time"
)

// Роли пользователей системы.
const (
	RoleStudent = "STUDENT"
	RoleAdmin   = "ADMIN"
)

// Уровни подписки.
const (
	LevelBasic = "BASIC"
	LevelUltra = "ULTRA"
)

// Subscription описывает временное право доступа пользователя.
// EndDate равный nil означает отсутствие подписки.
type Subscription struct {
	Tier           string     `json:"tier,omitempty"`
	Level          string     `json:"level,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	IsPremium      bool       `json:"is_premium"`
	GrantedByAdmin bool       `json:"granted_by_admin"`
}

// Active сообщает, действует ли подписка в момент now.
// Истёкшая подписка трактуется как отсутствующая, даже если флаги остались выставлены.
func (s Subscription) Active(now time.Time) bool {
	return s.IsPremium && s.EndDate != nil && s.EndDate.After(now)
}

// User представляет снапшот пользователя, которым владеет текущая сессия.
// Запись всегда сохраняется и читается целиком (last-write-wins), поэтому
// все поля перечислены явно; неизвестные поля других версий складываются
// в Extensions.
type User struct {
	UID        string `json:"uid"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role"`
	Board      string `json:"board,omitempty"`
	ClassLevel string `json:"class_level,omitempty"`
	Stream     string `json:"stream,omitempty"`

	PasswordHash string `json:"password_hash,omitempty"`

	Credits      int          `json:"credits"`
	Subscription Subscription `json:"subscription"`

	DailySpinDate  string `json:"daily_spin_date,omitempty"`
	DailySpinCount int    `json:"daily_spin_count,omitempty"`

	LastRewardClaimDate string `json:"last_reward_claim_date,omitempty"`
	DailyGoalHours      int    `json:"daily_goal_hours,omitempty"`
	FirstDayBonusUsed   bool   `json:"first_day_bonus_used,omitempty"`

	PendingRewards []RewardOffer  `json:"pending_rewards,omitempty"`
	Inbox          []InboxMessage `json:"inbox,omitempty"`
	RedeemedCodes  []string       `json:"redeemed_codes,omitempty"`

	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at,omitempty"`

	Extensions map[string]json.RawMessage `json:"extensions,omitempty"`
}

// DefaultGoalHours дневная цель по умолчанию, часов.
const DefaultGoalHours = 3

// GoalSeconds возвращает дневную цель пользователя в секундах.
func (u User) GoalSeconds() int {
	hours := u.DailyGoalHours
	if hours <= 0 {
		hours = DefaultGoalHours
	}
	return hours * 3600
}
