// Package jwt реализует генерацию и разбор JWT токенов сессии.
//
// Claims кроме идентификатора и роли пользователя несут необязательное поле
// Impersonator: uid администратора, просматривающего приложение от имени
// студента. Для правил доступа такая сессия эквивалентна админской.
package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims описывает данные сессии, хранящиеся в токене.
type SessionClaims struct {
	UID          string `json:"uid"`
	Username     string `json:"username"`
	Role         string `json:"role"`
	Impersonator string `json:"impersonator,omitempty"`
	jwt.RegisteredClaims
}

// Impersonated сообщает, что сессию ведёт администратор от чужого имени.
func (c *SessionClaims) Impersonated() bool {
	return c.Impersonator != ""
}

// Maker описывает интерфейс для генерации и разбора токенов сессии.
type Maker interface {
	GenerateToken(uid, username, role, impersonator string) (string, error)
	ParseToken(tokenStr string) (*SessionClaims, error)
}

// MakerImpl реализует Maker на секретном ключе и фиксированном TTL.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewMaker создаёт MakerImpl.
func NewMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{secretKey: secretKey, tokenTTL: ttl}
}
