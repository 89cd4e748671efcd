// Package entitlement содержит чистую функцию принятия решения о доступе
// к контенту. Никаких побочных эффектов: списание кредитов выполняет
// вызывающий через кошелёк.
package entitlement

import (
	"time"

	"github.com/nadimanwar794-eng/nst-core/internal/models"
)

// Outcome — итог проверки доступа.
type Outcome string

const (
	Allow            Outcome = "ALLOW"
	AllowAfterCharge Outcome = "ALLOW_AFTER_CHARGE"
	Deny             Outcome = "DENY"
)

// Reason уточняет причину отказа.
type Reason string

const (
	ReasonNotUploaded         Reason = "NOT_UPLOADED"
	ReasonInsufficientCredits Reason = "INSUFFICIENT_CREDITS"
)

// Decision — результат Resolve. Amount заполнен только для AllowAfterCharge.
type Decision struct {
	Outcome Outcome
	Amount  int
	Reason  Reason
}

func (d Decision) Allowed() bool {
	return d.Outcome == Allow || d.Outcome == AllowAfterCharge
}

// basicAllowed перечисляет типы контента, открытые подпиской BASIC.
var basicAllowed = map[models.ContentType]bool{
	models.ContentMCQPractice:  true,
	models.ContentPremiumNotes: true,
	models.ContentFreeNotes:    true,
	models.ContentAINotes:      true,
}

// Resolve применяет правила доступа в строгом порядке, первое совпавшее
// правило выигрывает:
//
//  1. админ или админская имперсонация — доступ без ограничений;
//  2. в каталоге нет цены для типа — контент не загружен;
//  3. цена ноль — свободный доступ;
//  4. активная подписка: ULTRA открывает всё, BASIC — только свой набор;
//  5. кредитов хватает — доступ после списания;
//  6. иначе отказ.
func Resolve(user *models.User, impersonated bool, contentType models.ContentType, record *models.CatalogRecord, now time.Time) Decision {
	if user.Role == models.RoleAdmin || impersonated {
		return Decision{Outcome: Allow}
	}

	if record == nil {
		return Decision{Outcome: Deny, Reason: ReasonNotUploaded}
	}
	_, price, ok := record.Payload(contentType)
	if !ok {
		return Decision{Outcome: Deny, Reason: ReasonNotUploaded}
	}

	if price == 0 {
		return Decision{Outcome: Allow}
	}

	if user.Subscription.Active(now) {
		switch user.Subscription.Level {
		case models.LevelUltra:
			return Decision{Outcome: Allow}
		case models.LevelBasic:
			if basicAllowed[contentType] {
				return Decision{Outcome: Allow}
			}
		}
	}

	if user.Credits >= price {
		return Decision{Outcome: AllowAfterCharge, Amount: price}
	}

	return Decision{Outcome: Deny, Reason: ReasonInsufficientCredits}
}
