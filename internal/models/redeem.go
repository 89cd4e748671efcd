package models

// RedeemCode — подарочный код от администратора. Код одноразовый:
// после погашения остаётся в хранилище с выставленным IsRedeemed.
type RedeemCode struct {
	Code       string `json:"code"`
	Amount     int    `json:"amount"`
	IsRedeemed bool   `json:"is_redeemed"`
	RedeemedBy string `json:"redeemed_by,omitempty"`
}
