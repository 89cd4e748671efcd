// Package metrics регистрирует prometheus-счётчики движка.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — набор счётчиков, прокидываемый в сервисы.
type Metrics struct {
	EntitlementDecisions *prometheus.CounterVec
	WalletCharges        prometheus.Counter
	WalletRewards        *prometheus.CounterVec
	MilestoneOffers      *prometheus.CounterVec
	RedeemAttempts       *prometheus.CounterVec
	SyncWriteFailures    prometheus.Counter
}

// New создаёт счётчики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EntitlementDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nst_entitlement_decisions_total",
			Help: "Entitlement resolver outcomes by decision.",
		}, []string{"outcome"}),
		WalletCharges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nst_wallet_charges_total",
			Help: "Successful credit charges.",
		}),
		WalletRewards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nst_wallet_rewards_total",
			Help: "Applied reward offers by kind.",
		}, []string{"kind"}),
		MilestoneOffers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nst_milestone_offers_total",
			Help: "Reward offers produced by the milestone engine.",
		}, []string{"kind"}),
		RedeemAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nst_redeem_attempts_total",
			Help: "Redeem code attempts by result.",
		}, []string{"result"}),
		SyncWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nst_sync_write_failures_total",
			Help: "Remote store propagation failures (local cache stays authoritative).",
		}),
	}
	reg.MustRegister(
		m.EntitlementDecisions,
		m.WalletCharges,
		m.WalletRewards,
		m.MilestoneOffers,
		m.RedeemAttempts,
		m.SyncWriteFailures,
	)
	return m
}

// NewNop создаёт счётчики без регистрации, для тестов.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
