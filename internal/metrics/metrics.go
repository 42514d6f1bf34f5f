// Package metrics exposes vault, strategy and keeper state as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elys-network/autocompounder/internal/logger"
	"github.com/elys-network/autocompounder/internal/types"
	"github.com/elys-network/autocompounder/internal/utils"
)

// Namespace prefixes every metric name.
const Namespace = "autocompounder"

var metricsLogger = logger.GetForComponent("metrics")

// Registry owns the Prometheus registry and the autocompounder collectors.
// Amounts are exported in whole want units using the configured decimals.
type Registry struct {
	registry *prometheus.Registry
	decimals int

	vaultBalance   prometheus.Gauge
	pricePerShare  prometheus.Gauge
	totalShares    prometheus.Gauge
	idleBalance    prometheus.Gauge
	strategyState  *prometheus.GaugeVec
	averageAPRBps  prometheus.Gauge
	harvests       prometheus.Counter
	harvestProfit  prometheus.Counter
	harvestFees    *prometheus.CounterVec
	deposits       prometheus.Counter
	depositVolume  prometheus.Counter
	withdrawals    prometheus.Counter
	withdrawVolume prometheus.Counter
	cycleDuration  prometheus.Histogram
	cycleFailures  prometheus.Counter
}

// New creates a registry with Go runtime collectors and all autocompounder metrics registered.
func New(decimals int) *Registry {
	registry := prometheus.NewRegistry()

	m := &Registry{
		registry: registry,
		decimals: decimals,

		vaultBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "vault_balance",
			Help:      "Total assets managed by the vault, in want units",
		}),

		pricePerShare: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "vault_price_per_share",
			Help:      "Want per vault share",
		}),

		totalShares: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "vault_total_shares",
			Help:      "Outstanding vault shares, in share units",
		}),

		idleBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "vault_idle_balance",
			Help:      "Want held idle by the vault",
		}),

		strategyState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "strategy_state",
			Help:      "1 for the current strategy lifecycle state, 0 otherwise",
		}, []string{"state"}),

		averageAPRBps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "strategy_average_apr_bps",
			Help:      "Average APR across recent harvests, in basis points",
		}),

		harvests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "harvests_total",
			Help:      "Total harvests executed",
		}),

		harvestProfit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "harvest_profit_total",
			Help:      "Total rewards claimed by harvests, in want units",
		}),

		harvestFees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "harvest_fees_total",
			Help:      "Harvest fees paid by recipient kind, in want units",
		}, []string{"recipient"}),

		deposits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "deposits_total",
			Help:      "Total accepted deposits",
		}),

		depositVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "deposit_volume_total",
			Help:      "Total want deposited",
		}),

		withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "withdrawals_total",
			Help:      "Total paid withdrawals",
		}),

		withdrawVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "withdrawal_volume_total",
			Help:      "Total want paid out",
		}),

		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "keeper_cycle_duration_seconds",
			Help:      "Keeper cycle duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		cycleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "keeper_cycle_failures_total",
			Help:      "Keeper cycles that ended with an error",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.vaultBalance,
		m.pricePerShare,
		m.totalShares,
		m.idleBalance,
		m.strategyState,
		m.averageAPRBps,
		m.harvests,
		m.harvestProfit,
		m.harvestFees,
		m.deposits,
		m.depositVolume,
		m.withdrawals,
		m.withdrawVolume,
		m.cycleDuration,
		m.cycleFailures,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry for tests and federation.
func (m *Registry) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Registry) units(amount sdkmath.Int) float64 {
	f, err := utils.SDKIntToFloat64(amount, m.decimals)
	if err != nil {
		metricsLogger.Debug().Err(err).Msg("Amount not exportable")
		return 0
	}
	return f
}

// ObserveDeposit counts an accepted deposit.
func (m *Registry) ObserveDeposit(amount sdkmath.Int) {
	m.deposits.Inc()
	m.depositVolume.Add(m.units(amount))
}

// ObserveWithdrawal counts a paid withdrawal.
func (m *Registry) ObserveWithdrawal(amount sdkmath.Int) {
	m.withdrawals.Inc()
	m.withdrawVolume.Add(m.units(amount))
}

// ObserveVault updates the vault gauges from a snapshot.
func (m *Registry) ObserveVault(snap types.VaultSnapshot) {
	m.vaultBalance.Set(m.units(snap.TotalManagedAssets))
	m.idleBalance.Set(m.units(snap.IdleBalance))
	m.totalShares.Set(m.units(snap.TotalShares))
	if pps, err := utils.DecToFloat64(snap.PricePerShare); err == nil {
		m.pricePerShare.Set(pps)
	}
}

// ObserveStrategy updates the lifecycle and APR gauges.
func (m *Registry) ObserveStrategy(state types.StrategyState, aprBps sdkmath.Int) {
	for _, s := range []types.StrategyState{types.StateActive, types.StatePaused, types.StatePanicked, types.StateRetired} {
		v := 0.0
		if s == state {
			v = 1
		}
		m.strategyState.WithLabelValues(s.String()).Set(v)
	}
	if !aprBps.IsNil() && aprBps.IsInt64() {
		m.averageAPRBps.Set(float64(aprBps.Int64()))
	}
}

// ObserveHarvest counts a completed harvest and its fees.
func (m *Registry) ObserveHarvest(receipt types.HarvestReceipt) {
	m.harvests.Inc()
	m.harvestProfit.Add(m.units(receipt.Profit))
	m.harvestFees.WithLabelValues("treasury").Add(m.units(receipt.TreasuryShare))
	m.harvestFees.WithLabelValues("strategist").Add(m.units(receipt.StrategistShare))
	m.harvestFees.WithLabelValues("caller").Add(m.units(receipt.CallerShare))
}

// ObserveCycle records a keeper cycle.
func (m *Registry) ObserveCycle(duration time.Duration, err error) {
	m.cycleDuration.Observe(duration.Seconds())
	if err != nil {
		m.cycleFailures.Inc()
	}
}
