// Package metrics exposes Prometheus collectors for the vault, challenge,
// adjudication and reputation components, following the namespaced CounterVec/HistogramVec
// style of the teacher's top-level observability package.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bountyvault/core/internal/kernel"
)

const namespace = "bountyvault"

// VaultCollector records custodial-ledger activity.
type VaultCollector struct {
	deposits    prometheus.Counter
	locked      prometheus.Counter
	unlockTotal *prometheus.CounterVec
	feesTotal   prometheus.Counter
}

// NewVaultCollector builds and registers the vault collectors on reg. A nil
// reg uses the default Prometheus registry.
func NewVaultCollector(reg prometheus.Registerer) *VaultCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &VaultCollector{
		deposits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "vault", Name: "deposits_total",
			Help: "Total base units deposited across all users and tokens.",
		}),
		locked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "vault", Name: "locked_total",
			Help: "Total base units locked against challenges.",
		}),
		unlockTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "vault", Name: "unlocks_total",
			Help: "Total base units unlocked, by reason.",
		}, []string{"reason"}),
		feesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "vault", Name: "fees_total",
			Help: "Total platform fee base units retained.",
		}),
	}
	reg.MustRegister(c.deposits, c.locked, c.unlockTotal, c.feesTotal)
	return c
}

func (c *VaultCollector) ObserveDeposit(amount uint64) {
	if c == nil {
		return
	}
	c.deposits.Add(float64(amount))
}

func (c *VaultCollector) ObserveLock(amount uint64) {
	if c == nil {
		return
	}
	c.locked.Add(float64(amount))
}

func (c *VaultCollector) ObserveUnlock(reason kernel.UnlockReasonKind, net, fee uint64) {
	if c == nil {
		return
	}
	label := "refund"
	if reason == kernel.ReasonBountyPayout {
		label = "payout"
	}
	c.unlockTotal.WithLabelValues(label).Add(float64(net))
	if fee > 0 {
		c.feesTotal.Add(float64(fee))
	}
}

// ChallengeCollector records lifecycle activity.
type ChallengeCollector struct {
	created   prometheus.Counter
	byStatus  *prometheus.GaugeVec
	sweepRuns prometheus.Counter
}

func NewChallengeCollector(reg prometheus.Registerer) *ChallengeCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &ChallengeCollector{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "challenge", Name: "created_total",
			Help: "Total challenges created.",
		}),
		byStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "challenge", Name: "by_status",
			Help: "Current challenge count by status.",
		}, []string{"status"}),
		sweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "challenge", Name: "sweep_runs_total",
			Help: "Total expiration sweep passes executed.",
		}),
	}
	reg.MustRegister(c.created, c.byStatus, c.sweepRuns)
	return c
}

func (c *ChallengeCollector) ObserveCreated() {
	if c == nil {
		return
	}
	c.created.Inc()
}

func (c *ChallengeCollector) SetStatusGauge(status kernel.ChallengeStatus, count int) {
	if c == nil {
		return
	}
	c.byStatus.WithLabelValues(status.String()).Set(float64(count))
}

func (c *ChallengeCollector) ObserveSweepRun() {
	if c == nil {
		return
	}
	c.sweepRuns.Inc()
}

// AdjudicationCollector records monitoring-tick and evaluation activity.
type AdjudicationCollector struct {
	ticks       prometheus.Counter
	tickLatency prometheus.Histogram
	evaluations *prometheus.CounterVec
	probeErrors prometheus.Counter
}

func NewAdjudicationCollector(reg prometheus.Registerer) *AdjudicationCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &AdjudicationCollector{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "adjudication", Name: "ticks_total",
			Help: "Total monitoring ticks executed.",
		}),
		tickLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "adjudication", Name: "tick_duration_seconds",
			Help: "Latency of a full tick pass across all monitoring states.", Buckets: prometheus.DefBuckets,
		}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "adjudication", Name: "evaluations_total",
			Help: "Total attack evaluations, by decision.",
		}, []string{"decision"}),
		probeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "adjudication", Name: "probe_errors_total",
			Help: "Total BalanceProbe failures.",
		}),
	}
	reg.MustRegister(c.ticks, c.tickLatency, c.evaluations, c.probeErrors)
	return c
}

func (c *AdjudicationCollector) ObserveTick(seconds float64) {
	if c == nil {
		return
	}
	c.ticks.Inc()
	c.tickLatency.Observe(seconds)
}

func (c *AdjudicationCollector) ObserveEvaluation(decision kernel.Decision) {
	if c == nil {
		return
	}
	c.evaluations.WithLabelValues(decision.String()).Inc()
}

func (c *AdjudicationCollector) ObserveProbeError() {
	if c == nil {
		return
	}
	c.probeErrors.Inc()
}

// ReputationCollector records profile/achievement activity.
type ReputationCollector struct {
	achievements *prometheus.CounterVec
	profiles     prometheus.Gauge
}

func NewReputationCollector(reg prometheus.Registerer) *ReputationCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &ReputationCollector{
		achievements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "reputation", Name: "achievements_total",
			Help: "Total achievements granted, by name.",
		}, []string{"achievement"}),
		profiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "reputation", Name: "profiles",
			Help: "Current number of known user profiles.",
		}),
	}
	reg.MustRegister(c.achievements, c.profiles)
	return c
}

func (c *ReputationCollector) ObserveAchievement(name string) {
	if c == nil {
		return
	}
	c.achievements.WithLabelValues(name).Inc()
}

func (c *ReputationCollector) SetProfileCount(n int) {
	if c == nil {
		return
	}
	c.profiles.Set(float64(n))
}
