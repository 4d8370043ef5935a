// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reward_bot"

// RewardGrants counts committed ledger entries by reward type.
var RewardGrants = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reward",
	Name:      "grants_total",
	Help:      "Committed reward grants by type.",
}, []string{"type"})

// RewardPoints counts granted points by reward type.
var RewardPoints = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reward",
	Name:      "points_total",
	Help:      "Granted reward points by type.",
}, []string{"type"})

// RewardSkipped counts reward evaluations that produced no grant.
var RewardSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reward",
	Name:      "skipped_total",
	Help:      "Reward evaluations skipped by reason.",
}, []string{"reason"})

// ActivityIngested counts activity items by source (live, migration) and status.
var ActivityIngested = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "activity",
	Name:      "items_total",
	Help:      "Activity items by source and ingest status.",
}, []string{"source", "status"})

var MigrationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "migration",
	Name:      "runs_total",
	Help:      "Migration runs by kind and final state.",
}, []string{"kind", "state"})

var MigrationItems = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "migration",
	Name:      "items_total",
	Help:      "Migrated items by result.",
}, []string{"result"})

var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "level",
	Name:      "ups_total",
	Help:      "Level increases applied.",
})

// SideEffectFailures counts failed role assignments, DMs and channel posts.
var SideEffectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "discord",
	Name:      "side_effect_failures_total",
	Help:      "Failed post-commit Discord side effects by kind.",
}, []string{"kind"})

// LedgerMismatches is the number of users whose balance disagrees with their
// ledger sum, as of the last audit.
var LedgerMismatches = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "audit",
	Name:      "ledger_mismatches",
	Help:      "Users whose current reward differs from their ledger sum.",
})

var WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "webhook",
	Name:      "deliveries_total",
	Help:      "Inbound webhook deliveries by provider and result.",
}, []string{"provider", "result"})
