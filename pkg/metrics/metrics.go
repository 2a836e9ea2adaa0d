// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "forkx"

var (
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Node report submissions by outcome (accepted, invalid, failed).",
	}, []string{"result"})

	Classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "classifications_total",
		Help:      "Upgrade classifications by result.",
	}, []string{"upgraded"})

	AllowlistRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "allowlist_refreshes_total",
		Help:      "Allow-list snapshot reloads by outcome.",
	}, []string{"result"})

	StakeSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stake_syncs_total",
		Help:      "Block producer stake syncs by source and outcome.",
	}, []string{"source", "result"})

	Adoption = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "adoption",
		Help:      "Last computed adoption figures. Stake values are raw fractions and may exceed 1.",
	}, []string{"figure"})
)
