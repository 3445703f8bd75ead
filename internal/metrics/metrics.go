// Package metrics provides Prometheus metrics for the draft asset lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// No draft or asset ids in labels.
var (
	// StagedAssetsTotal counts uploads into the object store, by result (ok/error).
	StagedAssetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memories_staged_assets_total",
		Help: "Total number of asset uploads staged for drafts, by result.",
	}, []string{"result"})

	// UnstagedAssetsTotal counts deletes issued against staged assets, by result (ok/missing/error).
	UnstagedAssetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memories_unstaged_assets_total",
		Help: "Total number of staged asset deletions, by result.",
	}, []string{"result"})

	// AbandonTotal counts fired abandonment signals by source.
	AbandonTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memories_draft_abandon_total",
		Help: "Total number of abandoned drafts, by signal source.",
	}, []string{"source"})

	// ReclaimBatchesTotal counts reclaim batches that had at least one asset.
	ReclaimBatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memories_reclaim_batches_total",
		Help: "Total number of non-empty reclaim batches issued.",
	})

	// FinalizeTotal counts finalize attempts by result (ok/validation/record_store/in_flight).
	FinalizeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memories_finalize_total",
		Help: "Total number of finalize attempts, by result.",
	}, []string{"result"})

	// OpenDrafts is the number of draft sessions currently held in memory.
	OpenDrafts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "memories_open_drafts",
		Help: "Number of draft sessions currently open.",
	})
)
