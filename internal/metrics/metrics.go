// Package metrics is the controller's Prometheus ambient stack: collectors
// for block processing, fork switches, irreversibility, and deferred and
// applied transactions, and the HTTP handler that serves them. The
// controller, forkdb, and txapply packages do not update these collectors
// themselves.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors groups every metric the controller exports. Callers obtain one
// set via New and update its fields themselves; there is no
// package-level singleton so tests can use an isolated registry.
type Collectors struct {
	reg *prometheus.Registry

	BlocksApplied      prometheus.Counter
	TransactionsApplied *prometheus.CounterVec
	ForkSwitches       prometheus.Counter
	LastIrreversible   prometheus.Gauge
	HeadHeight         prometheus.Gauge
	DeferredQueueDepth prometheus.Gauge
	ShardLockFailures  prometheus.Counter
	BlockApplyDuration prometheus.Histogram
}

// New registers and returns a fresh Collectors set under the given
// namespace (see flags.MetricsFlags' --metrics.namespace).
func New(namespace string) *Collectors {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collectors{
		reg: reg,
		BlocksApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_applied_total",
			Help:      "Number of blocks successfully applied to the head chain.",
		}),
		TransactionsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_applied_total",
			Help:      "Number of transactions applied, partitioned by status.",
		}, []string{"status"}),
		ForkSwitches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fork_switches_total",
			Help:      "Number of times the fork database moved the head to a different branch.",
		}),
		LastIrreversible: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_irreversible_block_height",
			Help:      "Height of the last irreversible block.",
		}),
		HeadHeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "head_block_height",
			Help:      "Height of the current fork database head.",
		}),
		DeferredQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deferred_transaction_queue_depth",
			Help:      "Number of generated transactions awaiting their delay window.",
		}),
		ShardLockFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shard_lock_validation_failures_total",
			Help:      "Number of times a shard's declared read/write scope conflicted with another shard in the same cycle.",
		}),
		BlockApplyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "block_apply_duration_seconds",
			Help:      "Wall time spent applying a single block.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Handler returns the http.Handler that serves this Collectors set in the
// Prometheus exposition format, for wiring to --metrics.addr:--metrics.port.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
