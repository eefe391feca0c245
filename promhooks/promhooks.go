// Package promhooks exports cache events as Prometheus counters. Register
// one Hooks per orchestrator; the lookup counter is labeled by status and
// serving tier so dashboards can break hit ratios down per layer.
package promhooks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/unkn0wn-root/stratacache"
	"github.com/unkn0wn-root/stratacache/layer"
)

type Hooks struct {
	lookups      *prometheus.CounterVec
	promotions   *prometheus.CounterVec
	setFailures  *prometheus.CounterVec
	timeouts     *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	lockDegraded prometheus.Counter
	syncRepairs  prometheus.Counter
	syncPasses   prometheus.Counter
}

var _ stratacache.Hooks = (*Hooks)(nil)

// New registers the counters with reg. Pass prometheus.DefaultRegisterer
// for the process-wide registry.
func New(reg prometheus.Registerer) *Hooks {
	f := promauto.With(reg)
	return &Hooks{
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stratacache_lookups_total",
			Help: "Total cache lookups.",
		}, []string{"status" /* hit | miss */, "layer"}),
		promotions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stratacache_promotion_failures_total",
			Help: "Total failed back-fills of read hits into faster layers.",
		}, []string{"layer"}),
		setFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stratacache_layer_set_failures_total",
			Help: "Total per-layer write failures during fan-out.",
		}, []string{"layer"}),
		timeouts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stratacache_layer_timeouts_total",
			Help: "Total layer calls that failed or exceeded the per-call timeout.",
		}, []string{"op", "layer"}),
		decodeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stratacache_decode_failures_total",
			Help: "Total stored entries dropped because they no longer decode.",
		}, []string{"layer", "reason"}),
		lockDegraded: f.NewCounter(prometheus.CounterOpts{
			Name: "stratacache_lock_degraded_total",
			Help: "Total critical sections run without cross-instance exclusion.",
		}),
		syncRepairs: f.NewCounter(prometheus.CounterOpts{
			Name: "stratacache_sync_repairs_total",
			Help: "Total entries rewritten by synchronization passes.",
		}),
		syncPasses: f.NewCounter(prometheus.CounterOpts{
			Name: "stratacache_sync_passes_total",
			Help: "Total completed synchronization passes.",
		}),
	}
}

func (h *Hooks) Hit(_ string, served layer.Kind) {
	h.lookups.WithLabelValues("hit", string(served)).Inc()
}

func (h *Hooks) Miss(string) {
	h.lookups.WithLabelValues("miss", "").Inc()
}

func (h *Hooks) PromotionFailed(_ string, target layer.Kind, _ error) {
	h.promotions.WithLabelValues(string(target)).Inc()
}

func (h *Hooks) LayerSetFailed(_ string, target layer.Kind, _ error) {
	h.setFailures.WithLabelValues(string(target)).Inc()
}

func (h *Hooks) LayerTimeout(op string, k layer.Kind) {
	h.timeouts.WithLabelValues(op, string(k)).Inc()
}

func (h *Hooks) DecodeFailed(_ string, k layer.Kind, reason string) {
	h.decodeErrors.WithLabelValues(string(k), reason).Inc()
}

func (h *Hooks) LockDegraded(string) {
	h.lockDegraded.Inc()
}

func (h *Hooks) SyncCompleted(_, repaired int, _ time.Duration) {
	h.syncPasses.Inc()
	h.syncRepairs.Add(float64(repaired))
}
