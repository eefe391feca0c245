package stratacache

import (
	"time"

	"github.com/unkn0wn-root/stratacache/layer"
)

// Hooks are lightweight callbacks for high-signal events. Implementations
// MUST be cheap and non-blocking; the orchestrator calls them on hot paths.
// Wrap with hooks/async to fan out to slower sinks.
type Hooks interface {
	// A read was served, and by which tier.
	Hit(key string, served layer.Kind)

	// No tier had the key.
	Miss(key string)

	// Back-filling a read hit into a faster tier failed.
	PromotionFailed(key string, target layer.Kind, err error)

	// One tier failed or refused a write during fan-out.
	LayerSetFailed(key string, target layer.Kind, err error)

	// A tier call failed or exceeded the per-call timeout and was treated
	// as a miss/failed write. op ∈ {"get", "set", "delete", "clear", "stats"}.
	LayerTimeout(op string, k layer.Kind)

	// A stored entry failed codec decoding and was dropped. Envelope
	// corruption never reaches this hook; tiers self-heal it and report
	// a plain miss. reason is "value_decode".
	DecodeFailed(key string, k layer.Kind, reason string)

	// WithLock ran without a remote tier: no cross-instance exclusion.
	LockDegraded(resource string)

	// One synchronization pass finished.
	SyncCompleted(scanned, repaired int, took time.Duration)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) Hit(string, layer.Kind)                       {}
func (NopHooks) Miss(string)                                  {}
func (NopHooks) PromotionFailed(string, layer.Kind, error)    {}
func (NopHooks) LayerSetFailed(string, layer.Kind, error)     {}
func (NopHooks) LayerTimeout(string, layer.Kind)              {}
func (NopHooks) DecodeFailed(string, layer.Kind, string)      {}
func (NopHooks) LockDegraded(string)                          {}
func (NopHooks) SyncCompleted(int, int, time.Duration)        {}
