package stratacache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/stratacache/codec"
	"github.com/unkn0wn-root/stratacache/layer"
)

// Orchestrator is the high-level multi-tier cache API. V is the caller's
// value type; serialization is handled by a pluggable Codec[V] so values
// keep their type across heterogeneous tiers.
//
// All operations are fail-soft at per-tier granularity: a tier that errors
// or times out is treated as a miss (reads) or a skipped write, never
// surfaced to the caller. Only CacheAside's fetch and WithLock's acquisition
// propagate hard errors, since both are the caller's only path to a value.
type Orchestrator[V any] interface {
	// Get probes tiers in strategy order and returns the first hit,
	// back-filling it into every faster tier before returning.
	Get(ctx context.Context, key string) (v V, ok bool, err error)

	// Set writes a freshly versioned entry to the tiers selected by the
	// write policy. ok=true when at least one tier accepted the write.
	Set(ctx context.Context, key string, value V, opts WriteOptions) (ok bool, err error)

	// Delete removes the key from every tier; ok=true when at least one
	// tier confirmed the removal.
	Delete(ctx context.Context, key string) (ok bool, err error)

	// Clear drops every tier's contents; per-tier failures are logged.
	Clear(ctx context.Context) error

	// CacheAside returns the cached value or, on miss, invokes fetch,
	// caches the result and returns it. Concurrent fetches for the same
	// key are deduplicated. Fetch errors propagate verbatim.
	CacheAside(ctx context.Context, key string, fetch func(ctx context.Context) (V, error), opts WriteOptions) (V, error)

	// WithLock runs op under the named distributed lock. waitTimeout
	// bounds the wait for acquisition; the hold TTL is Options.LockTTL.
	// The lock is always released when op returns, error or not. Without
	// a remote tier, op runs with NO cross-instance exclusion (logged).
	WithLock(ctx context.Context, resource string, op func(ctx context.Context) error, waitTimeout time.Duration) error

	// Stats aggregates per-tier snapshots, remote health and the
	// orchestrator configuration.
	Stats(ctx context.Context) Stats

	// NodeID identifies this instance; stamped into entry metadata.
	NodeID() string

	// Close stops the sync loop and closes every tier.
	Close(ctx context.Context) error
}

// WriteOptions carry per-write metadata and an optional TTL (honored by
// tiers that support expiry).
type WriteOptions struct {
	UserID       string
	Tags         []string
	Dependencies []string
	TTL          time.Duration
}

// Stats is the aggregate observability snapshot.
type Stats struct {
	NodeID             string
	Strategy           Strategy
	ConflictResolution ConflictMode
	SyncInterval       time.Duration
	Layers             []layer.Stats
	RemoteHealth       *layer.Health // nil when no remote tier is configured
}

// Options tune the orchestrator. Layers and Codec are required; everything
// else has defaults.
type Options[V any] struct {
	// Layers in configured order; the order doubles as the probe order for
	// strategies without a fixed one. Required, at least one.
	Layers []layer.Layer
	// Codec encodes values at the tier boundary. Required.
	Codec c.Codec[V]

	// Strategy defaults to cache-aside (probe configured order, write
	// everywhere).
	Strategy Strategy
	// ConflictResolution defaults to version-based. A field-level merge
	// mode is not supported: it cannot be defined generically over V.
	ConflictResolution ConflictMode

	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks

	// SyncInterval enables the background reconciliation pass; 0 disables
	// it. Passes never overlap even when one outlasts the interval.
	SyncInterval time.Duration
	// LayerTimeout bounds every individual tier call; 0 => 2s. A timed-out
	// call counts as a miss or failed write for that tier only.
	LayerTimeout time.Duration
	// LockTTL is the fixed hold TTL for distributed locks; 0 => 30s.
	LockTTL time.Duration
	// JournalLimit caps how many keys the sync pass tracks; 0 => 4096.
	JournalLimit int

	// Disabled short-circuits every operation (reads miss, writes no-op).
	Disabled bool
}

// New builds an orchestrator. The caller constructs it once at application
// start and passes it to consumers explicitly; there is no process-global
// instance.
func New[V any](opts Options[V]) (Orchestrator[V], error) {
	return newOrchestrator[V](opts)
}
