// Package layer defines the uniform tier abstraction used by stratacache.
//
// A Layer is one backing medium (in-process memory, a per-device durable
// store, or a shared remote cache) exposing the same get/set/delete/clear
// surface regardless of what sits behind it. Implementations store fully
// framed entries: the codec-encoded payload travels inside an Entry envelope
// that carries the version stamp, write timestamp, origin tier and metadata.
//
// Implementations MUST be safe for concurrent use and MUST return the entry
// exactly as it was written (no mutation of payload bytes or metadata).
// I/O failures are returned as errors; the orchestrator maps them to misses
// or skipped writes, so implementations should never panic on bad input.
package layer

import (
	"context"
	"time"
)

// Kind names one backing medium.
type Kind string

const (
	Memory            Kind = "memory"
	DurableStructured Kind = "durable-structured"
	DurableFlat       Kind = "durable-flat"
	Remote            Kind = "remote"
)

// Metadata travels with every entry and attributes it to a writer.
// NodeID identifies the process instance that produced the entry and is
// fixed for that instance's lifetime.
type Metadata struct {
	UserID       string
	NodeID       string
	Tags         []string
	Dependencies []string
}

// Entry is the versioned envelope stored in every layer.
// Payload holds codec-encoded value bytes; Version is monotonically
// non-decreasing for writes to the same key from the same node.
type Entry struct {
	Payload   []byte
	Version   uint64
	Timestamp int64 // unix milliseconds at write time
	Origin    Kind
	Meta      Metadata
}

// SetOptions tune a single write. TTL <= 0 means the layer's default
// (or no expiry where the medium has none).
type SetOptions struct {
	TTL time.Duration
}

// Stats is a point-in-time snapshot of one layer.
type Stats struct {
	Kind      Kind
	Size      int
	Capacity  int // 0 = unbounded
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Layer is the uniform tier contract.
type Layer interface {
	// Kind reports which medium backs this layer.
	Kind() Kind

	// Get returns (entry, true, nil) on hit; (zero, false, nil) on miss.
	// I/O or decode failures return (zero, false, err).
	Get(ctx context.Context, key string) (Entry, bool, error)

	// Set stores the entry. ok=false with nil error means the store
	// refused the write under pressure (admission policies etc.).
	Set(ctx context.Context, key string, e Entry, opts SetOptions) (bool, error)

	// Delete removes a key and reports whether an entry was present.
	Delete(ctx context.Context, key string) (bool, error)

	// Clear drops every entry owned by this layer.
	Clear(ctx context.Context) error

	// Stats snapshots current occupancy and counters.
	Stats(ctx context.Context) (Stats, error)

	// Close releases resources.
	Close(ctx context.Context) error
}

// Locker is implemented by layers that can arbitrate cross-instance
// critical sections (in practice: the remote layer). AcquireLock polls
// until the lock is held or waitTimeout elapses; ok=false means the wait
// timed out without the lock. The returned token is required to release.
type Locker interface {
	AcquireLock(ctx context.Context, resource string, holdTTL, waitTimeout time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, resource, token string) error
}

// Health describes remote-layer connectivity for observability surfaces.
type Health struct {
	Connected bool
	Latency   time.Duration
	Err       string
}

// HealthReporter is implemented by layers with a network dependency.
type HealthReporter interface {
	Connected(ctx context.Context) bool
	Health(ctx context.Context) Health
}
