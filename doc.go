// Package stratacache unifies an in-process cache, per-device durable
// stores, and a shared remote cache behind one contract, applying a
// configurable read/write strategy across the tiers.
//
// Components:
//   - layer.Layer: one backing medium (memory LRU, SQLite, flat files,
//     Redis) with a uniform get/set/delete/clear/stats surface.
//   - codec.Codec[V]: (de)serializes V <-> []byte at the tier boundary.
//   - Orchestrator[V]: probes tiers in strategy order, back-fills read hits
//     into faster tiers, fans writes out per the write policy, and keeps
//     tiers loosely consistent via version stamps and a periodic sync pass.
//
// Every stored value travels inside a versioned envelope (layer.Entry)
// stamped with a per-node monotonic version, write timestamp, origin tier
// and writer metadata. Reconciliation picks winners by version stamp
// (or timestamp under last-write-wins).
//
// The remote tier additionally provides a token-based distributed lock:
//
//	err := cache.WithLock(ctx, "backup:acct-7", func(ctx context.Context) error {
//	    return runBackup(ctx)
//	}, 5*time.Second)
//
// Everything is fail-soft per tier: a tier that errors or times out is a
// miss (reads) or a skipped write; only CacheAside fetch failures and lock
// acquisition failures surface as hard errors.
package stratacache
