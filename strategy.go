package stratacache

import "github.com/unkn0wn-root/stratacache/layer"

// Strategy selects the read-probe order and the write fan-out policy.
type Strategy string

const (
	// StrategyRedisFirst probes remote -> memory -> durable-structured ->
	// durable-flat; writes fan out to every tier.
	StrategyRedisFirst Strategy = "redis-first"

	// StrategyMemoryFirst probes memory -> durable-structured ->
	// durable-flat -> remote; writes fan out to every tier.
	StrategyMemoryFirst Strategy = "memory-first"

	// StrategyWriteThrough probes in configured order; writes fan out to
	// every tier synchronously.
	StrategyWriteThrough Strategy = "write-through"

	// StrategyWriteBehind probes in configured order; writes land only on
	// memory tiers and the sync pass propagates them outward.
	StrategyWriteBehind Strategy = "write-behind"

	// StrategyCacheAside probes in configured order; writes fan out to
	// every tier. This is the default.
	StrategyCacheAside Strategy = "cache-aside"
)

// ConflictMode decides which copy of a key wins during reconciliation.
type ConflictMode string

const (
	// ConflictVersionBased compares version stamps; timestamps break ties.
	// This is the default.
	ConflictVersionBased ConflictMode = "version-based"

	// ConflictLastWriteWins compares write timestamps only.
	ConflictLastWriteWins ConflictMode = "last-write-wins"
)

// probeOrder returns the tiers to try on read, fastest-preferred for the
// given strategy. Strategies without a fixed order probe the configured list
// as given.
func probeOrder(s Strategy, layers []layer.Layer) []layer.Layer {
	switch s {
	case StrategyRedisFirst:
		return orderByKinds(layers, layer.Remote, layer.Memory, layer.DurableStructured, layer.DurableFlat)
	case StrategyMemoryFirst:
		return orderByKinds(layers, layer.Memory, layer.DurableStructured, layer.DurableFlat, layer.Remote)
	default:
		return layers
	}
}

// writeTargets returns the tiers a write fans out to. Only write-behind
// narrows the set; every other strategy writes everywhere.
func writeTargets(s Strategy, layers []layer.Layer) []layer.Layer {
	if s != StrategyWriteBehind {
		return layers
	}
	var mem []layer.Layer
	for _, l := range layers {
		if l.Kind() == layer.Memory {
			mem = append(mem, l)
		}
	}
	if len(mem) == 0 {
		// no memory tier to absorb the write; degrade to full fan-out
		return layers
	}
	return mem
}

func orderByKinds(layers []layer.Layer, kinds ...layer.Kind) []layer.Layer {
	out := make([]layer.Layer, 0, len(layers))
	seen := make(map[layer.Layer]bool, len(layers))
	for _, k := range kinds {
		for _, l := range layers {
			if l.Kind() == k && !seen[l] {
				out = append(out, l)
				seen[l] = true
			}
		}
	}
	// unknown kinds keep their configured position at the end
	for _, l := range layers {
		if !seen[l] {
			out = append(out, l)
		}
	}
	return out
}

// newer reports whether a should replace b under the given conflict mode.
func newer(a, b layer.Entry, mode ConflictMode) bool {
	if mode == ConflictLastWriteWins {
		return a.Timestamp > b.Timestamp
	}
	if a.Version != b.Version {
		return a.Version > b.Version
	}
	return a.Timestamp > b.Timestamp
}
