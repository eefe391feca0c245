package stratacache

import (
	"testing"

	"github.com/unkn0wn-root/stratacache/layer"
)

func kinds(layers []layer.Layer) []layer.Kind {
	out := make([]layer.Kind, len(layers))
	for i, l := range layers {
		out[i] = l.Kind()
	}
	return out
}

func TestProbeOrder(t *testing.T) {
	mem := newFakeLayer(layer.Memory)
	structured := newFakeLayer(layer.DurableStructured)
	flat := newFakeLayer(layer.DurableFlat)
	remote := newFakeRemote()
	configured := []layer.Layer{flat, remote, mem, structured}

	cases := []struct {
		strategy Strategy
		want     []layer.Kind
	}{
		{StrategyRedisFirst, []layer.Kind{layer.Remote, layer.Memory, layer.DurableStructured, layer.DurableFlat}},
		{StrategyMemoryFirst, []layer.Kind{layer.Memory, layer.DurableStructured, layer.DurableFlat, layer.Remote}},
		{StrategyCacheAside, []layer.Kind{layer.DurableFlat, layer.Remote, layer.Memory, layer.DurableStructured}},
		{StrategyWriteThrough, []layer.Kind{layer.DurableFlat, layer.Remote, layer.Memory, layer.DurableStructured}},
	}
	for _, tc := range cases {
		got := kinds(probeOrder(tc.strategy, configured))
		if len(got) != len(tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.strategy, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: got %v, want %v", tc.strategy, got, tc.want)
			}
		}
	}
}

func TestWriteTargets(t *testing.T) {
	mem := newFakeLayer(layer.Memory)
	structured := newFakeLayer(layer.DurableStructured)
	configured := []layer.Layer{mem, structured}

	if got := writeTargets(StrategyWriteBehind, configured); len(got) != 1 || got[0].Kind() != layer.Memory {
		t.Fatalf("write-behind targets = %v", kinds(got))
	}
	if got := writeTargets(StrategyWriteThrough, configured); len(got) != 2 {
		t.Fatalf("write-through targets = %v", kinds(got))
	}
	// write-behind with no memory tier falls back to full fan-out
	if got := writeTargets(StrategyWriteBehind, []layer.Layer{structured}); len(got) != 1 {
		t.Fatalf("write-behind fallback targets = %v", kinds(got))
	}
}

func TestNewerConflictModes(t *testing.T) {
	older := layer.Entry{Version: 5, Timestamp: 100}
	byVersion := layer.Entry{Version: 9, Timestamp: 50}
	byTime := layer.Entry{Version: 2, Timestamp: 200}

	if !newer(byVersion, older, ConflictVersionBased) {
		t.Fatal("version-based: higher version should win")
	}
	if newer(byTime, older, ConflictVersionBased) {
		t.Fatal("version-based: lower version should lose despite newer timestamp")
	}
	if !newer(byTime, older, ConflictLastWriteWins) {
		t.Fatal("last-write-wins: newer timestamp should win")
	}
	// equal versions fall back to timestamps
	a := layer.Entry{Version: 5, Timestamp: 300}
	if !newer(a, older, ConflictVersionBased) {
		t.Fatal("version tie: newer timestamp should win")
	}
}

func TestJournalBounded(t *testing.T) {
	j := newJournal(2)
	j.add("a")
	j.add("b")
	j.add("c") // evicts a
	j.add("b") // no-op duplicate

	got := j.snapshot()
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("snapshot = %v, want [b c]", got)
	}

	j.remove("b")
	if got := j.snapshot(); len(got) != 1 || got[0] != "c" {
		t.Fatalf("snapshot after remove = %v, want [c]", got)
	}

	j.add("d")
	j.reset()
	if got := j.snapshot(); len(got) != 0 {
		t.Fatalf("snapshot after reset = %v, want empty", got)
	}
}
