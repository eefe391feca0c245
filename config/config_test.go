package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/stratacache/layer"
)

func TestParseDefaults(t *testing.T) {
	e, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, []string{"memory"}, e.Layers)
	assert.Equal(t, "cache-aside", e.Strategy)
	assert.Equal(t, "version-based", e.ConflictResolution)
	assert.Equal(t, 30*time.Second, e.SyncInterval)
	assert.Equal(t, 2*time.Second, e.LayerTimeout)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("STRATACACHE_LAYERS", "memory,durable-structured")
	t.Setenv("STRATACACHE_STRATEGY", "memory-first")
	t.Setenv("STRATACACHE_MEMORY_CAPACITY", "7")
	t.Setenv("STRATACACHE_SYNC_INTERVAL", "5s")

	e, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, []string{"memory", "durable-structured"}, e.Layers)
	assert.Equal(t, "memory-first", e.Strategy)
	assert.Equal(t, 7, e.MemoryCapacity)
	assert.Equal(t, 5*time.Second, e.SyncInterval)
}

func TestBuildLayers(t *testing.T) {
	dir := t.TempDir()
	e := Env{
		Layers:           []string{"memory", "durable-structured", "durable-flat"},
		MemoryCapacity:   8,
		SQLitePath:       filepath.Join(dir, "cache.db"),
		SQLiteMaxEntries: 100,
		FlatDir:          filepath.Join(dir, "flat"),
		FlatPrefix:       "strata",
		FlatMaxEntries:   10,
	}
	layers, err := BuildLayers(e)
	require.NoError(t, err)
	require.Len(t, layers, 3)
	assert.Equal(t, layer.Memory, layers[0].Kind())
	assert.Equal(t, layer.DurableStructured, layers[1].Kind())
	assert.Equal(t, layer.DurableFlat, layers[2].Kind())
}

func TestBuildLayersValidation(t *testing.T) {
	_, err := BuildLayers(Env{Layers: []string{"bogus"}})
	require.Error(t, err)

	_, err = BuildLayers(Env{Layers: []string{"remote"}})
	require.Error(t, err, "remote without an address must fail")
}
