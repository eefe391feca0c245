package flatfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/stratacache/layer"
)

func entry(payload string, ts int64) layer.Entry {
	return layer.Entry{
		Payload:   []byte(payload),
		Version:   uint64(ts),
		Timestamp: ts,
		Origin:    layer.DurableFlat,
		Meta:      layer.Metadata{NodeID: "test-node"},
	}
}

func newTestLayer(t *testing.T, maxEntries int) *Layer {
	t.Helper()
	l, err := New(Config{Dir: t.TempDir(), Prefix: "strata", MaxEntries: maxEntries})
	require.NoError(t, err)
	return l
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Config{Dir: "", Prefix: "p"})
	require.Error(t, err)
	_, err = New(Config{Dir: t.TempDir(), Prefix: ""})
	require.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := newTestLayer(t, 0)

	in := entry("hello", 100)
	ok, err := l.Set(ctx, "k", in, layer.SetOptions{})
	require.NoError(t, err)
	require.True(t, ok)

	got, ok, err := l.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in.Payload, got.Payload)
	assert.Equal(t, in.Version, got.Version)
	assert.Equal(t, "test-node", got.Meta.NodeID)
}

func TestMissAndDelete(t *testing.T) {
	ctx := context.Background()
	l := newTestLayer(t, 0)

	_, ok, err := l.Get(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Delete(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _ = l.Set(ctx, "k", entry("v", 1), layer.SetOptions{})
	ok, err = l.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, _ = l.Get(ctx, "k")
	assert.False(t, ok)
}

// TestEvictsSmallestTimestamp: the bounded tier drops the entry with the
// oldest stored timestamp, regardless of insertion order.
func TestEvictsSmallestTimestamp(t *testing.T) {
	ctx := context.Background()
	l := newTestLayer(t, 2)

	_, _ = l.Set(ctx, "newer", entry("v", 300), layer.SetOptions{})
	_, _ = l.Set(ctx, "oldest", entry("v", 100), layer.SetOptions{})
	_, _ = l.Set(ctx, "mid", entry("v", 200), layer.SetOptions{}) // evicts "oldest"

	_, ok, _ := l.Get(ctx, "oldest")
	assert.False(t, ok, "oldest-timestamp entry evicted")
	_, ok, _ = l.Get(ctx, "newer")
	assert.True(t, ok)
	_, ok, _ = l.Get(ctx, "mid")
	assert.True(t, ok)

	st, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Size)
	assert.Equal(t, uint64(1), st.Evictions)
}

func TestOverwriteDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	l := newTestLayer(t, 2)

	_, _ = l.Set(ctx, "a", entry("v1", 100), layer.SetOptions{})
	_, _ = l.Set(ctx, "b", entry("v1", 200), layer.SetOptions{})
	_, _ = l.Set(ctx, "a", entry("v2", 300), layer.SetOptions{})

	st, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Size)
	assert.Equal(t, uint64(0), st.Evictions)
}

// TestPrefixIsolation: Clear and Stats only touch files carrying this
// layer's prefix.
func TestPrefixIsolation(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a, err := New(Config{Dir: dir, Prefix: "alpha"})
	require.NoError(t, err)
	b, err := New(Config{Dir: dir, Prefix: "beta"})
	require.NoError(t, err)

	_, _ = a.Set(ctx, "k", entry("va", 1), layer.SetOptions{})
	_, _ = b.Set(ctx, "k", entry("vb", 1), layer.SetOptions{})

	require.NoError(t, a.Clear(ctx))

	_, ok, _ := a.Get(ctx, "k")
	assert.False(t, ok)
	got, ok, _ := b.Get(ctx, "k")
	require.True(t, ok, "other prefix untouched by Clear")
	assert.Equal(t, []byte("vb"), got.Payload)
}

// TestCorruptFileSelfHeals: unreadable bytes on disk are treated as a miss
// and the file is removed.
func TestCorruptFileSelfHeals(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	l, err := New(Config{Dir: dir, Prefix: "strata"})
	require.NoError(t, err)

	_, _ = l.Set(ctx, "k", entry("v", 1), layer.SetOptions{})
	require.NoError(t, os.WriteFile(l.path("k"), []byte("garbage"), 0o644))

	_, ok, err := l.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	names, err := filepath.Glob(filepath.Join(dir, "strata-*"))
	require.NoError(t, err)
	assert.Empty(t, names, "corrupt file removed")
}

func TestSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	l, err := New(Config{Dir: dir, Prefix: "strata"})
	require.NoError(t, err)
	_, _ = l.Set(ctx, "k", entry("persisted", time.Now().UnixMilli()), layer.SetOptions{})

	reopened, err := New(Config{Dir: dir, Prefix: "strata"})
	require.NoError(t, err)
	got, ok, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("persisted"), got.Payload)
}
