package ristretto

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/stratacache/layer"
)

func newTestLayer(t *testing.T) *Layer {
	t.Helper()
	l, err := New(Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64, Metrics: true})
	require.NoError(t, err)
	return l
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestRoundTripAndDelete(t *testing.T) {
	ctx := context.Background()
	l := newTestLayer(t)
	defer l.Close(ctx)

	in := layer.Entry{
		Payload:   []byte("payload"),
		Version:   5,
		Timestamp: 456,
		Origin:    layer.Memory,
		Meta:      layer.Metadata{NodeID: "n1"},
	}
	ok, err := l.Set(ctx, "k", in, layer.SetOptions{})
	require.NoError(t, err)
	require.True(t, ok)
	l.c.Wait() // flush the admission buffer before reading back

	got, ok, err := l.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in.Payload, got.Payload)
	assert.Equal(t, in.Version, got.Version)

	ok, err = l.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, _ = l.Get(ctx, "k")
	assert.False(t, ok)
}
