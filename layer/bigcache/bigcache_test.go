package bigcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/stratacache/layer"
)

func TestRoundTripAndDelete(t *testing.T) {
	ctx := context.Background()
	l, err := New(Config{LifeWindow: time.Minute})
	require.NoError(t, err)
	defer l.Close(ctx)

	in := layer.Entry{
		Payload:   []byte("payload"),
		Version:   3,
		Timestamp: 123,
		Origin:    layer.Memory,
		Meta:      layer.Metadata{NodeID: "n1", Tags: []string{"a"}},
	}
	ok, err := l.Set(ctx, "k", in, layer.SetOptions{})
	require.NoError(t, err)
	require.True(t, ok)

	got, ok, err := l.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in.Payload, got.Payload)
	assert.Equal(t, in.Version, got.Version)
	assert.Equal(t, in.Meta.Tags, got.Meta.Tags)

	ok, err = l.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, _ = l.Get(ctx, "k")
	assert.False(t, ok)

	ok, err = l.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClearAndStats(t *testing.T) {
	ctx := context.Background()
	l, err := New(Config{LifeWindow: time.Minute})
	require.NoError(t, err)
	defer l.Close(ctx)

	_, _ = l.Set(ctx, "a", layer.Entry{Payload: []byte("x"), Origin: layer.Memory}, layer.SetOptions{})
	_, _ = l.Set(ctx, "b", layer.Entry{Payload: []byte("y"), Origin: layer.Memory}, layer.SetOptions{})

	st, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Size)

	require.NoError(t, l.Clear(ctx))
	st, _ = l.Stats(ctx)
	assert.Equal(t, 0, st.Size)
}
