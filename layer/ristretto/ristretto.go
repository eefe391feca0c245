// Package ristretto adapts dgraph-io/ristretto as an alternate in-process
// tier for custom strategy orders. Admission is sampled, so writes may be
// dropped under pressure (Set reports ok=false); use the default memory tier
// when deterministic LRU retention is required.
package ristretto

import (
	"context"
	"errors"
	"sync/atomic"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/stratacache/internal/wire"
	"github.com/unkn0wn-root/stratacache/layer"
)

type Layer struct {
	c *rc.Cache

	hits   atomic.Uint64
	misses atomic.Uint64
}

var _ layer.Layer = (*Layer)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

func New(cfg Config) (*Layer, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Layer{c: c}, nil
}

func (l *Layer) Kind() layer.Kind { return layer.Memory }

func (l *Layer) Get(_ context.Context, key string) (layer.Entry, bool, error) {
	v, ok := l.c.Get(key)
	if !ok {
		l.misses.Add(1)
		return layer.Entry{}, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		l.c.Del(key)
		l.misses.Add(1)
		return layer.Entry{}, false, nil
	}
	e, err := wire.Decode(b)
	if err != nil {
		l.c.Del(key)
		l.misses.Add(1)
		return layer.Entry{}, false, nil
	}
	l.hits.Add(1)
	return e, true, nil
}

func (l *Layer) Set(_ context.Context, key string, e layer.Entry, opts layer.SetOptions) (bool, error) {
	b := wire.Encode(e)
	return l.c.SetWithTTL(key, b, int64(len(b)), opts.TTL), nil
}

func (l *Layer) Delete(_ context.Context, key string) (bool, error) {
	_, present := l.c.Get(key)
	l.c.Del(key)
	return present, nil
}

func (l *Layer) Clear(context.Context) error {
	l.c.Clear()
	return nil
}

func (l *Layer) Stats(context.Context) (layer.Stats, error) {
	st := layer.Stats{Kind: layer.Memory, Hits: l.hits.Load(), Misses: l.misses.Load()}
	if m := l.c.Metrics; m != nil {
		st.Size = int(m.KeysAdded() - m.KeysEvicted())
		st.Evictions = m.KeysEvicted()
	}
	return st, nil
}

func (l *Layer) Close(context.Context) error {
	l.c.Wait()
	l.c.Close()
	return nil
}
