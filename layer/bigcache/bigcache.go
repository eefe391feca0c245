// Package bigcache adapts allegro/bigcache as an alternate in-process tier
// for custom strategy orders. Unlike the default memory tier it is bounded by
// byte size and a global life window, not by deterministic LRU, so use it
// where throughput matters more than exact eviction order.
package bigcache

import (
	"context"
	"sync/atomic"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/stratacache/internal/wire"
	"github.com/unkn0wn-root/stratacache/layer"
)

type Layer struct {
	c *bc.BigCache

	misses atomic.Uint64
	hits   atomic.Uint64
}

var _ layer.Layer = (*Layer)(nil)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(cfg Config) (*Layer, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &Layer{c: c}, nil
}

func (l *Layer) Kind() layer.Kind { return layer.Memory }

func (l *Layer) Get(_ context.Context, key string) (layer.Entry, bool, error) {
	b, err := l.c.Get(key)
	if err == bc.ErrEntryNotFound {
		l.misses.Add(1)
		return layer.Entry{}, false, nil
	}
	if err != nil {
		return layer.Entry{}, false, err
	}
	e, err := wire.Decode(b)
	if err != nil {
		_ = l.c.Delete(key) // self-heal
		l.misses.Add(1)
		return layer.Entry{}, false, nil
	}
	l.hits.Add(1)
	return e, true, nil
}

// Set ignores per-entry TTL; bigcache expires via its global LifeWindow.
func (l *Layer) Set(_ context.Context, key string, e layer.Entry, _ layer.SetOptions) (bool, error) {
	if err := l.c.Set(key, wire.Encode(e)); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Layer) Delete(_ context.Context, key string) (bool, error) {
	err := l.c.Delete(key)
	if err == bc.ErrEntryNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (l *Layer) Clear(context.Context) error { return l.c.Reset() }

func (l *Layer) Stats(context.Context) (layer.Stats, error) {
	return layer.Stats{
		Kind:   layer.Memory,
		Size:   l.c.Len(),
		Hits:   l.hits.Load(),
		Misses: l.misses.Load(),
	}, nil
}

func (l *Layer) Close(context.Context) error { return l.c.Close() }
