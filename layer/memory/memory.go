// Package memory implements the in-process cache tier: a fixed-capacity map
// with least-recently-used eviction ordered by logical access, not wall clock.
package memory

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/unkn0wn-root/stratacache/layer"
)

type item struct {
	key   string
	entry layer.Entry
	exp   time.Time // zero => no TTL
}

// Layer is a bounded LRU. Get promotes the hit key to most-recently-used;
// Set at capacity evicts the least-recently-used key. Safe for concurrent use.
type Layer struct {
	mu  sync.Mutex
	cap int
	ll  *list.List // front = most recently used
	idx map[string]*list.Element

	hits      uint64
	misses    uint64
	evictions uint64
}

var _ layer.Layer = (*Layer)(nil)

type Config struct {
	Capacity int // required, > 0
}

func New(cfg Config) (*Layer, error) {
	if cfg.Capacity <= 0 {
		return nil, errors.New("memory: capacity must be positive")
	}
	return &Layer{
		cap: cfg.Capacity,
		ll:  list.New(),
		idx: make(map[string]*list.Element, cfg.Capacity),
	}, nil
}

func (l *Layer) Kind() layer.Kind { return layer.Memory }

func (l *Layer) Get(_ context.Context, key string) (layer.Entry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	el, ok := l.idx[key]
	if !ok {
		l.misses++
		return layer.Entry{}, false, nil
	}
	it := el.Value.(*item)
	if !it.exp.IsZero() && time.Now().After(it.exp) {
		l.ll.Remove(el)
		delete(l.idx, key)
		l.misses++
		return layer.Entry{}, false, nil
	}
	l.ll.MoveToFront(el)
	l.hits++
	return it.entry, true, nil
}

func (l *Layer) Set(_ context.Context, key string, e layer.Entry, opts layer.SetOptions) (bool, error) {
	var exp time.Time
	if opts.TTL > 0 {
		exp = time.Now().Add(opts.TTL)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if el, ok := l.idx[key]; ok {
		it := el.Value.(*item)
		it.entry = e
		it.exp = exp
		l.ll.MoveToFront(el)
		return true, nil
	}
	if l.ll.Len() >= l.cap {
		oldest := l.ll.Back()
		if oldest != nil {
			l.ll.Remove(oldest)
			delete(l.idx, oldest.Value.(*item).key)
			l.evictions++
		}
	}
	l.idx[key] = l.ll.PushFront(&item{key: key, entry: e, exp: exp})
	return true, nil
}

func (l *Layer) Delete(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	el, ok := l.idx[key]
	if !ok {
		return false, nil
	}
	l.ll.Remove(el)
	delete(l.idx, key)
	return true, nil
}

func (l *Layer) Clear(context.Context) error {
	l.mu.Lock()
	l.ll.Init()
	l.idx = make(map[string]*list.Element, l.cap)
	l.mu.Unlock()
	return nil
}

func (l *Layer) Stats(context.Context) (layer.Stats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return layer.Stats{
		Kind:      layer.Memory,
		Size:      l.ll.Len(),
		Capacity:  l.cap,
		Hits:      l.hits,
		Misses:    l.misses,
		Evictions: l.evictions,
	}, nil
}

func (l *Layer) Close(context.Context) error { return nil }
