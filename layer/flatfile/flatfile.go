// Package flatfile implements the durable-flat tier: one wire-framed file
// per key inside a directory, filenames scoped by a configured prefix.
// The tier is bounded by entry count; eviction removes the file whose stored
// entry timestamp is smallest among files carrying the prefix.
package flatfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/stratacache/internal/util"
	"github.com/unkn0wn-root/stratacache/internal/wire"
	"github.com/unkn0wn-root/stratacache/layer"
)

const fileExt = ".sce" // stratacache entry

// Layer stores each entry as <dir>/<prefix>-<keyhash>.sce. Writes go through
// a temp file and rename so readers never observe a torn entry.
type Layer struct {
	mu         sync.Mutex
	dir        string
	prefix     string
	maxEntries int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

var _ layer.Layer = (*Layer)(nil)

type Config struct {
	// Dir is the backing directory; created if missing. Required.
	Dir string
	// Prefix scopes this layer's files inside Dir. Required.
	Prefix string
	// MaxEntries bounds the file count; 0 means unbounded.
	MaxEntries int
}

func New(cfg Config) (*Layer, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("flatfile: dir is required")
	}
	if strings.TrimSpace(cfg.Prefix) == "" {
		return nil, errors.New("flatfile: prefix is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("flatfile: create dir: %w", err)
	}
	return &Layer{dir: filepath.Clean(cfg.Dir), prefix: cfg.Prefix, maxEntries: cfg.MaxEntries}, nil
}

func (l *Layer) Kind() layer.Kind { return layer.DurableFlat }

func (l *Layer) path(key string) string {
	return filepath.Join(l.dir, l.prefix+"-"+util.FileStem(key)+fileExt)
}

func (l *Layer) Get(ctx context.Context, key string) (layer.Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return layer.Entry{}, false, err
	}
	b, err := os.ReadFile(l.path(key))
	if errors.Is(err, os.ErrNotExist) {
		l.misses.Add(1)
		return layer.Entry{}, false, nil
	}
	if err != nil {
		return layer.Entry{}, false, fmt.Errorf("flatfile: read: %w", err)
	}
	e, err := wire.Decode(b)
	if err != nil {
		_ = os.Remove(l.path(key)) // self-heal corrupt file
		l.misses.Add(1)
		return layer.Entry{}, false, nil
	}
	l.hits.Add(1)
	return e, true, nil
}

func (l *Layer) Set(ctx context.Context, key string, e layer.Entry, _ layer.SetOptions) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	dst := l.path(key)
	if l.maxEntries > 0 {
		exists := false
		if _, err := os.Stat(dst); err == nil {
			exists = true
		}
		if !exists {
			if err := l.evictDown(l.maxEntries - 1); err != nil {
				return false, err
			}
		}
	}

	tmp, err := os.CreateTemp(l.dir, l.prefix+"-*.tmp")
	if err != nil {
		return false, fmt.Errorf("flatfile: temp file: %w", err)
	}
	if _, err := tmp.Write(wire.Encode(e)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return false, fmt.Errorf("flatfile: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return false, fmt.Errorf("flatfile: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return false, fmt.Errorf("flatfile: rename: %w", err)
	}
	return true, nil
}

// evictDown removes oldest-timestamp files until at most n prefixed entries
// remain. Caller holds l.mu.
func (l *Layer) evictDown(n int) error {
	names, err := l.entryFiles()
	if err != nil {
		return err
	}
	for len(names) > n {
		oldestIdx := -1
		var oldestTS int64
		for i, name := range names {
			b, err := os.ReadFile(filepath.Join(l.dir, name))
			if err != nil {
				continue
			}
			ts, err := wire.PeekTimestamp(b)
			if err != nil {
				// corrupt file counts as oldest; drop it first
				ts = -1
			}
			if oldestIdx == -1 || ts < oldestTS {
				oldestIdx, oldestTS = i, ts
			}
		}
		if oldestIdx == -1 {
			return nil
		}
		if err := os.Remove(filepath.Join(l.dir, names[oldestIdx])); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("flatfile: evict: %w", err)
		}
		l.evictions.Add(1)
		names = append(names[:oldestIdx], names[oldestIdx+1:]...)
	}
	return nil
}

func (l *Layer) entryFiles() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("flatfile: read dir: %w", err)
	}
	var names []string
	for _, de := range entries {
		name := de.Name()
		if !de.IsDir() && strings.HasPrefix(name, l.prefix+"-") && strings.HasSuffix(name, fileExt) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (l *Layer) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := os.Remove(l.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("flatfile: delete: %w", err)
	}
	return true, nil
}

func (l *Layer) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	names, err := l.entryFiles()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(l.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("flatfile: clear: %w", err)
		}
	}
	return nil
}

func (l *Layer) Stats(ctx context.Context) (layer.Stats, error) {
	st := layer.Stats{
		Kind:      layer.DurableFlat,
		Capacity:  l.maxEntries,
		Hits:      l.hits.Load(),
		Misses:    l.misses.Load(),
		Evictions: l.evictions.Load(),
	}
	if err := ctx.Err(); err != nil {
		return st, err
	}
	names, err := l.entryFiles()
	if err != nil {
		return st, err
	}
	st.Size = len(names)
	return st, nil
}

func (l *Layer) Close(context.Context) error { return nil }
