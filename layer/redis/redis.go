// Package redis implements the shared remote tier over a go-redis client,
// plus the token-based distributed lock used for cross-instance exclusion.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/stratacache/internal/util"
	"github.com/unkn0wn-root/stratacache/internal/wire"
	"github.com/unkn0wn-root/stratacache/layer"
)

var ErrNilClient = errors.New("redis layer: nil client")

// releaseScript deletes the lock key only when the caller still owns it.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

const lockPollInterval = 50 * time.Millisecond

// Layer wraps a shared Redis-compatible client. Entry keys live under
// "entry:<ns>:", lock keys under "lock:<ns>:"; external code must not write
// under these prefixes (foreign bytes fail wire validation and are deleted).
type Layer struct {
	rdb         goredis.UniversalClient
	ns          string
	defaultTTL  time.Duration
	closeClient bool

	hits   atomic.Uint64
	misses atomic.Uint64
}

var (
	_ layer.Layer          = (*Layer)(nil)
	_ layer.Locker         = (*Layer)(nil)
	_ layer.HealthReporter = (*Layer)(nil)
)

type Config struct {
	// Client is the shared connection. Required.
	Client goredis.UniversalClient
	// Namespace isolates this cache's keyspace. Required.
	Namespace string
	// DefaultTTL applies when a write carries no TTL; 0 => 10m.
	DefaultTTL time.Duration
	// CloseClient should be true only if this layer exclusively owns the client.
	CloseClient bool
}

func New(cfg Config) (*Layer, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	if cfg.Namespace == "" {
		return nil, errors.New("redis layer: namespace is required")
	}
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Layer{rdb: cfg.Client, ns: cfg.Namespace, defaultTTL: ttl, closeClient: cfg.CloseClient}, nil
}

func (l *Layer) Kind() layer.Kind { return layer.Remote }

func (l *Layer) Get(ctx context.Context, key string) (layer.Entry, bool, error) {
	b, err := l.rdb.Get(ctx, util.EntryKey(l.ns, key)).Bytes()
	if err == goredis.Nil {
		l.misses.Add(1)
		return layer.Entry{}, false, nil
	}
	if err != nil {
		return layer.Entry{}, false, err // transport/server error
	}
	e, err := wire.Decode(b)
	if err != nil {
		_ = l.rdb.Del(ctx, util.EntryKey(l.ns, key)).Err() // self-heal corrupt
		l.misses.Add(1)
		return layer.Entry{}, false, nil
	}
	l.hits.Add(1)
	return e, true, nil
}

func (l *Layer) Set(ctx context.Context, key string, e layer.Entry, opts layer.SetOptions) (bool, error) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = l.defaultTTL
	}
	if err := l.rdb.Set(ctx, util.EntryKey(l.ns, key), wire.Encode(e), ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Layer) Delete(ctx context.Context, key string) (bool, error) {
	n, err := l.rdb.Del(ctx, util.EntryKey(l.ns, key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear scans and deletes only this namespace's entry keys, never the whole
// database.
func (l *Layer) Clear(ctx context.Context) error {
	pattern := util.EntryKey(l.ns, "*")
	var cursor uint64
	for {
		keys, next, err := l.rdb.Scan(ctx, cursor, pattern, 256).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := l.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (l *Layer) Stats(ctx context.Context) (layer.Stats, error) {
	st := layer.Stats{
		Kind:   layer.Remote,
		Hits:   l.hits.Load(),
		Misses: l.misses.Load(),
	}
	pattern := util.EntryKey(l.ns, "*")
	var cursor uint64
	for {
		keys, next, err := l.rdb.Scan(ctx, cursor, pattern, 256).Result()
		if err != nil {
			return st, err
		}
		st.Size += len(keys)
		if next == 0 {
			return st, nil
		}
		cursor = next
	}
}

// AcquireLock takes the named lock with SET NX and a hold TTL, polling until
// acquired or waitTimeout elapses. ok=false means the wait timed out.
func (l *Layer) AcquireLock(ctx context.Context, resource string, holdTTL, waitTimeout time.Duration) (string, bool, error) {
	if holdTTL <= 0 {
		return "", false, errors.New("redis layer: hold TTL must be positive")
	}
	token := uuid.NewString()
	lockKey := util.LockKey(l.ns, resource)
	deadline := time.Now().Add(waitTimeout)

	for {
		ok, err := l.rdb.SetNX(ctx, lockKey, token, holdTTL).Result()
		if err != nil {
			return "", false, fmt.Errorf("acquire lock %q: %w", resource, err)
		}
		if ok {
			return token, true, nil
		}
		if waitTimeout <= 0 || time.Now().After(deadline) {
			return "", false, nil
		}
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// ReleaseLock frees the lock only if token still owns it; a lock stolen by
// TTL expiry is left alone.
func (l *Layer) ReleaseLock(ctx context.Context, resource, token string) error {
	return releaseScript.Run(ctx, l.rdb, []string{util.LockKey(l.ns, resource)}, token).Err()
}

func (l *Layer) Connected(ctx context.Context) bool {
	return l.rdb.Ping(ctx).Err() == nil
}

func (l *Layer) Health(ctx context.Context) layer.Health {
	start := time.Now()
	err := l.rdb.Ping(ctx).Err()
	h := layer.Health{Connected: err == nil, Latency: time.Since(start)}
	if err != nil {
		h.Err = err.Error()
	}
	return h
}

// Close releases the underlying client only when this layer owns it.
func (l *Layer) Close(context.Context) error {
	if l.closeClient {
		if err := l.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
