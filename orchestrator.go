package stratacache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	c "github.com/unkn0wn-root/stratacache/codec"
	"github.com/unkn0wn-root/stratacache/layer"
)

const (
	defaultLayerTimeout = 2 * time.Second
	defaultLockTTL      = 30 * time.Second
	defaultJournalLimit = 4096
)

type orchestrator[V any] struct {
	layers   []layer.Layer
	codec    c.Codec[V]
	strategy Strategy
	conflict ConflictMode
	log      Logger
	hooks    Hooks
	enabled  bool

	nodeID       string
	clock        versionClock
	journal      *journal
	flight       singleflight.Group
	layerTimeout time.Duration
	lockTTL      time.Duration
	syncInterval time.Duration

	// sync loop
	syncBusy  atomic.Bool
	ticker    *time.Ticker
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newOrchestrator[V any](opts Options[V]) (*orchestrator[V], error) {
	if len(opts.Layers) == 0 {
		return nil, fmt.Errorf("stratacache: at least one layer is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("stratacache: codec is required")
	}
	switch opts.ConflictResolution {
	case "", ConflictVersionBased, ConflictLastWriteWins:
	default:
		return nil, fmt.Errorf("stratacache: unsupported conflict resolution %q", opts.ConflictResolution)
	}

	o := &orchestrator[V]{
		layers:   opts.Layers,
		codec:    opts.Codec,
		strategy: coalesce[Strategy](opts.Strategy, StrategyCacheAside),
		conflict: coalesce[ConflictMode](opts.ConflictResolution, ConflictVersionBased),
		enabled:  !opts.Disabled,
		nodeID:   uuid.NewString(),
	}

	// defaults
	o.log = coalesce[Logger](opts.Logger, NopLogger{})
	o.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	o.layerTimeout = coalesce[time.Duration](opts.LayerTimeout, defaultLayerTimeout)
	o.lockTTL = coalesce[time.Duration](opts.LockTTL, defaultLockTTL)
	o.syncInterval = opts.SyncInterval
	o.journal = newJournal(coalesce[int](opts.JournalLimit, defaultJournalLimit))

	if o.syncInterval > 0 {
		o.ticker = time.NewTicker(o.syncInterval)
		o.stopCh = make(chan struct{})
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-o.ticker.C:
					o.syncTick()
				case <-o.stopCh:
					return
				}
			}
		}()
	}
	return o, nil
}

func (o *orchestrator[V]) NodeID() string { return o.nodeID }

func (o *orchestrator[V]) Close(ctx context.Context) error {
	var err error
	o.closeOnce.Do(func() {
		if o.stopCh != nil {
			close(o.stopCh)
			o.ticker.Stop()
			o.wg.Wait()
		}
		for _, l := range o.layers {
			if cerr := l.Close(ctx); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}

func (o *orchestrator[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if !o.enabled {
		return zero, false, nil
	}
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}

	order := probeOrder(o.strategy, o.layers)
	for i, l := range order {
		e, ok := o.layerGet(ctx, l, key)
		if !ok {
			continue
		}
		v, err := o.codec.Decode(e.Payload)
		if err != nil {
			// stored bytes don't decode as V anymore; drop and keep probing
			o.hooks.DecodeFailed(key, l.Kind(), "value_decode")
			o.log.Debug("dropping undecodable entry", Fields{"key": key, "layer": l.Kind(), "err": err})
			o.layerDelete(ctx, l, key)
			continue
		}
		o.promote(ctx, key, e, order[:i])
		o.hooks.Hit(key, l.Kind())
		return v, true, nil
	}
	o.hooks.Miss(key)
	return zero, false, nil
}

// promote back-fills a hit into every tier probed before the serving one.
// The entry keeps its version; promotion copies, it does not rewrite.
func (o *orchestrator[V]) promote(ctx context.Context, key string, e layer.Entry, ahead []layer.Layer) {
	for _, l := range ahead {
		if ok, err := o.layerSet(ctx, l, key, e, layer.SetOptions{}); err != nil || !ok {
			o.hooks.PromotionFailed(key, l.Kind(), err)
			o.log.Debug("promotion failed", Fields{"key": key, "layer": l.Kind(), "err": err})
		}
	}
}

func (o *orchestrator[V]) Set(ctx context.Context, key string, value V, opts WriteOptions) (bool, error) {
	if !o.enabled {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	payload, err := o.codec.Encode(value)
	if err != nil {
		return false, fmt.Errorf("stratacache: encode %q: %w", key, err)
	}
	e := layer.Entry{
		Payload:   payload,
		Version:   o.clock.next(),
		Timestamp: time.Now().UnixMilli(),
		Origin:    o.preferredWriteLayer(),
		Meta: layer.Metadata{
			UserID:       opts.UserID,
			NodeID:       o.nodeID,
			Tags:         opts.Tags,
			Dependencies: opts.Dependencies,
		},
	}

	var anyOK bool
	for _, l := range writeTargets(o.strategy, o.layers) {
		ok, err := o.layerSet(ctx, l, key, e, layer.SetOptions{TTL: opts.TTL})
		if err != nil || !ok {
			o.hooks.LayerSetFailed(key, l.Kind(), err)
			o.log.Warn("layer write failed", Fields{"key": key, "layer": l.Kind(), "err": err})
			continue
		}
		anyOK = true
	}
	if anyOK {
		o.journal.add(key)
	}
	return anyOK, nil
}

// preferredWriteLayer picks the origin tier recorded in new entries:
// remote when configured, else memory, else the first durable tier.
func (o *orchestrator[V]) preferredWriteLayer() layer.Kind {
	for _, k := range []layer.Kind{layer.Remote, layer.Memory} {
		for _, l := range o.layers {
			if l.Kind() == k {
				return k
			}
		}
	}
	return o.layers[0].Kind()
}

func (o *orchestrator[V]) Delete(ctx context.Context, key string) (bool, error) {
	if !o.enabled {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var anyOK bool
	for _, l := range o.layers {
		if o.layerDelete(ctx, l, key) {
			anyOK = true
		}
	}
	o.journal.remove(key)
	return anyOK, nil
}

func (o *orchestrator[V]) Clear(ctx context.Context) error {
	if !o.enabled {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, l := range o.layers {
		cctx, cancel := context.WithTimeout(ctx, o.layerTimeout)
		err := l.Clear(cctx)
		cancel()
		if err != nil {
			o.log.Warn("layer clear failed", Fields{"layer": l.Kind(), "err": err})
		}
	}
	o.journal.reset()
	return nil
}

func (o *orchestrator[V]) CacheAside(ctx context.Context, key string, fetch func(ctx context.Context) (V, error), opts WriteOptions) (V, error) {
	var zero V
	if v, ok, err := o.Get(ctx, key); err != nil {
		return zero, err
	} else if ok {
		return v, nil
	}

	// dedupe concurrent fetches for the same key
	res, err, _ := o.flight.Do(key, func() (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if _, serr := o.Set(ctx, key, v, opts); serr != nil {
			o.log.Warn("cache-aside store failed", Fields{"key": key, "err": serr})
		}
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	return res.(V), nil
}

func (o *orchestrator[V]) WithLock(ctx context.Context, resource string, op func(ctx context.Context) error, waitTimeout time.Duration) error {
	locker := o.remoteLocker()
	if locker == nil {
		// documented degraded mode: no cross-instance exclusion
		o.hooks.LockDegraded(resource)
		o.log.Warn("withLock without remote layer; no cross-instance exclusion", Fields{"resource": resource})
		return op(ctx)
	}

	token, ok, err := locker.AcquireLock(ctx, resource, o.lockTTL, waitTimeout)
	if err != nil {
		return &LockError{Resource: resource, Err: err}
	}
	if !ok {
		return &LockError{Resource: resource, Err: ErrLockNotAcquired}
	}
	defer func() {
		// release on a fresh context so a canceled caller can't leak the
		// lock until TTL expiry
		rctx, cancel := context.WithTimeout(context.Background(), o.layerTimeout)
		defer cancel()
		if rerr := locker.ReleaseLock(rctx, resource, token); rerr != nil {
			o.log.Error("lock release failed; holding until TTL", Fields{"resource": resource, "err": rerr})
		}
	}()
	return op(ctx)
}

func (o *orchestrator[V]) remoteLocker() layer.Locker {
	for _, l := range o.layers {
		if l.Kind() != layer.Remote {
			continue
		}
		if lk, ok := l.(layer.Locker); ok {
			return lk
		}
	}
	return nil
}

func (o *orchestrator[V]) Stats(ctx context.Context) Stats {
	st := Stats{
		NodeID:             o.nodeID,
		Strategy:           o.strategy,
		ConflictResolution: o.conflict,
		SyncInterval:       o.syncInterval,
	}
	for _, l := range o.layers {
		sctx, cancel := context.WithTimeout(ctx, o.layerTimeout)
		ls, err := l.Stats(sctx)
		cancel()
		if err != nil {
			o.hooks.LayerTimeout("stats", l.Kind())
			o.log.Debug("layer stats failed", Fields{"layer": l.Kind(), "err": err})
			ls = layer.Stats{Kind: l.Kind()}
		}
		st.Layers = append(st.Layers, ls)

		if hr, ok := l.(layer.HealthReporter); ok && l.Kind() == layer.Remote && st.RemoteHealth == nil {
			hctx, hcancel := context.WithTimeout(ctx, o.layerTimeout)
			h := hr.Health(hctx)
			hcancel()
			st.RemoteHealth = &h
		}
	}
	return st
}

// syncTick runs one reconciliation pass unless the previous one is still in
// flight.
func (o *orchestrator[V]) syncTick() {
	if !o.syncBusy.CompareAndSwap(false, true) {
		o.log.Debug("sync pass still running; skipping tick", nil)
		return
	}
	defer o.syncBusy.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), o.syncInterval)
	defer cancel()
	o.syncPass(ctx)
}

// syncPass repairs journaled keys across tiers: for each key the winning
// copy (per the conflict mode) is rewritten into every tier that is missing
// it or holds an older one. This is how write-behind entries reach the
// slower tiers.
func (o *orchestrator[V]) syncPass(ctx context.Context) {
	start := time.Now()
	keys := o.journal.snapshot()

	var repaired int
	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		entries := make([]*layer.Entry, len(o.layers))
		var winner *layer.Entry
		for i, l := range o.layers {
			e, ok := o.layerGet(ctx, l, key)
			if !ok {
				continue
			}
			entries[i] = &e
			if winner == nil || newer(e, *winner, o.conflict) {
				winner = &e
			}
		}
		if winner == nil {
			continue
		}
		for i, l := range o.layers {
			if entries[i] != nil && !newer(*winner, *entries[i], o.conflict) {
				continue
			}
			if ok, err := o.layerSet(ctx, l, key, *winner, layer.SetOptions{}); err != nil || !ok {
				o.log.Debug("sync repair failed", Fields{"key": key, "layer": l.Kind(), "err": err})
				continue
			}
			repaired++
		}
	}

	took := time.Since(start)
	o.hooks.SyncCompleted(len(keys), repaired, took)
	o.log.Debug("sync pass complete", Fields{"scanned": len(keys), "repaired": repaired, "took": took})
}

// layerGet wraps one tier read with the per-call timeout and maps every
// failure to a miss.
func (o *orchestrator[V]) layerGet(ctx context.Context, l layer.Layer, key string) (layer.Entry, bool) {
	gctx, cancel := context.WithTimeout(ctx, o.layerTimeout)
	defer cancel()
	e, ok, err := l.Get(gctx, key)
	if err != nil {
		o.hooks.LayerTimeout("get", l.Kind())
		o.log.Debug("layer read failed; treating as miss", Fields{"key": key, "layer": l.Kind(), "err": err})
		return layer.Entry{}, false
	}
	return e, ok
}

func (o *orchestrator[V]) layerSet(ctx context.Context, l layer.Layer, key string, e layer.Entry, opts layer.SetOptions) (bool, error) {
	sctx, cancel := context.WithTimeout(ctx, o.layerTimeout)
	defer cancel()
	return l.Set(sctx, key, e, opts)
}

func (o *orchestrator[V]) layerDelete(ctx context.Context, l layer.Layer, key string) bool {
	dctx, cancel := context.WithTimeout(ctx, o.layerTimeout)
	defer cancel()
	ok, err := l.Delete(dctx, key)
	if err != nil {
		o.hooks.LayerTimeout("delete", l.Kind())
		o.log.Debug("layer delete failed", Fields{"key": key, "layer": l.Kind(), "err": err})
		return false
	}
	return ok
}
