// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/stratacache"
//	"github.com/unkn0wn-root/stratacache/hooks/async"
//	"github.com/unkn0wn-root/stratacache/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    HitEvery:  100, // sample: ~every 100th hit
//	    MissEvery: 1,   // log every miss
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
package asynchook

import (
	"sync"
	"time"

	"github.com/unkn0wn-root/stratacache"
	"github.com/unkn0wn-root/stratacache/layer"
)

// Hooks decouples slow event sinks from the cache hot path: events are
// queued and delivered by workers; when the queue is full, events drop.
type Hooks struct {
	inner stratacache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ stratacache.Hooks = (*Hooks)(nil)

func New(inner stratacache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) Hit(k string, s layer.Kind) { h.try(func() { h.inner.Hit(k, s) }) }
func (h *Hooks) Miss(k string)              { h.try(func() { h.inner.Miss(k) }) }
func (h *Hooks) LockDegraded(r string)      { h.try(func() { h.inner.LockDegraded(r) }) }
func (h *Hooks) PromotionFailed(k string, t layer.Kind, err error) {
	h.try(func() { h.inner.PromotionFailed(k, t, err) })
}
func (h *Hooks) LayerSetFailed(k string, t layer.Kind, err error) {
	h.try(func() { h.inner.LayerSetFailed(k, t, err) })
}
func (h *Hooks) LayerTimeout(op string, k layer.Kind) {
	h.try(func() { h.inner.LayerTimeout(op, k) })
}
func (h *Hooks) DecodeFailed(k string, lk layer.Kind, reason string) {
	h.try(func() { h.inner.DecodeFailed(k, lk, reason) })
}
func (h *Hooks) SyncCompleted(scanned, repaired int, took time.Duration) {
	h.try(func() { h.inner.SyncCompleted(scanned, repaired, took) })
}
