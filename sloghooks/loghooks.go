package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/stratacache"
	"github.com/unkn0wn-root/stratacache/layer"
)

type Options struct {
	// Sampling to avoid floods on hot read paths; 0/1 = log all.
	HitEvery  uint64
	MissEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

// Hooks logs cache events through slog, with sampling for the
// high-frequency hit/miss events.
type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr  atomic.Uint64
	missCtr atomic.Uint64
}

var _ stratacache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Hit(key string, served layer.Kind) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("stratacache.hit",
		"key", h.redact(key),
		"layer", string(served))
}

func (h *Hooks) Miss(key string) {
	if h.l == nil || !sample(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Debug("stratacache.miss", "key", h.redact(key))
}

func (h *Hooks) PromotionFailed(key string, target layer.Kind, err error) {
	if h.l == nil {
		return
	}
	h.l.Info("stratacache.promotion_failed",
		"key", h.redact(key),
		"layer", string(target),
		"err", err)
}

func (h *Hooks) LayerSetFailed(key string, target layer.Kind, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("stratacache.layer_set_failed",
		"key", h.redact(key),
		"layer", string(target),
		"err", err)
}

func (h *Hooks) LayerTimeout(op string, k layer.Kind) {
	if h.l == nil {
		return
	}
	h.l.Warn("stratacache.layer_timeout",
		"op", op,
		"layer", string(k))
}

func (h *Hooks) DecodeFailed(key string, k layer.Kind, reason string) {
	if h.l == nil {
		return
	}
	h.l.Info("stratacache.decode_failed",
		"key", h.redact(key),
		"layer", string(k),
		"reason", reason)
}

func (h *Hooks) LockDegraded(resource string) {
	if h.l == nil {
		return
	}
	h.l.Warn("stratacache.lock_degraded", "resource", resource)
}

func (h *Hooks) SyncCompleted(scanned, repaired int, took time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Debug("stratacache.sync_completed",
		"scanned", scanned,
		"repaired", repaired,
		"took", took)
}
