package stratacache

import (
	"sync"
	"time"
)

// versionClock issues version stamps that are strictly increasing within one
// node. Stamps are microsecond wall-clock readings bumped past the previous
// stamp when the clock has not advanced, so two back-to-back writes never
// share a version.
type versionClock struct {
	mu   sync.Mutex
	last uint64
}

func (c *versionClock) next() uint64 {
	v := uint64(time.Now().UnixMicro())
	c.mu.Lock()
	if v <= c.last {
		v = c.last + 1
	}
	c.last = v
	c.mu.Unlock()
	return v
}
