package stratacache

import (
	"errors"
	"fmt"
)

// ErrLockNotAcquired reports that a distributed lock could not be taken
// within the caller's wait timeout.
var ErrLockNotAcquired = errors.New("stratacache: lock not acquired within wait timeout")

// LockError wraps failures of the cross-instance locking path. It is one of
// the two hard errors this package surfaces (the other being a cache-aside
// fetch failure, which propagates verbatim).
type LockError struct {
	Resource string
	Err      error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("lock %q: %v", e.Resource, e.Err)
}

func (e *LockError) Unwrap() error { return e.Err }
