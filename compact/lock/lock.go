// Package lock implements the contention-aware helper compaction uses to
// take its two coarse locks (the zone's free-area lock and the LRU lock).
//
// It is grounded on the teacher's Spinlock (kernel/sync/spinlock.go):
// TryToAcquire there maps directly to sync.Mutex.TryLock here, with the
// compaction-specific abort/yield policy layered on top instead of baked
// into the primitive itself, since a user-space run has a real scheduler to
// yield to instead of a busy-wait loop.
package lock

import (
	"context"
	"runtime"
	"sync"
)

// Contended is a coarse mutex whose holder can test whether another
// goroutine is waiting, the user-space analogue of spin_is_contended.
type Contended struct {
	mu       sync.Mutex
	waiting  int32
	waitLock sync.Mutex
}

// Lock acquires the mutex unconditionally.
func (c *Contended) Lock() {
	c.markWaiting(1)
	c.mu.Lock()
	c.markWaiting(-1)
}

// Unlock releases the mutex.
func (c *Contended) Unlock() {
	c.mu.Unlock()
}

// TryLock attempts a non-blocking acquire and reports success.
func (c *Contended) TryLock() bool {
	return c.mu.TryLock()
}

// IsContended reports whether another goroutine is currently waiting to
// acquire the lock, the stand-in for spin_is_contended.
func (c *Contended) IsContended() bool {
	c.waitLock.Lock()
	defer c.waitLock.Unlock()
	return c.waiting > 0
}

func (c *Contended) markWaiting(delta int32) {
	c.waitLock.Lock()
	c.waiting += delta
	c.waitLock.Unlock()
}

// Result is the outcome of a CheckLock call.
type Result int

const (
	// Aborted means the caller must stop scanning: an async run hit
	// contention, or a sync run's context was cancelled while waiting.
	Aborted Result = iota
	// Locked means the lock is held on return.
	Locked
)

// CheckLock is the single primitive behind compact_checklock_irqsave: given
// the current locked state, it decides whether to keep holding the lock,
// release and re-acquire it, or abort. async callers never block: they
// abort when another goroutine is waiting or when the lock cannot be taken
// at once. sync callers may yield to the scheduler once before blocking on
// the lock.
//
// contended, if non-nil, is set to true when an async run aborts due to
// contention (spec.md §4.4's *cc->contended out-flag).
func CheckLock(ctx context.Context, l *Contended, locked bool, async bool, contended *bool) (bool, Result) {
	needYield := l.IsContended()

	if needYield {
		if locked {
			l.Unlock()
			locked = false
		}

		if async {
			if contended != nil {
				*contended = true
			}
			return false, Aborted
		}

		runtime.Gosched()
		select {
		case <-ctx.Done():
			return false, Aborted
		default:
		}
	}

	if !locked {
		if async {
			if !l.TryLock() {
				if contended != nil {
					*contended = true
				}
				return false, Aborted
			}
		} else {
			l.Lock()
		}
	}
	return true, Locked
}
