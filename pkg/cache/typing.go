package cache

import (
	"sync"
	"time"
)

// TypingExpiry is how long a user stays marked as typing after their
// last typing signal.
const TypingExpiry = 10 * time.Second

// TypingTracker holds the set of users currently typing in one channel.
// Each user has an independent expiry timer that restarts on every
// repeated signal. Expiry fires on a timer goroutine, so the tracker
// locks internally.
type TypingTracker struct {
	mu     sync.Mutex
	expiry time.Duration
	timers map[uint64]*time.Timer
	closed bool
}

// NewTypingTracker returns an empty tracker with the default expiry.
func NewTypingTracker() *TypingTracker {
	return newTypingTracker(TypingExpiry)
}

func newTypingTracker(expiry time.Duration) *TypingTracker {
	return &TypingTracker{
		expiry: expiry,
		timers: make(map[uint64]*time.Timer),
	}
}

// Set marks userID as typing or not typing. Marking a user already
// typing restarts their expiry timer.
func (t *TypingTracker) Set(userID uint64, typing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	if !typing {
		if timer, ok := t.timers[userID]; ok {
			timer.Stop()
			delete(t.timers, userID)
		}
		return
	}

	if timer, ok := t.timers[userID]; ok {
		timer.Reset(t.expiry)
		return
	}
	t.timers[userID] = time.AfterFunc(t.expiry, func() {
		t.mu.Lock()
		delete(t.timers, userID)
		t.mu.Unlock()
	})
}

// Typing reports whether userID is currently typing.
func (t *TypingTracker) Typing(userID uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[userID]
	return ok
}

// Users returns the IDs of everyone currently typing, in no particular
// order.
func (t *TypingTracker) Users() []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]uint64, 0, len(t.timers))
	for id := range t.timers {
		out = append(out, id)
	}
	return out
}

// Close stops all expiry timers and empties the tracker. Further Set
// calls are ignored.
func (t *TypingTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}
