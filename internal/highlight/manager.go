// Package highlight owns the timers behind transient row highlights.
// Highlights are visual only: they never touch persisted state, and
// every scheduled expiry is cancelable so a torn-down session cannot
// fire callbacks into dead handlers.
package highlight

import (
	"sync"
	"time"
)

// DefaultDuration is how long a highlight stays lit when the caller
// does not specify otherwise.
const DefaultDuration = 15 * time.Second

type pending struct {
	timer *time.Timer
	gen   uint64
}

// Manager schedules and cancels highlight expiry timers, one per queue
// entry. Safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	timers map[string]pending
	gen    uint64
	expire func(entryID string)
	closed bool
}

// NewManager returns a manager that calls expire when an entry's
// highlight times out. The callback runs on a timer goroutine.
func NewManager(expire func(entryID string)) *Manager {
	return &Manager{
		timers: make(map[string]pending),
		expire: expire,
	}
}

// ScheduleExpiry arms (or re-arms) the expiry timer for an entry.
// Scheduling again before the timer fires replaces it, so the last
// caller wins and the highlight gets a full duration from now.
func (m *Manager) ScheduleExpiry(entryID string, d time.Duration) {
	if d <= 0 {
		d = DefaultDuration
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if p, ok := m.timers[entryID]; ok {
		p.timer.Stop()
	}
	m.gen++
	gen := m.gen
	m.timers[entryID] = pending{
		timer: time.AfterFunc(d, func() { m.fire(entryID, gen) }),
		gen:   gen,
	}
}

// Cancel stops a single entry's pending expiry, if any. The highlight
// itself is left to the caller.
func (m *Manager) Cancel(entryID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.timers[entryID]; ok {
		p.timer.Stop()
		delete(m.timers, entryID)
	}
}

// CancelAll stops every pending timer and rejects future scheduling.
// Called on session teardown; expiry callbacks will not run afterwards.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for id, p := range m.timers {
		p.timer.Stop()
		delete(m.timers, id)
	}
}

func (m *Manager) fire(entryID string, gen uint64) {
	m.mu.Lock()
	p, ok := m.timers[entryID]
	// A stale timer that fired while being replaced or canceled must
	// not expire the highlight a newer caller just refreshed.
	if m.closed || !ok || p.gen != gen {
		m.mu.Unlock()
		return
	}
	delete(m.timers, entryID)
	m.mu.Unlock()

	m.expire(entryID)
}
