package engine

import (
	"sync"
	"time"
)

// timerGroup is a registry of pending scheduling timers (deferred
// submissions, gale re-entries) cancelable as a group on shutdown or
// circuit-breaker trip. Canceling a timer that already fired is a
// no-op.
type timerGroup struct {
	mu      sync.Mutex
	next    int
	timers  map[int]*time.Timer
	stopped bool
}

func newTimerGroup() *timerGroup {
	return &timerGroup{timers: make(map[int]*time.Timer)}
}

// After schedules fn to run once after d. Returns false if the group
// has been stopped and nothing was scheduled.
func (g *timerGroup) After(d time.Duration, fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return false
	}
	id := g.next
	g.next++
	g.timers[id] = time.AfterFunc(d, func() {
		g.mu.Lock()
		delete(g.timers, id)
		stopped := g.stopped
		g.mu.Unlock()
		if !stopped {
			fn()
		}
	})
	return true
}

// CancelAll stops every pending timer and refuses new ones.
func (g *timerGroup) CancelAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopped = true
	for id, t := range g.timers {
		t.Stop()
		delete(g.timers, id)
	}
}

// Stopped reports whether CancelAll has run.
func (g *timerGroup) Stopped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopped
}

// Pending returns the number of timers still scheduled.
func (g *timerGroup) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.timers)
}
