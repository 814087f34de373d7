package actor

import (
	"sort"
	"sync"
	"time"
)

// Clock abstracts wall-clock time for one Runtime so tests can pause,
// advance and resume it deterministically (spec §4.1 timers). In live mode
// it is a thin wrapper over time.AfterFunc; in paused mode, timers queue up
// and only fire when Advance crosses their deadline.
type Clock struct {
	mu     sync.Mutex
	paused bool
	now    time.Time
	timers []*timerEntry
	nextID uint64
}

type timerEntry struct {
	id       uint64
	deadline time.Time
	fire     func()
	fired    bool
	real     *time.Timer
}

// NewClock returns a live Clock, i.e. one that tracks real wall time until
// Pause is called.
func NewClock() *Clock {
	return &Clock{now: time.Now()}
}

// Now returns the clock's current time: real time unless paused.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return c.now
	}
	return time.Now()
}

// After schedules fire to be called once, no earlier than d from now. It
// returns a cancel function. While paused, fire runs synchronously inside
// Advance; while live, it runs on its own goroutine via time.AfterFunc.
func (c *Clock) After(d time.Duration, fire func()) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	if !c.paused {
		t := time.AfterFunc(d, fire)
		entry := &timerEntry{id: id, real: t}
		c.timers = append(c.timers, entry)
		return func() { t.Stop() }
	}

	entry := &timerEntry{id: id, deadline: c.now.Add(d), fire: fire}
	c.timers = append(c.timers, entry)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		entry.fired = true
	}
}

// Pause freezes the clock at the current real time; subsequent After calls
// queue instead of running on real timers, until Resume.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return
	}
	c.paused = true
	c.now = time.Now()
	for _, t := range c.timers {
		if t.real != nil {
			t.real.Stop()
		}
	}
}

// Advance moves the paused clock forward by d, synchronously firing every
// timer whose deadline falls at or before the new time, in deadline order.
// It panics if the clock is not paused, since advancing live time makes no
// sense.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	if !c.paused {
		c.mu.Unlock()
		panic("actor: Advance called on a live clock; call Pause first")
	}
	target := c.now.Add(d)

	for {
		due := c.dueLocked(target)
		if due == nil {
			break
		}
		due.fired = true
		c.now = due.deadline
		fire := due.fire
		c.mu.Unlock()
		fire()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// dueLocked returns the earliest unfired timer with deadline <= target, or
// nil. Caller holds c.mu.
func (c *Clock) dueLocked(target time.Time) *timerEntry {
	var earliest *timerEntry
	for _, t := range c.timers {
		if t.fired || t.real != nil {
			continue
		}
		if t.deadline.After(target) {
			continue
		}
		if earliest == nil || t.deadline.Before(earliest.deadline) {
			earliest = t
		}
	}
	return earliest
}

// Resume unfreezes the clock: unfired timers become real timers scheduled
// relative to the time remaining until their deadline.
func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return
	}
	c.paused = false
	realNow := time.Now()
	remaining := c.timers[:0]
	for _, t := range c.timers {
		if t.fired {
			continue
		}
		d := t.deadline.Sub(c.now)
		if d < 0 {
			d = 0
		}
		fire := t.fire
		t.real = time.AfterFunc(d, fire)
		remaining = append(remaining, t)
	}
	c.timers = remaining
	_ = realNow
}

// pendingDeadlines is a test helper returning the sorted deadlines of
// unfired paused timers.
func (c *Clock) pendingDeadlines() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Time
	for _, t := range c.timers {
		if !t.fired && t.real == nil {
			out = append(out, t.deadline)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
