package scheduler

import (
	"sync"
	"time"
)

// fakeClock is a deterministic Clock for tests. Advance moves virtual
// time and delivers ticks in order; sends block until the loop
// consumes them, so a tick is never dropped.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

type fakeTicker struct {
	period  time.Duration
	next    time.Time
	ch      chan time.Time
	stopped bool
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTicker{
		period: d,
		next:   c.now.Add(d),
		ch:     make(chan time.Time),
	}
	c.tickers = append(c.tickers, t)
	return t
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.stopped = true
}

// Sync delivers one extra tick at the current instant without
// advancing ticker cadence. Because the loop consumes ticks serially,
// returning from Sync guarantees the previously delivered tick has
// been fully scanned. The extra tick itself never dispatches anything:
// every due job is either in flight or already rescheduled.
func (c *fakeClock) Sync() {
	c.mu.Lock()
	now := c.now
	active := make([]*fakeTicker, 0, len(c.tickers))
	for _, t := range c.tickers {
		if !t.stopped {
			active = append(active, t)
		}
	}
	c.mu.Unlock()

	for _, t := range active {
		t.ch <- now
	}
}

// Advance moves virtual time forward, firing due tickers one at a
// time in timestamp order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due *fakeTicker
		for _, t := range c.tickers {
			if t.stopped || t.next.After(target) {
				continue
			}
			if due == nil || t.next.Before(due.next) {
				due = t
			}
		}
		if due == nil {
			c.now = target
			c.mu.Unlock()
			return
		}

		at := due.next
		if at.After(c.now) {
			c.now = at
		}
		due.next = at.Add(due.period)
		ch := due.ch
		c.mu.Unlock()

		ch <- at
	}
}
