package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a deterministic Clock for tests. Time stands still until
// Advance is called; pending After, Sleep, and Ticker waits fire once
// the clock moves past their deadline, in deadline order.
//
// Fake is safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	pending []*fakeTimer
	changed *sync.Cond
}

// NewFake returns a Fake pinned to start.
func NewFake(start time.Time) *Fake {
	f := &Fake{now: start}
	f.changed = sync.NewCond(&f.mu)
	return f
}

type fakeTimer struct {
	deadline time.Time
	ch       chan time.Time

	// interval is non-zero for tickers; after firing the timer is
	// rescheduled at deadline + interval.
	interval time.Duration

	stopped bool
}

// Now returns the current fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// After returns a channel that receives once the clock advances past
// the deadline. A non-positive d delivers immediately.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- f.now
		return ch
	}
	f.pending = append(f.pending, &fakeTimer{deadline: f.now.Add(d), ch: ch})
	f.changed.Broadcast()
	return ch
}

// NewTicker returns a Ticker that fires each time the clock advances
// past another interval boundary. Panics if d <= 0.
func (f *Fake) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan time.Time, 1)
	timer := &fakeTimer{deadline: f.now.Add(d), ch: ch, interval: d}
	f.pending = append(f.pending, timer)
	f.changed.Broadcast()

	return &Ticker{
		C: ch,
		stop: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			timer.stopped = true
		},
		reset: func(d time.Duration) {
			f.mu.Lock()
			defer f.mu.Unlock()
			timer.interval = d
			timer.deadline = f.now.Add(d)
			timer.stopped = false
		},
	}
}

// Sleep blocks the calling goroutine until the clock advances past the
// deadline. A non-positive d returns immediately.
func (f *Fake) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-f.After(d)
}

// Advance moves the clock forward by d and fires every pending timer,
// ticker, and sleep whose deadline falls within the new time. Channel
// sends are non-blocking, matching time.Ticker's drop-if-full behavior.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	target := f.now
	f.mu.Unlock()

	for {
		expired := f.takeExpired(target)
		if len(expired) == 0 {
			return
		}
		sort.Slice(expired, func(i, j int) bool {
			return expired[i].deadline.Before(expired[j].deadline)
		})
		for _, timer := range expired {
			select {
			case timer.ch <- target:
			default:
			}
		}
	}
}

// takeExpired removes expired timers from the pending list and returns
// them, rescheduling tickers for their next interval.
func (f *Fake) takeExpired(target time.Time) []*fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()

	var expired []*fakeTimer
	var remaining []*fakeTimer
	for _, timer := range f.pending {
		if timer.stopped {
			continue
		}
		if timer.deadline.After(target) {
			remaining = append(remaining, timer)
			continue
		}
		expired = append(expired, timer)
		if timer.interval > 0 {
			timer.deadline = timer.deadline.Add(timer.interval)
			remaining = append(remaining, timer)
		}
	}
	f.pending = remaining
	return expired
}

// BlockUntilPending waits until at least n timers, tickers, or sleeps
// are registered. It removes the race between a goroutine arming a
// timer and the test advancing the clock:
//
//	go func() { fake.Sleep(5 * time.Second) }()
//	fake.BlockUntilPending(1)
//	fake.Advance(5 * time.Second)
func (f *Fake) BlockUntilPending(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.pendingLocked() < n {
		f.changed.Wait()
	}
}

// PendingCount reports the number of armed timers, for test assertions.
func (f *Fake) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pendingLocked()
}

func (f *Fake) pendingLocked() int {
	count := 0
	for _, timer := range f.pending {
		if !timer.stopped {
			count++
		}
	}
	return count
}
