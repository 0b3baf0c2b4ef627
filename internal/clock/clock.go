package clock

import "time"

// Clock abstracts the time operations courier schedules against so
// tests can drive flush passes, debounce windows, and cache sweeps
// deterministically. Production code injects System(); tests inject
// NewFake.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d has
	// elapsed. A non-positive d delivers immediately.
	After(d time.Duration) <-chan time.Time

	// NewTicker returns a Ticker delivering ticks every d. Panics if
	// d <= 0, matching time.NewTicker.
	NewTicker(d time.Duration) *Ticker

	// Sleep blocks the calling goroutine for at least d.
	Sleep(d time.Duration)
}

// Ticker delivers periodic ticks on C. C is buffered with capacity one,
// so a slow consumer drops ticks instead of queueing them.
type Ticker struct {
	C <-chan time.Time

	stop  func()
	reset func(time.Duration)
}

// Stop turns the ticker off. It does not close C.
func (t *Ticker) Stop() { t.stop() }

// Reset restarts the tick cycle with a new interval. The next tick
// arrives after d elapses.
func (t *Ticker) Reset(d time.Duration) { t.reset(d) }

// System returns a Clock backed by the time package.
func System() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (systemClock) NewTicker(d time.Duration) *Ticker {
	ticker := time.NewTicker(d)
	return &Ticker{C: ticker.C, stop: ticker.Stop, reset: ticker.Reset}
}

func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }
