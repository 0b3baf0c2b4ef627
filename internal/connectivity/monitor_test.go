package connectivity

import (
	"context"
	"sync"
	"testing"
	"time"

	"courier/internal/clock"
	"courier/internal/testsupport"
)

type fakeProber struct {
	mu     sync.Mutex
	online bool
}

func (p *fakeProber) set(online bool) {
	p.mu.Lock()
	p.online = online
	p.mu.Unlock()
}

func (p *fakeProber) Probe(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

type transitionRecorder struct {
	mu    sync.Mutex
	seen  []bool
	fired chan bool
}

func newTransitionRecorder() *transitionRecorder {
	return &transitionRecorder{fired: make(chan bool, 16)}
}

func (r *transitionRecorder) record(online bool) {
	r.mu.Lock()
	r.seen = append(r.seen, online)
	r.mu.Unlock()
	r.fired <- online
}

func (r *transitionRecorder) transitions() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.seen))
	copy(out, r.seen)
	return out
}

func newTestMonitor(t *testing.T, debounceSeconds int) (*Monitor, *fakeProber, *clock.Fake) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Connectivity.Netlink = false
	cfg.Connectivity.Debounce = debounceSeconds

	prober := &fakeProber{online: true}
	fake := clock.NewFake(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	m := New(cfg, nil, WithClock(fake), WithProbers(prober))
	return m, prober, fake
}

func TestCheckCommitsAfterDebounceWindow(t *testing.T) {
	m, prober, fake := newTestMonitor(t, 2)
	m.online.Store(true)

	rec := newTransitionRecorder()
	m.Subscribe(rec.record)

	ctx := context.Background()
	prober.set(false)

	wake := m.check(ctx, nil)
	if wake == nil {
		t.Fatal("expected a pending debounce timer")
	}
	if !m.IsOnline() {
		t.Fatal("candidate must not flip the committed state")
	}
	if got := rec.transitions(); len(got) != 0 {
		t.Fatalf("expected no transitions during the window, got %v", got)
	}

	fake.Advance(2 * time.Second)
	if wake = m.check(ctx, nil); wake != nil {
		t.Fatal("expected no pending timer after commit")
	}
	if m.IsOnline() {
		t.Fatal("expected committed offline state")
	}
	if got := rec.transitions(); len(got) != 1 || got[0] {
		t.Fatalf("expected exactly one offline transition, got %v", got)
	}
}

func TestCheckCancelsRevertedCandidate(t *testing.T) {
	m, prober, fake := newTestMonitor(t, 2)
	m.online.Store(true)

	rec := newTransitionRecorder()
	m.Subscribe(rec.record)

	ctx := context.Background()

	prober.set(false)
	wake := m.check(ctx, nil)
	if wake == nil {
		t.Fatal("expected a pending debounce timer")
	}

	// The link comes back inside the window: the candidate dies.
	fake.Advance(time.Second)
	prober.set(true)
	if wake = m.check(ctx, wake); wake != nil {
		t.Fatal("expected the reversal to clear the pending timer")
	}

	fake.Advance(10 * time.Second)
	if m.check(ctx, nil) != nil {
		t.Fatal("expected steady state to stay quiet")
	}
	if !m.IsOnline() {
		t.Fatal("expected the committed state to remain online")
	}
	if got := rec.transitions(); len(got) != 0 {
		t.Fatalf("expected no transitions after a reverted candidate, got %v", got)
	}

	// A fresh flip starts its own full window.
	prober.set(false)
	if m.check(ctx, nil) == nil {
		t.Fatal("expected a new candidate to arm a new timer")
	}
	if got := rec.transitions(); len(got) != 0 {
		t.Fatalf("expected the new candidate to stay uncommitted, got %v", got)
	}
	fake.Advance(2 * time.Second)
	m.check(ctx, nil)
	if got := rec.transitions(); len(got) != 1 || got[0] {
		t.Fatalf("expected one offline transition, got %v", got)
	}
}

func TestCheckZeroDebounceCommitsImmediately(t *testing.T) {
	m, prober, _ := newTestMonitor(t, 0)
	m.online.Store(true)

	rec := newTransitionRecorder()
	m.Subscribe(rec.record)

	prober.set(false)
	if wake := m.check(context.Background(), nil); wake != nil {
		t.Fatal("expected no timer with debounce disabled")
	}
	if m.IsOnline() {
		t.Fatal("expected immediate offline commit")
	}
	if got := rec.transitions(); len(got) != 1 || got[0] {
		t.Fatalf("expected one offline transition, got %v", got)
	}
}

func TestRepeatedSameStateNeverFires(t *testing.T) {
	m, _, fake := newTestMonitor(t, 2)
	m.online.Store(true)

	rec := newTransitionRecorder()
	m.Subscribe(rec.record)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if m.check(ctx, nil) != nil {
			t.Fatal("expected no pending timer for identical observations")
		}
		fake.Advance(15 * time.Second)
	}
	if got := rec.transitions(); len(got) != 0 {
		t.Fatalf("expected no transitions for repeated identical signals, got %v", got)
	}
}

func TestSubscribeCancelIsIdempotent(t *testing.T) {
	m, prober, _ := newTestMonitor(t, 0)
	m.online.Store(true)

	kept := newTransitionRecorder()
	dropped := newTransitionRecorder()
	m.Subscribe(kept.record)
	cancel := m.Subscribe(dropped.record)
	cancel()
	cancel()

	prober.set(false)
	m.check(context.Background(), nil)

	if got := kept.transitions(); len(got) != 1 {
		t.Fatalf("expected the remaining subscriber to fire once, got %v", got)
	}
	if got := dropped.transitions(); len(got) != 0 {
		t.Fatalf("expected the cancelled subscriber to stay silent, got %v", got)
	}
}

func TestMonitorLifecycle(t *testing.T) {
	m, prober, fake := newTestMonitor(t, 2)

	rec := newTransitionRecorder()
	m.Subscribe(rec.record)

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop()

	if err := m.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}
	if !m.IsOnline() {
		t.Fatal("expected the initial probe to report online")
	}

	status := m.Status()
	if !status.Online || status.NetlinkActive || status.ProbeURL != "" {
		t.Fatalf("unexpected status %+v", status)
	}

	// Drop the link: recheck arms the debounce timer, advancing past the
	// window commits the flip.
	prober.set(false)
	m.Recheck()
	fake.BlockUntilPending(2)
	fake.Advance(2 * time.Second)

	select {
	case online := <-rec.fired:
		if online {
			t.Fatal("expected an offline transition")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the offline transition")
	}
	if m.IsOnline() {
		t.Fatal("expected committed offline state")
	}

	// Bring it back.
	prober.set(true)
	m.Recheck()
	fake.BlockUntilPending(2)
	fake.Advance(2 * time.Second)

	select {
	case online := <-rec.fired:
		if !online {
			t.Fatal("expected an online transition")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the online transition")
	}

	m.Stop()
	m.Stop()
}
