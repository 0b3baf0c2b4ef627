package clock_test

import (
	"testing"
	"time"

	"courier/internal/clock"
)

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	fake := clock.NewFake(time.Unix(1000, 0))
	ch := fake.After(5 * time.Second)

	select {
	case <-ch:
		t.Fatal("timer fired before Advance")
	default:
	}

	fake.Advance(4 * time.Second)
	select {
	case <-ch:
		t.Fatal("timer fired before deadline")
	default:
	}

	fake.Advance(time.Second)
	select {
	case fired := <-ch:
		if !fired.Equal(time.Unix(1005, 0)) {
			t.Fatalf("unexpected fire time: %v", fired)
		}
	default:
		t.Fatal("timer did not fire at deadline")
	}
}

func TestFakeAfterNonPositiveDeliversImmediately(t *testing.T) {
	fake := clock.NewFake(time.Unix(1000, 0))
	select {
	case <-fake.After(0):
	default:
		t.Fatal("expected immediate delivery for zero duration")
	}
	if fake.PendingCount() != 0 {
		t.Fatalf("expected no pending timers, got %d", fake.PendingCount())
	}
}

func TestFakeTickerFiresEachInterval(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	ticker := fake.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for i := 0; i < 3; i++ {
		fake.Advance(10 * time.Second)
		select {
		case <-ticker.C:
		default:
			t.Fatalf("tick %d missing", i+1)
		}
	}
}

func TestFakeTickerStopSuppressesTicks(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	ticker := fake.NewTicker(time.Second)
	ticker.Stop()

	fake.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestFakeTickerResetRestartsCycle(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	ticker := fake.NewTicker(10 * time.Second)
	defer ticker.Stop()

	fake.Advance(9 * time.Second)
	ticker.Reset(2 * time.Second)

	fake.Advance(time.Second)
	select {
	case <-ticker.C:
		t.Fatal("ticker fired on the pre-reset schedule")
	default:
	}

	fake.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire after reset interval")
	}
}

func TestFakeSleepBlocksUntilAdvance(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	done := make(chan struct{})
	go func() {
		fake.Sleep(3 * time.Second)
		close(done)
	}()

	fake.BlockUntilPending(1)
	select {
	case <-done:
		t.Fatal("Sleep returned before Advance")
	default:
	}

	fake.Advance(3 * time.Second)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Sleep did not return after Advance")
	}
}

func TestSystemAfterDelivers(t *testing.T) {
	select {
	case <-clock.System().After(time.Millisecond):
	case <-time.After(2 * time.Second):
		t.Fatal("system After never delivered")
	}
}
