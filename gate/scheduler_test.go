package gate

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestFrameTickerTicksUntilStopped(t *testing.T) {
	ft := NewFrameTicker(200)
	var ticks atomic.Int32
	ft.Start(func(time.Time) { ticks.Add(1) })

	deadline := time.After(time.Second)
	for ticks.Load() < 5 {
		select {
		case <-deadline:
			t.Fatalf("only %d ticks after 1s", ticks.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	ft.Stop()
	// Allow one in-flight tick to land.
	time.Sleep(20 * time.Millisecond)
	after := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	if got := ticks.Load(); got != after {
		t.Fatalf("ticks kept coming after Stop: %d -> %d", after, got)
	}
}

func TestFrameTickerStopFromTick(t *testing.T) {
	ft := NewFrameTicker(200)
	done := make(chan struct{})
	var ticks atomic.Int32
	ft.Start(func(time.Time) {
		if ticks.Add(1) == 1 {
			ft.Stop()
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop from inside a tick deadlocked")
	}
	time.Sleep(50 * time.Millisecond)
	if n := ticks.Load(); n > 2 {
		t.Fatalf("got %d ticks, want at most one after stop", n)
	}
}

func TestFrameTickerRestart(t *testing.T) {
	ft := NewFrameTicker(200)
	var first, second atomic.Int32
	ft.Start(func(time.Time) { first.Add(1) })
	ft.Start(func(time.Time) { second.Add(1) })
	defer ft.Stop()

	time.Sleep(50 * time.Millisecond)
	settled := first.Load()
	time.Sleep(50 * time.Millisecond)
	if first.Load() != settled {
		t.Fatal("replaced task is still ticking")
	}
	if second.Load() == 0 {
		t.Fatal("new task never ticked")
	}
}

func TestFrameTickerDefaultRate(t *testing.T) {
	ft := NewFrameTicker(0)
	if got, want := ft.Interval(), time.Second/DefaultFrameRate; got != want {
		t.Fatalf("interval = %v, want %v", got, want)
	}
}

func TestManualSchedulerFire(t *testing.T) {
	m := NewManualScheduler()
	if m.Fire(time.Now()) {
		t.Fatal("Fire with nothing scheduled should report false")
	}
	var got time.Time
	m.Start(func(now time.Time) { got = now })
	if !m.Fire(t0) || !got.Equal(t0) {
		t.Fatalf("tick got %v, want %v", got, t0)
	}
	m.Stop()
	if m.Running() {
		t.Fatal("expected stopped")
	}
}
