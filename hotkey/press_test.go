package hotkey

import (
	"testing"
	"time"
)

func waitPress(t *testing.T, p *Presses) Press {
	t.Helper()
	select {
	case ev := <-p.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for press")
		return 0
	}
}

func expectNoPress(t *testing.T, p *Presses, d time.Duration) {
	t.Helper()
	select {
	case ev := <-p.Events():
		t.Fatalf("unexpected %v", ev)
	case <-time.After(d):
	}
}

func TestPressTap(t *testing.T) {
	fk := NewFake()
	p := NewPresses(fk, 200*time.Millisecond)
	defer p.Close()

	fk.SimKeydown()
	fk.SimKeyup()
	if ev := waitPress(t, p); ev != Tap {
		t.Fatalf("got %v, want tap", ev)
	}
}

func TestPressHoldFiresBeforeRelease(t *testing.T) {
	fk := NewFake()
	threshold := 50 * time.Millisecond
	p := NewPresses(fk, threshold)
	defer p.Close()

	fk.SimKeydown()
	if ev := waitPress(t, p); ev != Hold {
		t.Fatalf("got %v, want hold", ev)
	}
	// Releasing after a hold produces nothing further.
	fk.SimKeyup()
	expectNoPress(t, p, 2*threshold)
}

func TestPressMultipleCycles(t *testing.T) {
	fk := NewFake()
	threshold := 50 * time.Millisecond
	p := NewPresses(fk, threshold)
	defer p.Close()

	fk.SimKeydown()
	if ev := waitPress(t, p); ev != Hold {
		t.Fatalf("cycle 1: got %v", ev)
	}
	fk.SimKeyup()
	time.Sleep(10 * time.Millisecond)

	fk.SimKeydown()
	fk.SimKeyup()
	if ev := waitPress(t, p); ev != Tap {
		t.Fatalf("cycle 2: got %v", ev)
	}

	fk.SimKeydown()
	fk.SimKeyup()
	if ev := waitPress(t, p); ev != Tap {
		t.Fatalf("cycle 3: got %v", ev)
	}
}

func TestPressClose(t *testing.T) {
	fk := NewFake()
	p := NewPresses(fk, 50*time.Millisecond)
	p.Close()
	p.Close()

	fk.SimKeydown()
	expectNoPress(t, p, 100*time.Millisecond)
}

func TestPressShortHoldIsTap(t *testing.T) {
	fk := NewFake()
	p := NewPresses(fk, 200*time.Millisecond)
	defer p.Close()

	fk.Press(30 * time.Millisecond)
	if ev := waitPress(t, p); ev != Tap {
		t.Fatalf("got %v, want tap", ev)
	}
	expectNoPress(t, p, 250*time.Millisecond)
}
