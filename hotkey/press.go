package hotkey

import "time"

type Press int

const (
	// Tap is a press released before the hold threshold.
	Tap Press = iota
	// Hold is reported as soon as the key has been down for the threshold,
	// without waiting for release.
	Hold
)

func (p Press) String() string {
	if p == Hold {
		return "hold"
	}
	return "tap"
}

// Presses turns raw keydown/keyup pairs into Tap and Hold events. The booth
// maps a tap to toggling the sound trigger and a hold to taking a photo.
type Presses struct {
	events chan Press
	done   chan struct{}
}

func NewPresses(hk Hotkey, hold time.Duration) *Presses {
	p := &Presses{
		events: make(chan Press, 1),
		done:   make(chan struct{}),
	}
	go p.run(hk, hold)
	return p
}

func (p *Presses) Events() <-chan Press { return p.events }

func (p *Presses) Close() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}

func (p *Presses) emit(ev Press) {
	select {
	case p.events <- ev:
	case <-p.done:
	}
}

func (p *Presses) run(hk Hotkey, hold time.Duration) {
	for {
		select {
		case <-p.done:
			return
		case <-hk.Keydown():
		}

		timer := time.NewTimer(hold)
		select {
		case <-p.done:
			timer.Stop()
			return
		case <-hk.Keyup():
			timer.Stop()
			p.emit(Tap)
		case <-timer.C:
			p.emit(Hold)
			select {
			case <-p.done:
				return
			case <-hk.Keyup():
			}
		}
	}
}
