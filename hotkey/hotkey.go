// Package hotkey listens for the booth's global shortcut. Linux reads
// keyboards through evdev so it works without an X display; other systems
// use golang.design/x/hotkey.
package hotkey

// Combo is the booth's global shortcut.
const Combo = "Ctrl+Shift+Space"

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// signal does a non-blocking send; a press the reader has not drained yet
// already covers this one.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
