//go:build !linux

package hotkey

import (
	"golang.design/x/hotkey"
)

type xHotkey struct {
	hk      *hotkey.Hotkey
	keydown chan struct{}
	keyup   chan struct{}
	stop    chan struct{}
}

func newCombo() *hotkey.Hotkey {
	return hotkey.New([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, hotkey.KeySpace)
}

func New() Hotkey {
	return &xHotkey{
		hk:      newCombo(),
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

func (h *xHotkey) Register() error {
	if err := h.hk.Register(); err != nil {
		return err
	}
	go h.forward(h.hk.Keydown(), h.keydown)
	go h.forward(h.hk.Keyup(), h.keyup)
	return nil
}

func (h *xHotkey) forward(src <-chan hotkey.Event, dst chan struct{}) {
	for {
		select {
		case <-h.stop:
			return
		case _, ok := <-src:
			if !ok {
				return
			}
			signal(dst)
		}
	}
}

func (h *xHotkey) Unregister() {
	select {
	case <-h.stop:
		return
	default:
		close(h.stop)
	}
	h.hk.Unregister()
}

func (h *xHotkey) Keydown() <-chan struct{} {
	return h.keydown
}

func (h *xHotkey) Keyup() <-chan struct{} {
	return h.keyup
}

// Diagnose registers and immediately releases the shortcut to check that
// no other application holds it.
func Diagnose() (string, error) {
	hk := newCombo()
	if err := hk.Register(); err != nil {
		return "", err
	}
	hk.Unregister()
	return "global shortcut available (" + Combo + ")", nil
}
