//go:build linux

package hotkey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Linux input event codes, from linux/input-event-codes.h.
const (
	evKey      = 1
	keyRelease = 0
	keyPress   = 1
	keyLCtrl   = 29
	keyRCtrl   = 97
	keyLShift  = 42
	keyRShift  = 54
	keySpace   = 57
)

// inputEventSize is sizeof(struct input_event) on 64-bit kernels.
const inputEventSize = 24

var (
	inputDir = "/dev/input"
	sysInput = "/sys/class/input"
)

var errNoKeyboard = errors.New("no keyboard devices found (is the user in the 'input' group?)")

// comboState tracks Ctrl+Shift+Space across key events of one keyboard.
// Key repeats (value 2) keep the current state.
type comboState struct {
	ctrl, shift, space bool
}

// feed applies one key event and reports whether it pressed or released the
// combo.
func (s *comboState) feed(code uint16, value int32) (down, up bool) {
	pressed := value == keyPress
	released := value == keyRelease
	switch code {
	case keyLCtrl, keyRCtrl:
		s.ctrl = pressed || (!released && s.ctrl)
	case keyLShift, keyRShift:
		s.shift = pressed || (!released && s.shift)
	case keySpace:
		switch {
		case pressed && !s.space && s.ctrl && s.shift:
			s.space = true
			return true, false
		case released && s.space:
			s.space = false
			return false, true
		}
	}
	return false, false
}

type evdevHotkey struct {
	keydown chan struct{}
	keyup   chan struct{}

	mu    sync.Mutex
	files []*os.File
	stop  chan struct{}
	once  sync.Once
}

func New() Hotkey {
	return &evdevHotkey{
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

func (h *evdevHotkey) Register() error {
	keyboards, err := findKeyboards()
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.readEvents(f)
	}
	if len(h.files) == 0 {
		return fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER, then re-login)", len(keyboards))
	}
	return nil
}

// readEvents runs until the device is closed by Unregister or unplugged.
func (h *evdevHotkey) readEvents(f *os.File) {
	buf := make([]byte, inputEventSize*16)
	var st comboState
	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}
		select {
		case <-h.stop:
			return
		default:
		}
		for i := 0; i+inputEventSize <= n; i += inputEventSize {
			if binary.LittleEndian.Uint16(buf[i+16:]) != evKey {
				continue
			}
			code := binary.LittleEndian.Uint16(buf[i+18:])
			value := int32(binary.LittleEndian.Uint32(buf[i+20:]))
			down, up := st.feed(code, value)
			if down {
				signal(h.keydown)
			}
			if up {
				signal(h.keyup)
			}
		}
	}
}

func (h *evdevHotkey) Unregister() {
	h.once.Do(func() {
		close(h.stop)
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, f := range h.files {
			f.Close()
		}
	})
}

func (h *evdevHotkey) Keydown() <-chan struct{} {
	return h.keydown
}

func (h *evdevHotkey) Keyup() <-chan struct{} {
	return h.keyup
}

func findKeyboards() ([]string, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("scanning input devices: %w", err)
	}
	var keyboards []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "event") && isKeyboard(e.Name()) {
			keyboards = append(keyboards, filepath.Join(inputDir, e.Name()))
		}
	}
	if len(keyboards) == 0 {
		return nil, errNoKeyboard
	}
	return keyboards, nil
}

// isKeyboard treats a device with a long key capability bitmap as a
// keyboard; mice and power buttons report only a few bits.
func isKeyboard(eventName string) bool {
	data, err := os.ReadFile(filepath.Join(sysInput, eventName, "device", "capabilities", "key"))
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(data))) > 10
}

func Diagnose() (string, error) {
	keyboards, err := findKeyboards()
	if err != nil {
		return "", err
	}
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err == nil {
			f.Close()
			return fmt.Sprintf("%s via evdev: %d keyboard(s) found, opened %s", Combo, len(keyboards), path), nil
		}
	}
	return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(keyboards))
}
