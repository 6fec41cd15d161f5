//go:build linux

package hotkey

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestComboState(t *testing.T) {
	var st comboState
	steps := []struct {
		code     uint16
		value    int32
		down, up bool
	}{
		{keySpace, keyPress, false, false}, // space alone
		{keySpace, keyRelease, false, false},
		{keyLCtrl, keyPress, false, false},
		{keySpace, keyPress, false, false}, // ctrl+space
		{keySpace, keyRelease, false, false},
		{keyRShift, keyPress, false, false},
		{keySpace, keyPress, true, false},
		{keySpace, 2, false, false}, // autorepeat
		{keySpace, keyRelease, false, true},
		{keyLCtrl, keyRelease, false, false},
		{keySpace, keyPress, false, false},
	}
	for i, s := range steps {
		down, up := st.feed(s.code, s.value)
		if down != s.down || up != s.up {
			t.Fatalf("step %d (code %d value %d): down=%t up=%t, want %t %t", i, s.code, s.value, down, up, s.down, s.up)
		}
	}
}

func TestComboReleaseAfterModifiers(t *testing.T) {
	var st comboState
	st.feed(keyLCtrl, keyPress)
	st.feed(keyLShift, keyPress)
	if down, _ := st.feed(keySpace, keyPress); !down {
		t.Fatal("expected keydown")
	}
	st.feed(keyLShift, keyRelease)
	st.feed(keyLCtrl, keyRelease)
	if _, up := st.feed(keySpace, keyRelease); !up {
		t.Fatal("space release must end the press even after the modifiers")
	}
}

func inputEvent(typ, code uint16, value int32) []byte {
	ev := make([]byte, inputEventSize)
	binary.LittleEndian.PutUint16(ev[16:], typ)
	binary.LittleEndian.PutUint16(ev[18:], code)
	binary.LittleEndian.PutUint32(ev[20:], uint32(value))
	return ev
}

// fakeInput lays out /dev/input and /sys/class/input for one keyboard whose
// event stream is events.
func fakeInput(t *testing.T, events ...[]byte) {
	t.Helper()
	root := t.TempDir()
	dev := filepath.Join(root, "dev")
	sys := filepath.Join(root, "sys")
	caps := filepath.Join(sys, "event3", "device", "capabilities")
	if err := os.MkdirAll(dev, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(caps, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(caps, "key"), []byte("3 0 0 0 fffffffffffffffe\n"), 0644); err != nil {
		t.Fatal(err)
	}
	var stream []byte
	for _, ev := range events {
		stream = append(stream, ev...)
	}
	if err := os.WriteFile(filepath.Join(dev, "event3"), stream, 0644); err != nil {
		t.Fatal(err)
	}
	// A mouse: short capability bitmap.
	mouseCaps := filepath.Join(sys, "event4", "device", "capabilities")
	if err := os.MkdirAll(mouseCaps, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(mouseCaps, "key"), []byte("1f0000 0 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dev, "event4"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	oldDev, oldSys := inputDir, sysInput
	inputDir, sysInput = dev, sys
	t.Cleanup(func() { inputDir, sysInput = oldDev, oldSys })
}

func TestFindKeyboardsSkipsMice(t *testing.T) {
	fakeInput(t)
	got, err := findKeyboards()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || filepath.Base(got[0]) != "event3" {
		t.Fatalf("keyboards = %v", got)
	}
}

func TestFindKeyboardsNone(t *testing.T) {
	dir := t.TempDir()
	old := inputDir
	inputDir = dir
	t.Cleanup(func() { inputDir = old })
	if _, err := findKeyboards(); !errors.Is(err, errNoKeyboard) {
		t.Fatalf("got %v, want errNoKeyboard", err)
	}
}

func TestEvdevRegisterReadsCombo(t *testing.T) {
	fakeInput(t,
		inputEvent(evKey, keyLCtrl, keyPress),
		inputEvent(0, 0, 0), // EV_SYN
		inputEvent(evKey, keyLShift, keyPress),
		inputEvent(evKey, keySpace, keyPress),
		inputEvent(evKey, keySpace, keyRelease),
	)
	hk := New()
	if err := hk.Register(); err != nil {
		t.Fatal(err)
	}
	defer hk.Unregister()

	for _, ch := range []<-chan struct{}{hk.Keydown(), hk.Keyup()} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("combo not reported")
		}
	}
	hk.Unregister()
}

func TestDiagnoseWithoutDisplay(t *testing.T) {
	t.Setenv("DISPLAY", "")
	fakeInput(t)
	msg, err := Diagnose()
	if err != nil {
		t.Fatal(err)
	}
	if msg == "" {
		t.Fatal("empty diagnosis")
	}
}
