package clipboard

import "testing"

func TestCopyRoundTrip(t *testing.T) {
	if !Available() {
		t.Skip("no clipboard backend")
	}
	const want = "/home/booth/Pictures/shutter/shutter-20261017-120000.000.png"
	if err := Copy(want); err != nil {
		t.Skipf("clipboard not writable here: %v", err)
	}
	got, err := Read()
	if err != nil {
		t.Skipf("clipboard not readable here: %v", err)
	}
	if got != want {
		t.Fatalf("read %q, want %q", got, want)
	}
}
