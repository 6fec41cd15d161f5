package beep

import "testing"

func peak(s []int16) int {
	var p int
	for _, v := range s {
		a := int(v)
		if a < 0 {
			a = -a
		}
		p = max(p, a)
	}
	return p
}

func TestSoundsAreAudibleAndShort(t *testing.T) {
	sounds := map[string][]int16{
		"shutter": shutterClick(),
		"arm":     concat(tone(880, 0.06, 0.4, 30), tone(1320, 0.08, 0.4, 30)),
		"error":   concat(tone(350, 0.08, 0.6, 30), silence(0.05), tone(350, 0.08, 0.6, 30)),
	}
	for name, s := range sounds {
		if len(s) == 0 || len(s) > sampleRate/2 {
			t.Errorf("%s: %d samples, want a short non-empty sound", name, len(s))
		}
		if p := peak(s); p < 8000 {
			t.Errorf("%s: peak %d too quiet", name, p)
		}
	}
}

func TestToneDecays(t *testing.T) {
	s := tone(1000, 0.1, 0.5, 40)
	head := peak(s[:len(s)/4])
	tail := peak(s[3*len(s)/4:])
	if tail >= head {
		t.Fatalf("tail peak %d should be below head peak %d", tail, head)
	}
}

func TestConcatLength(t *testing.T) {
	got := concat(silence(0.01), tone(440, 0.02, 0.1, 1))
	if want := int(sampleRate*0.01) + int(sampleRate*0.02); len(got) != want {
		t.Fatalf("len = %d, want %d", len(got), want)
	}
}

func TestPlayWhenDisabled(t *testing.T) {
	Disable()
	// Must return without touching an audio backend.
	Play(Shutter)
	Play(Sound(99))
}
