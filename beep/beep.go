// Package beep plays the booth's feedback sounds: a shutter click on
// capture, rising and falling tones when the sound trigger is armed or
// disarmed, and a low double beep on errors.
package beep

import (
	"math"
	"sync"
	"sync/atomic"
)

const sampleRate = 44100

type Sound int

const (
	Shutter Sound = iota
	Arm
	Disarm
	Error
	numSounds
)

var (
	disabled  atomic.Bool
	soundOnce sync.Once
	samples   [numSounds][]int16
)

func Disable() { disabled.Store(true) }

func Init() {
	soundOnce.Do(initSound)
}

func initSound() {
	samples[Shutter] = shutterClick()
	samples[Arm] = concat(tone(880, 0.06, 0.4, 30), silence(0.02), tone(1320, 0.08, 0.4, 30))
	samples[Disarm] = concat(tone(1320, 0.06, 0.4, 30), silence(0.02), tone(880, 0.08, 0.4, 30))
	samples[Error] = concat(tone(350, 0.08, 0.6, 30), silence(0.05), tone(350, 0.08, 0.6, 30))
	initBackend()
}

// Play starts s asynchronously. It never blocks the caller on audio I/O.
func Play(s Sound) {
	if disabled.Load() || s < 0 || s >= numSounds {
		return
	}
	soundOnce.Do(initSound)
	play(samples[s])
}

func tone(freq, duration, volume, decay float64) []int16 {
	n := int(sampleRate * duration)
	out := make([]int16, n)
	for i := range out {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		out[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return out
}

func silence(duration float64) []int16 {
	return make([]int16, int(sampleRate*duration))
}

// shutterClick is two short bursts of decaying noise, the mirror flipping
// up and back down.
func shutterClick() []int16 {
	burst := func(duration, volume, decay float64, seed uint32) []int16 {
		n := int(sampleRate * duration)
		out := make([]int16, n)
		x := seed
		for i := range out {
			x = x*1664525 + 1013904223
			noise := float64(int32(x)) / math.MaxInt32
			t := float64(i) / sampleRate
			out[i] = int16(noise * 32767 * volume * math.Exp(-t*decay))
		}
		return out
	}
	return concat(burst(0.025, 0.7, 120, 1), silence(0.06), burst(0.03, 0.5, 90, 7))
}

func concat(parts ...[]int16) []int16 {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]int16, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
