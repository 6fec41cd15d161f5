package analyser

import (
	"encoding/binary"
	"math"
	"testing"
)

func sine(amplitude, cyclesPerFrame float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*cyclesPerFrame*float64(i)/float64(n))
	}
	return out
}

func mean(b []byte) float64 {
	var sum int
	for _, v := range b {
		sum += int(v)
	}
	return float64(sum) / float64(len(b))
}

func mustNew(t *testing.T) *Analyser {
	t.Helper()
	a, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return a
}

// settle runs enough frames for the smoothing filter to converge.
func settle(a *Analyser, bins []byte) {
	for i := 0; i < 60; i++ {
		a.ByteFrequencyData(bins)
	}
}

func TestSilenceIsZero(t *testing.T) {
	a := mustNew(t)
	bins := make([]byte, a.BinCount())
	a.Write(make([]float64, a.FFTSize()))
	if n := a.ByteFrequencyData(bins); n != 128 {
		t.Fatalf("wrote %d bins, want 128", n)
	}
	for k, v := range bins {
		if v != 0 {
			t.Fatalf("bin %d = %d on silence", k, v)
		}
	}
}

func TestToneLandsInItsBin(t *testing.T) {
	a := mustNew(t)
	bins := make([]byte, a.BinCount())
	a.Write(sine(0.5, 16, a.FFTSize()))
	settle(a, bins)

	peak := 0
	for k := range bins {
		if bins[k] > bins[peak] {
			peak = k
		}
	}
	if peak < 15 || peak > 17 {
		t.Fatalf("peak at bin %d, want ~16", peak)
	}
	if bins[peak] < 200 {
		t.Fatalf("peak magnitude %d unexpectedly low", bins[peak])
	}
}

func TestLouderMeansHigherLevel(t *testing.T) {
	quiet, loud := mustNew(t), mustNew(t)
	qb := make([]byte, quiet.BinCount())
	lb := make([]byte, loud.BinCount())

	quiet.Write(sine(0.001, 10, 256))
	loud.Write(sine(0.8, 10, 256))
	settle(quiet, qb)
	settle(loud, lb)

	if mean(lb) <= mean(qb) {
		t.Fatalf("loud mean %.1f <= quiet mean %.1f", mean(lb), mean(qb))
	}
}

func TestSmoothingDecays(t *testing.T) {
	a := mustNew(t)
	bins := make([]byte, a.BinCount())
	// Quiet enough that the bin does not saturate at 255.
	a.Write(sine(0.01, 20, 256))
	settle(a, bins)
	loud := bins[20]

	a.Write(make([]float64, 256))
	a.ByteFrequencyData(bins)
	if bins[20] == 0 {
		t.Fatal("smoothing should keep energy for a frame after silence")
	}
	if bins[20] >= loud {
		t.Fatalf("bin should decay: %d -> %d", loud, bins[20])
	}
}

func TestRingKeepsLatestSamples(t *testing.T) {
	a := mustNew(t)
	bins := make([]byte, a.BinCount())
	a.Write(sine(0.8, 20, 256))
	a.Write(make([]float64, 256))
	a.ByteFrequencyData(bins)
	for k, v := range bins {
		if v != 0 {
			t.Fatalf("bin %d = %d; old samples should have been overwritten", k, v)
		}
	}
}

func TestWritePCM16Downmix(t *testing.T) {
	a := mustNew(t)
	// Stereo frames with opposite channels cancel to silence.
	left, right := int16(20000), int16(-20000)
	data := make([]byte, 256*4)
	for i := 0; i < 256; i++ {
		binary.LittleEndian.PutUint16(data[i*4:], uint16(left))
		binary.LittleEndian.PutUint16(data[i*4+2:], uint16(right))
	}
	a.WritePCM16(data, 2)
	bins := make([]byte, a.BinCount())
	a.ByteFrequencyData(bins)
	if mean(bins) != 0 {
		t.Fatalf("expected cancelled stereo to be silent, mean %.2f", mean(bins))
	}
}

func TestWritePCM16MatchesWrite(t *testing.T) {
	pcm, floats := mustNew(t), mustNew(t)
	samples := sine(0.6, 12, 256)
	data := make([]byte, len(samples)*2)
	scaled := make([]float64, len(samples))
	for i, s := range samples {
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
		scaled[i] = float64(v) / 32768
	}
	pcm.WritePCM16(data, 1)
	floats.Write(scaled)

	got := make([]byte, pcm.BinCount())
	want := make([]byte, floats.BinCount())
	pcm.ByteFrequencyData(got)
	floats.ByteFrequencyData(want)
	for k := range want {
		if got[k] != want[k] {
			t.Fatalf("bin %d: WritePCM16 %d, Write %d", k, got[k], want[k])
		}
	}
}

func TestShortDestination(t *testing.T) {
	a := mustNew(t)
	a.Write(sine(0.5, 4, 256))
	dst := make([]byte, 10)
	if n := a.ByteFrequencyData(dst); n != 10 {
		t.Fatalf("wrote %d, want 10", n)
	}
}

func TestReset(t *testing.T) {
	a := mustNew(t)
	bins := make([]byte, a.BinCount())
	a.Write(sine(0.8, 20, 256))
	settle(a, bins)
	a.Reset()
	a.ByteFrequencyData(bins)
	if mean(bins) != 0 {
		t.Fatal("expected silence after reset")
	}
}

func TestInvalidConfig(t *testing.T) {
	bad := []Config{
		{FFTSize: 100, Smoothing: 0.8, MinDecibels: -100, MaxDecibels: -30},
		{FFTSize: 16, Smoothing: 0.8, MinDecibels: -100, MaxDecibels: -30},
		{FFTSize: 256, Smoothing: 1, MinDecibels: -100, MaxDecibels: -30},
		{FFTSize: 256, Smoothing: 0.8, MinDecibels: -30, MaxDecibels: -30},
	}
	for _, cfg := range bad {
		if _, err := New(cfg); err == nil {
			t.Errorf("expected error for %+v", cfg)
		}
	}
}
