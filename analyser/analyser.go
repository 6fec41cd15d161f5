// Package analyser computes byte-scaled frequency magnitudes from a stream of
// PCM samples, matching the Web Audio AnalyserNode: Blackman window, FFT,
// exponential smoothing over time, then decibels mapped linearly onto 0-255.
package analyser

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	DefaultFFTSize     = 256
	DefaultSmoothing   = 0.8
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0
)

type Config struct {
	FFTSize     int
	Smoothing   float64 // time constant in [0, 1)
	MinDecibels float64
	MaxDecibels float64
}

func DefaultConfig() Config {
	return Config{
		FFTSize:     DefaultFFTSize,
		Smoothing:   DefaultSmoothing,
		MinDecibels: DefaultMinDecibels,
		MaxDecibels: DefaultMaxDecibels,
	}
}

func (c Config) validate() error {
	if c.FFTSize < 32 || c.FFTSize > 32768 || c.FFTSize&(c.FFTSize-1) != 0 {
		return fmt.Errorf("fft size %d must be a power of two in [32, 32768]", c.FFTSize)
	}
	if c.Smoothing < 0 || c.Smoothing >= 1 {
		return fmt.Errorf("smoothing %v must be in [0, 1)", c.Smoothing)
	}
	if c.MinDecibels >= c.MaxDecibels {
		return fmt.Errorf("min decibels %v must be below max decibels %v", c.MinDecibels, c.MaxDecibels)
	}
	return nil
}

// Analyser is safe for one writer (the audio callback) and concurrent readers.
type Analyser struct {
	cfg    Config
	fft    *fourier.FFT
	window []float64

	mu     sync.Mutex
	ring   []float64
	pos    int
	frame  []float64
	coeffs []complex128
	smooth []float64
}

func New(cfg Config) (*Analyser, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	n := cfg.FFTSize
	return &Analyser{
		cfg:    cfg,
		fft:    fourier.NewFFT(n),
		window: blackman(n),
		ring:   make([]float64, n),
		frame:  make([]float64, n),
		coeffs: make([]complex128, n/2+1),
		smooth: make([]float64, n/2),
	}, nil
}

func blackman(n int) []float64 {
	const alpha = 0.16
	a0, a1, a2 := (1-alpha)/2, 0.5, alpha/2
	w := make([]float64, n)
	for i := range w {
		x := float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(2*math.Pi*x) + a2*math.Cos(4*math.Pi*x)
	}
	return w
}

func (a *Analyser) FFTSize() int  { return a.cfg.FFTSize }
func (a *Analyser) BinCount() int { return a.cfg.FFTSize / 2 }

// Write appends samples, keeping only the most recent FFTSize of them.
func (a *Analyser) Write(samples []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range samples {
		a.ring[a.pos] = s
		a.pos = (a.pos + 1) % len(a.ring)
	}
}

// WritePCM16 appends interleaved little-endian signed 16-bit PCM, averaging
// channels down to mono.
func (a *Analyser) WritePCM16(data []byte, channels int) {
	if channels < 1 {
		channels = 1
	}
	frameBytes := 2 * channels
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i+frameBytes <= len(data); i += frameBytes {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(int16(binary.LittleEndian.Uint16(data[i+2*c:])))
		}
		a.ring[a.pos] = sum / float64(channels) / 32768.0
		a.pos = (a.pos + 1) % len(a.ring)
	}
}

// Reset clears buffered samples and smoothing history.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ring)
	clear(a.smooth)
	a.pos = 0
}

// ByteFrequencyData writes up to BinCount magnitudes into dst and returns the
// number written. Each call advances the smoothing state by one step.
func (a *Analyser) ByteFrequencyData(dst []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.ring)
	for i := 0; i < n; i++ {
		a.frame[i] = a.ring[(a.pos+i)%n] * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)

	tau := a.cfg.Smoothing
	rangeScale := 255 / (a.cfg.MaxDecibels - a.cfg.MinDecibels)
	count := min(len(dst), len(a.smooth))
	for k := range a.smooth {
		mag := cmplx.Abs(a.coeffs[k]) / float64(n)
		a.smooth[k] = tau*a.smooth[k] + (1-tau)*mag
		if k >= count {
			continue
		}
		db := 20 * math.Log10(a.smooth[k])
		v := math.Floor(rangeScale * (db - a.cfg.MinDecibels))
		switch {
		case math.IsNaN(v) || v < 0:
			dst[k] = 0
		case v > 255:
			dst[k] = 255
		default:
			dst[k] = byte(v)
		}
	}
	return count
}
