// Package gate turns a live audio amplitude stream into a debounced trigger.
//
// A Gate samples frequency-domain amplitude bins once per scheduler tick,
// reduces them to a normalized level in [0, 1], and fires its callback when
// the level is strictly above the threshold and at least the cooldown has
// elapsed since the previous firing.
package gate

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"shutter/log"
)

// Source acquires an audio input stream. Open blocks until the device is
// granted or refused.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an acquired input device exposing amplitude bins.
type Stream interface {
	// ReadBins copies the current amplitude bins into dst and returns how
	// many were written.
	ReadBins(dst []byte) (int, error)
	BinCount() int
	DeviceName() string
	// Lost is closed when the device stops delivering audio.
	Lost() <-chan struct{}
	Close() error
}

// Gate watches the input level and calls its callback when the level rises
// above the threshold, at most once per cooldown. It is created disabled;
// Enable and Disable are safe from any goroutine, including the callback.
type Gate struct {
	source Source
	sched  Scheduler

	opMu sync.Mutex // serializes Enable and Disable

	mu          sync.Mutex
	threshold   float64
	cooldown    time.Duration
	lastTrigger time.Time
	fired       bool
	enabled     bool
	gen         uint64
	stream      Stream
	bins        []byte
	level       float64
	callback    func()
	onLevel     func(level float64)
	onError     func(err error)
}

// New returns a disabled gate. A nil scheduler means a 60 fps FrameTicker.
func New(source Source, sched Scheduler) *Gate {
	if sched == nil {
		sched = NewFrameTicker(DefaultFrameRate)
	}
	return &Gate{source: source, sched: sched}
}

func validate(threshold float64, cooldown time.Duration) error {
	if threshold < 0 || threshold > 1 || math.IsNaN(threshold) {
		return ErrInvalidThreshold
	}
	if cooldown < 0 {
		return ErrInvalidCooldown
	}
	return nil
}

// Enable acquires the input device and starts sampling. If the device
// cannot be acquired the returned error is an *AudioAccessError and the gate
// stays disabled. Enabling an enabled gate re-acquires the device.
func (g *Gate) Enable(ctx context.Context, threshold float64, cooldown time.Duration) error {
	if err := validate(threshold, cooldown); err != nil {
		return err
	}

	g.opMu.Lock()
	defer g.opMu.Unlock()

	g.release("reenable")

	stream, err := g.source.Open(ctx)
	if err != nil {
		log.Errorf("gate enable failed: %v", err)
		var accessErr *AudioAccessError
		if errors.As(err, &accessErr) {
			return accessErr
		}
		return &AudioAccessError{Err: err}
	}

	g.mu.Lock()
	g.threshold = threshold
	g.cooldown = cooldown
	g.stream = stream
	g.bins = make([]byte, stream.BinCount())
	g.level = 0
	g.enabled = true
	g.gen++
	gen := g.gen
	g.sched.Start(func(now time.Time) { g.tick(gen, now) })
	g.mu.Unlock()

	log.GateEnabled(threshold, cooldown, stream.DeviceName())
	return nil
}

// Disable stops sampling and releases the device. It is idempotent and may
// be called from inside the trigger callback.
func (g *Gate) Disable() {
	g.opMu.Lock()
	defer g.opMu.Unlock()
	g.release("disable")
}

func (g *Gate) release(reason string) {
	stream, onLevel := g.detach()
	if stream == nil {
		return
	}
	if err := stream.Close(); err != nil {
		log.Warnf("closing audio stream: %v", err)
	}
	if onLevel != nil {
		onLevel(0)
	}
	log.GateDisabled(reason)
}

// detach flips the gate to disabled and hands back the stream to close.
// Only the caller that observes enabled=true gets a non-nil stream.
func (g *Gate) detach() (Stream, func(float64)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.enabled {
		return nil, nil
	}
	g.enabled = false
	g.sched.Stop()
	stream := g.stream
	g.stream = nil
	g.level = 0
	return stream, g.onLevel
}

// SetCallback replaces the trigger callback. Takes effect on the next tick.
func (g *Gate) SetCallback(fn func()) {
	g.mu.Lock()
	g.callback = fn
	g.mu.Unlock()
}

// OnLevel registers a meter callback invoked with the normalized level on
// every tick, and with 0 when the gate is disabled.
func (g *Gate) OnLevel(fn func(level float64)) {
	g.mu.Lock()
	g.onLevel = fn
	g.mu.Unlock()
}

// OnError registers a callback for asynchronous failures (ErrDeviceLost).
func (g *Gate) OnError(fn func(err error)) {
	g.mu.Lock()
	g.onError = fn
	g.mu.Unlock()
}

func (g *Gate) SetThreshold(threshold float64) error {
	if err := validate(threshold, 0); err != nil {
		return err
	}
	g.mu.Lock()
	g.threshold = threshold
	g.mu.Unlock()
	return nil
}

func (g *Gate) SetCooldown(cooldown time.Duration) error {
	if err := validate(0, cooldown); err != nil {
		return err
	}
	g.mu.Lock()
	g.cooldown = cooldown
	g.mu.Unlock()
	return nil
}

func (g *Gate) Threshold() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.threshold
}

func (g *Gate) Cooldown() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cooldown
}

func (g *Gate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// Level returns the normalized level of the most recent tick.
func (g *Gate) Level() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.level
}

// LastTrigger returns when the callback last fired; zero if it never has.
func (g *Gate) LastTrigger() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastTrigger
}

func (g *Gate) tick(gen uint64, now time.Time) {
	g.mu.Lock()
	if !g.enabled || gen != g.gen {
		g.mu.Unlock()
		return
	}

	select {
	case <-g.stream.Lost():
		g.mu.Unlock()
		g.lose()
		return
	default:
	}

	level := readLevel(g.stream, g.bins)
	g.level = level

	var fire func()
	if level > g.threshold && g.callback != nil &&
		(!g.fired || now.Sub(g.lastTrigger) >= g.cooldown) {
		g.lastTrigger = now
		g.fired = true
		fire = g.callback
	}
	onLevel := g.onLevel
	g.mu.Unlock()

	if onLevel != nil {
		onLevel(level)
	}
	if fire != nil {
		log.Trigger(level)
		fire()
	}
}

func (g *Gate) lose() {
	stream, onLevel := g.detach()
	if stream == nil {
		return
	}
	if err := stream.Close(); err != nil {
		log.Warnf("closing lost audio stream: %v", err)
	}
	if onLevel != nil {
		onLevel(0)
	}
	log.GateDisabled("device_lost")

	g.mu.Lock()
	onError := g.onError
	g.mu.Unlock()
	if onError != nil {
		onError(ErrDeviceLost)
	}
}

// readLevel reads one frame of bins. Read failures and backend panics count
// as silence.
func readLevel(s Stream, bins []byte) (level float64) {
	defer func() {
		if recover() != nil {
			level = 0
		}
	}()
	n, err := s.ReadBins(bins)
	if err != nil || n <= 0 {
		return 0
	}
	return MeanLevel(bins[:min(n, len(bins))])
}

// MeanLevel reduces amplitude bins to their mean over 255, in [0, 1].
func MeanLevel(bins []byte) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum int
	for _, b := range bins {
		sum += int(b)
	}
	return float64(sum) / float64(len(bins)) / 255
}
