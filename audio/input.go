package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"shutter/analyser"
	"shutter/gate"
	"shutter/log"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultStallTimeout = 2 * time.Second
)

var errStreamClosed = errors.New("input stream closed")

// Input opens a capture device and exposes it to a gate as amplitude bins.
// Capture runs with all processing off so the level reflects the room.
type Input struct {
	// NewContext creates the backend; nil means the platform default.
	NewContext func() (Context, error)
	// Device selects a device by name; empty means the system default.
	Device   string
	Config   CaptureConfig
	Analyser analyser.Config

	// PollInterval is how often the device list is checked for the
	// selected device. StallTimeout is how long the stream may go without
	// data before it is reported lost.
	PollInterval time.Duration
	StallTimeout time.Duration
}

func accessError(err error) error {
	return &gate.AudioAccessError{Err: err}
}

func (in *Input) Open(ctx context.Context) (gate.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	newContext := in.NewContext
	if newContext == nil {
		newContext = NewContext
	}
	actx, err := newContext()
	if err != nil {
		return nil, accessError(err)
	}

	devices, err := actx.Devices()
	if err != nil {
		actx.Close()
		return nil, accessError(err)
	}
	if len(devices) == 0 {
		actx.Close()
		return nil, accessError(ErrNoDevice)
	}
	var dev *DeviceInfo
	if in.Device != "" {
		if dev = FindDevice(devices, in.Device); dev == nil {
			actx.Close()
			return nil, accessError(fmt.Errorf("device %q: %w", in.Device, ErrNoDevice))
		}
	}

	cfg := in.Config
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Channels == 0 {
		cfg.Channels = DefaultChannels
	}

	acfg := in.Analyser
	if acfg.FFTSize == 0 {
		acfg = analyser.DefaultConfig()
	}
	an, err := analyser.New(acfg)
	if err != nil {
		actx.Close()
		return nil, err
	}

	capture, err := actx.NewCapture(dev, cfg)
	if err != nil {
		actx.Close()
		return nil, accessError(err)
	}

	s := &inputStream{
		actx:     actx,
		capture:  capture,
		an:       an,
		device:   dev,
		channels: int(cfg.Channels),
		lost:     make(chan struct{}),
		stop:     make(chan struct{}),
	}
	s.lastData.Store(time.Now().UnixNano())
	capture.SetCallback(s.onData)

	if err := ctx.Err(); err != nil {
		s.shutdown()
		return nil, err
	}
	if err := capture.Start(); err != nil {
		s.shutdown()
		return nil, accessError(err)
	}

	poll := in.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	stall := in.StallTimeout
	if stall <= 0 {
		stall = DefaultStallTimeout
	}
	s.wg.Add(1)
	go s.watch(poll, stall)
	return s, nil
}

type inputStream struct {
	actx     Context
	capture  CaptureDevice
	an       *analyser.Analyser
	device   *DeviceInfo
	channels int

	lastData atomic.Int64
	closed   atomic.Bool

	lostOnce  sync.Once
	lost      chan struct{}
	closeOnce sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

func (s *inputStream) onData(data []byte, _ uint32) {
	s.lastData.Store(time.Now().UnixNano())
	s.an.WritePCM16(data, s.channels)
}

func (s *inputStream) ReadBins(dst []byte) (int, error) {
	if s.closed.Load() {
		return 0, errStreamClosed
	}
	return s.an.ByteFrequencyData(dst), nil
}

func (s *inputStream) BinCount() int         { return s.an.BinCount() }
func (s *inputStream) DeviceName() string    { return s.capture.DeviceName() }
func (s *inputStream) Lost() <-chan struct{} { return s.lost }

func (s *inputStream) markLost(reason string) {
	s.lostOnce.Do(func() {
		log.Warnf("device_lost: %s (%s)", s.DeviceName(), reason)
		close(s.lost)
	})
}

// watch reports the stream lost when data stops arriving or the selected
// device disappears from the device list.
func (s *inputStream) watch(poll, stall time.Duration) {
	defer s.wg.Done()
	check := min(poll, stall) / 4
	ticker := time.NewTicker(max(check, 10*time.Millisecond))
	defer ticker.Stop()
	lastPoll := time.Now()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			if now.Sub(time.Unix(0, s.lastData.Load())) > stall {
				s.markLost("no audio data")
				return
			}
			if now.Sub(lastPoll) < poll {
				continue
			}
			lastPoll = now
			if !s.devicePresent() {
				s.markLost("device removed")
				return
			}
		}
	}
}

func (s *inputStream) devicePresent() bool {
	devices, err := s.actx.Devices()
	if err != nil {
		// Transient enumeration failures are left to the stall check.
		return true
	}
	if s.device == nil {
		return len(devices) > 0
	}
	for _, d := range devices {
		if d.ID == s.device.ID {
			return true
		}
	}
	return false
}

func (s *inputStream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.stop)
		s.wg.Wait()
		s.shutdown()
	})
	return nil
}

func (s *inputStream) shutdown() {
	s.capture.ClearCallback()
	s.capture.Stop()
	s.capture.Close()
	s.actx.Close()
	s.an.Reset()
}
