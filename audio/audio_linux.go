//go:build linux

package audio

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
)

const recordLatency = 0.05

type pulseContext struct {
	client *pulse.Client
}

func NewContext() (Context, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("shutter"))
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return &pulseContext{client: c}, nil
}

// Devices lists capture sources. Monitor sources loop back what the speakers
// play and never hear the room, so they are left out.
func (p *pulseContext) Devices() ([]DeviceInfo, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	devices := make([]DeviceInfo, 0, len(sources))
	for _, s := range sources {
		if strings.HasSuffix(s.ID(), ".monitor") {
			continue
		}
		devices = append(devices, DeviceInfo{ID: s.ID(), Name: s.Name()})
	}
	return devices, nil
}

func (p *pulseContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	if config.SampleRate == 0 {
		config.SampleRate = DefaultSampleRate
	}
	if config.Channels == 0 {
		config.Channels = DefaultChannels
	}
	if config.Channels > 2 {
		return nil, fmt.Errorf("pulse: %d channels unsupported", config.Channels)
	}
	if err := config.Processing.check(); err != nil {
		return nil, err
	}
	return &pulseCapture{client: p.client, device: device, config: config}, nil
}

func (p *pulseContext) Close() {
	p.client.Close()
}

// pulseCapture records through PulseAudio (or PipeWire's pulse shim) at
// the source's own volume.
type pulseCapture struct {
	client   *pulse.Client
	device   *DeviceInfo
	config   CaptureConfig
	callback atomic.Pointer[DataCallback]

	// buf is only touched from the pulse reader goroutine.
	buf []byte

	mu     sync.Mutex
	stream *pulse.RecordStream
}

// deliver converts one pulse buffer to little-endian PCM and hands it to
// the callback.
func (c *pulseCapture) deliver(samples []int16) (int, error) {
	cb := c.callback.Load()
	if cb == nil || len(samples) == 0 {
		return len(samples), nil
	}
	if cap(c.buf) < len(samples)*2 {
		c.buf = make([]byte, len(samples)*2)
	}
	data := c.buf[:len(samples)*2]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	(*cb)(data, uint32(len(samples))/c.config.Channels)
	return len(samples), nil
}

func (c *pulseCapture) options() ([]pulse.RecordOption, error) {
	layout := pulse.RecordMono
	if c.config.Channels == 2 {
		layout = pulse.RecordStereo
	}
	opts := []pulse.RecordOption{
		layout,
		pulse.RecordSampleRate(int(c.config.SampleRate)),
		pulse.RecordLatency(recordLatency),
	}
	if c.device != nil {
		source, err := c.client.SourceByID(c.device.ID)
		if err != nil {
			return nil, fmt.Errorf("pulse source %q: %w", c.device.Name, err)
		}
		opts = append(opts, pulse.RecordSource(source))
	}
	return opts, nil
}

func (c *pulseCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return nil
	}

	opts, err := c.options()
	if err != nil {
		return err
	}
	stream, err := c.client.NewRecord(pulse.Int16Writer(c.deliver), opts...)
	if err != nil {
		return fmt.Errorf("pulse record: %w", err)
	}
	stream.Start()
	c.stream = stream
	return nil
}

func (c *pulseCapture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return
	}
	c.stream.Stop()
	c.stream.Close()
	c.stream = nil
}

func (c *pulseCapture) Close() {
	c.Stop()
}

func (c *pulseCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *pulseCapture) ClearCallback() {
	c.callback.Store(nil)
}

func (c *pulseCapture) DeviceName() string {
	if c.device != nil {
		return c.device.Name
	}
	return "system default"
}
