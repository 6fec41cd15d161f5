package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext replays a WAV or FLAC file as if it were a microphone. In
// realtime mode samples are paced at the file's sample rate; otherwise the
// whole file is delivered synchronously from Start.
type FakeContext struct {
	pcm        []byte
	sampleRate uint32
	realtime   bool

	mu       sync.Mutex
	devices  []DeviceInfo
	startErr error
	last     *FakeCapture
}

func NewFakeContext(path string, realtime bool) (*FakeContext, error) {
	var (
		pcm  []byte
		rate uint32
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".flac") {
		pcm, rate, err = DecodeFLAC(path)
	} else {
		var data []byte
		data, err = os.ReadFile(path)
		if err == nil {
			pcm, rate, err = DecodeWAV(data)
		}
	}
	if err != nil {
		return nil, err
	}
	return NewFakeContextPCM(pcm, rate, realtime), nil
}

// NewFakeContextPCM replays 16-bit mono little-endian PCM.
func NewFakeContextPCM(pcm []byte, sampleRate uint32, realtime bool) *FakeContext {
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}
	return &FakeContext{
		pcm:        pcm,
		sampleRate: sampleRate,
		realtime:   realtime,
		devices:    []DeviceInfo{{ID: "fake", Name: "fake"}},
	}
}

// SetDevices replaces the reported device list. An empty list makes the
// context look like a machine with no microphone.
func (f *FakeContext) SetDevices(devices []DeviceInfo) {
	f.mu.Lock()
	f.devices = devices
	f.mu.Unlock()
}

// DenyAccess makes every subsequent Start fail with err, the way a refused
// permission prompt surfaces on real backends.
func (f *FakeContext) DenyAccess(err error) {
	f.mu.Lock()
	f.startErr = err
	f.mu.Unlock()
}

// LastCapture returns the most recently created capture device.
func (f *FakeContext) LastCapture() *FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DeviceInfo(nil), f.devices...), nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	if err := config.Processing.check(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	name := "fake"
	if device != nil {
		name = device.Name
	}
	c := &FakeCapture{
		ctx:        f,
		name:       name,
		pcm:        f.pcm,
		sampleRate: f.sampleRate,
		realtime:   f.realtime,
		startErr:   f.startErr,
		audioDone:  make(chan struct{}),
	}
	f.last = c
	return c, nil
}

type FakeCapture struct {
	ctx        *FakeContext
	name       string
	pcm        []byte
	sampleRate uint32
	realtime   bool
	startErr   error
	audioDone  chan struct{}

	mu       sync.Mutex
	cb       DataCallback
	unplug   bool
	stopCh   chan struct{}
	feedDone chan struct{}
}

func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return f.name }

// Unplug stops data delivery and removes every device from the context, as
// if the microphone had been pulled out.
func (f *FakeCapture) Unplug() {
	f.mu.Lock()
	f.unplug = true
	f.mu.Unlock()
	f.ctx.SetDevices(nil)
}

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unplug {
		return nil
	}
	return f.cb
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
	return end
}

func (f *FakeCapture) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	// audioDone is NOT recreated here -- callers may already be waiting on it.
	// It's reset in Stop() for replay.

	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	interval := time.Duration(fakeFrameSize) * time.Second / time.Duration(f.sampleRate)

	if !f.realtime {
		if cb := f.callback(); cb != nil {
			for pos := 0; pos < len(f.pcm); {
				pos = f.feedChunk(cb, pos, chunkBytes)
			}
		}
		close(f.audioDone)

		go func() {
			defer close(f.feedDone)
			silence := make([]byte, chunkBytes)
			for {
				select {
				case <-f.stopCh:
					return
				case <-time.After(time.Millisecond):
				}
				if cb := f.callback(); cb != nil {
					cb(silence, fakeFrameSize)
				}
			}
		}()
		return nil
	}

	go func() {
		defer close(f.feedDone)
		pos := 0
		silence := make([]byte, chunkBytes)
		audioFinished := false

		for {
			select {
			case <-f.stopCh:
				return
			default:
			}

			cb := f.callback()
			if cb == nil {
				time.Sleep(time.Millisecond)
				continue
			}

			if pos < len(f.pcm) {
				pos = f.feedChunk(cb, pos, chunkBytes)
			} else {
				if !audioFinished {
					audioFinished = true
					close(f.audioDone)
				}
				cb(silence, fakeFrameSize)
			}

			select {
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	if f.feedDone != nil {
		<-f.feedDone
	}
	f.audioDone = make(chan struct{}) // reset for replay
}

func (f *FakeCapture) Close() {}

// DecodeWAV extracts 16-bit PCM from a RIFF/WAVE file, averaging channels
// down to mono.
func DecodeWAV(data []byte) (pcm []byte, sampleRate uint32, err error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, errors.New("not a RIFF/WAVE file")
	}
	var channels, bits int
	for pos := 12; pos+8 <= len(data); {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4:]))
		body := data[pos+8:]
		if size > len(body) {
			size = len(body)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, errors.New("wav fmt chunk too short")
			}
			channels = int(binary.LittleEndian.Uint16(body[2:]))
			sampleRate = binary.LittleEndian.Uint32(body[4:])
			bits = int(binary.LittleEndian.Uint16(body[14:]))
		case "data":
			if channels == 0 {
				return nil, 0, errors.New("wav data before fmt chunk")
			}
			if bits != 16 {
				return nil, 0, fmt.Errorf("wav: %d-bit samples unsupported", bits)
			}
			return downmix16(body[:size], channels), sampleRate, nil
		}
		pos += 8 + size + size&1
	}
	return nil, 0, errors.New("wav has no data chunk")
}

func downmix16(pcm []byte, channels int) []byte {
	if channels == 1 {
		return pcm
	}
	frameBytes := 2 * channels
	out := make([]byte, 0, len(pcm)/channels)
	for i := 0; i+frameBytes <= len(pcm); i += frameBytes {
		var sum int
		for c := 0; c < channels; c++ {
			sum += int(int16(binary.LittleEndian.Uint16(pcm[i+2*c:])))
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(int16(sum/channels)))
	}
	return out
}
