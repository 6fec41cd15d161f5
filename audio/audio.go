package audio

import (
	"errors"
	"fmt"
	"strings"
)

const (
	WAVHeaderSize     = 44
	DefaultSampleRate = 48000
	DefaultChannels   = 1
)

var ErrNoDevice = errors.New("no capture device available")

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DataCallback receives 16-bit little-endian PCM. data is only valid for
// the duration of the call.
type DataCallback func(data []byte, frameCount uint32)

// Processing lists input conditioning a capture could ask for. Level
// detection needs the raw signal, and none of the backends can condition
// it anyway, so NewCapture rejects any flag with ErrProcessingUnsupported.
type Processing struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGain         bool
}

var ErrProcessingUnsupported = errors.New("audio processing is not supported; capture is always raw")

func (p Processing) check() error {
	var on []string
	if p.EchoCancellation {
		on = append(on, "echo cancellation")
	}
	if p.NoiseSuppression {
		on = append(on, "noise suppression")
	}
	if p.AutoGain {
		on = append(on, "auto gain")
	}
	if len(on) > 0 {
		return fmt.Errorf("%w: %s", ErrProcessingUnsupported, strings.Join(on, ", "))
	}
	return nil
}

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
	Processing Processing
}

// RawConfig is 16-bit mono at the given rate with all processing disabled.
func RawConfig(sampleRate uint32) CaptureConfig {
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}
	return CaptureConfig{SampleRate: sampleRate, Channels: DefaultChannels}
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// FindDevice returns the device whose name matches exactly, falling back to
// a case-insensitive substring match.
func FindDevice(devices []DeviceInfo, name string) *DeviceInfo {
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i]
		}
	}
	lower := strings.ToLower(name)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), lower) {
			return &devices[i]
		}
	}
	return nil
}
