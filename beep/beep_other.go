//go:build !linux

package beep

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"shutter/log"
)

var (
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device

	// Playback state, read from the device callback.
	playing atomic.Pointer[[]byte]
	playPos atomic.Uint32
	playMu  sync.Mutex
)

func initBackend() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Warnf("malgo playback: %v", err)
		return
	}
	if err := initDevice(); err != nil {
		log.Warnf("malgo playback device: %v", err)
		malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{Data: dataCallback})
	return err
}

func dataCallback(pOutput, _ []byte, frameCount uint32) {
	clear(pOutput)
	buf := playing.Load()
	if buf == nil {
		return
	}
	pos := playPos.Load()
	remaining := uint32(len(*buf)) - pos
	if remaining == 0 {
		playing.Store(nil)
		return
	}
	n := min(frameCount*2, remaining)
	copy(pOutput[:n], (*buf)[pos:pos+n])
	playPos.Store(pos + n)
}

func play(samples []int16) {
	if malgoCtx == nil || len(samples) == 0 {
		return
	}
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}

	playMu.Lock()
	defer playMu.Unlock()

	device.Stop()
	playPos.Store(0)
	playing.Store(&buf)

	if err := device.Start(); err != nil {
		// Recreate the device; it goes stale across sleep/wake.
		device.Uninit()
		if err := initDevice(); err != nil {
			playing.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			playing.Store(nil)
		}
	}
}
