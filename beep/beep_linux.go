//go:build linux

package beep

import (
	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"shutter/log"
)

func initBackend() {}

func play(samples []int16) {
	if len(samples) == 0 {
		return
	}
	go playSamples(samples)
}

func playSamples(samples []int16) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("shutter"))
	if err != nil {
		log.Warnf("pulse playback: %v", err)
		return
	}
	defer c.Close()

	// Trailing silence lets pulse fill its buffer before the stream drains.
	samples = append(samples, silence(0.15)...)
	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		log.Warnf("pulse playback: %v", err)
		return
	}
	stream.Start()
	stream.Drain()
	stream.Stop()
	stream.Close()
}
