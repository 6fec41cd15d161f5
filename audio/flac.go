package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

const flacBlockSize = 4096

// EncodeFLAC writes mono 16-bit samples to path as a verbatim FLAC stream.
func EncodeFLAC(path string, samples []int16, sampleRate uint32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info := &meta.StreamInfo{
		BlockSizeMin:  flacBlockSize,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    sampleRate,
		NChannels:     1,
		BitsPerSample: 16,
		NSamples:      uint64(len(samples)),
	}
	enc, err := flac.NewEncoder(f, info)
	if err != nil {
		return fmt.Errorf("creating flac encoder: %w", err)
	}

	for start := 0; start < len(samples); start += flacBlockSize {
		block := samples[start:min(start+flacBlockSize, len(samples))]
		samples32 := make([]int32, len(block))
		for i, s := range block {
			samples32[i] = int32(s)
		}
		fr := &frame.Frame{
			Header: frame.Header{
				BlockSize:     uint16(len(block)),
				SampleRate:    sampleRate,
				Channels:      frame.ChannelsMono,
				BitsPerSample: 16,
			},
			Subframes: []*frame.Subframe{{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   samples32,
				NSamples:  len(block),
			}},
		}
		if err := enc.WriteFrame(fr); err != nil {
			enc.Close()
			return fmt.Errorf("writing flac frame: %w", err)
		}
	}
	return enc.Close()
}

// DecodeFLAC reads a FLAC file into little-endian 16-bit mono PCM.
func DecodeFLAC(path string) (pcm []byte, sampleRate uint32, err error) {
	stream, err := flac.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening flac: %w", err)
	}
	defer stream.Close()

	nch := int(stream.Info.NChannels)
	bps := int(stream.Info.BitsPerSample)
	for {
		fr, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("decoding flac: %w", err)
		}
		n := len(fr.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			var sum int64
			for ch := 0; ch < nch; ch++ {
				sum += int64(fr.Subframes[ch].Samples[i])
			}
			v := sum / int64(nch)
			if bps > 16 {
				v >>= bps - 16
			} else if bps < 16 {
				v <<= 16 - bps
			}
			pcm = binary.LittleEndian.AppendUint16(pcm, uint16(int16(v)))
		}
	}
	return pcm, stream.Info.SampleRate, nil
}
