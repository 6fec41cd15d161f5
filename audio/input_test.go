package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"shutter/gate"
)

func tonePCM(amplitude, freq float64, rate uint32, d time.Duration) []byte {
	n := int(float64(rate) * d.Seconds())
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v*32767)))
	}
	return pcm
}

func fakeInput(fc *FakeContext) *Input {
	return &Input{
		NewContext:   func() (Context, error) { return fc, nil },
		PollInterval: 20 * time.Millisecond,
		StallTimeout: 100 * time.Millisecond,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestInputDeliversBins(t *testing.T) {
	fc := NewFakeContextPCM(tonePCM(0.5, 1000, 48000, 5*time.Second), 48000, true)
	s, err := fakeInput(fc).Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if s.BinCount() != 128 {
		t.Fatalf("BinCount = %d, want 128", s.BinCount())
	}
	bins := make([]byte, s.BinCount())
	waitFor(t, "non-zero bins", func() bool {
		n, err := s.ReadBins(bins)
		if err != nil || n != 128 {
			return false
		}
		for _, b := range bins {
			if b > 0 {
				return true
			}
		}
		return false
	})
}

func TestInputNoDevice(t *testing.T) {
	fc := NewFakeContextPCM(nil, 48000, true)
	fc.SetDevices(nil)

	_, err := fakeInput(fc).Open(context.Background())
	var accessErr *gate.AudioAccessError
	if !errors.As(err, &accessErr) {
		t.Fatalf("expected AudioAccessError, got %v", err)
	}
	if !errors.Is(err, ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice, got %v", err)
	}
}

func TestInputUnknownDevice(t *testing.T) {
	fc := NewFakeContextPCM(nil, 48000, true)
	in := fakeInput(fc)
	in.Device = "USB Boom Mic"

	if _, err := in.Open(context.Background()); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice, got %v", err)
	}
}

func TestInputPermissionDenied(t *testing.T) {
	fc := NewFakeContextPCM(nil, 48000, true)
	denied := errors.New("permission denied")
	fc.DenyAccess(denied)

	_, err := fakeInput(fc).Open(context.Background())
	var accessErr *gate.AudioAccessError
	if !errors.As(err, &accessErr) || !errors.Is(err, denied) {
		t.Fatalf("expected wrapped permission error, got %v", err)
	}
}

func TestInputBackendUnavailable(t *testing.T) {
	in := &Input{NewContext: func() (Context, error) { return nil, errors.New("no sound server") }}
	_, err := in.Open(context.Background())
	var accessErr *gate.AudioAccessError
	if !errors.As(err, &accessErr) {
		t.Fatalf("expected AudioAccessError, got %v", err)
	}
}

func TestInputCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fc := NewFakeContextPCM(nil, 48000, true)
	if _, err := fakeInput(fc).Open(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestInputUnplugIsLost(t *testing.T) {
	fc := NewFakeContextPCM(tonePCM(0.5, 1000, 48000, time.Second), 48000, true)
	s, err := fakeInput(fc).Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	select {
	case <-s.Lost():
		t.Fatal("lost before unplug")
	case <-time.After(50 * time.Millisecond):
	}

	fc.LastCapture().Unplug()
	select {
	case <-s.Lost():
	case <-time.After(2 * time.Second):
		t.Fatal("unplug never reported")
	}
}

func TestInputCloseIdempotent(t *testing.T) {
	fc := NewFakeContextPCM(nil, 48000, true)
	s, err := fakeInput(fc).Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ReadBins(make([]byte, 128)); err == nil {
		t.Fatal("ReadBins after Close should fail")
	}
}

func TestInputDrivesGate(t *testing.T) {
	fc := NewFakeContextPCM(tonePCM(0.9, 2000, 48000, 5*time.Second), 48000, true)
	sched := gate.NewManualScheduler()
	g := gate.New(fakeInput(fc), sched)

	fired := make(chan struct{}, 1)
	g.SetCallback(func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	if err := g.Enable(context.Background(), 0.01, time.Second); err != nil {
		t.Fatal(err)
	}
	defer g.Disable()

	if g.Enabled() != true {
		t.Fatal("gate should be enabled")
	}
	waitFor(t, "trigger", func() bool {
		sched.Fire(time.Now())
		select {
		case <-fired:
			return true
		default:
			return false
		}
	})
}

func TestFLACFixture(t *testing.T) {
	samples := make([]int16, 10000)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(float64(i)/10))
	}
	path := filepath.Join(t.TempDir(), "clap.flac")
	if err := EncodeFLAC(path, samples, 44100); err != nil {
		t.Fatal(err)
	}

	fc, err := NewFakeContext(path, false)
	if err != nil {
		t.Fatal(err)
	}
	if fc.sampleRate != 44100 {
		t.Errorf("sample rate = %d, want 44100", fc.sampleRate)
	}
	if len(fc.pcm) != len(samples)*2 {
		t.Fatalf("decoded %d bytes, want %d", len(fc.pcm), len(samples)*2)
	}
	for i := 0; i < len(samples); i += 997 {
		if got := int16(binary.LittleEndian.Uint16(fc.pcm[i*2:])); got != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, got, samples[i])
		}
	}
}

func TestDecodeWAVStereo(t *testing.T) {
	const frames = 4
	body := make([]byte, frames*4)
	for i := 0; i < frames; i++ {
		binary.LittleEndian.PutUint16(body[i*4:], uint16(int16(1000)))
		binary.LittleEndian.PutUint16(body[i*4+2:], uint16(int16(3000)))
	}
	wav := make([]byte, 44)
	copy(wav[0:4], "RIFF")
	binary.LittleEndian.PutUint32(wav[4:8], uint32(36+len(body)))
	copy(wav[8:12], "WAVE")
	copy(wav[12:16], "fmt ")
	binary.LittleEndian.PutUint32(wav[16:20], 16)
	binary.LittleEndian.PutUint16(wav[20:22], 1)
	binary.LittleEndian.PutUint16(wav[22:24], 2)
	binary.LittleEndian.PutUint32(wav[24:28], 22050)
	binary.LittleEndian.PutUint32(wav[28:32], 22050*4)
	binary.LittleEndian.PutUint16(wav[32:34], 4)
	binary.LittleEndian.PutUint16(wav[34:36], 16)
	copy(wav[36:40], "data")
	binary.LittleEndian.PutUint32(wav[40:44], uint32(len(body)))
	wav = append(wav, body...)

	pcm, rate, err := DecodeWAV(wav)
	if err != nil {
		t.Fatal(err)
	}
	if rate != 22050 {
		t.Errorf("rate = %d", rate)
	}
	if len(pcm) != frames*2 {
		t.Fatalf("got %d bytes, want %d", len(pcm), frames*2)
	}
	if v := int16(binary.LittleEndian.Uint16(pcm)); v != 2000 {
		t.Errorf("downmixed sample = %d, want 2000", v)
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("definitely not audio")); err == nil {
		t.Fatal("expected error")
	}
}

func TestFindDevice(t *testing.T) {
	devices := []DeviceInfo{
		{ID: "1", Name: "Built-in Microphone"},
		{ID: "2", Name: "USB Audio CODEC"},
	}
	if d := FindDevice(devices, "USB Audio CODEC"); d == nil || d.ID != "2" {
		t.Fatalf("exact match failed: %+v", d)
	}
	if d := FindDevice(devices, "built-in"); d == nil || d.ID != "1" {
		t.Fatalf("substring match failed: %+v", d)
	}
	if d := FindDevice(devices, "webcam"); d != nil {
		t.Fatalf("expected no match, got %+v", d)
	}
}

func TestIsBluetooth(t *testing.T) {
	if !IsBluetooth("AirPods Pro") {
		t.Error("AirPods should be bluetooth")
	}
	if IsBluetooth("Built-in Microphone") {
		t.Error("built-in mic is not bluetooth")
	}
}

func TestCaptureRejectsProcessing(t *testing.T) {
	fc := NewFakeContextPCM(nil, 48000, true)
	for _, p := range []Processing{
		{EchoCancellation: true},
		{NoiseSuppression: true},
		{AutoGain: true},
	} {
		cfg := RawConfig(0)
		cfg.Processing = p
		if _, err := fc.NewCapture(nil, cfg); !errors.Is(err, ErrProcessingUnsupported) {
			t.Errorf("%+v: got %v, want ErrProcessingUnsupported", p, err)
		}
	}
	if _, err := fc.NewCapture(nil, RawConfig(0)); err != nil {
		t.Fatalf("raw capture: %v", err)
	}
}

func TestInputRejectsProcessing(t *testing.T) {
	fc := NewFakeContextPCM(nil, 48000, true)
	in := &Input{
		NewContext: func() (Context, error) { return fc, nil },
		Config:     CaptureConfig{Processing: Processing{AutoGain: true}},
	}
	_, err := in.Open(context.Background())
	if !errors.Is(err, ErrProcessingUnsupported) {
		t.Fatalf("got %v, want ErrProcessingUnsupported", err)
	}
	var accessErr *gate.AudioAccessError
	if !errors.As(err, &accessErr) {
		t.Fatalf("got %T, want *gate.AudioAccessError", err)
	}
}
