package doctor

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"shutter/analyser"
	"shutter/audio"
	"shutter/booth"
	"shutter/clipboard"
	"shutter/config"
	"shutter/gate"
	"shutter/hotkey"
	"shutter/shutdown"
)

const (
	micCheckDuration = 3 * time.Second
	micCheckFile     = "mic_check.flac"
	cameraTimeout    = 10 * time.Second
)

type Options struct {
	Config *config.Root
	LogDir string
	Out    io.Writer
	// NewContext overrides the audio backend (test mode).
	NewContext  func() (audio.Context, error)
	MicDuration time.Duration
}

type result int

const (
	pass result = iota
	warn
	fail
)

// Run executes the booth diagnostics and returns an exit code (0 = no
// failures, 1 = at least one).
func Run(opts Options) int {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	out := opts.Out
	fmt.Fprintln(out, "shutter doctor - booth diagnostics")
	fmt.Fprintln(out, "==================================")

	checks := []struct {
		name string
		run  func(context.Context, Options) result
	}{
		{"Global shortcut", checkHotkey},
		{"Microphone level", checkMicrophone},
		{"Camera", checkCamera},
		{"Output directory", checkOutDir},
		{"Clipboard", checkClipboard},
	}

	failed := false
	for i, c := range checks {
		if ctx.Err() != nil {
			fmt.Fprintln(out, "\nInterrupted")
			return 1
		}
		fmt.Fprintf(out, "\n[%d/%d] %s\n", i+1, len(checks), c.name)
		if c.run(ctx, opts) == fail {
			failed = true
		}
	}

	fmt.Fprintln(out)
	if failed {
		fmt.Fprintln(out, "Some checks failed. See details above.")
		return 1
	}
	fmt.Fprintln(out, "All checks passed!")
	return 0
}

func checkHotkey(_ context.Context, opts Options) result {
	msg, err := hotkey.Diagnose()
	if err != nil {
		fmt.Fprintf(opts.Out, "  WARN: %v (the sound trigger and TUI keys still work)\n", err)
		return warn
	}
	fmt.Fprintf(opts.Out, "  PASS: %s\n", msg)
	return pass
}

// checkMicrophone records a few seconds, reports the peak level against the
// configured threshold and keeps the recording for inspection.
func checkMicrophone(ctx context.Context, opts Options) result {
	out := opts.Out
	cfg := opts.Config

	newContext := opts.NewContext
	if newContext == nil {
		newContext = audio.NewContext
	}
	actx, err := newContext()
	if err != nil {
		fmt.Fprintf(out, "  FAIL: cannot connect to audio: %v\n", err)
		return fail
	}
	defer actx.Close()

	devices, err := actx.Devices()
	if err != nil || len(devices) == 0 {
		fmt.Fprintf(out, "  FAIL: no capture devices found\n")
		return fail
	}
	var dev *audio.DeviceInfo
	if cfg.Audio.Device != "" {
		if dev = audio.FindDevice(devices, cfg.Audio.Device); dev == nil {
			fmt.Fprintf(out, "  FAIL: configured device %q not found\n", cfg.Audio.Device)
			return fail
		}
	}

	an, err := analyser.New(analyser.DefaultConfig())
	if err != nil {
		fmt.Fprintf(out, "  FAIL: %v\n", err)
		return fail
	}
	capCfg := audio.RawConfig(cfg.Audio.SampleRate)
	capture, err := actx.NewCapture(dev, capCfg)
	if err != nil {
		fmt.Fprintf(out, "  FAIL: cannot open device: %v\n", err)
		return fail
	}
	defer capture.Close()

	var (
		mu  sync.Mutex
		pcm []byte
	)
	capture.SetCallback(func(data []byte, _ uint32) {
		an.WritePCM16(data, int(capCfg.Channels))
		mu.Lock()
		pcm = append(pcm, data...)
		mu.Unlock()
	})
	if err := capture.Start(); err != nil {
		fmt.Fprintf(out, "  FAIL: microphone access denied: %v\n", err)
		return fail
	}

	fmt.Fprintf(out, "  Device: %s\n", capture.DeviceName())
	listen := opts.MicDuration
	if listen <= 0 {
		listen = micCheckDuration
	}
	fmt.Fprintf(out, "  Clap or strum now (%s)...\n", listen)

	bins := make([]byte, an.BinCount())
	ticker := time.NewTicker(time.Second / gate.DefaultFrameRate)
	deadline := time.After(listen)
	peak := 0.0
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-deadline:
			break loop
		case <-ticker.C:
			n := an.ByteFrequencyData(bins)
			peak = max(peak, gate.MeanLevel(bins[:n]))
		}
	}
	ticker.Stop()
	capture.ClearCallback()
	capture.Stop()

	mu.Lock()
	recorded := pcm
	mu.Unlock()
	if len(recorded) == 0 {
		fmt.Fprintln(out, "  FAIL: device delivered no audio")
		return fail
	}
	saveRecording(out, opts.LogDir, recorded, capCfg.SampleRate)

	threshold := cfg.Trigger.Threshold
	fmt.Fprintf(out, "  Peak level %.3f, threshold %.3f\n", peak, threshold)
	if peak <= threshold {
		fmt.Fprintf(out, "  WARN: the loudest sound would not trigger a photo; try -threshold %.2f\n", suggestThreshold(peak))
		return warn
	}
	fmt.Fprintln(out, "  PASS: sound crosses the threshold")
	return pass
}

// suggestThreshold leaves some headroom below the observed peak.
func suggestThreshold(peak float64) float64 {
	return max(peak*0.7, 0.01)
}

func saveRecording(out io.Writer, dir string, pcm []byte, rate uint32) {
	if dir == "" {
		return
	}
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	path := filepath.Join(dir, micCheckFile)
	if err := audio.EncodeFLAC(path, samples, rate); err != nil {
		fmt.Fprintf(out, "  (could not save recording: %v)\n", err)
		return
	}
	fmt.Fprintf(out, "  Recording saved to %s\n", path)
}

func checkCamera(ctx context.Context, opts Options) result {
	cfg := opts.Config
	cam, err := booth.NewCamera(cfg.Camera.Front, cfg.Camera.Back, cfg.Camera.Still)
	if err != nil {
		fmt.Fprintf(opts.Out, "  WARN: %v (upload mode still works)\n", err)
		return warn
	}
	ctx, cancel := context.WithTimeout(ctx, cameraTimeout)
	defer cancel()
	img, err := cam.Snapshot(ctx)
	if err != nil {
		fmt.Fprintf(opts.Out, "  FAIL: %v\n", err)
		return fail
	}
	b := img.Bounds()
	fmt.Fprintf(opts.Out, "  PASS: %s camera returned a %dx%d frame\n", cam.Facing(), b.Dx(), b.Dy())
	if cam.CanSwitch() {
		fmt.Fprintln(opts.Out, "  Front and back cameras configured")
	}
	return pass
}

func checkOutDir(_ context.Context, opts Options) result {
	dir := opts.Config.Booth.Out
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Fprintf(opts.Out, "  FAIL: %v\n", err)
		return fail
	}
	f, err := os.CreateTemp(dir, ".shutter-doctor-*")
	if err != nil {
		fmt.Fprintf(opts.Out, "  FAIL: %s is not writable: %v\n", dir, err)
		return fail
	}
	f.Close()
	os.Remove(f.Name())
	fmt.Fprintf(opts.Out, "  PASS: photos go to %s\n", dir)
	return pass
}

func checkClipboard(_ context.Context, opts Options) result {
	if !clipboard.Available() {
		fmt.Fprintln(opts.Out, "  WARN: no clipboard tool found (install xclip, xsel or wl-clipboard)")
		return warn
	}
	fmt.Fprintln(opts.Out, "  PASS: clipboard available")
	return pass
}
