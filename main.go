package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"shutter/audio"
	"shutter/beep"
	"shutter/booth"
	"shutter/clipboard"
	"shutter/config"
	"shutter/doctor"
	"shutter/gate"
	"shutter/hotkey"
	"shutter/log"
	"shutter/shutdown"
	"shutter/web"
)

var version = "dev"

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

// guiRequested looks for -gui ahead of flag.Parse, since the window has to
// take the main thread before run starts.
func guiRequested(args []string) bool {
	for _, arg := range args {
		if arg == "--" {
			return false
		}
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name != "gui" {
			continue
		}
		if !hasValue {
			return true
		}
		on, err := strconv.ParseBool(value)
		return err == nil && on
	}
	return false
}

func fatalf(format string, args ...any) {
	log.Errorf(format, args...)
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	log.Close()
	os.Exit(1)
}

func run() {
	configFlag := flag.String("config", "", "Config file (default: $SHUTTER_CONFIG, ./shutter.yaml, user config dir)")
	thresholdFlag := flag.Float64("threshold", 0.3, "Sound trigger level in [0,1]")
	cooldownFlag := flag.Duration("cooldown", time.Second, "Minimum time between sound triggers")
	armFlag := flag.Bool("arm", false, "Arm the sound trigger at startup")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	outFlag := flag.String("out", "", "Directory for saved photos")
	guitarFlag := flag.String("guitar", "", "Guitar preset name or image file")
	backgroundFlag := flag.String("background", "", "Background image (enables upload mode without a camera)")
	frontFlag := flag.String("front", "", "Front camera capture command, e.g. \"fswebcam -q --png -1 -\"")
	backFlag := flag.String("back", "", "Back camera capture command")
	stillFlag := flag.String("still", "", "Use a still image instead of a camera")
	serveFlag := flag.String("serve", "", "Serve the web API on addr (e.g. :8080)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	longPressFlag := flag.Duration("longpress", 350*time.Millisecond, "Hotkey hold threshold for taking a photo")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	doctorFlag := flag.Bool("doctor", false, "Run booth diagnostics and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Bool("gui", false, "Run the desktop window (requires a gui build)")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("shutter %s\n", version)
		os.Exit(0)
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()

	cfg, cfgPath, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "threshold":
			cfg.Trigger.Threshold = *thresholdFlag
		case "cooldown":
			cfg.Trigger.Cooldown = *cooldownFlag
		case "arm":
			cfg.Trigger.Armed = *armFlag
		case "device":
			cfg.Audio.Device = *deviceFlag
		case "out":
			cfg.Booth.Out = *outFlag
		case "background":
			cfg.Booth.Background = *backgroundFlag
		case "front":
			cfg.Camera.Front = strings.Fields(*frontFlag)
		case "back":
			cfg.Camera.Back = strings.Fields(*backFlag)
		case "still":
			cfg.Camera.Still = *stillFlag
		case "serve":
			cfg.Serve = *serveFlag
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *doctorFlag {
		os.Exit(doctor.Run(doctor.Options{Config: cfg, LogDir: log.Dir()}))
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()
	if cfgPath != "" {
		log.Info("config: " + cfgPath)
	}

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: shutter -test <wav-or-flac-file>")
			os.Exit(1)
		}
		runTestMode(cfg, *guitarFlag, args[0])
		return
	}

	if *setupFlag {
		actx, err := audio.NewContext()
		if err != nil {
			fatalf("initializing audio: %v", err)
		}
		dev, err := audio.SelectDevice(actx, cfg.Audio.Device)
		actx.Close()
		if err != nil {
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to configured device")
		} else if dev != nil {
			cfg.Audio.Device = dev.Name
		} else {
			cfg.Audio.Device = ""
		}
	}

	if cfg.Sounds {
		go beep.Init()
	} else {
		beep.Disable()
	}

	a, err := newBoothApp(cfg, *guitarFlag, nil, nil)
	if err != nil {
		fatalf("%v", err)
	}
	defer func() {
		a.Close()
		log.SessionEnd(a.booth.Photos())
	}()
	if clipboard.Available() {
		a.copy = clipboard.Copy
	}
	log.SessionStart(version, cfg.Audio.Device, cfg.Trigger.Threshold, cfg.Trigger.Cooldown)

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	if cfg.Serve != "" {
		hub := web.NewHub()
		a.addSink(newHubSink(hub))
		srv := web.New(a, hub)
		go func() {
			if err := srv.Run(ctx, cfg.Serve); err != nil {
				log.Errorf("web server: %v", err)
				fmt.Fprintf(os.Stderr, "Warning: web server: %v\n", err)
			}
		}()
		log.Info("serving on " + cfg.Serve)
	}

	if cfg.Hotkey {
		hk := hotkey.New()
		if err := hk.Register(); err != nil {
			log.Warnf("hotkey register error: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: %s unavailable: %v\n", hotkey.Combo, err)
		} else {
			defer hk.Unregister()
			presses := hotkey.NewPresses(hk, *longPressFlag)
			defer presses.Close()
			go a.runPresses(ctx, presses)
		}
	}

	switch {
	case attachGUI(a):
		arm(ctx, a, cfg)
		select {
		case <-ctx.Done():
		case <-guiClosed():
		}
	case *tuiFlag:
		p := NewTUIProgram(a)
		tuiDone := make(chan error, 1)
		go func() {
			_, err := p.Run()
			tuiDone <- err
		}()
		a.addSink(tuiSink{p})
		a.sinkList().DeviceLine(deviceLineText(cfg.Audio.Device))
		arm(ctx, a, cfg)
		select {
		case <-ctx.Done():
			p.Quit()
			<-tuiDone
		case err := <-tuiDone:
			if err != nil {
				log.Errorf("TUI error: %v", err)
			}
		}
	default:
		a.addSink(consoleSink{os.Stdout})
		a.sinkList().DeviceLine(deviceLineText(cfg.Audio.Device))
		arm(ctx, a, cfg)
		<-ctx.Done()
	}
}

func arm(ctx context.Context, a *app, cfg *config.Root) {
	if !cfg.Trigger.Armed {
		return
	}
	if err := a.SetArmed(ctx, true); err != nil {
		log.Warnf("arming at startup: %v", err)
	}
}

// newBoothApp builds the gate, camera and booth from cfg. in and cam
// override the audio input and the camera (test mode).
func newBoothApp(cfg *config.Root, guitar string, in *audio.Input, cam booth.Camera) (*app, error) {
	if cam == nil {
		var err error
		cam, err = booth.NewCamera(cfg.Camera.Front, cfg.Camera.Back, cfg.Camera.Still)
		if err != nil && !errors.Is(err, booth.ErrNoCamera) {
			return nil, err
		}
	}
	b, err := booth.New(booth.Options{
		Camera:  cam,
		OutDir:  cfg.Booth.Out,
		Guitars: cfg.Booth.Guitars,
		Frame:   image.Pt(cfg.Booth.Width, cfg.Booth.Height),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Booth.Background != "" {
		if err := b.LoadBackground(cfg.Booth.Background); err != nil {
			return nil, fmt.Errorf("background: %w", err)
		}
	}
	if cam == nil {
		b.SetMode(booth.ModeUpload)
	}
	if guitar != "" {
		if err := selectGuitar(b, guitar); err != nil {
			return nil, fmt.Errorf("guitar: %w", err)
		}
	}

	if in == nil {
		in = &audio.Input{}
	}
	in.Device = cfg.Audio.Device
	in.Config = audio.RawConfig(cfg.Audio.SampleRate)

	g := gate.New(in, nil)
	return newApp(g, b, cfg.Trigger.Threshold, cfg.Trigger.Cooldown, cfg.Audio.Device), nil
}

// selectGuitar treats name as a preset first and as an image file
// otherwise.
func selectGuitar(b *booth.Booth, name string) error {
	err := b.SelectGuitar(name)
	if errors.Is(err, booth.ErrUnknownGuitar) {
		return b.UploadGuitar(name)
	}
	return err
}
