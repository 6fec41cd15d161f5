package main

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"strconv"
	"strings"
	"time"

	"shutter/audio"
	"shutter/beep"
	"shutter/booth"
	"shutter/config"
	"shutter/log"
)

const waitCaptureTimeout = 30 * time.Second

// grayCamera stands in for a webcam when test mode has no still image.
type grayCamera struct{}

func (grayCamera) Snapshot(ctx context.Context) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, booth.DefaultFrame.X, booth.DefaultFrame.Y))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	img.Set(0, 0, color.White)
	return img, ctx.Err()
}

func (grayCamera) Facing() booth.Facing { return booth.FacingUser }
func (grayCamera) CanSwitch() bool      { return false }
func (grayCamera) Switch() error        { return booth.ErrSingleCamera }

// captureSink prints captures for the driving process and queues them for
// WAIT_CAPTURE.
type captureSink struct {
	captured chan string
}

func (s captureSink) Captured(path string) {
	fmt.Printf("captured %s\n", path)
	select {
	case s.captured <- path:
	default:
	}
}

func (s captureSink) Armed(on bool)     { fmt.Printf("armed %t\n", on) }
func (s captureSink) Level(float64)     {}
func (s captureSink) Live()             { fmt.Println("live") }
func (s captureSink) Error(err error)   { fmt.Printf("error %v\n", err) }
func (s captureSink) DeviceLine(string) {}

// runTestMode replays an audio file as the microphone and reads booth
// commands from stdin, one per line.
func runTestMode(cfg *config.Root, guitar, audioPath string) {
	beep.Disable()

	fakeCtx, err := audio.NewFakeContext(audioPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading audio: %v\n", err)
		os.Exit(1)
	}

	var cam booth.Camera = grayCamera{}
	if cfg.Camera.Still != "" {
		cam = &booth.FileCamera{Path: cfg.Camera.Still}
	}
	in := &audio.Input{NewContext: func() (audio.Context, error) { return fakeCtx, nil }}
	a, err := newBoothApp(cfg, guitar, in, cam)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	captured := make(chan string, 16)
	a.addSink(captureSink{captured: captured})
	log.SessionStart(version, "fake", cfg.Trigger.Threshold, cfg.Trigger.Cooldown)

	quit := func(code int) {
		a.Close()
		log.SessionEnd(a.booth.Photos())
		log.Close()
		os.Exit(code)
	}

	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch cmd {
		case "":
		case "ARM":
			if err := a.SetArmed(ctx, true); err != nil {
				fmt.Fprintf(os.Stderr, "arm: %v\n", err)
			}
		case "DISARM":
			a.SetArmed(ctx, false)
		case "SNAP":
			if _, err := a.TakePhoto(ctx, "test"); err != nil {
				fmt.Fprintf(os.Stderr, "snap: %v\n", err)
			}
		case "RETAKE":
			if err := a.Retake(); err != nil {
				fmt.Fprintf(os.Stderr, "retake: %v\n", err)
			}
		case "WAIT_CAPTURE":
			select {
			case <-captured:
			case <-time.After(waitCaptureTimeout):
				fmt.Fprintln(os.Stderr, "timed out waiting for capture")
				quit(1)
			}
		case "WAIT_AUDIO_DONE":
			if c := fakeCtx.LastCapture(); c != nil {
				<-c.AudioDone()
			}
		case "QUIT":
			quit(0)
		default:
			if ms, ok := strings.CutPrefix(cmd, "SLEEP "); ok {
				if n, err := strconv.Atoi(ms); err == nil {
					time.Sleep(time.Duration(n) * time.Millisecond)
				}
				continue
			}
			fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		}
	}
	quit(0)
}
