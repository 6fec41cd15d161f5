package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"shutter/audio"
	"shutter/beep"
	"shutter/booth"
	"shutter/gate"
	"shutter/hotkey"
	"shutter/log"
	"shutter/web"
)

// app ties the sound trigger to the booth. armed is the operator's toggle;
// the gate itself only samples while armed, live and not paused.
type app struct {
	gate   *gate.Gate
	booth  *booth.Booth
	device string
	// copy puts the latest photo path on the clipboard when set.
	copy func(string) error

	// gateMu orders every gate decision made on the app's behalf, so a
	// pause or capture cannot land between sync's check and its Enable. It
	// is never held while calling sinks, and gate callbacks never take it.
	gateMu sync.Mutex
	bg     sync.WaitGroup

	mu        sync.Mutex
	armed     bool
	paused    bool
	threshold float64
	cooldown  time.Duration
	sinks     sinks
}

func newApp(g *gate.Gate, b *booth.Booth, threshold float64, cooldown time.Duration, device string) *app {
	a := &app{
		gate:      g,
		booth:     b,
		device:    device,
		threshold: threshold,
		cooldown:  cooldown,
	}
	g.SetCallback(a.onTrigger)
	g.OnLevel(func(level float64) { a.sinkList().Level(level) })
	g.OnError(a.onGateError)
	b.Subscribe(a.onBoothEvent)
	return a
}

func (a *app) addSink(s EventSink) {
	a.mu.Lock()
	a.sinks = append(a.sinks, s)
	a.mu.Unlock()
}

func (a *app) sinkList() sinks {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append(sinks(nil), a.sinks...)
}

func (a *app) Booth() *booth.Booth { return a.booth }

func (a *app) Armed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.armed
}

func (a *app) Threshold() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.threshold
}

// SetThreshold retunes the trigger, live if the gate is sampling.
func (a *app) SetThreshold(t float64) error {
	if err := a.gate.SetThreshold(t); err != nil {
		return err
	}
	a.mu.Lock()
	a.threshold = t
	a.mu.Unlock()
	return nil
}

// SetArmed flips the sound trigger toggle. Arming fails with an
// *gate.AudioAccessError when the microphone cannot be opened, and the
// toggle falls back to off.
func (a *app) SetArmed(ctx context.Context, on bool) error {
	a.gateMu.Lock()
	a.mu.Lock()
	a.armed = on
	a.mu.Unlock()
	err := a.syncLocked(ctx)
	if err != nil {
		a.mu.Lock()
		a.armed = false
		a.mu.Unlock()
	}
	a.gateMu.Unlock()

	switch {
	case err != nil:
		a.fail(err)
		a.sinkList().Armed(false)
		return err
	case on:
		beep.Play(beep.Arm)
	default:
		beep.Play(beep.Disarm)
	}
	a.sinkList().Armed(on)
	return nil
}

// sync brings the gate in line with the toggle, the booth state and the
// pause flag.
func (a *app) sync(ctx context.Context) error {
	a.gateMu.Lock()
	defer a.gateMu.Unlock()
	return a.syncLocked(ctx)
}

// syncLocked must run under gateMu. It reads the latest toggle, pause flag
// and booth state, so whichever caller gets the lock last decides.
func (a *app) syncLocked(ctx context.Context) error {
	live := a.booth.State() == booth.StateLive
	a.mu.Lock()
	want := a.armed && !a.paused && live
	threshold, cooldown := a.threshold, a.cooldown
	a.mu.Unlock()

	if !want {
		a.gate.Disable()
		return nil
	}
	if a.gate.Enabled() {
		return nil
	}
	return a.gate.Enable(ctx, threshold, cooldown)
}

func (a *app) setPaused(paused bool) {
	a.mu.Lock()
	a.paused = paused
	a.mu.Unlock()
	if paused {
		log.Info("paused")
	} else {
		log.Info("resumed")
	}
}

// Pause stops sampling while the booth is not visible, keeping the toggle.
func (a *app) Pause() {
	a.setPaused(true)
	_ = a.sync(context.Background())
}

func (a *app) Resume(ctx context.Context) error {
	a.setPaused(false)
	return a.sync(ctx)
}

// SetVisible is for window lifecycle hooks, which must not block. The flag
// is recorded before returning; hiding disables the gate at once while
// showing re-enables it in the background. A resync that finishes after a
// later hide sees the newer flag and leaves the gate off.
func (a *app) SetVisible(visible bool) {
	a.setPaused(!visible)
	if !visible {
		_ = a.sync(context.Background())
		return
	}
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		if err := a.sync(context.Background()); err != nil {
			a.disarm(err)
		}
	}()
}

// disarm turns the toggle off after the gate could not be started.
func (a *app) disarm(err error) {
	a.mu.Lock()
	a.armed = false
	a.mu.Unlock()
	a.fail(err)
	a.sinkList().Armed(false)
}

// onTrigger runs on the gate's tick goroutine. The gate stops before the
// snapshot so a long camera exposure cannot queue more triggers.
func (a *app) onTrigger() {
	a.gate.Disable()
	go func() {
		if _, err := a.TakePhoto(context.Background(), "sound"); err != nil {
			if serr := a.sync(context.Background()); serr != nil {
				a.fail(serr)
			}
		}
	}()
}

func (a *app) onGateError(err error) {
	log.Warnf("sound trigger stopped: %v", err)
	a.disarm(err)
}

func (a *app) fail(err error) {
	beep.Play(beep.Error)
	a.sinkList().Error(err)
}

// TakePhoto captures now. ErrNotLive and ErrBusy are expected when several
// triggers race and are not reported as failures.
func (a *app) TakePhoto(ctx context.Context, source string) (string, error) {
	path, err := a.booth.TakePhoto(ctx, source)
	if err != nil && !errors.Is(err, booth.ErrNotLive) && !errors.Is(err, booth.ErrBusy) {
		a.fail(err)
	}
	return path, err
}

func (a *app) Retake() error {
	return a.booth.Retake()
}

func (a *app) SwitchCamera() error {
	return a.booth.SwitchCamera()
}

func (a *app) LastPhoto() string {
	return a.booth.LastPhoto()
}

func (a *app) onBoothEvent(ev booth.Event) {
	switch ev.Kind {
	case booth.EventCaptured:
		_ = a.sync(context.Background())
		beep.Play(beep.Shutter)
		a.copyPath(ev.Path)
		a.sinkList().Captured(ev.Path)
	case booth.EventSaved:
		a.copyPath(ev.Path)
		a.sinkList().Captured(ev.Path)
	case booth.EventLive, booth.EventModeChanged:
		if err := a.sync(context.Background()); err != nil {
			a.disarm(err)
		}
		a.sinkList().Live()
	}
}

func (a *app) copyPath(path string) {
	if a.copy == nil || path == "" {
		return
	}
	if err := a.copy(path); err != nil {
		log.Warnf("clipboard copy: %v", err)
	}
}

// handlePress maps the global shortcut: a tap toggles the sound trigger, a
// hold takes a photo (or retakes when one is on screen).
func (a *app) handlePress(ctx context.Context, p hotkey.Press) {
	log.Info("hotkey_" + p.String())
	switch p {
	case hotkey.Tap:
		_ = a.SetArmed(ctx, !a.Armed())
	case hotkey.Hold:
		if a.booth.State() == booth.StateCaptured {
			_ = a.Retake()
			return
		}
		_, _ = a.TakePhoto(ctx, "hotkey")
	}
}

func (a *app) runPresses(ctx context.Context, presses *hotkey.Presses) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-presses.Events():
			a.handlePress(ctx, p)
		}
	}
}

func (a *app) Status() web.Status {
	a.mu.Lock()
	armed, threshold, cooldown := a.armed, a.threshold, a.cooldown
	a.mu.Unlock()
	return web.Status{
		Armed:      armed,
		Level:      a.gate.Level(),
		Threshold:  threshold,
		CooldownMS: cooldown.Milliseconds(),
		Device:     a.device,
		Booth:      a.booth.Status(),
	}
}

func (a *app) Close() {
	a.bg.Wait()
	a.gate.Disable()
}

func deviceLineText(name string) string {
	if name == "" {
		name = "system default"
	}
	suffix := ""
	if audio.IsBluetooth(name) {
		suffix = " (BT!)"
	}
	return "mic: " + name + suffix
}

// hubSink forwards events to websocket clients, with the meter thinned out
// to levelInterval.
type hubSink struct {
	hub *web.Hub

	mu        sync.Mutex
	lastLevel time.Time
}

const levelInterval = time.Second / 15

func newHubSink(hub *web.Hub) *hubSink {
	return &hubSink{hub: hub}
}

func (h *hubSink) Armed(on bool) {
	h.hub.Publish(web.Message{Type: web.TypeArmed, Armed: &on})
}

func (h *hubSink) Level(level float64) {
	now := time.Now()
	h.mu.Lock()
	if level != 0 && now.Sub(h.lastLevel) < levelInterval {
		h.mu.Unlock()
		return
	}
	h.lastLevel = now
	h.mu.Unlock()
	h.hub.Publish(web.Message{Type: web.TypeLevel, Level: level})
}

func (h *hubSink) Captured(path string) {
	h.hub.Publish(web.Message{Type: web.TypeCapture, Path: path, State: booth.StateCaptured.String()})
}

func (h *hubSink) Live() {
	h.hub.Publish(web.Message{Type: web.TypeLive, State: booth.StateLive.String()})
}

func (h *hubSink) Error(err error) {
	h.hub.Publish(web.Message{Type: web.TypeError, Error: err.Error()})
}

func (h *hubSink) DeviceLine(string) {}

// consoleSink reports booth events as plain lines for headless runs.
type consoleSink struct {
	out io.Writer
}

func (c consoleSink) Armed(on bool) {
	state := "off"
	if on {
		state = "armed"
	}
	fmt.Fprintf(c.out, "sound trigger %s\n", state)
}

func (c consoleSink) Level(float64)          {}
func (c consoleSink) Captured(path string)   { fmt.Fprintf(c.out, "captured %s\n", path) }
func (c consoleSink) Live()                  {}
func (c consoleSink) Error(err error)        { fmt.Fprintf(c.out, "error: %v\n", err) }
func (c consoleSink) DeviceLine(text string) { fmt.Fprintln(c.out, text) }
