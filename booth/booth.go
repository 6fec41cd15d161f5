// Package booth is the photo side of the guitar booth: it takes a frame
// from the camera (or uses an uploaded background), composes the chosen
// guitar over it and saves the result.
package booth

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"shutter/log"
)

type Mode int

const (
	ModeCamera Mode = iota
	ModeUpload
)

func (m Mode) String() string {
	if m == ModeUpload {
		return "upload"
	}
	return "camera"
}

type State int

const (
	StateLive State = iota
	StateCaptured
)

func (s State) String() string {
	if s == StateCaptured {
		return "captured"
	}
	return "live"
}

var (
	ErrNotLive       = errors.New("booth is not live")
	ErrBusy          = errors.New("capture already in progress")
	ErrNoBackground  = errors.New("no background loaded")
	ErrNoCapture     = errors.New("nothing captured")
	ErrUnknownGuitar = errors.New("unknown guitar")
)

type EventKind string

const (
	EventCaptured    EventKind = "captured"
	EventSaved       EventKind = "saved"
	EventLive        EventKind = "live"
	EventModeChanged EventKind = "mode"
	EventGuitar      EventKind = "guitar"
	EventBackground  EventKind = "background"
)

type Event struct {
	Kind   EventKind `json:"kind"`
	Path   string    `json:"path,omitempty"`
	Source string    `json:"source,omitempty"`
	State  string    `json:"state"`
	Mode   string    `json:"mode"`
}

type Options struct {
	Camera Camera
	OutDir string
	// Guitars maps preset names to image files.
	Guitars map[string]string
	// Frame is the canvas size in upload mode.
	Frame image.Point
	Now   func() time.Time
}

// Status is a point-in-time view of the booth for UIs.
type Status struct {
	Mode       string           `json:"mode"`
	State      string           `json:"state"`
	Facing     Facing           `json:"facing"`
	CanSwitch  bool             `json:"can_switch"`
	Guitar     string           `json:"guitar,omitempty"`
	GuitarP    GuitarParams     `json:"guitar_params"`
	Background bool             `json:"background"`
	BackP      BackgroundParams `json:"background_params"`
	LastPhoto  string           `json:"last_photo,omitempty"`
	Photos     int              `json:"photos"`
}

type Booth struct {
	camera  Camera
	outDir  string
	presets map[string]string
	frame   image.Point
	now     func() time.Time

	mu         sync.Mutex
	mode       Mode
	state      State
	capturing  bool
	captured   image.Image
	guitar     image.Image
	guitarName string
	gp         GuitarParams
	background image.Image
	bp         BackgroundParams
	lastPhoto  string
	photos     int
	listeners  []func(Event)
}

func New(opts Options) (*Booth, error) {
	if opts.OutDir == "" {
		return nil, errors.New("output directory required")
	}
	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Frame == (image.Point{}) {
		opts.Frame = DefaultFrame
	}
	return &Booth{
		camera:  opts.Camera,
		outDir:  opts.OutDir,
		presets: opts.Guitars,
		frame:   opts.Frame,
		now:     opts.Now,
		gp:      DefaultGuitarParams(),
		bp:      DefaultBackgroundParams(),
	}, nil
}

// Subscribe registers fn for booth events. Listeners run synchronously on
// the goroutine that caused the event, after the booth lock is released.
func (b *Booth) Subscribe(fn func(Event)) {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

func (b *Booth) emit(kind EventKind, path, source string) {
	b.mu.Lock()
	ev := Event{Kind: kind, Path: path, Source: source, State: b.state.String(), Mode: b.mode.String()}
	listeners := append([]func(Event){}, b.listeners...)
	b.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

func (b *Booth) Mode() Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode
}

func (b *Booth) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Live reports whether TakePhoto would act right now.
func (b *Booth) Live() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.liveLocked()
}

func (b *Booth) liveLocked() bool {
	if b.state != StateLive || b.capturing {
		return false
	}
	if b.mode == ModeUpload {
		return b.background != nil
	}
	return b.camera != nil
}

// SetMode switches between camera and upload. The booth returns to live.
func (b *Booth) SetMode(m Mode) {
	b.mu.Lock()
	b.mode = m
	b.state = StateLive
	b.captured = nil
	b.mu.Unlock()
	b.emit(EventModeChanged, "", "")
}

// TakePhoto snapshots the camera (or uses the background in upload mode),
// composes the overlays and saves a PNG. It returns ErrNotLive unless the
// booth is live, so a burst of triggers yields one photo.
func (b *Booth) TakePhoto(ctx context.Context, source string) (string, error) {
	b.mu.Lock()
	if b.capturing {
		b.mu.Unlock()
		return "", ErrBusy
	}
	if b.state != StateLive {
		b.mu.Unlock()
		return "", ErrNotLive
	}
	mode := b.mode
	if mode == ModeUpload && b.background == nil {
		b.mu.Unlock()
		return "", ErrNoBackground
	}
	if mode == ModeCamera && b.camera == nil {
		b.mu.Unlock()
		return "", ErrNoCamera
	}
	b.capturing = true
	b.mu.Unlock()

	start := b.now()
	var base image.Image
	if mode == ModeCamera {
		img, err := b.camera.Snapshot(ctx)
		if err != nil {
			b.mu.Lock()
			b.capturing = false
			b.mu.Unlock()
			log.Errorf("camera snapshot: %v", err)
			return "", err
		}
		base = img
	}

	b.mu.Lock()
	b.capturing = false
	b.captured = base
	path, err := b.saveLocked()
	if err == nil {
		b.state = StateCaptured
	} else {
		// Nothing was shown, so the booth stays live for the next trigger.
		b.captured = nil
	}
	b.mu.Unlock()
	if err != nil {
		log.Errorf("saving photo: %v", err)
		return "", err
	}

	log.Capture(path, source, b.now().Sub(start))
	b.emit(EventCaptured, path, source)
	return path, nil
}

// Save re-composes the captured photo with the current overlays and writes
// it as a new file, for adjusting the guitar after the shot.
func (b *Booth) Save() (string, error) {
	b.mu.Lock()
	if b.state != StateCaptured {
		b.mu.Unlock()
		return "", ErrNoCapture
	}
	path, err := b.saveLocked()
	b.mu.Unlock()
	if err != nil {
		return "", err
	}
	log.Capture(path, "save", 0)
	b.emit(EventSaved, path, "save")
	return path, nil
}

func (b *Booth) saveLocked() (string, error) {
	img := Compose(b.frame, b.captured, b.background, b.bp, b.guitar, b.gp)
	ts := b.now().Format("20060102-150405.000")
	path := filepath.Join(b.outDir, "shutter-"+ts+".png")
	for i := 2; ; i++ {
		err := writePNG(path, img)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
		path = filepath.Join(b.outDir, fmt.Sprintf("shutter-%s-%d.png", ts, i))
	}
	b.lastPhoto = path
	b.photos++
	return path, nil
}

// Retake discards the captured frame and returns to live.
func (b *Booth) Retake() error {
	b.mu.Lock()
	if b.state != StateCaptured {
		b.mu.Unlock()
		return ErrNoCapture
	}
	b.state = StateLive
	b.captured = nil
	b.mu.Unlock()
	b.emit(EventLive, "", "")
	return nil
}

func (b *Booth) SwitchCamera() error {
	if b.camera == nil {
		return ErrSingleCamera
	}
	return b.camera.Switch()
}

func (b *Booth) Presets() []string {
	names := make([]string, 0, len(b.presets))
	for name := range b.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SelectGuitar switches to a preset guitar and resets its controls.
func (b *Booth) SelectGuitar(name string) error {
	path, ok := b.presets[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGuitar, name)
	}
	img, err := LoadImage(path)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.guitar = img
	b.guitarName = name
	b.gp = DefaultGuitarParams()
	b.mu.Unlock()
	b.emit(EventGuitar, path, "")
	return nil
}

// UploadGuitar uses a custom guitar image. Controls reset with a smaller
// starting size.
func (b *Booth) UploadGuitar(path string) error {
	img, err := LoadImage(path)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.guitar = img
	b.guitarName = "custom"
	b.gp = CustomGuitarParams()
	b.mu.Unlock()
	b.emit(EventGuitar, path, "")
	return nil
}

func (b *Booth) ClearGuitar() {
	b.mu.Lock()
	b.guitar = nil
	b.guitarName = ""
	b.mu.Unlock()
	b.emit(EventGuitar, "", "")
}

func (b *Booth) SetGuitarParams(p GuitarParams) {
	b.mu.Lock()
	b.gp = p.Clamp()
	b.mu.Unlock()
}

func (b *Booth) GuitarParams() GuitarParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gp
}

// LoadBackground sets the upload-mode backdrop and resets its controls.
func (b *Booth) LoadBackground(path string) error {
	img, err := LoadImage(path)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.background = img
	b.bp = DefaultBackgroundParams()
	b.mu.Unlock()
	b.emit(EventBackground, path, "")
	return nil
}

func (b *Booth) SetBackgroundParams(p BackgroundParams) {
	b.mu.Lock()
	b.bp = p.Clamp()
	b.mu.Unlock()
}

func (b *Booth) BackgroundParams() BackgroundParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bp
}

func (b *Booth) LastPhoto() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastPhoto
}

func (b *Booth) Photos() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.photos
}

func (b *Booth) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := Status{
		Mode:       b.mode.String(),
		State:      b.state.String(),
		Guitar:     b.guitarName,
		GuitarP:    b.gp,
		Background: b.background != nil,
		BackP:      b.bp,
		LastPhoto:  b.lastPhoto,
		Photos:     b.photos,
	}
	if b.camera != nil {
		st.Facing = b.camera.Facing()
		st.CanSwitch = b.camera.CanSwitch()
	}
	return st
}
