package booth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"sync"
)

type Facing string

const (
	FacingUser        Facing = "user"
	FacingEnvironment Facing = "environment"
)

var ErrSingleCamera = errors.New("only one camera configured")

type Camera interface {
	Snapshot(ctx context.Context) (image.Image, error)
	Facing() Facing
	// CanSwitch reports whether more than one facing is available.
	CanSwitch() bool
	Switch() error
}

// CommandCamera captures a frame by running an external command that writes
// an encoded image to stdout, e.g. `fswebcam -q --png -1 -` or
// `libcamera-still -n -o - -e png`.
type CommandCamera struct {
	commands map[Facing][]string

	mu     sync.Mutex
	facing Facing
}

func NewCommandCamera(commands map[Facing][]string) (*CommandCamera, error) {
	c := &CommandCamera{commands: make(map[Facing][]string)}
	for f, argv := range commands {
		if len(argv) > 0 {
			c.commands[f] = argv
		}
	}
	switch {
	case len(c.commands[FacingUser]) > 0:
		c.facing = FacingUser
	case len(c.commands[FacingEnvironment]) > 0:
		c.facing = FacingEnvironment
	default:
		return nil, errors.New("no camera command configured")
	}
	return c, nil
}

func (c *CommandCamera) Facing() Facing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.facing
}

func (c *CommandCamera) CanSwitch() bool {
	return len(c.commands) > 1
}

func (c *CommandCamera) Switch() error {
	if !c.CanSwitch() {
		return ErrSingleCamera
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.facing == FacingUser {
		c.facing = FacingEnvironment
	} else {
		c.facing = FacingUser
	}
	return nil
}

func (c *CommandCamera) Snapshot(ctx context.Context) (image.Image, error) {
	c.mu.Lock()
	argv := c.commands[c.facing]
	c.mu.Unlock()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return nil, fmt.Errorf("camera %s: %w: %s", argv[0], err, msg)
		}
		return nil, fmt.Errorf("camera %s: %w", argv[0], err)
	}
	return DecodeImage(out)
}

// FileCamera serves the same still image on every snapshot. It stands in
// for a webcam in test mode and on machines without one.
type FileCamera struct {
	Path string
}

func (c *FileCamera) Snapshot(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadImage(c.Path)
}

func (c *FileCamera) Facing() Facing  { return FacingUser }
func (c *FileCamera) CanSwitch() bool { return false }
func (c *FileCamera) Switch() error   { return ErrSingleCamera }

var ErrNoCamera = errors.New("no camera configured")

// NewCamera picks a still image when one is given, else the capture
// commands.
func NewCamera(front, back []string, still string) (Camera, error) {
	if still != "" {
		return &FileCamera{Path: still}, nil
	}
	if len(front) == 0 && len(back) == 0 {
		return nil, ErrNoCamera
	}
	cam, err := NewCommandCamera(map[Facing][]string{FacingUser: front, FacingEnvironment: back})
	if err != nil {
		return nil, err
	}
	return cam, nil
}
