package gate

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidThreshold = errors.New("threshold must be within [0, 1]")
	ErrInvalidCooldown  = errors.New("cooldown must not be negative")
	ErrDeviceLost       = errors.New("audio input device lost")
)

// AudioAccessError reports that the input device could not be acquired:
// permission denied, no device present, or no usable audio backend. It is
// terminal for the Enable call that returned it.
type AudioAccessError struct {
	Err error
}

func (e *AudioAccessError) Error() string {
	return fmt.Sprintf("audio access: %v", e.Err)
}

func (e *AudioAccessError) Unwrap() error { return e.Err }
