package audio

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

const defaultRow = "(system default)"

// SelectDevice lets the operator pick the booth microphone from a raw-mode
// terminal list. The first row is the system default and yields nil. The
// cursor starts on the device named current, if present.
func SelectDevice(ctx Context, current string) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, ErrNoDevice
	}

	rows := append([]string{defaultRow}, make([]string, len(devices))...)
	cursor := 0
	for i, d := range devices {
		rows[i+1] = d.Name
		if current != "" && d.Name == current {
			cursor = i + 1
		}
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	render := func() {
		fmt.Print("\r\x1b[J")
		fmt.Print("Booth microphone (↑/↓, Enter to confirm, q to cancel):\r\n\r\n")
		for i, name := range rows {
			tag := ""
			if IsBluetooth(name) {
				tag = " \x1b[33m[⚠ Bluetooth latency may delay triggers]\x1b[0m"
			}
			if i == cursor {
				fmt.Printf("  \x1b[1;36m▶ %s%s\x1b[0m\r\n", name, tag)
			} else {
				fmt.Printf("    %s%s\r\n", name, tag)
			}
		}
	}
	render()

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}

		switch {
		case n == 1 && buf[0] == 13: // Enter
			fmt.Print("\r\n")
			if cursor == 0 {
				return nil, nil
			}
			d := devices[cursor-1]
			return &d, nil
		case n == 1 && (buf[0] == 3 || buf[0] == 'q'): // Ctrl+C
			fmt.Print("\r\n")
			return nil, fmt.Errorf("device selection cancelled")
		case n == 1 && buf[0] == 'j', n == 3 && buf[0] == 0x1b && buf[1] == '[' && buf[2] == 'B':
			cursor = min(cursor+1, len(rows)-1)
		case n == 1 && buf[0] == 'k', n == 3 && buf[0] == 0x1b && buf[1] == '[' && buf[2] == 'A':
			cursor = max(cursor-1, 0)
		}

		fmt.Printf("\x1b[%dA", len(rows)+2)
		render()
	}
}
