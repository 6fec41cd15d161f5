package main

// EventSink abstracts the display layer so the Bubble Tea TUI, the Fyne
// GUI, the websocket hub and headless mode receive the same booth events.
type EventSink interface {
	Armed(on bool)
	Level(level float64)
	Captured(path string)
	Live()
	Error(err error)
	DeviceLine(text string)
}

type sinks []EventSink

func (s sinks) Armed(on bool) {
	for _, k := range s {
		k.Armed(on)
	}
}

func (s sinks) Level(level float64) {
	for _, k := range s {
		k.Level(level)
	}
}

func (s sinks) Captured(path string) {
	for _, k := range s {
		k.Captured(path)
	}
}

func (s sinks) Live() {
	for _, k := range s {
		k.Live()
	}
}

func (s sinks) Error(err error) {
	for _, k := range s {
		k.Error(err)
	}
}

func (s sinks) DeviceLine(text string) {
	for _, k := range s {
		k.DeviceLine(text)
	}
}
