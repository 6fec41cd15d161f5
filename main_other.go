//go:build !linux

package main

import (
	"os"
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// On macOS and Windows the hotkey event loop has to own the main thread
// unless fyne takes it for the window.
func main() {
	if guiRequested(os.Args[1:]) {
		initGUI()
		return
	}
	mainthread.Init(run)
}
