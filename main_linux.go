//go:build linux

package main

import "os"

// The pulse and evdev backends need no main thread or display, so only the fyne
// window claims it.
func main() {
	if guiRequested(os.Args[1:]) {
		initGUI()
		return
	}
	run()
}
