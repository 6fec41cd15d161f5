//go:build gui

package main

import (
	"runtime"

	"shutter/gui"
)

var (
	guiApp  *gui.App
	guiDone = make(chan struct{})
	runDone = make(chan struct{})
)

// initGUI keeps the main thread for Fyne and runs the booth in a goroutine.
// Closing the window shuts the booth down before the process exits.
func initGUI() {
	runtime.LockOSThread()

	guiApp = gui.NewApp(func() {
		run()
		close(runDone)
		guiApp.Quit()
	})
	err := gui.Run(guiApp)
	close(guiDone)
	<-runDone
	if err != nil {
		panic(err)
	}
}

func attachGUI(a *app) bool {
	if guiApp == nil {
		return false
	}
	a.addSink(guiApp)
	guiApp.Attach(a)
	a.sinkList().DeviceLine(deviceLineText(a.device))
	return true
}

func guiClosed() <-chan struct{} { return guiDone }
