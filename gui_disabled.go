//go:build !gui

package main

import "fmt"

func initGUI() {
	panic(fmt.Sprintf("shutter %s: built without GUI support (rebuild with -tags gui)", version))
}

func attachGUI(*app) bool { return false }

// guiClosed never fires without a window.
func guiClosed() <-chan struct{} { return nil }
