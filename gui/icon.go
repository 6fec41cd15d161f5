//go:build gui

package gui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"

	"fyne.io/fyne/v2"
)

const iconSize = 22

// trayIcon draws a small camera lens: amber glass inside a dark barrel.
func trayIcon() fyne.Resource {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	center := float64(iconSize) / 2
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			dx := float64(x) - center + 0.5
			dy := float64(y) - center + 0.5
			dist := math.Hypot(dx, dy)
			switch {
			case dist < 2 && dx < 0 && dy < 0:
				img.Set(x, y, color.RGBA{255, 245, 220, 255})
			case dist < 5:
				t := dist / 5
				img.Set(x, y, color.RGBA{255, uint8(190 - t*80), 40, 255})
			case dist < 8:
				img.Set(x, y, color.RGBA{60, 60, 66, 255})
			case dist < 10:
				img.Set(x, y, color.RGBA{30, 30, 34, 255})
			}
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return fyne.NewStaticResource("tray.png", buf.Bytes())
}
