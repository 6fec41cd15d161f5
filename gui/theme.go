//go:build gui

package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// boothTheme is a dark theme with an amber accent that reads well in a dim
// booth.
type boothTheme struct{}

var amber = color.RGBA{255, 176, 32, 255}

func (boothTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return color.RGBA{18, 18, 18, 255}
	case theme.ColorNameForeground:
		return color.RGBA{220, 220, 220, 255}
	case theme.ColorNamePrimary, theme.ColorNameFocus:
		return amber
	case theme.ColorNameError:
		return color.RGBA{230, 70, 60, 255}
	}
	return theme.DefaultTheme().Color(name, theme.VariantDark)
}

func (boothTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (boothTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (boothTheme) Size(name fyne.ThemeSizeName) float32 {
	return theme.DefaultTheme().Size(name)
}
