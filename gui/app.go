//go:build gui

// Package gui is the desktop booth window: live level meter, trigger toggle,
// capture buttons, guitar and background sliders and a preview of the last
// photo.
package gui

import (
	"context"
	"fmt"

	"shutter/booth"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

// Controller is the booth as driven from the window.
type Controller interface {
	SetArmed(ctx context.Context, on bool) error
	TakePhoto(ctx context.Context, source string) (string, error)
	Retake() error
	SwitchCamera() error
	// SetVisible must return promptly; it is called on the UI thread.
	SetVisible(visible bool)
	Booth() *booth.Booth
}

type App struct {
	fyneApp fyne.App
	window  fyne.Window
	onReady func()
	ctrl    Controller

	// Widgets are only touched on the Fyne goroutine.
	preview  *canvas.Image
	meter    *widget.ProgressBar
	armCheck *widget.Check
	status   *widget.Label
	device   *widget.Label
	syncing  bool
}

func NewApp(onReady func()) *App {
	return &App{onReady: onReady}
}

func Run(a *App) error {
	a.fyneApp = app.NewWithID("io.shutter.booth")
	a.fyneApp.Settings().SetTheme(boothTheme{})

	if desk, ok := a.fyneApp.(desktop.App); ok {
		menu := fyne.NewMenu("shutter",
			fyne.NewMenuItem("Take photo", func() { a.takePhoto() }),
			fyne.NewMenuItem("Quit", func() { a.fyneApp.Quit() }),
		)
		desk.SetSystemTrayMenu(menu)
		desk.SetSystemTrayIcon(trayIcon())
	}

	// A hidden booth must not fire on noise. Both hooks run in order on the
	// UI thread, so the last one decides.
	lc := a.fyneApp.Lifecycle()
	lc.SetOnExitedForeground(func() {
		if c := a.ctrl; c != nil {
			c.SetVisible(false)
		}
	})
	lc.SetOnEnteredForeground(func() {
		if c := a.ctrl; c != nil {
			c.SetVisible(true)
		}
	})

	a.window = a.fyneApp.NewWindow("shutter")
	a.window.SetContent(widget.NewLabel("Starting..."))
	a.window.Resize(fyne.NewSize(960, 640))
	a.window.Show()

	go a.onReady()

	a.fyneApp.Run()
	return nil
}

func (a *App) Quit() {
	if a.fyneApp != nil {
		a.fyneApp.Quit()
	}
}

// Attach binds the window to the booth once it is built.
func (a *App) Attach(c Controller) {
	fyne.Do(func() {
		a.ctrl = c
		a.window.SetContent(a.build(c))
	})
}

func (a *App) build(c Controller) fyne.CanvasObject {
	b := c.Booth()

	a.preview = canvas.NewImageFromResource(nil)
	a.preview.FillMode = canvas.ImageFillContain
	a.preview.SetMinSize(fyne.NewSize(640, 480))
	if last := b.LastPhoto(); last != "" {
		a.preview.File = last
	}

	a.meter = widget.NewProgressBar()
	a.meter.Max = 1
	a.meter.TextFormatter = func() string {
		return fmt.Sprintf("level %.2f", a.meter.Value)
	}
	a.status = widget.NewLabel("live")
	a.device = widget.NewLabel("")

	a.armCheck = widget.NewCheck("Sound trigger", func(on bool) {
		if a.syncing {
			return
		}
		go func() { a.report(c.SetArmed(context.Background(), on)) }()
	})

	shoot := widget.NewButton("Take photo", a.takePhoto)
	shoot.Importance = widget.HighImportance
	retake := widget.NewButton("Retake", func() { go func() { a.report(c.Retake()) }() })
	save := widget.NewButton("Save again", func() {
		go func() {
			_, err := b.Save()
			a.report(err)
		}()
	})
	switchCam := widget.NewButton("Switch camera", func() { go func() { a.report(c.SwitchCamera()) }() })
	if !b.Status().CanSwitch {
		switchCam.Disable()
	}

	mode := widget.NewRadioGroup([]string{booth.ModeCamera.String(), booth.ModeUpload.String()}, func(s string) {
		m := booth.ModeCamera
		if s == booth.ModeUpload.String() {
			m = booth.ModeUpload
		}
		go b.SetMode(m)
	})
	mode.Horizontal = true
	mode.Selected = b.Mode().String()

	presets := widget.NewSelect(b.Presets(), func(name string) {
		go func() { a.report(b.SelectGuitar(name)) }()
	})
	presets.PlaceHolder = "Guitar preset"

	upload := widget.NewButton("Upload guitar...", func() {
		a.openImage(func(path string) error { return b.UploadGuitar(path) })
	})
	background := widget.NewButton("Upload background...", func() {
		a.openImage(func(path string) error { return b.LoadBackground(path) })
	})

	gp := b.GuitarParams()
	guitarForm := widget.NewForm(
		widget.NewFormItem("Size", a.slider(booth.MinSize, booth.MaxSize, gp.Size, func(v float64) {
			p := b.GuitarParams()
			p.Size = v
			b.SetGuitarParams(p)
		})),
		widget.NewFormItem("X", a.slider(0, 100, gp.X, func(v float64) {
			p := b.GuitarParams()
			p.X = v
			b.SetGuitarParams(p)
		})),
		widget.NewFormItem("Y", a.slider(0, 100, gp.Y, func(v float64) {
			p := b.GuitarParams()
			p.Y = v
			b.SetGuitarParams(p)
		})),
		widget.NewFormItem("Rotation", a.slider(booth.MinRotation, booth.MaxRotation, gp.Rotation, func(v float64) {
			p := b.GuitarParams()
			p.Rotation = v
			b.SetGuitarParams(p)
		})),
	)

	bp := b.BackgroundParams()
	backgroundForm := widget.NewForm(
		widget.NewFormItem("Size", a.slider(booth.MinSize, booth.MaxSize, bp.Size, func(v float64) {
			p := b.BackgroundParams()
			p.Size = v
			b.SetBackgroundParams(p)
		})),
		widget.NewFormItem("X", a.slider(0, 100, bp.X, func(v float64) {
			p := b.BackgroundParams()
			p.X = v
			b.SetBackgroundParams(p)
		})),
		widget.NewFormItem("Y", a.slider(0, 100, bp.Y, func(v float64) {
			p := b.BackgroundParams()
			p.Y = v
			b.SetBackgroundParams(p)
		})),
	)

	controls := container.NewVBox(
		a.armCheck,
		a.meter,
		container.NewGridWithColumns(2, shoot, retake, save, switchCam),
		mode,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Guitar", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		presets,
		upload,
		guitarForm,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Background", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		background,
		backgroundForm,
	)
	footer := container.NewHBox(a.status, a.device)
	return container.NewBorder(nil, footer, nil, container.NewVScroll(controls), a.preview)
}

func (a *App) slider(lo, hi, value float64, set func(float64)) *widget.Slider {
	s := widget.NewSlider(lo, hi)
	s.Step = 1
	s.Value = value
	s.OnChanged = set
	return s
}

func (a *App) takePhoto() {
	c := a.ctrl
	if c == nil {
		return
	}
	go func() {
		_, err := c.TakePhoto(context.Background(), "gui")
		if err != nil {
			a.Error(err)
		}
	}()
}

func (a *App) openImage(use func(path string) error) {
	dialog.ShowFileOpen(func(r fyne.URIReadCloser, err error) {
		if err != nil {
			a.Error(err)
			return
		}
		if r == nil {
			return
		}
		path := r.URI().Path()
		r.Close()
		go func() { a.report(use(path)) }()
	}, a.window)
}

func (a *App) report(err error) {
	if err != nil {
		a.Error(err)
	}
}

// EventSink implementation. Called from booth goroutines, so every widget
// update goes through fyne.Do.

func (a *App) Armed(on bool) {
	fyne.Do(func() {
		if a.armCheck == nil {
			return
		}
		a.syncing = true
		a.armCheck.SetChecked(on)
		a.syncing = false
	})
}

func (a *App) Level(level float64) {
	fyne.Do(func() {
		if a.meter != nil {
			a.meter.SetValue(level)
		}
	})
}

func (a *App) Captured(path string) {
	fyne.Do(func() {
		if a.preview == nil {
			return
		}
		a.preview.Resource = nil
		a.preview.File = path
		a.preview.Refresh()
		a.status.SetText("captured " + path)
	})
}

func (a *App) Live() {
	fyne.Do(func() {
		if a.status != nil {
			a.status.SetText("live")
		}
	})
}

func (a *App) Error(err error) {
	fyne.Do(func() {
		if a.status != nil {
			a.status.SetText("error: " + err.Error())
		}
	})
}

func (a *App) DeviceLine(text string) {
	fyne.Do(func() {
		if a.device != nil {
			a.device.SetText(text)
		}
	})
}
