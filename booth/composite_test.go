package booth

import (
	"image"
	"math"
	"testing"
)

func isRed(img image.Image, x, y int) bool {
	r, g, b, _ := img.At(x, y).RGBA()
	return r>>8 > 200 && g>>8 < 50 && b>>8 < 50
}

func TestGuitarWidthFollowsSize(t *testing.T) {
	base := solid(200, 100, blue)
	guitar := solid(40, 10, red)

	// Size 100 renders at 80% of frame width: x from 20 to 180.
	out := Compose(image.Point{}, base, nil, BackgroundParams{}, guitar, DefaultGuitarParams())
	if !isRed(out, 25, 50) || !isRed(out, 175, 50) {
		t.Fatal("guitar should span 80% of the frame width")
	}
	if isRed(out, 15, 50) || isRed(out, 185, 50) {
		t.Fatal("guitar extends past 80% of the frame width")
	}
	// Aspect kept: 160 wide means 40 tall, rows 30 to 70.
	if !isRed(out, 100, 35) || isRed(out, 100, 25) {
		t.Fatal("guitar height should follow its aspect ratio")
	}
}

func TestGuitarPosition(t *testing.T) {
	base := solid(200, 200, blue)
	guitar := solid(10, 10, red)
	p := GuitarParams{Size: 25, X: 25, Y: 75}

	out := Compose(image.Point{}, base, nil, BackgroundParams{}, guitar, p)
	if !isRed(out, 50, 150) {
		t.Fatal("guitar should be centered at (25%, 75%)")
	}
	if isRed(out, 100, 100) {
		t.Fatal("guitar should not be at the frame center")
	}
}

func TestGuitarRotation(t *testing.T) {
	base := solid(200, 200, blue)
	guitar := solid(40, 4, red) // a horizontal bar

	p := DefaultGuitarParams()
	p.Size = 50 // 80 px wide
	p.Rotation = 90
	out := Compose(image.Point{}, base, nil, BackgroundParams{}, guitar, p)

	if !isRed(out, 100, 70) || !isRed(out, 100, 130) {
		t.Fatal("rotated bar should run vertically")
	}
	if isRed(out, 70, 100) || isRed(out, 130, 100) {
		t.Fatal("rotated bar should no longer run horizontally")
	}
}

func TestBackgroundRect(t *testing.T) {
	frame := image.Pt(200, 100)
	cases := []struct {
		p    BackgroundParams
		want image.Rectangle
	}{
		{DefaultBackgroundParams(), image.Rect(0, 0, 200, 100)},
		{BackgroundParams{Size: 50, X: 50, Y: 50}, image.Rect(50, 25, 150, 75)},
		// Shifts are a fraction of the background's own size.
		{BackgroundParams{Size: 50, X: 100, Y: 0}, image.Rect(100, 0, 200, 50)},
	}
	for _, tc := range cases {
		if got := backgroundRect(frame, tc.p); got != tc.want {
			t.Errorf("backgroundRect(%+v) = %v, want %v", tc.p, got, tc.want)
		}
	}
}

func TestComposeOrder(t *testing.T) {
	base := solid(100, 100, blue)
	bg := solid(10, 10, blue)
	guitar := solid(10, 10, red)
	out := Compose(image.Point{}, base, bg, DefaultBackgroundParams(), guitar, DefaultGuitarParams())
	if !isRed(out, 50, 50) {
		t.Fatal("guitar must be drawn above the background")
	}
}

func TestClamp(t *testing.T) {
	g := GuitarParams{Size: 500, X: -5, Y: 120, Rotation: -999}.Clamp()
	if g != (GuitarParams{Size: MaxSize, X: 0, Y: 100, Rotation: MinRotation}) {
		t.Fatalf("guitar clamp = %+v", g)
	}
	bg := BackgroundParams{Size: 1, X: math.NaN(), Y: 50}.Clamp()
	if bg != (BackgroundParams{Size: MinSize, X: 0, Y: 50}) {
		t.Fatalf("background clamp = %+v", bg)
	}
}
