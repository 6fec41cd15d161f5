package booth

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// DefaultFrame is the canvas size when there is no camera frame to take it
// from.
var DefaultFrame = image.Pt(640, 480)

// Compose draws the base photo, then the background, then the guitar onto a
// new canvas the size of base (or frame when base is nil).
func Compose(frame image.Point, base, background image.Image, bp BackgroundParams, guitar image.Image, gp GuitarParams) *image.RGBA {
	if base != nil {
		frame = base.Bounds().Size()
	}
	if frame.X <= 0 || frame.Y <= 0 {
		frame = DefaultFrame
	}
	dst := image.NewRGBA(image.Rectangle{Max: frame})
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	if base != nil {
		draw.Draw(dst, dst.Bounds(), base, base.Bounds().Min, draw.Src)
	}
	if background != nil {
		xdraw.BiLinear.Scale(dst, backgroundRect(frame, bp.Clamp()), background, background.Bounds(), xdraw.Over, nil)
	}
	if guitar != nil {
		xdraw.BiLinear.Transform(dst, guitarTransform(frame, guitar.Bounds(), gp.Clamp()), guitar, guitar.Bounds(), xdraw.Over, nil)
	}
	return dst
}

// backgroundRect sizes the background at Size% of the frame in each axis,
// centers it, then shifts it by (X-50)% and (Y-50)% of its own size.
func backgroundRect(frame image.Point, p BackgroundParams) image.Rectangle {
	w := float64(frame.X) * p.Size / 100
	h := float64(frame.Y) * p.Size / 100
	cx := float64(frame.X)/2 + w*(p.X-50)/100
	cy := float64(frame.Y)/2 + h*(p.Y-50)/100
	return image.Rect(
		int(math.Round(cx-w/2)), int(math.Round(cy-h/2)),
		int(math.Round(cx+w/2)), int(math.Round(cy+h/2)),
	)
}

// guitarTransform maps guitar source pixels onto the frame: scaled to
// Size*0.8% of the frame width with aspect kept, rotated clockwise about its
// center, and centered at (X%, Y%).
func guitarTransform(frame image.Point, src image.Rectangle, p GuitarParams) f64.Aff3 {
	sw, sh := float64(src.Dx()), float64(src.Dy())
	w := float64(frame.X) * p.Size * guitarWidthScale / 100
	scale := w / sw

	theta := p.Rotation * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)
	a, b := cos*scale, -sin*scale
	d, e := sin*scale, cos*scale

	csx := float64(src.Min.X) + sw/2
	csy := float64(src.Min.Y) + sh/2
	cx := float64(frame.X) * p.X / 100
	cy := float64(frame.Y) * p.Y / 100

	return f64.Aff3{
		a, b, cx - (a*csx + b*csy),
		d, e, cy - (d*csx + e*csy),
	}
}
