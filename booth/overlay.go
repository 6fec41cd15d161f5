package booth

// Slider ranges for the overlay controls, in percent and degrees.
const (
	MinSize     = 10
	MaxSize     = 200
	MinRotation = -180
	MaxRotation = 180

	// guitarWidthScale maps the size slider to percent of frame width.
	guitarWidthScale = 0.8
)

type GuitarParams struct {
	Size     float64 `json:"size"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
}

func DefaultGuitarParams() GuitarParams {
	return GuitarParams{Size: 100, X: 50, Y: 50}
}

// CustomGuitarParams is the starting point after an upload; custom art is
// usually larger than the presets.
func CustomGuitarParams() GuitarParams {
	return GuitarParams{Size: 50, X: 50, Y: 50}
}

func (p GuitarParams) Clamp() GuitarParams {
	return GuitarParams{
		Size:     clamp(p.Size, MinSize, MaxSize),
		X:        clamp(p.X, 0, 100),
		Y:        clamp(p.Y, 0, 100),
		Rotation: clamp(p.Rotation, MinRotation, MaxRotation),
	}
}

type BackgroundParams struct {
	Size float64 `json:"size"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

func DefaultBackgroundParams() BackgroundParams {
	return BackgroundParams{Size: 100, X: 50, Y: 50}
}

func (p BackgroundParams) Clamp() BackgroundParams {
	return BackgroundParams{
		Size: clamp(p.Size, MinSize, MaxSize),
		X:    clamp(p.X, 0, 100),
		Y:    clamp(p.Y, 0, 100),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v != v {
		return lo
	}
	return min(max(v, lo), hi)
}
