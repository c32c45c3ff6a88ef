package geometry

import "math"

// NormalizedRegion is an axis-aligned rectangle expressed as fractions of the
// image dimensions. All fields are in [0,1] with X+Width <= 1 and
// Y+Height <= 1. Only Normalize produces these; treat them as immutable.
type NormalizedRegion struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PixelRegion is a rectangle in source-image pixel space.
type PixelRegion struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// ToPixels projects the region onto an image of the given dimensions.
func (r NormalizedRegion) ToPixels(imgW, imgH int) PixelRegion {
	return PixelRegion{
		X:      r.X * float64(imgW),
		Y:      r.Y * float64(imgH),
		Width:  r.Width * float64(imgW),
		Height: r.Height * float64(imgH),
	}
}

// Aspect returns height/width, the "tallness" of the region. Zero width
// yields +Inf, which comparisons downstream treat as very tall.
func (r NormalizedRegion) Aspect() float64 {
	if r.Width == 0 {
		return math.Inf(1)
	}
	return r.Height / r.Width
}

// DefaultBottleRegion is the fixed centered fallback used when detection
// succeeds without any spatial evidence. Roughly the area a user aims a
// bottle at when following the capture overlay.
func DefaultBottleRegion() *NormalizedRegion {
	return &NormalizedRegion{X: 0.3, Y: 0.15, Width: 0.4, Height: 0.7}
}

// Expand inflates a region around its own center by the given width/height
// multipliers, then translates the result back inside the unit square. A
// dimension that would exceed the unit square clamps to 1 anchored at 0.
// Nil input yields nil output. Used for capture-overlay rendering only.
func Expand(r *NormalizedRegion, scaleX, scaleY float64) *NormalizedRegion {
	if r == nil {
		return nil
	}

	w := r.Width * scaleX
	h := r.Height * scaleY

	cx := r.X + r.Width/2
	cy := r.Y + r.Height/2

	x := cx - w/2
	y := cy - h/2

	if w >= 1 {
		w, x = 1, 0
	} else {
		if x < 0 {
			x = 0
		}
		if x+w > 1 {
			x = 1 - w
		}
	}
	if h >= 1 {
		h, y = 1, 0
	} else {
		if y < 0 {
			y = 0
		}
		if y+h > 1 {
			y = 1 - h
		}
	}

	return &NormalizedRegion{X: x, Y: y, Width: w, Height: h}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
