package geometry

import (
	"image"
	"math"
)

// aspectTolerance is how far width/height may deviate from the target
// aspect before the planner expands the short axis.
const aspectTolerance = 0.05

// CropPlan is the pixel-space rectangle sent for synthesis and later
// recomposited. The rectangle always lies within the source image and always
// contains the detected region it was planned from.
type CropPlan struct {
	X              int     `json:"x"`
	Y              int     `json:"y"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	AspectAdjusted bool    `json:"aspect_adjusted"`
	Padding        float64 `json:"padding"`
}

// Rectangle returns the plan as an image.Rectangle.
func (p CropPlan) Rectangle() image.Rectangle {
	return image.Rect(p.X, p.Y, p.X+p.Width, p.Y+p.Height)
}

// PlanParams tunes the crop planner.
type PlanParams struct {
	// TargetAspect is the desired width/height of the crop.
	TargetAspect float64
	// PaddingFraction of the aspect-corrected extent added on each side.
	PaddingFraction float64
	// MaxExpansion bounds aspect correction to this multiple of the
	// original extent on the grown axis.
	MaxExpansion float64
}

// PlanCrop computes the padded, aspect-corrected crop rectangle for a
// detected pixel region. It is pure and never fails: degenerate geometry is
// resolved by clamping, so the caller always receives a valid in-bounds
// rectangle even when the target aspect cannot be met.
func PlanCrop(imgW, imgH int, region PixelRegion, params PlanParams) CropPlan {
	// The detected region itself may poke past the frame; the containment
	// invariant is relative to its in-bounds portion.
	x0 := math.Max(0, region.X)
	y0 := math.Max(0, region.Y)
	x1 := math.Min(float64(imgW), region.X+region.Width)
	y1 := math.Min(float64(imgH), region.Y+region.Height)
	if x1 <= x0 || y1 <= y0 {
		// Nothing usable detected; plan around the full frame.
		x0, y0, x1, y1 = 0, 0, float64(imgW), float64(imgH)
	}

	w := x1 - x0
	h := y1 - y0
	cx := x0 + w/2
	cy := y0 + h/2

	aspectAdjusted := false
	if params.TargetAspect > 0 {
		aspect := w / h
		switch {
		case aspect > params.TargetAspect+aspectTolerance:
			// Too wide: grow height toward the target, capped.
			grown := w / params.TargetAspect
			if limit := h * params.MaxExpansion; params.MaxExpansion > 0 && grown > limit {
				grown = limit
			}
			h = grown
			aspectAdjusted = true
		case aspect < params.TargetAspect-aspectTolerance:
			// Too narrow: grow width toward the target, capped.
			grown := h * params.TargetAspect
			if limit := w * params.MaxExpansion; params.MaxExpansion > 0 && grown > limit {
				grown = limit
			}
			w = grown
			aspectAdjusted = true
		}
	}

	padX := params.PaddingFraction * w
	padY := params.PaddingFraction * h
	w += 2 * padX
	h += 2 * padY

	// Recenter on the original region, then clamp by shrinking. Origin
	// never shifts past 0 and the far edge never passes the frame.
	left := math.Max(0, cx-w/2)
	top := math.Max(0, cy-h/2)
	right := math.Min(float64(imgW), cx+w/2)
	bottom := math.Min(float64(imgH), cy+h/2)

	// Snap outward so integer truncation cannot shave off detected pixels.
	xi := int(math.Floor(left))
	yi := int(math.Floor(top))
	x2 := int(math.Ceil(right))
	y2 := int(math.Ceil(bottom))
	if x2 > imgW {
		x2 = imgW
	}
	if y2 > imgH {
		y2 = imgH
	}

	return CropPlan{
		X:              xi,
		Y:              yi,
		Width:          x2 - xi,
		Height:         y2 - yi,
		AspectAdjusted: aspectAdjusted,
		Padding:        params.PaddingFraction,
	}
}
