package imaging

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// FeatherMask builds an elliptical alpha mask for a w×h crop: fully opaque
// through start of the radius, then a smoothstep falloff to transparent at
// the edge. A hard rectangular edge around a roughly bottle-shaped subject
// would read as an obvious seam.
func FeatherMask(w, h int, start float64) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	if w <= 0 || h <= 0 {
		return mask
	}
	if start < 0 {
		start = 0
	}
	if start >= 1 {
		start = 0.999
	}

	cx := float64(w-1) / 2
	cy := float64(h-1) / 2
	rx := float64(w) / 2
	ry := float64(h) / 2

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := (float64(x) - cx) / rx
			dy := (float64(y) - cy) / ry
			r := math.Sqrt(dx*dx + dy*dy)

			var alpha float64
			switch {
			case r <= start:
				alpha = 1
			case r >= 1:
				alpha = 0
			default:
				t := (r - start) / (1 - start)
				alpha = 1 - t*t*(3-2*t)
			}
			mask.SetAlpha(x, y, color.Alpha{A: uint8(alpha*255 + 0.5)})
		}
	}
	return mask
}

// Composite pastes a replacement crop over the original at the given offset,
// alpha-composited through the feather mask. Pixels outside the mask, padding
// at the crop's own edges included, revert smoothly to the original photo.
// The crop must already match rect's pixel dimensions.
func Composite(original image.Image, crop image.Image, rect image.Rectangle, featherStart float64) *image.RGBA {
	bounds := original.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), original, bounds.Min, draw.Src)

	mask := FeatherMask(rect.Dx(), rect.Dy(), featherStart)
	draw.DrawMask(out, rect, crop, crop.Bounds().Min, mask, image.Point{}, draw.Over)
	return out
}
