package imaging

import (
	"image"
	"image/color"
	"math"
)

// Blend strength bounds. Full correction would fight the synthesis service's
// own color decisions; zero correction leaves visible tonal seams.
const (
	minBlendStrength = 0.3
	maxBlendStrength = 0.6
)

// strengthRampShift is the per-channel mismatch magnitude at which the blend
// strength saturates at its maximum.
const strengthRampShift = 60.0

// ColorCorrection is an additive per-channel shift, damped by a bounded blend
// strength.
type ColorCorrection struct {
	ShiftR   float64
	ShiftG   float64
	ShiftB   float64
	Strength float64
}

// MatchColors derives the correction that moves the synthesized crop's channel
// means toward the original crop's.
func MatchColors(original, synthesized ChannelMeans) ColorCorrection {
	c := ColorCorrection{
		ShiftR: original.R - synthesized.R,
		ShiftG: original.G - synthesized.G,
		ShiftB: original.B - synthesized.B,
	}

	ramp := c.Magnitude() / strengthRampShift
	if ramp > 1 {
		ramp = 1
	}
	c.Strength = minBlendStrength + ramp*(maxBlendStrength-minBlendStrength)
	return c
}

// Magnitude is the Euclidean length of the shift vector.
func (c ColorCorrection) Magnitude() float64 {
	return math.Sqrt(c.ShiftR*c.ShiftR + c.ShiftG*c.ShiftG + c.ShiftB*c.ShiftB)
}

// Apply returns a copy of the image with the damped shift added to every
// pixel, channels clamped to [0,255]. Alpha is preserved.
func (c ColorCorrection) Apply(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	dr := c.ShiftR * c.Strength
	dg := c.ShiftG * c.Strength
	db := c.ShiftB * c.Strength

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			out.SetRGBA(x-bounds.Min.X, y-bounds.Min.Y, color.RGBA{
				R: clampChannel(float64(r>>8) + dr),
				G: clampChannel(float64(g>>8) + dg),
				B: clampChannel(float64(b>>8) + db),
				A: uint8(a >> 8),
			})
		}
	}
	return out
}

func clampChannel(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
