package imaging

import (
	"fmt"
	"strings"

	"bottleswap-server/internal/domain/geometry"
)

// LightingProfile describes the scene in coarse bins. The synthesis service
// never sees raw pixel statistics, so these words are the only lighting
// conditioning it gets.
type LightingProfile struct {
	Brightness  string
	Temperature string
	Perspective string
}

// uprightAspect is the tallness (height/width) of a bottle photographed
// straight on. Larger deviations read as tilt or foreshortening.
const uprightAspect = 2.5

// AnalyzeLighting bins channel means into brightness and color-temperature
// descriptions and derives a perspective note from where and how tall the
// detected region sits in the frame. Region may be nil.
func AnalyzeLighting(means ChannelMeans, region *geometry.NormalizedRegion) LightingProfile {
	return LightingProfile{
		Brightness:  brightnessBin(means.Luma()),
		Temperature: temperatureBin(means.R - means.B),
		Perspective: perspectiveNote(region),
	}
}

func brightnessBin(luma float64) string {
	switch {
	case luma < 60:
		return "dim, low-key lighting"
	case luma < 115:
		return "moderate indoor lighting"
	case luma < 180:
		return "bright, well-lit"
	default:
		return "very bright, strongly lit"
	}
}

func temperatureBin(redMinusBlue float64) string {
	switch {
	case redMinusBlue > 40:
		return "very warm color cast"
	case redMinusBlue > 20:
		return "warm color cast"
	case redMinusBlue > 8:
		return "slightly warm tones"
	case redMinusBlue < -40:
		return "very cool color cast"
	case redMinusBlue < -20:
		return "cool color cast"
	case redMinusBlue < -8:
		return "slightly cool tones"
	default:
		return "neutral color balance"
	}
}

func perspectiveNote(region *geometry.NormalizedRegion) string {
	if region == nil {
		return "subject centered, viewed straight on"
	}

	tallness := region.Aspect()
	var angle string
	switch {
	case tallness < uprightAspect*0.6:
		angle = "viewed from an angle with noticeable foreshortening"
	case tallness < uprightAspect*0.85:
		angle = "viewed slightly off-axis"
	default:
		angle = "viewed straight on, upright"
	}

	centerY := region.Y + region.Height/2
	switch {
	case centerY < 0.35:
		return angle + ", positioned high in the frame as if seen from below"
	case centerY > 0.65:
		return angle + ", positioned low in the frame as if seen from above"
	default:
		return angle
	}
}

// Describe renders the profile as one conditioning sentence.
func (p LightingProfile) Describe() string {
	parts := []string{p.Brightness, p.Temperature, p.Perspective}
	return fmt.Sprintf("Scene conditions: %s.", strings.Join(parts, "; "))
}
