package imaging

import "image"

// ChannelMeans holds per-channel mean intensities in 0..255 space.
type ChannelMeans struct {
	R float64
	G float64
	B float64
}

// Luma is the Rec. 601 weighted brightness of the means.
func (m ChannelMeans) Luma() float64 {
	return 0.299*m.R + 0.587*m.G + 0.114*m.B
}

// Means computes per-channel mean intensities over the whole image.
func Means(img image.Image) ChannelMeans {
	bounds := img.Bounds()
	total := float64(bounds.Dx() * bounds.Dy())
	if total == 0 {
		return ChannelMeans{}
	}

	var r, g, b float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			pr, pg, pb, _ := img.At(x, y).RGBA()
			r += float64(pr >> 8)
			g += float64(pg >> 8)
			b += float64(pb >> 8)
		}
	}
	return ChannelMeans{R: r / total, G: g / total, B: b / total}
}
