package imaging

import (
	"image"

	"golang.org/x/image/draw"
)

// ScaleDown shrinks an image so its longest side fits limit, preserving
// aspect ratio. Returns the (possibly untouched) image and the scale factor
// applied; scale is 1 when the image already fits.
//
// The factor is informational only. The inverse operation does not divide by
// it: ScaleTo is always given the recorded original pixel dimensions, which
// is what makes the round trip exact.
func ScaleDown(img image.Image, limit int) (image.Image, float64) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if limit <= 0 || longest <= limit {
		return img, 1
	}

	scale := float64(limit) / float64(longest)
	dstW := int(float64(w) * scale)
	dstH := int(float64(h) * scale)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}
	return ScaleTo(img, dstW, dstH), scale
}

// ScaleTo resamples an image to exact pixel dimensions with Catmull-Rom.
func ScaleTo(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
