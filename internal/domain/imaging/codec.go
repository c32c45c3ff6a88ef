package imaging

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	_ "golang.org/x/image/webp"

	"bottleswap-server/internal/platform/errors"
)

// Decode parses image bytes into a decoded image plus the detected format
// name ("jpeg", "png", "webp").
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Wrap(errors.KindDomain, "imaging.decode", "decode image", err)
	}
	return img, format, nil
}

// Encode serializes an image in the given format. WebP input re-encodes as
// PNG: the stdlib has no webp encoder and the composite must stay lossless
// through the pipeline anyway.
func Encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92})
	default:
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, errors.Wrap(errors.KindDomain, "imaging.encode", "encode image", err)
	}
	return buf.Bytes(), nil
}
