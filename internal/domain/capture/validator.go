package capture

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"bottleswap-server/internal/platform/config"
	"bottleswap-server/internal/platform/logging"
)

// Validator checks incoming capture photos before they enter the pipeline.
type Validator struct {
	cfg    config.UploadConfig
	logger *logging.Logger
}

func NewValidator(cfg config.UploadConfig, logger *logging.Logger) *Validator {
	return &Validator{cfg: cfg, logger: logger}
}

var imageSignatures = map[string][]byte{
	"jpeg": {0xFF, 0xD8},
	"jpg":  {0xFF, 0xD8},
	"png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"webp": {0x52, 0x49, 0x46, 0x46},
}

// ValidationResult carries what validation learned about the payload.
type ValidationResult struct {
	Format   string
	Width    int
	Height   int
	FileSize int64
}

// Validate rejects payloads that are empty, oversized, of a disallowed
// format, or not decodable as an actual image. The format sniffed from the
// bytes wins over the declared one.
func (v *Validator) Validate(data []byte, declaredFormat string) (ValidationResult, error) {
	if len(data) == 0 {
		return ValidationResult{}, fmt.Errorf("empty image payload")
	}
	if v.cfg.MaxFileSize > 0 && int64(len(data)) > v.cfg.MaxFileSize {
		if v.logger != nil {
			v.logger.WarnTag("Capture", "oversized upload: size=%d max=%d", len(data), v.cfg.MaxFileSize)
		}
		return ValidationResult{}, fmt.Errorf("file size %d exceeds limit %d", len(data), v.cfg.MaxFileSize)
	}
	if declaredFormat != "" && !v.formatAllowed(declaredFormat) {
		return ValidationResult{}, fmt.Errorf("unsupported format: %s", declaredFormat)
	}

	cfg, actualFormat, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if declaredFormat != "" && !matchesSignature(data, declaredFormat) && v.logger != nil {
			v.logger.WarnTag("Capture", "file signature mismatch: declared=%s header=%x",
				declaredFormat, data[:min(len(data), 16)])
		}
		return ValidationResult{}, fmt.Errorf("decode image: %w", err)
	}
	if !v.formatAllowed(actualFormat) {
		return ValidationResult{}, fmt.Errorf("unsupported format: %s", actualFormat)
	}

	if (v.cfg.MaxWidth > 0 && cfg.Width > v.cfg.MaxWidth) ||
		(v.cfg.MaxHeight > 0 && cfg.Height > v.cfg.MaxHeight) {
		return ValidationResult{}, fmt.Errorf("dimensions %dx%d exceed limit %dx%d",
			cfg.Width, cfg.Height, v.cfg.MaxWidth, v.cfg.MaxHeight)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); v.cfg.MaxPixels > 0 && pixels > v.cfg.MaxPixels {
		return ValidationResult{}, fmt.Errorf("pixel count %d exceeds limit %d", pixels, v.cfg.MaxPixels)
	}

	return ValidationResult{
		Format:   actualFormat,
		Width:    cfg.Width,
		Height:   cfg.Height,
		FileSize: int64(len(data)),
	}, nil
}

func (v *Validator) formatAllowed(format string) bool {
	if format == "" {
		return false
	}
	allowed := v.cfg.AllowedFormats
	if len(allowed) == 0 {
		allowed = []string{"jpeg", "jpg", "png", "webp"}
	}
	format = strings.ToLower(format)
	for _, f := range allowed {
		if strings.ToLower(f) == format {
			return true
		}
	}
	return false
}

func matchesSignature(data []byte, format string) bool {
	sig, ok := imageSignatures[strings.ToLower(format)]
	if !ok {
		return true
	}
	return len(data) >= len(sig) && bytes.Equal(data[:len(sig)], sig)
}
