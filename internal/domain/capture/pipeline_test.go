package capture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"testing"

	"bottleswap-server/internal/platform/config"
	platformtesting "bottleswap-server/internal/platform/testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 100, G: 150, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func testUploadConfig(dir string) config.UploadConfig {
	return config.UploadConfig{
		MaxFileSize:    1 << 20,
		MaxWidth:       4096,
		MaxHeight:      4096,
		MaxPixels:      16 << 20,
		AllowedFormats: []string{"jpeg", "png", "webp"},
		Dir:            dir,
	}
}

func TestIngest_AcceptsAndPersists(t *testing.T) {
	dir := t.TempDir()
	p := NewPipeline(testUploadConfig(dir), platformtesting.SetupTestLogger(t))

	data := pngBytes(t, 64, 128)
	out, err := p.Ingest(bytes.NewReader(data), "png")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if out.Format != "png" || out.Width != 64 || out.Height != 128 {
		t.Errorf("got %s %dx%d", out.Format, out.Width, out.Height)
	}
	if out.ID == "" {
		t.Error("accepted upload must get an id")
	}
	if out.Path == "" {
		t.Fatal("upload should have been persisted")
	}
	persisted, err := os.ReadFile(out.Path)
	if err != nil {
		t.Fatalf("read persisted file: %v", err)
	}
	if !bytes.Equal(persisted, data) {
		t.Error("persisted bytes differ from upload")
	}

	loaded, err := p.Load(out.ID, out.Format)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(loaded, data) {
		t.Error("Load returned different bytes")
	}
}

func TestIngest_Rejections(t *testing.T) {
	cfg := testUploadConfig("")
	cfg.MaxFileSize = 1024
	cfg.MaxWidth = 100
	p := NewPipeline(cfg, nil)

	small := pngBytes(t, 10, 10)

	tests := []struct {
		name     string
		data     []byte
		format   string
		wantHint string
	}{
		{"empty payload", nil, "png", "empty"},
		{"not an image", []byte("<html>hello</html>"), "png", "decode"},
		{"disallowed declared format", small, "gif", "unsupported"},
		{"oversized file", bytes.Repeat([]byte{0xFF}, 2048), "jpeg", "maximum size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Ingest(bytes.NewReader(tt.data), tt.format)
			if err == nil {
				t.Fatal("expected rejection")
			}
			if !strings.Contains(err.Error(), tt.wantHint) {
				t.Errorf("error %q missing %q", err, tt.wantHint)
			}
		})
	}

	t.Run("oversized dimensions", func(t *testing.T) {
		big := pngBytes(t, 200, 50)
		if _, err := p.Ingest(bytes.NewReader(big), "png"); err == nil {
			t.Fatal("expected dimension rejection")
		}
	})
}
