package imaging

import (
	"image"
	"image/color"
	"testing"
)

func TestFeatherMask_OpaqueCoreTransparentCorners(t *testing.T) {
	mask := FeatherMask(100, 200, 0.7)

	if a := mask.AlphaAt(50, 100).A; a != 255 {
		t.Errorf("center alpha = %d, want 255", a)
	}
	// Half the start radius along the x axis: still inside the opaque core.
	if a := mask.AlphaAt(50+17, 100).A; a != 255 {
		t.Errorf("inner-core alpha = %d, want 255", a)
	}
	for _, corner := range []image.Point{{0, 0}, {99, 0}, {0, 199}, {99, 199}} {
		if a := mask.AlphaAt(corner.X, corner.Y).A; a != 0 {
			t.Errorf("corner %v alpha = %d, want 0", corner, a)
		}
	}
}

func TestFeatherMask_FalloffIsMonotonic(t *testing.T) {
	mask := FeatherMask(101, 101, 0.7)

	prev := int(mask.AlphaAt(50, 50).A)
	for x := 51; x <= 100; x++ {
		cur := int(mask.AlphaAt(x, 50).A)
		if cur > prev {
			t.Fatalf("alpha rose from %d to %d moving outward at x=%d", prev, cur, x)
		}
		prev = cur
	}
}

func TestComposite_OutsideRegionIsUntouched(t *testing.T) {
	original := solidImage(200, 300, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	crop := solidImage(60, 120, color.RGBA{R: 250, G: 240, B: 230, A: 255})
	rect := image.Rect(70, 90, 130, 210)

	out := Composite(original, crop, rect, 0.7)

	if got := out.Bounds(); got.Dx() != 200 || got.Dy() != 300 {
		t.Fatalf("composite dims %dx%d, want 200x300", got.Dx(), got.Dy())
	}
	for _, p := range []image.Point{{0, 0}, {199, 299}, {69, 90}, {130, 150}} {
		if px := out.RGBAAt(p.X, p.Y); px != original.RGBAAt(p.X, p.Y) {
			t.Errorf("pixel %v changed outside the paste region: %v", p, px)
		}
	}
}

func TestComposite_MaskBlendsCenterAndEdges(t *testing.T) {
	original := solidImage(200, 300, color.RGBA{R: 0, G: 0, B: 0, A: 255})
	crop := solidImage(60, 120, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	rect := image.Rect(70, 90, 130, 210)

	out := Composite(original, crop, rect, 0.7)

	if px := out.RGBAAt(100, 150); px.R != 255 {
		t.Errorf("mask core should be fully replaced, got %v", px)
	}
	// Crop corner sits outside the ellipse: the original shows through.
	if px := out.RGBAAt(70, 90); px.R != 0 {
		t.Errorf("crop corner should revert to the original, got %v", px)
	}
}
