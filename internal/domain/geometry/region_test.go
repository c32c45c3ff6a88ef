package geometry

import (
	"math"
	"testing"
)

func TestExpand_NilInput(t *testing.T) {
	if Expand(nil, 1.5, 1.5) != nil {
		t.Error("nil region must expand to nil")
	}
}

func TestExpand_PreservesCenter(t *testing.T) {
	r := &NormalizedRegion{X: 0.4, Y: 0.4, Width: 0.2, Height: 0.2}
	e := Expand(r, 2, 1.5)

	if math.Abs(e.Width-0.4) > 1e-9 || math.Abs(e.Height-0.3) > 1e-9 {
		t.Fatalf("unexpected extents: %+v", e)
	}
	cx := e.X + e.Width/2
	cy := e.Y + e.Height/2
	if math.Abs(cx-0.5) > 1e-9 || math.Abs(cy-0.5) > 1e-9 {
		t.Errorf("center moved: (%f, %f)", cx, cy)
	}
}

func TestExpand_TranslatesBackInside(t *testing.T) {
	r := &NormalizedRegion{X: 0, Y: 0.85, Width: 0.3, Height: 0.1}
	e := Expand(r, 1.5, 2)

	if e.X < 0 || e.Y < 0 || e.X+e.Width > 1+1e-9 || e.Y+e.Height > 1+1e-9 {
		t.Errorf("expanded region escaped unit square: %+v", e)
	}
}

func TestExpand_OversizeClampsToUnit(t *testing.T) {
	r := &NormalizedRegion{X: 0.1, Y: 0.1, Width: 0.8, Height: 0.9}
	e := Expand(r, 2, 2)

	if e.X != 0 || e.Width != 1 {
		t.Errorf("width should clamp to 1 anchored at 0: %+v", e)
	}
	if e.Y != 0 || e.Height != 1 {
		t.Errorf("height should clamp to 1 anchored at 0: %+v", e)
	}
}

// Repeated application with multiplier 1.0 is the identity.
func TestExpand_IdentityMultiplier(t *testing.T) {
	r := &NormalizedRegion{X: 0.2, Y: 0.3, Width: 0.4, Height: 0.5}
	e := Expand(Expand(r, 1, 1), 1, 1)

	if math.Abs(e.X-r.X) > 1e-9 || math.Abs(e.Y-r.Y) > 1e-9 ||
		math.Abs(e.Width-r.Width) > 1e-9 || math.Abs(e.Height-r.Height) > 1e-9 {
		t.Errorf("identity expansion changed the region: %+v", e)
	}
}

func TestToPixels(t *testing.T) {
	r := NormalizedRegion{X: 0.25, Y: 0.5, Width: 0.5, Height: 0.25}
	p := r.ToPixels(400, 800)

	if p.X != 100 || p.Y != 400 || p.Width != 200 || p.Height != 200 {
		t.Errorf("unexpected pixel region: %+v", p)
	}
}

func TestAspect(t *testing.T) {
	tall := NormalizedRegion{Width: 0.2, Height: 0.6}
	if math.Abs(tall.Aspect()-3.0) > 1e-9 {
		t.Errorf("expected tallness 3.0, got %f", tall.Aspect())
	}
	if !math.IsInf(NormalizedRegion{}.Aspect(), 1) {
		t.Error("zero width should report infinite tallness")
	}
}
