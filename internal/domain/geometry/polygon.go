package geometry

// Vertex is a single polygon point, either in pixel or normalized space
// depending on which side of the BoundingPolygon union it sits on.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingPolygon is a tagged union of the two vertex representations the
// vision service emits on the same response field. Exactly one side is
// populated per instance; the constructors enforce that.
type BoundingPolygon struct {
	pixel      []Vertex
	normalized []Vertex
}

// PolygonFromPixels builds a polygon carrying pixel-space vertices.
func PolygonFromPixels(vertices []Vertex) *BoundingPolygon {
	if len(vertices) == 0 {
		return nil
	}
	return &BoundingPolygon{pixel: vertices}
}

// PolygonFromNormalized builds a polygon carrying pre-normalized vertices.
func PolygonFromNormalized(vertices []Vertex) *BoundingPolygon {
	if len(vertices) == 0 {
		return nil
	}
	return &BoundingPolygon{normalized: vertices}
}

// Normalize collapses the polygon to its axis-aligned normalized bounding
// rectangle. imgW/imgH are only consulted for the pixel representation.
//
// A nil return means "no usable region": fewer than four vertices, zero
// area after clamping, or pixel vertices without valid image dimensions.
// Callers treat that as detection-without-localization, never as an error.
func (p *BoundingPolygon) Normalize(imgW, imgH int) *NormalizedRegion {
	if p == nil {
		return nil
	}

	switch {
	case len(p.normalized) >= 4:
		return boundsOf(p.normalized, 1, 1)
	case len(p.pixel) >= 4 && imgW > 0 && imgH > 0:
		return boundsOf(p.pixel, float64(imgW), float64(imgH))
	default:
		return nil
	}
}

func boundsOf(vertices []Vertex, scaleX, scaleY float64) *NormalizedRegion {
	minX, minY := 1.0, 1.0
	maxX, maxY := 0.0, 0.0
	for _, v := range vertices {
		x := clamp01(v.X / scaleX)
		y := clamp01(v.Y / scaleY)
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}

	w := maxX - minX
	h := maxY - minY
	if w <= 0 || h <= 0 {
		return nil
	}

	return &NormalizedRegion{X: minX, Y: minY, Width: w, Height: h}
}
