package vision

import "bottleswap-server/internal/domain/geometry"

// Feature flags the caller can request from the detection service.
type Feature string

const (
	FeatureLabels    Feature = "LABEL_DETECTION"
	FeatureText      Feature = "TEXT_DETECTION"
	FeatureLogos     Feature = "LOGO_DETECTION"
	FeatureObjects   Feature = "OBJECT_LOCALIZATION"
	FeatureCropHints Feature = "CROP_HINTS"
)

// Poly is the wire form of a bounding polygon. The service populates either
// Vertices (pixel space) or NormalizedVertices depending on the feature; some
// responses carry neither.
type Poly struct {
	Vertices           []geometry.Vertex `json:"vertices,omitempty"`
	NormalizedVertices []geometry.Vertex `json:"normalizedVertices,omitempty"`
}

// Tagged converts the wire polygon into the geometry tagged union, preferring
// the normalized representation when the service sent both.
func (p *Poly) Tagged() *geometry.BoundingPolygon {
	if p == nil {
		return nil
	}
	if len(p.NormalizedVertices) > 0 {
		return geometry.PolygonFromNormalized(p.NormalizedVertices)
	}
	return geometry.PolygonFromPixels(p.Vertices)
}

// EntityAnnotation covers logo, text and label annotations.
type EntityAnnotation struct {
	Description  string  `json:"description"`
	Score        float64 `json:"score"`
	BoundingPoly *Poly   `json:"boundingPoly,omitempty"`
}

// LocalizedObject is an object-localization annotation.
type LocalizedObject struct {
	Name         string  `json:"name"`
	Score        float64 `json:"score"`
	BoundingPoly *Poly   `json:"boundingPoly,omitempty"`
}

// CropHint is a composition suggestion from the service.
type CropHint struct {
	BoundingPoly *Poly   `json:"boundingPoly,omitempty"`
	Confidence   float64 `json:"confidence"`
}

// Annotations is the fused response of one annotate call.
type Annotations struct {
	Logos     []EntityAnnotation `json:"logoAnnotations,omitempty"`
	Texts     []EntityAnnotation `json:"textAnnotations,omitempty"`
	Labels    []EntityAnnotation `json:"labelAnnotations,omitempty"`
	Objects   []LocalizedObject  `json:"localizedObjectAnnotations,omitempty"`
	CropHints []CropHint         `json:"cropHints,omitempty"`

	// Pixel dimensions of the annotated image, needed to normalize
	// pixel-space polygons.
	ImageWidth  int `json:"imageWidth,omitempty"`
	ImageHeight int `json:"imageHeight,omitempty"`
}

// FullText concatenates every text annotation for keyword scanning.
func (a *Annotations) FullText() string {
	if a == nil || len(a.Texts) == 0 {
		return ""
	}
	// The first text annotation is the full-page aggregation; fall back to
	// joining blocks when it is absent.
	out := a.Texts[0].Description
	for _, t := range a.Texts[1:] {
		out += " " + t.Description
	}
	return out
}
