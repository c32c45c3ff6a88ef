package detect

import "bottleswap-server/internal/domain/geometry"

// Source identifies which detection signal supplied a value.
type Source string

const (
	SourceLogo     Source = "logo"
	SourceText     Source = "text"
	SourceLabel    Source = "label"
	SourceObject   Source = "object"
	SourceCropHint Source = "cropHint"
	SourceNone     Source = "none"
)

// ContainerShape classifies the detected container.
type ContainerShape string

const (
	ShapeBottle  ContainerShape = "bottle"
	ShapeCan     ContainerShape = "can"
	ShapeUnknown ContainerShape = ""
)

// DetectionResult is the fused outcome of one detection pass.
//
// Brand and Region travel independently: a logo can identify the brand while
// the region comes from an object annotation, a crop hint, or nowhere at all.
// Region may legitimately be nil even when Brand is set — a signal was found
// but no spatial evidence accompanied it.
type DetectionResult struct {
	Brand      string                     `json:"brand,omitempty"`
	Confidence float64                    `json:"confidence"`
	Source     Source                     `json:"source"`
	Region     *geometry.NormalizedRegion `json:"region,omitempty"`
	// RegionSource names the signal the region came from; SourceNone when
	// Region is nil and the caller should fall back to the default region.
	RegionSource Source         `json:"region_source"`
	Shape        ContainerShape `json:"shape,omitempty"`
	// ShapeCorrected is set when geometry overruled the label text.
	ShapeCorrected bool `json:"shape_corrected,omitempty"`
}

// ocrConfidence is assigned to text matches: the OCR signal carries no
// per-brand numeric score of its own.
const ocrConfidence = 0.9

// brandKeywords maps lowercase keywords to the canonical competitor brand
// name. Substring matching, so "coke zero" hits "coke".
var brandKeywords = []struct {
	keyword string
	brand   string
}{
	{"coca-cola", "Coca-Cola"},
	{"coca cola", "Coca-Cola"},
	{"coke", "Coca-Cola"},
	{"pepsi", "Pepsi"},
	{"dr pepper", "Dr Pepper"},
	{"mountain dew", "Mountain Dew"},
	{"sprite", "Sprite"},
	{"fanta", "Fanta"},
	{"7up", "7UP"},
	{"7 up", "7UP"},
	{"schweppes", "Schweppes"},
	{"gatorade", "Gatorade"},
}

// containerNouns are object-localization names accepted as the body of the
// container. Label/text boxes hug the artwork, not the bottle, which is why
// object annotations always win region selection.
var containerNouns = []string{"bottle", "drink", "beverage", "can", "soda"}
