package detect

import (
	"context"
	"strings"

	"bottleswap-server/internal/domain/geometry"
	"bottleswap-server/internal/platform/errors"
	"bottleswap-server/internal/platform/logging"
	"bottleswap-server/internal/providers/vision"
)

// AnnotationSource is the slice of the vision client the detector needs.
type AnnotationSource interface {
	Annotate(ctx context.Context, image []byte, features ...vision.Feature) (*vision.Annotations, error)
}

// Options tunes the detector.
type Options struct {
	// BottleMinAspect: a region at least this tall (height/width) is
	// treated as a bottle regardless of what the label text claims.
	BottleMinAspect float64
	// CanMaxAspect: a region at most this tall is treated as a can.
	CanMaxAspect float64
}

// Detector fuses logo, text, label, object and crop-hint signals from one
// vision call into a single DetectionResult.
type Detector struct {
	source AnnotationSource
	opts   Options
	logger *logging.Logger
}

// NewDetector wires a detector over an annotation source.
func NewDetector(source AnnotationSource, opts Options, logger *logging.Logger) (*Detector, error) {
	if source == nil {
		return nil, errors.New(errors.KindConfig, "detect.new", "annotation source is required")
	}
	if opts.BottleMinAspect <= 0 {
		opts.BottleMinAspect = 1.8
	}
	if opts.CanMaxAspect <= 0 {
		opts.CanMaxAspect = 1.5
	}
	return &Detector{source: source, opts: opts, logger: logger}, nil
}

// brandMatch is the outcome of one brand strategy.
type brandMatch struct {
	brand      string
	confidence float64
}

// brandStrategy inspects one signal family for a brand. Strategies are pure:
// nil means "no match here", and the ordered list below is the entire fusion
// policy — first match wins.
type brandStrategy struct {
	source Source
	match  func(*vision.Annotations) *brandMatch
}

var brandStrategies = []brandStrategy{
	{SourceLogo, matchLogoBrand},
	{SourceText, matchTextBrand},
	{SourceLabel, matchLabelBrand},
}

func lookupBrand(s string) (string, bool) {
	lower := strings.ToLower(s)
	for _, entry := range brandKeywords {
		if strings.Contains(lower, entry.keyword) {
			return entry.brand, true
		}
	}
	return "", false
}

func matchLogoBrand(a *vision.Annotations) *brandMatch {
	for _, logo := range a.Logos {
		if brand, ok := lookupBrand(logo.Description); ok {
			return &brandMatch{brand: brand, confidence: logo.Score}
		}
	}
	return nil
}

func matchTextBrand(a *vision.Annotations) *brandMatch {
	if brand, ok := lookupBrand(a.FullText()); ok {
		return &brandMatch{brand: brand, confidence: ocrConfidence}
	}
	return nil
}

func matchLabelBrand(a *vision.Annotations) *brandMatch {
	for _, label := range a.Labels {
		if brand, ok := lookupBrand(label.Description); ok {
			return &brandMatch{brand: brand, confidence: label.Score}
		}
	}
	return nil
}

// Detect runs one annotation call and fuses the response.
//
// Service failure is a hard error: without annotations there is no edit
// target. A service response with zero signals is not an error — it yields a
// result with an empty brand and SourceNone.
func (d *Detector) Detect(ctx context.Context, image []byte) (DetectionResult, error) {
	annotations, err := d.source.Annotate(ctx, image,
		vision.FeatureLogos,
		vision.FeatureText,
		vision.FeatureLabels,
		vision.FeatureObjects,
		vision.FeatureCropHints,
	)
	if err != nil {
		return DetectionResult{}, errors.Wrap(errors.KindVision, "detect", "annotation call failed", err)
	}

	return d.Fuse(annotations), nil
}

// Fuse applies the fusion policy to an annotation set. Split from Detect so
// tests can exercise the policy without a live service.
func (d *Detector) Fuse(a *vision.Annotations) DetectionResult {
	result := DetectionResult{Source: SourceNone, RegionSource: SourceNone}
	if a == nil {
		return result
	}

	for _, strategy := range brandStrategies {
		if m := strategy.match(a); m != nil {
			result.Brand = m.brand
			result.Confidence = m.confidence
			result.Source = strategy.source
			break
		}
	}

	result.Region, result.RegionSource, result.Shape = d.selectRegion(a)

	if result.Region != nil && result.Shape != ShapeUnknown {
		result.Shape, result.ShapeCorrected = d.sanitizeShape(result.Shape, result.Region)
	}

	if d.logger != nil {
		d.logger.DebugTag("Detect", "fused: brand=%q source=%s region_source=%s shape=%s",
			result.Brand, result.Source, result.RegionSource, result.Shape)
	}
	return result
}

// selectRegion picks the bounding region on its own priority ladder,
// independent of which signal named the brand: localized container objects
// are trusted most, then the matching logo's box, then the top crop hint.
func (d *Detector) selectRegion(a *vision.Annotations) (*geometry.NormalizedRegion, Source, ContainerShape) {
	if obj, ok := bestContainerObject(a.Objects); ok {
		if region := obj.BoundingPoly.Tagged().Normalize(a.ImageWidth, a.ImageHeight); region != nil {
			return region, SourceObject, shapeFromName(obj.Name)
		}
	}

	for _, logo := range a.Logos {
		if _, ok := lookupBrand(logo.Description); !ok {
			continue
		}
		if region := logo.BoundingPoly.Tagged().Normalize(a.ImageWidth, a.ImageHeight); region != nil {
			return region, SourceLogo, ShapeUnknown
		}
	}

	if len(a.CropHints) > 0 {
		if region := a.CropHints[0].BoundingPoly.Tagged().Normalize(a.ImageWidth, a.ImageHeight); region != nil {
			return region, SourceCropHint, ShapeUnknown
		}
	}

	return nil, SourceNone, ShapeUnknown
}

func bestContainerObject(objects []vision.LocalizedObject) (vision.LocalizedObject, bool) {
	best := vision.LocalizedObject{}
	found := false
	for _, obj := range objects {
		name := strings.ToLower(obj.Name)
		for _, noun := range containerNouns {
			if strings.Contains(name, noun) {
				if !found || obj.Score > best.Score {
					best = obj
					found = true
				}
				break
			}
		}
	}
	return best, found
}

func shapeFromName(name string) ContainerShape {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "can"):
		return ShapeCan
	case strings.Contains(lower, "bottle"):
		return ShapeBottle
	default:
		return ShapeUnknown
	}
}

// sanitizeShape lets geometry overrule the label when they contradict each
// other beyond the configured thresholds: labels are weak evidence, the
// observed aspect ratio is strong evidence.
func (d *Detector) sanitizeShape(shape ContainerShape, region *geometry.NormalizedRegion) (ContainerShape, bool) {
	tallness := region.Aspect()
	switch shape {
	case ShapeCan:
		if tallness >= d.opts.BottleMinAspect {
			return ShapeBottle, true
		}
	case ShapeBottle:
		if tallness <= d.opts.CanMaxAspect {
			return ShapeCan, true
		}
	}
	return shape, false
}
