package morph

import (
	"context"
	"fmt"
	"image"
	"image/draw"

	evbus "github.com/asaskevich/EventBus"

	"bottleswap-server/internal/domain/detect"
	"bottleswap-server/internal/domain/eventbus"
	"bottleswap-server/internal/domain/geometry"
	"bottleswap-server/internal/domain/imaging"
	"bottleswap-server/internal/platform/config"
	"bottleswap-server/internal/platform/errors"
	"bottleswap-server/internal/platform/logging"
	"bottleswap-server/internal/platform/observability"
)

// Synthesizer is the slice of the synthesis client the pipeline needs.
type Synthesizer interface {
	ReplaceSubject(ctx context.Context, crop, reference []byte, instruction string) ([]byte, error)
}

// Request carries one morph job. Region is the detected bottle region; nil
// falls back to the fixed centered default. Brand and Shape condition the
// synthesis instruction and may be empty.
type Request struct {
	SessionID string
	Image     []byte
	Region    *geometry.NormalizedRegion
	Brand     string
	Shape     detect.ContainerShape
	// DetectionSource is recorded in provenance; it does not steer the
	// pipeline.
	DetectionSource detect.Source
}

// Provenance records how the composite came to be, for debugging and
// observability only.
type Provenance struct {
	DetectionSource          string  `json:"detection_source"`
	AspectAdjusted           bool    `json:"aspect_adjusted"`
	ScaleFactor              float64 `json:"scale_factor"`
	ColorCorrectionMagnitude float64 `json:"color_correction_magnitude"`
}

// Result is the outcome of one morph run. On the fallback path Output holds
// the unmodified original bytes and FellBack is set; a fallback is a valid
// result, not an error.
type Result struct {
	Output         []byte
	Format         string
	FellBack       bool
	FallbackReason string
	Provenance     Provenance
}

// Pipeline runs the sequential morph chain: plan crop, capture statistics,
// scale down, synthesize, color match, scale back, composite.
type Pipeline struct {
	cfg       config.PipelineConfig
	synth     Synthesizer
	reference *ReferenceCache
	bus       evbus.Bus
	logger    *logging.Logger
}

// NewPipeline wires the pipeline. A nil bus attaches the process-wide one.
func NewPipeline(cfg config.PipelineConfig, synth Synthesizer, reference *ReferenceCache, bus evbus.Bus, logger *logging.Logger) (*Pipeline, error) {
	if synth == nil {
		return nil, errors.New(errors.KindConfig, "morph.new", "synthesizer is required")
	}
	if reference == nil {
		return nil, errors.New(errors.KindConfig, "morph.new", "reference cache is required")
	}
	if bus == nil {
		bus = eventbus.Get()
	}
	return &Pipeline{cfg: cfg, synth: synth, reference: reference, bus: bus, logger: logger}, nil
}

// Run executes one morph job. Errors are returned only for unusable input or
// missing configuration; synthesis trouble of any kind resolves to the
// fallback result instead.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	_, spanEnd := observability.StartSpan(ctx, "morph.pipeline", "run")

	original, format, err := imaging.Decode(req.Image)
	if err != nil {
		spanEnd(err)
		return Result{}, err
	}
	frame := original.Bounds()

	region := req.Region
	usedDefault := false
	if region == nil {
		region = geometry.DefaultBottleRegion()
		usedDefault = true
	}

	p.bus.Publish(eventbus.EventDetectionComplete, eventbus.DetectionEventData{
		SessionID:    req.SessionID,
		Brand:        req.Brand,
		Source:       string(req.DetectionSource),
		RegionSource: string(req.DetectionSource),
		UsedDefault:  usedDefault,
	})

	plan := geometry.PlanCrop(frame.Dx(), frame.Dy(), region.ToPixels(frame.Dx(), frame.Dy()), geometry.PlanParams{
		TargetAspect:    p.cfg.TargetAspect,
		PaddingFraction: p.cfg.PaddingFraction,
		MaxExpansion:    p.cfg.MaxExpansion,
	})
	observability.RecordStage(ctx, "crop-planned", map[string]any{
		"session_id": req.SessionID, "rect": plan.Rectangle().String(),
	})
	p.bus.Publish(eventbus.EventCropPlanned, eventbus.CropEventData{
		SessionID:      req.SessionID,
		X:              plan.X,
		Y:              plan.Y,
		Width:          plan.Width,
		Height:         plan.Height,
		AspectAdjusted: plan.AspectAdjusted,
	})

	crop := extractCrop(original, plan.Rectangle())
	cropBounds := crop.Bounds()

	// Original-crop statistics must be captured before the synthesis call;
	// the correction in the back half needs them.
	originalMeans := imaging.Means(crop)
	lighting := imaging.AnalyzeLighting(originalMeans, region)

	scaled, scale := imaging.ScaleDown(crop, p.cfg.MaxWorkingDim)
	scaledBounds := scaled.Bounds()

	provenance := Provenance{
		DetectionSource: string(req.DetectionSource),
		AspectAdjusted:  plan.AspectAdjusted,
		ScaleFactor:     scale,
	}

	scaledBytes, err := imaging.Encode(scaled, "png")
	if err != nil {
		return p.fallback(req, format, provenance, "encode working crop: "+err.Error(), spanEnd), nil
	}

	reference, err := p.reference.Get()
	if err != nil {
		spanEnd(err)
		return Result{}, err
	}

	synthBytes, err := p.synth.ReplaceSubject(ctx, scaledBytes, reference, p.instruction(req, lighting))
	if err != nil {
		return p.fallback(req, format, provenance, "synthesis failed: "+err.Error(), spanEnd), nil
	}

	synthImg, _, err := imaging.Decode(synthBytes)
	if err != nil {
		return p.fallback(req, format, provenance, "synthesis returned undecodable image", spanEnd), nil
	}
	synthBounds := synthImg.Bounds()
	if synthBounds.Dx() != scaledBounds.Dx() || synthBounds.Dy() != scaledBounds.Dy() {
		reason := fmt.Sprintf("synthesis dimension mismatch: got %dx%d, want %dx%d",
			synthBounds.Dx(), synthBounds.Dy(), scaledBounds.Dx(), scaledBounds.Dy())
		return p.fallback(req, format, provenance, reason, spanEnd), nil
	}

	p.bus.Publish(eventbus.EventSynthesisComplete, eventbus.SynthesisEventData{
		SessionID:   req.SessionID,
		ScaleFactor: scale,
	})

	synthMeans := imaging.Means(synthImg)
	correction := imaging.MatchColors(originalMeans, synthMeans)
	corrected := correction.Apply(synthImg)
	provenance.ColorCorrectionMagnitude = correction.Magnitude()

	// Scale back targets the recorded crop dimensions, keeping the round
	// trip pixel-exact.
	restored := imaging.ScaleTo(corrected, cropBounds.Dx(), cropBounds.Dy())

	composite := imaging.Composite(original, restored, plan.Rectangle(), p.cfg.FeatherStart)
	output, err := imaging.Encode(composite, format)
	if err != nil {
		return p.fallback(req, format, provenance, "encode composite: "+err.Error(), spanEnd), nil
	}

	p.bus.Publish(eventbus.EventCompositeComplete, eventbus.CompositeEventData{
		SessionID:                req.SessionID,
		DetectionSource:          provenance.DetectionSource,
		AspectAdjusted:           provenance.AspectAdjusted,
		ScaleFactor:              provenance.ScaleFactor,
		ColorCorrectionMagnitude: provenance.ColorCorrectionMagnitude,
	})
	observability.RecordStage(ctx, "composite-complete", map[string]any{
		"session_id": req.SessionID, "fell_back": false,
	})

	if p.logger != nil {
		p.logger.InfoTag("Morph", "composite done: session=%s scale=%.3f correction=%.1f",
			req.SessionID, scale, provenance.ColorCorrectionMagnitude)
	}

	spanEnd(nil)
	return Result{Output: output, Format: format, Provenance: provenance}, nil
}

// fallback resolves the run to the unmodified original image. The end user
// sees their own photo, never a broken composite.
func (p *Pipeline) fallback(req Request, format string, provenance Provenance, reason string, spanEnd func(error)) Result {
	if p.logger != nil {
		p.logger.WarnTag("Morph", "falling back to original: session=%s reason=%s", req.SessionID, reason)
	}

	p.bus.Publish(eventbus.EventSynthesisComplete, eventbus.SynthesisEventData{
		SessionID:   req.SessionID,
		ScaleFactor: provenance.ScaleFactor,
		FellBack:    true,
		Reason:      reason,
	})
	p.bus.Publish(eventbus.EventCompositeComplete, eventbus.CompositeEventData{
		SessionID:                req.SessionID,
		DetectionSource:          provenance.DetectionSource,
		AspectAdjusted:           provenance.AspectAdjusted,
		ScaleFactor:              provenance.ScaleFactor,
		ColorCorrectionMagnitude: 0,
		FellBack:                 true,
	})

	spanEnd(nil)
	return Result{
		Output:         req.Image,
		Format:         format,
		FellBack:       true,
		FallbackReason: reason,
		Provenance:     provenance,
	}
}

// instruction renders the natural-language edit request. The lighting bins
// are the only scene information the synthesis service receives beyond the
// pixels themselves.
func (p *Pipeline) instruction(req Request, lighting imaging.LightingProfile) string {
	subject := "beverage container"
	switch req.Shape {
	case detect.ShapeBottle:
		subject = "bottle"
	case detect.ShapeCan:
		subject = "can"
	}
	if req.Brand != "" {
		subject = req.Brand + " " + subject
	}

	return fmt.Sprintf(
		"The first image is a photo containing a %s. The second image is the replacement product. "+
			"Redraw the first image with the replacement product in place of the %s, matching its pose, "+
			"size and position exactly. Keep every other pixel of the scene unchanged. %s "+
			"Return only the edited image.",
		subject, subject, lighting.Describe())
}

func extractCrop(img image.Image, rect image.Rectangle) *image.RGBA {
	crop := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(crop, crop.Bounds(), img, rect.Min, draw.Src)
	return crop
}
