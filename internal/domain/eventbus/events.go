package eventbus

// Pipeline stage topics. One event per stage boundary so tests can assert on
// published events instead of string-matching log output.
const (
	EventDetectionComplete = "pipeline:detection-complete"
	EventCropPlanned       = "pipeline:crop-planned"
	EventSynthesisComplete = "pipeline:synthesis-complete"
	EventCompositeComplete = "pipeline:composite-complete"

	EventSessionCreated = "session:created"
	EventSystemError    = "system:error"
)

// DetectionEventData is published on EventDetectionComplete.
type DetectionEventData struct {
	SessionID    string  `json:"session_id"`
	Brand        string  `json:"brand,omitempty"`
	Source       string  `json:"source"`
	RegionSource string  `json:"region_source"`
	Confidence   float64 `json:"confidence"`
	UsedDefault  bool    `json:"used_default"`
}

// CropEventData is published on EventCropPlanned.
type CropEventData struct {
	SessionID      string `json:"session_id"`
	X              int    `json:"x"`
	Y              int    `json:"y"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	AspectAdjusted bool   `json:"aspect_adjusted"`
}

// SynthesisEventData is published on EventSynthesisComplete, including on the
// fallback path.
type SynthesisEventData struct {
	SessionID   string  `json:"session_id"`
	ScaleFactor float64 `json:"scale_factor"`
	FellBack    bool    `json:"fell_back"`
	Reason      string  `json:"reason,omitempty"`
}

// CompositeEventData is published on EventCompositeComplete with the full
// provenance of the finished morph.
type CompositeEventData struct {
	SessionID                string  `json:"session_id"`
	DetectionSource          string  `json:"detection_source"`
	AspectAdjusted           bool    `json:"aspect_adjusted"`
	ScaleFactor              float64 `json:"scale_factor"`
	ColorCorrectionMagnitude float64 `json:"color_correction_magnitude"`
	FellBack                 bool    `json:"fell_back"`
}

// SessionEventData is published on EventSessionCreated.
type SessionEventData struct {
	SessionID string `json:"session_id"`
	DeviceID  string `json:"device_id,omitempty"`
}

// SystemEventData is published on EventSystemError.
type SystemEventData struct {
	Level   string      `json:"level"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
