package scan

import (
	"bottleswap-server/internal/domain/detect"
	"bottleswap-server/internal/domain/geometry"
)

// ScanData is the payload returned for an accepted scan.
type ScanData struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`

	Detection detect.DetectionResult `json:"detection"`
	// UsedDefault is set when no spatial signal was found and the fixed
	// centered region was substituted.
	UsedDefault bool `json:"used_default"`
	// Overlay is the region inflated for client-side highlight rendering.
	Overlay *geometry.NormalizedRegion `json:"overlay,omitempty"`

	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// SessionData is the payload of a session lookup.
type SessionData struct {
	SessionID      string                     `json:"session_id"`
	Status         string                     `json:"status"`
	Brand          string                     `json:"brand,omitempty"`
	Confidence     float64                    `json:"confidence,omitempty"`
	Source         string                     `json:"source,omitempty"`
	RegionSource   string                     `json:"region_source,omitempty"`
	Shape          string                     `json:"shape,omitempty"`
	ShapeCorrected bool                       `json:"shape_corrected,omitempty"`
	Region         *geometry.NormalizedRegion `json:"region,omitempty"`
	Provenance     map[string]any             `json:"provenance,omitempty"`
}
