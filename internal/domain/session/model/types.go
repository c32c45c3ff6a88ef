package model

import (
	"time"

	"bottleswap-server/internal/domain/geometry"
)

// Session status values.
const (
	StatusScanned  = "scanned"
	StatusMorphed  = "morphed"
	StatusFellBack = "fell_back"
)

// Session is one scan-to-morph interaction. Created when a capture is
// scanned, updated when the morph completes, expired by the store.
type Session struct {
	ID       string `json:"id"`
	DeviceID string `json:"device_id,omitempty"`

	// Upload bookkeeping, enough to re-enter the morph stage without
	// re-running detection.
	UploadID string `json:"upload_id,omitempty"`
	Format   string `json:"format,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`

	// Detection outcome.
	Brand          string                     `json:"brand,omitempty"`
	Confidence     float64                    `json:"confidence,omitempty"`
	Source         string                     `json:"source,omitempty"`
	RegionSource   string                     `json:"region_source,omitempty"`
	Shape          string                     `json:"shape,omitempty"`
	ShapeCorrected bool                       `json:"shape_corrected,omitempty"`
	Region         *geometry.NormalizedRegion `json:"region,omitempty"`

	Status     string         `json:"status"`
	Provenance map[string]any `json:"provenance,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the session is past its expiry.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}
