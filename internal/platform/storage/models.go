package storage

import (
	"time"

	"gorm.io/datatypes"
)

// ScanSession is the persisted form of one scan-to-morph session.
type ScanSession struct {
	ID             uint           `gorm:"primaryKey"`
	SessionID      string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"session_id"`
	DeviceID       string         `gorm:"index"                                 json:"device_id"`
	UploadID       string         `                                             json:"upload_id"`
	Format         string         `                                             json:"format"`
	Width          int            `                                             json:"width"`
	Height         int            `                                             json:"height"`
	Brand          string         `                                             json:"brand"`
	Confidence     float64        `                                             json:"confidence"`
	Source         string         `                                             json:"source"`
	RegionSource   string         `                                             json:"region_source"`
	Shape          string         `                                             json:"shape"`
	ShapeCorrected bool           `                                             json:"shape_corrected"`
	Region         datatypes.JSON `                                             json:"region,omitempty"`
	Status         string         `gorm:"index"                                 json:"status"`
	Provenance     datatypes.JSON `                                             json:"provenance,omitempty"`
	CreatedAt      time.Time      `                                             json:"created_at"`
	ExpiresAt      *time.Time     `                                             json:"expires_at,omitempty"`
}
