package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"bottleswap-server/internal/domain/geometry"
	"bottleswap-server/internal/domain/session/model"
	"bottleswap-server/internal/platform/storage"
)

type sqliteStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewSQLite builds a SQLite-backed session store over an opened database.
func NewSQLite(db *gorm.DB, cfg Config) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires database handle")
	}
	return &sqliteStore{db: db, ttl: cfg.TTL}, nil
}

func (s *sqliteStore) Save(ctx context.Context, session model.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session id required")
	}
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.ExpiresAt == nil && s.ttl > 0 {
		exp := session.CreatedAt.Add(s.ttl)
		session.ExpiresAt = &exp
	}

	record, err := toRecord(session)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", session.ID).Delete(&storage.ScanSession{}).Error; err != nil {
			return err
		}
		return tx.Create(record).Error
	})
}

func (s *sqliteStore) Get(ctx context.Context, id string) (model.Session, error) {
	var record storage.ScanSession
	err := s.db.WithContext(ctx).Where("session_id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Session{}, fmt.Errorf("session not found: %s", id)
		}
		return model.Session{}, err
	}

	session, err := fromRecord(record)
	if err != nil {
		return model.Session{}, err
	}
	if session.Expired(time.Now()) {
		return model.Session{}, fmt.Errorf("session expired: %s", id)
	}
	return session, nil
}

func (s *sqliteStore) Remove(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("session_id = ?", id).Delete(&storage.ScanSession{}).Error
}

func (s *sqliteStore) List(ctx context.Context) ([]string, error) {
	var records []storage.ScanSession
	if err := s.db.WithContext(ctx).Select("session_id", "expires_at").Find(&records).Error; err != nil {
		return nil, err
	}
	now := time.Now()
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if r.ExpiresAt == nil || now.Before(*r.ExpiresAt) {
			ids = append(ids, r.SessionID)
		}
	}
	return ids, nil
}

func (s *sqliteStore) CleanupExpired(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).
		Delete(&storage.ScanSession{}).
		Error
}

func (s *sqliteStore) Stats(ctx context.Context) (map[string]any, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&storage.ScanSession{}).Count(&total).Error; err != nil {
		return nil, err
	}
	return map[string]any{
		"type":  "sqlite",
		"total": total,
		"ttl":   int(s.ttl.Seconds()),
	}, nil
}

func (s *sqliteStore) Close(context.Context) error {
	return nil
}

func toRecord(session model.Session) (*storage.ScanSession, error) {
	record := &storage.ScanSession{
		SessionID:      session.ID,
		DeviceID:       session.DeviceID,
		UploadID:       session.UploadID,
		Format:         session.Format,
		Width:          session.Width,
		Height:         session.Height,
		Brand:          session.Brand,
		Confidence:     session.Confidence,
		Source:         session.Source,
		RegionSource:   session.RegionSource,
		Shape:          session.Shape,
		ShapeCorrected: session.ShapeCorrected,
		Status:         session.Status,
		CreatedAt:      session.CreatedAt,
		ExpiresAt:      session.ExpiresAt,
	}
	if session.Region != nil {
		data, err := sonic.Marshal(session.Region)
		if err != nil {
			return nil, err
		}
		record.Region = datatypes.JSON(data)
	}
	if session.Provenance != nil {
		data, err := sonic.Marshal(session.Provenance)
		if err != nil {
			return nil, err
		}
		record.Provenance = datatypes.JSON(data)
	}
	return record, nil
}

func fromRecord(record storage.ScanSession) (model.Session, error) {
	session := model.Session{
		ID:             record.SessionID,
		DeviceID:       record.DeviceID,
		UploadID:       record.UploadID,
		Format:         record.Format,
		Width:          record.Width,
		Height:         record.Height,
		Brand:          record.Brand,
		Confidence:     record.Confidence,
		Source:         record.Source,
		RegionSource:   record.RegionSource,
		Shape:          record.Shape,
		ShapeCorrected: record.ShapeCorrected,
		Status:         record.Status,
		CreatedAt:      record.CreatedAt,
		ExpiresAt:      record.ExpiresAt,
	}
	if len(record.Region) > 0 {
		var region geometry.NormalizedRegion
		if err := sonic.Unmarshal(record.Region, &region); err != nil {
			return model.Session{}, err
		}
		session.Region = &region
	}
	if len(record.Provenance) > 0 {
		if err := sonic.Unmarshal(record.Provenance, &session.Provenance); err != nil {
			return model.Session{}, err
		}
	}
	return session, nil
}
