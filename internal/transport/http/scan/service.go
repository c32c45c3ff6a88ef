package scan

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	httptransport "bottleswap-server/internal/transport/http"

	"bottleswap-server/internal/domain/auth"
	"bottleswap-server/internal/domain/capture"
	"bottleswap-server/internal/domain/detect"
	"bottleswap-server/internal/domain/eventbus"
	"bottleswap-server/internal/domain/geometry"
	"bottleswap-server/internal/domain/session/model"
	"bottleswap-server/internal/domain/session/store"
	"bottleswap-server/internal/platform/config"
	"bottleswap-server/internal/platform/errors"
	"bottleswap-server/internal/platform/logging"
)

// Detector is the slice of the fusion detector this service needs.
type Detector interface {
	Detect(ctx context.Context, image []byte) (detect.DetectionResult, error)
}

// Service handles capture scanning: upload, detection, session creation.
type Service struct {
	cfg       *config.Config
	logger    *logging.Logger
	capture   *capture.Pipeline
	detector  Detector
	sessions  store.Store
	authToken *auth.AuthToken
}

// NewService wires the scan service.
func NewService(
	cfg *config.Config,
	logger *logging.Logger,
	capturePipeline *capture.Pipeline,
	detector Detector,
	sessions store.Store,
) (*Service, error) {
	if cfg == nil {
		return nil, errors.New(errors.KindConfig, "scan.new", "config is required")
	}
	if capturePipeline == nil {
		return nil, errors.New(errors.KindConfig, "scan.new", "capture pipeline is required")
	}
	if detector == nil {
		return nil, errors.New(errors.KindConfig, "scan.new", "detector is required")
	}
	if sessions == nil {
		return nil, errors.New(errors.KindConfig, "scan.new", "session store is required")
	}

	authToken := auth.NewAuthToken(cfg.Server.Token)
	if cfg.Server.Auth.TokenTTL > 0 {
		authToken = authToken.WithTTL(cfg.Server.Auth.TokenTTL)
	}

	return &Service{
		cfg:       cfg,
		logger:    logger,
		capture:   capturePipeline,
		detector:  detector,
		sessions:  sessions,
		authToken: authToken,
	}, nil
}

// Register mounts the scan routes.
func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	router.GET("/scan", s.handleStatus)
	router.POST("/scan", s.handleScan)
	router.GET("/session/:id", s.handleSession)

	if s.logger != nil {
		s.logger.InfoTag("HTTP", "scan routes registered")
	}
	return nil
}

func (s *Service) handleStatus(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{"status": "ready"}, "scan service running")
}

func (s *Service) handleScan(c *gin.Context) {
	deviceID := c.GetHeader("Device-Id")

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "file field is required", nil)
		return
	}
	defer file.Close()

	upload, err := s.capture.Ingest(file, formatFromFilename(header.Filename))
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, err.Error(), nil)
		if s.logger != nil {
			s.logger.WarnTag("Scan", "rejected upload: %v", err)
		}
		return
	}

	result, err := s.detector.Detect(c.Request.Context(), upload.Bytes)
	if err != nil {
		// No annotations means no edit target; this cannot degrade.
		httptransport.RespondError(c, http.StatusBadGateway, "detection service unavailable", nil)
		if s.logger != nil {
			s.logger.ErrorTag("Scan", "detection failed: %v", err)
		}
		return
	}

	region := result.Region
	usedDefault := false
	if region == nil {
		region = geometry.DefaultBottleRegion()
		usedDefault = true
	}
	overlay := geometry.Expand(region, s.cfg.Pipeline.OverlayScaleX, s.cfg.Pipeline.OverlayScaleY)

	session := model.Session{
		ID:             uuid.NewString(),
		DeviceID:       deviceID,
		UploadID:       upload.ID,
		Format:         upload.Format,
		Width:          upload.Width,
		Height:         upload.Height,
		Brand:          result.Brand,
		Confidence:     result.Confidence,
		Source:         string(result.Source),
		RegionSource:   string(result.RegionSource),
		Shape:          string(result.Shape),
		ShapeCorrected: result.ShapeCorrected,
		Region:         region,
		Status:         model.StatusScanned,
	}
	if err := s.sessions.Save(c.Request.Context(), session); err != nil {
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to persist session", nil)
		if s.logger != nil {
			s.logger.ErrorTag("Scan", "save session: %v", err)
		}
		return
	}

	token, err := s.authToken.GenerateToken(auth.Claims{SessionID: session.ID, DeviceID: deviceID})
	if err != nil {
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to issue session token", nil)
		return
	}

	eventbus.Publish(eventbus.EventSessionCreated, eventbus.SessionEventData{
		SessionID: session.ID,
		DeviceID:  deviceID,
	})
	if s.logger != nil {
		s.logger.InfoTag("Scan", "session %s: brand=%q source=%s region_source=%s default=%v",
			session.ID, result.Brand, result.Source, result.RegionSource, usedDefault)
	}

	httptransport.RespondSuccess(c, http.StatusOK, ScanData{
		SessionID:   session.ID,
		Token:       token,
		Detection:   result,
		UsedDefault: usedDefault,
		Overlay:     overlay,
		Width:       upload.Width,
		Height:      upload.Height,
		Format:      upload.Format,
	}, "scan complete")
}

func (s *Service) handleSession(c *gin.Context) {
	id := c.Param("id")
	session, err := s.sessions.Get(c.Request.Context(), id)
	if err != nil {
		httptransport.RespondError(c, http.StatusNotFound, "session not found", nil)
		return
	}

	httptransport.RespondSuccess(c, http.StatusOK, SessionData{
		SessionID:      session.ID,
		Status:         session.Status,
		Brand:          session.Brand,
		Confidence:     session.Confidence,
		Source:         session.Source,
		RegionSource:   session.RegionSource,
		Shape:          session.Shape,
		ShapeCorrected: session.ShapeCorrected,
		Region:         session.Region,
		Provenance:     session.Provenance,
	}, "")
}

func formatFromFilename(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".png":
		return "png"
	case ".webp":
		return "webp"
	default:
		return ""
	}
}
