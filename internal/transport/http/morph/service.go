package morph

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	httptransport "bottleswap-server/internal/transport/http"

	"bottleswap-server/internal/domain/auth"
	"bottleswap-server/internal/domain/capture"
	"bottleswap-server/internal/domain/detect"
	"bottleswap-server/internal/domain/geometry"
	domainmorph "bottleswap-server/internal/domain/morph"
	"bottleswap-server/internal/domain/session/model"
	"bottleswap-server/internal/domain/session/store"
	"bottleswap-server/internal/platform/config"
	"bottleswap-server/internal/platform/errors"
	"bottleswap-server/internal/platform/logging"
)

// MorphData is the payload of a completed morph.
type MorphData struct {
	SessionID string `json:"session_id"`
	// Composite is the base64-encoded result image. On the fallback path it
	// is the unmodified original.
	Composite  string                 `json:"composite"`
	Format     string                 `json:"format"`
	FellBack   bool                   `json:"fell_back"`
	Provenance domainmorph.Provenance `json:"provenance"`
}

// Service handles morph requests over previously scanned sessions.
type Service struct {
	cfg       *config.Config
	logger    *logging.Logger
	pipeline  *domainmorph.Pipeline
	sessions  store.Store
	capture   *capture.Pipeline
	authToken *auth.AuthToken
}

// NewService wires the morph service.
func NewService(
	cfg *config.Config,
	logger *logging.Logger,
	pipeline *domainmorph.Pipeline,
	sessions store.Store,
	capturePipeline *capture.Pipeline,
) (*Service, error) {
	if cfg == nil {
		return nil, errors.New(errors.KindConfig, "morph.new", "config is required")
	}
	if pipeline == nil {
		return nil, errors.New(errors.KindConfig, "morph.new", "morph pipeline is required")
	}
	if sessions == nil {
		return nil, errors.New(errors.KindConfig, "morph.new", "session store is required")
	}
	if capturePipeline == nil {
		return nil, errors.New(errors.KindConfig, "morph.new", "capture pipeline is required")
	}

	authToken := auth.NewAuthToken(cfg.Server.Token)
	if cfg.Server.Auth.TokenTTL > 0 {
		authToken = authToken.WithTTL(cfg.Server.Auth.TokenTTL)
	}

	return &Service{
		cfg:       cfg,
		logger:    logger,
		pipeline:  pipeline,
		sessions:  sessions,
		capture:   capturePipeline,
		authToken: authToken,
	}, nil
}

// Register mounts the morph routes.
func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	router.POST("/morph", s.handleMorph)
	if s.logger != nil {
		s.logger.InfoTag("HTTP", "morph routes registered")
	}
	return nil
}

func (s *Service) handleMorph(c *gin.Context) {
	claims, ok := s.verifyAuth(c)
	if !ok {
		return
	}

	session, err := s.sessions.Get(c.Request.Context(), claims.SessionID)
	if err != nil {
		httptransport.RespondError(c, http.StatusNotFound, "session not found or expired", nil)
		return
	}

	image, err := s.originalImage(c, session)
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	region, err := s.regionOverride(c, session)
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	result, err := s.pipeline.Run(c.Request.Context(), domainmorph.Request{
		SessionID:       session.ID,
		Image:           image,
		Region:          region,
		Brand:           session.Brand,
		Shape:           detect.ContainerShape(session.Shape),
		DetectionSource: detect.Source(session.RegionSource),
	})
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, err.Error(), nil)
		if s.logger != nil {
			s.logger.WarnTag("Morph", "session %s: %v", session.ID, err)
		}
		return
	}

	s.recordOutcome(c.Request.Context(), session, result)

	// The fallback path is still HTTP 200: the client shows the original
	// photo, never an error screen.
	httptransport.RespondSuccess(c, http.StatusOK, MorphData{
		SessionID:  session.ID,
		Composite:  base64.StdEncoding.EncodeToString(result.Output),
		Format:     result.Format,
		FellBack:   result.FellBack,
		Provenance: result.Provenance,
	}, "morph complete")
}

// originalImage prefers a freshly uploaded file, falling back to the capture
// persisted at scan time.
func (s *Service) originalImage(c *gin.Context, session model.Session) ([]byte, error) {
	if file, _, err := c.Request.FormFile("file"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, s.cfg.Upload.MaxFileSize+1))
		if err != nil {
			return nil, errors.Wrap(errors.KindTransport, "morph.image", "read upload", err)
		}
		if int64(len(data)) > s.cfg.Upload.MaxFileSize {
			return nil, errors.New(errors.KindTransport, "morph.image", "upload exceeds size limit")
		}
		return data, nil
	}

	data, err := s.capture.Load(session.UploadID, session.Format)
	if err != nil {
		return nil, errors.Wrap(errors.KindTransport, "morph.image",
			"no image supplied and scan upload unavailable", err)
	}
	return data, nil
}

// regionOverride lets the client re-enter compositing with an adjusted region
// (for example after the user nudged the overlay) without re-running
// detection. Absent, the region captured at scan time applies.
func (s *Service) regionOverride(c *gin.Context, session model.Session) (*geometry.NormalizedRegion, error) {
	raw := c.Request.FormValue("region")
	if raw == "" {
		return session.Region, nil
	}

	var region geometry.NormalizedRegion
	if err := sonic.UnmarshalString(raw, &region); err != nil {
		return nil, errors.Wrap(errors.KindTransport, "morph.region", "parse region override", err)
	}
	if region.X < 0 || region.Y < 0 || region.Width <= 0 || region.Height <= 0 ||
		region.X+region.Width > 1 || region.Y+region.Height > 1 {
		return nil, errors.New(errors.KindTransport, "morph.region", "region override out of bounds")
	}
	return &region, nil
}

func (s *Service) recordOutcome(ctx context.Context, session model.Session, result domainmorph.Result) {
	session.Status = model.StatusMorphed
	if result.FellBack {
		session.Status = model.StatusFellBack
	}
	session.Provenance = map[string]any{
		"detection_source":           result.Provenance.DetectionSource,
		"aspect_adjusted":            result.Provenance.AspectAdjusted,
		"scale_factor":               result.Provenance.ScaleFactor,
		"color_correction_magnitude": result.Provenance.ColorCorrectionMagnitude,
	}
	if result.FallbackReason != "" {
		session.Provenance["fallback_reason"] = result.FallbackReason
	}
	if err := s.sessions.Save(ctx, session); err != nil && s.logger != nil {
		s.logger.WarnTag("Morph", "record outcome for %s: %v", session.ID, err)
	}
}

func (s *Service) verifyAuth(c *gin.Context) (auth.Claims, bool) {
	if !s.cfg.Server.Auth.Enabled {
		// Auth off: the session id arrives as a plain form value.
		id := c.Request.FormValue("session_id")
		if id == "" {
			httptransport.RespondError(c, http.StatusBadRequest, "session_id is required", nil)
			return auth.Claims{}, false
		}
		return auth.Claims{SessionID: id}, true
	}

	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		httptransport.RespondError(c, http.StatusUnauthorized, "missing bearer token", nil)
		return auth.Claims{}, false
	}
	claims, err := s.authToken.VerifyToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		httptransport.RespondError(c, http.StatusUnauthorized, "invalid session token", nil)
		if s.logger != nil {
			s.logger.WarnTag("Morph", "auth failed: %v", err)
		}
		return auth.Claims{}, false
	}
	if deviceID := c.GetHeader("Device-Id"); deviceID != "" && claims.DeviceID != "" && deviceID != claims.DeviceID {
		httptransport.RespondError(c, http.StatusUnauthorized, "device mismatch", nil)
		return auth.Claims{}, false
	}
	return claims, true
}
