package morph

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"bottleswap-server/internal/domain/auth"
	"bottleswap-server/internal/domain/capture"
	"bottleswap-server/internal/domain/eventbus"
	"bottleswap-server/internal/domain/geometry"
	domainmorph "bottleswap-server/internal/domain/morph"
	"bottleswap-server/internal/domain/session/model"
	"bottleswap-server/internal/domain/session/store"
	"bottleswap-server/internal/platform/config"
)

type fallbackSynthesizer struct{}

func (fallbackSynthesizer) ReplaceSubject(context.Context, []byte, []byte, string) ([]byte, error) {
	return nil, context.DeadlineExceeded
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 90, G: 90, B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func newTestService(t *testing.T, authEnabled bool) (*gin.Engine, store.Store, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.Server.Token = "test-secret"
	cfg.Server.Auth.Enabled = authEnabled
	cfg.Upload.Dir = ""

	refPath := filepath.Join(t.TempDir(), "reference.png")
	if err := os.WriteFile(refPath, pngBytes(t, 40, 120), 0o644); err != nil {
		t.Fatalf("write reference: %v", err)
	}
	cfg.Pipeline.ReferenceImage = refPath

	pipeline, err := domainmorph.NewPipeline(cfg.Pipeline, fallbackSynthesizer{},
		domainmorph.NewReferenceCache(refPath), eventbus.New(), nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	sessions := store.NewMemory(store.Config{TTL: time.Minute})
	t.Cleanup(func() { _ = sessions.Close(context.Background()) })

	svc, err := NewService(cfg, nil, pipeline, sessions, capture.NewPipeline(cfg.Upload, nil))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	engine := gin.New()
	if err := svc.Register(context.Background(), engine.Group("/api")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return engine, sessions, cfg
}

func morphRequest(t *testing.T, fields map[string]string, image []byte) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	if image != nil {
		part, err := writer.CreateFormFile("file", "capture.png")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		part.Write(image)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/morph", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, httptest.NewRecorder()
}

// A synthesis timeout must still answer HTTP 200 with the original image.
func TestHandleMorph_FallbackIsStillOK(t *testing.T) {
	engine, sessions, _ := newTestService(t, false)

	original := pngBytes(t, 200, 400)
	session := model.Session{
		ID:     "morph-1",
		Region: &geometry.NormalizedRegion{X: 0.3, Y: 0.2, Width: 0.3, Height: 0.5},
		Status: model.StatusScanned,
	}
	if err := sessions.Save(context.Background(), session); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	req, rec := morphRequest(t, map[string]string{"session_id": session.ID}, original)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("fallback must be 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool      `json:"success"`
		Data    MorphData `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Data.FellBack {
		t.Error("expected fell_back")
	}
	composite, err := base64.StdEncoding.DecodeString(resp.Data.Composite)
	if err != nil {
		t.Fatalf("composite not base64: %v", err)
	}
	if !bytes.Equal(composite, original) {
		t.Error("fallback composite must be the original bytes")
	}

	updated, err := sessions.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("session lookup: %v", err)
	}
	if updated.Status != model.StatusFellBack {
		t.Errorf("session status = %s", updated.Status)
	}
}

func TestHandleMorph_AuthRequired(t *testing.T) {
	engine, sessions, cfg := newTestService(t, true)

	session := model.Session{ID: "morph-auth", Status: model.StatusScanned}
	if err := sessions.Save(context.Background(), session); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	req, rec := morphRequest(t, nil, pngBytes(t, 100, 200))
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token should be 401, got %d", rec.Code)
	}

	token, err := auth.NewAuthToken(cfg.Server.Token).GenerateToken(auth.Claims{SessionID: session.ID})
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	req, rec = morphRequest(t, nil, pngBytes(t, 100, 200))
	req.Header.Set("Authorization", "Bearer "+token)
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token should pass, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleMorph_RegionOverride(t *testing.T) {
	engine, sessions, _ := newTestService(t, false)

	session := model.Session{ID: "morph-region", Status: model.StatusScanned}
	if err := sessions.Save(context.Background(), session); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	req, rec := morphRequest(t, map[string]string{
		"session_id": session.ID,
		"region":     `{"x":0.2,"y":0.1,"width":0.4,"height":0.6}`,
	}, pngBytes(t, 100, 200))
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid override should run, got %d: %s", rec.Code, rec.Body.String())
	}

	req, rec = morphRequest(t, map[string]string{
		"session_id": session.ID,
		"region":     `{"x":0.9,"y":0.1,"width":0.5,"height":0.6}`,
	}, pngBytes(t, 100, 200))
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("out-of-bounds override should be 400, got %d", rec.Code)
	}
}

func TestHandleMorph_UnknownSessionIs404(t *testing.T) {
	engine, _, _ := newTestService(t, false)

	req, rec := morphRequest(t, map[string]string{"session_id": "ghost"}, pngBytes(t, 100, 200))
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown session should be 404, got %d", rec.Code)
	}
}
