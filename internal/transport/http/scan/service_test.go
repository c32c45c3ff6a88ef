package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"bottleswap-server/internal/domain/capture"
	"bottleswap-server/internal/domain/detect"
	"bottleswap-server/internal/domain/geometry"
	"bottleswap-server/internal/domain/session/store"
	"bottleswap-server/internal/platform/config"
)

type stubDetector struct {
	result detect.DetectionResult
	err    error
}

func (d *stubDetector) Detect(context.Context, []byte) (detect.DetectionResult, error) {
	return d.result, d.err
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.Token = "test-secret"
	cfg.Upload.Dir = ""
	return cfg
}

func newTestRouter(t *testing.T, detector Detector) (*gin.Engine, store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	sessions := store.NewMemory(store.Config{TTL: time.Minute})
	t.Cleanup(func() { _ = sessions.Close(context.Background()) })

	svc, err := NewService(cfg, nil, capture.NewPipeline(cfg.Upload, nil), detector, sessions)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	engine := gin.New()
	if err := svc.Register(context.Background(), engine.Group("/api")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return engine, sessions
}

func multipartUpload(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 80, 160))
	for y := 0; y < 160; y++ {
		for x := 0; x < 80; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 120, G: 60, B: 30, A: 255})
		}
	}
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "capture.png")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write(pngBuf.Bytes()); err != nil {
		t.Fatalf("write part: %v", err)
	}
	writer.Close()
	return &body, writer.FormDataContentType()
}

func TestHandleScan_CreatesSession(t *testing.T) {
	detector := &stubDetector{result: detect.DetectionResult{
		Brand:        "Pepsi",
		Confidence:   0.9,
		Source:       detect.SourceLogo,
		Region:       &geometry.NormalizedRegion{X: 0.3, Y: 0.2, Width: 0.3, Height: 0.5},
		RegionSource: detect.SourceObject,
		Shape:        detect.ShapeBottle,
	}}
	engine, sessions := newTestRouter(t, detector)

	body, contentType := multipartUpload(t)
	req := httptest.NewRequest(http.MethodPost, "/api/scan", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Device-Id", "device-1")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool     `json:"success"`
		Data    ScanData `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Data.SessionID == "" || resp.Data.Token == "" {
		t.Fatalf("unexpected response: %+v", resp.Data)
	}
	if resp.Data.Detection.Brand != "Pepsi" || resp.Data.UsedDefault {
		t.Errorf("detection payload wrong: %+v", resp.Data)
	}
	if resp.Data.Overlay == nil || resp.Data.Overlay.Width <= 0.3 {
		t.Errorf("overlay should inflate the region: %+v", resp.Data.Overlay)
	}

	stored, err := sessions.Get(context.Background(), resp.Data.SessionID)
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if stored.Brand != "Pepsi" || stored.Status != "scanned" {
		t.Errorf("stored session wrong: %+v", stored)
	}
}

func TestHandleScan_NoRegionUsesDefault(t *testing.T) {
	detector := &stubDetector{result: detect.DetectionResult{
		Source:       detect.SourceNone,
		RegionSource: detect.SourceNone,
	}}
	engine, _ := newTestRouter(t, detector)

	body, contentType := multipartUpload(t)
	req := httptest.NewRequest(http.MethodPost, "/api/scan", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("no-signal scan must still succeed, got %d", rec.Code)
	}
	var resp struct {
		Data ScanData `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Data.UsedDefault {
		t.Error("expected default region substitution")
	}
}

func TestHandleScan_DetectorFailureIs502(t *testing.T) {
	engine, _ := newTestRouter(t, &stubDetector{err: errors.New("connection refused")})

	body, contentType := multipartUpload(t)
	req := httptest.NewRequest(http.MethodPost, "/api/scan", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("detector failure should be 502, got %d", rec.Code)
	}
}

func TestHandleScan_BadUploadIs400(t *testing.T) {
	engine, _ := newTestRouter(t, &stubDetector{})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, _ := writer.CreateFormFile("file", "notes.txt")
	part.Write([]byte("plain text"))
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/scan", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid upload should be 400, got %d", rec.Code)
	}
}
