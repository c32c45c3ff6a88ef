package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"bottleswap-server/internal/platform/config"
	"bottleswap-server/internal/platform/errors"
	"bottleswap-server/internal/platform/logging"
	"bottleswap-server/internal/platform/observability"
)

const defaultTimeout = 10 * time.Second

// Client calls the external vision-detection service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient builds a vision client from configuration. The timeout here is
// the detection deadline: the whole downstream crop plan depends on the
// result, so it stays short.
func NewClient(cfg config.VisionConfig, logger *logging.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.KindConfig, "vision.new", "vision service url is required")
	}

	timeout := defaultTimeout
	if cfg.Timeout != "" {
		if parsed, err := time.ParseDuration(cfg.Timeout); err == nil && parsed > 0 {
			timeout = parsed
		} else if logger != nil {
			logger.WarnTag("Vision", "invalid timeout %q, using %s", cfg.Timeout, defaultTimeout)
		}
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

type annotateRequest struct {
	Image    string    `json:"image"`
	Features []Feature `json:"features"`
}

// Annotate submits the image once with the requested feature set. Any
// transport or service failure is a hard KindVision error: with no
// annotations there is no edit target, so the caller cannot degrade.
func (c *Client) Annotate(ctx context.Context, image []byte, features ...Feature) (*Annotations, error) {
	_, spanEnd := observability.StartSpan(ctx, "vision.client", "annotate")

	payload := annotateRequest{
		Image:    base64.StdEncoding.EncodeToString(image),
		Features: features,
	}
	body, err := sonic.Marshal(payload)
	if err != nil {
		spanEnd(err)
		return nil, errors.Wrap(errors.KindVision, "vision.annotate", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/annotate", bytes.NewReader(body))
	if err != nil {
		spanEnd(err)
		return nil, errors.Wrap(errors.KindVision, "vision.annotate", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		spanEnd(err)
		return nil, errors.Wrap(errors.KindVision, "vision.annotate", "vision service call failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16*1024*1024))
	if err != nil {
		spanEnd(err)
		return nil, errors.Wrap(errors.KindVision, "vision.annotate", "read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := errors.New(errors.KindVision, "vision.annotate",
			fmt.Sprintf("vision service returned %d", resp.StatusCode))
		spanEnd(err)
		return nil, err
	}

	var annotations Annotations
	if err := sonic.Unmarshal(raw, &annotations); err != nil {
		spanEnd(err)
		return nil, errors.Wrap(errors.KindVision, "vision.annotate", "decode response", err)
	}

	if c.logger != nil {
		c.logger.DebugTag("Vision", "annotate: logos=%d texts=%d labels=%d objects=%d hints=%d",
			len(annotations.Logos), len(annotations.Texts), len(annotations.Labels),
			len(annotations.Objects), len(annotations.CropHints))
	}

	spanEnd(nil)
	return &annotations, nil
}
