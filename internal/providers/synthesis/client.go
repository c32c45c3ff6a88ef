package synthesis

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"bottleswap-server/internal/platform/config"
	"bottleswap-server/internal/platform/errors"
	"bottleswap-server/internal/platform/logging"
	"bottleswap-server/internal/platform/observability"
)

const defaultTimeout = 60 * time.Second

// Client calls the external image-synthesis service over its
// OpenAI-compatible chat API.
type Client struct {
	client  *openai.Client
	model   string
	temp    float32
	topP    float32
	maxTok  int
	timeout time.Duration
	logger  *logging.Logger
}

// NewClient builds a synthesis client from configuration. The timeout is the
// hard deadline for one generation; callers treat expiry as a synthesis
// failure, never as a request error.
func NewClient(cfg config.SynthesisConfig, logger *logging.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.KindConfig, "synthesis.new", "synthesis service url is required")
	}
	if cfg.ModelName == "" {
		return nil, errors.New(errors.KindConfig, "synthesis.new", "synthesis model name is required")
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL

	timeout := defaultTimeout
	if cfg.Timeout != "" {
		if parsed, err := time.ParseDuration(cfg.Timeout); err == nil && parsed > 0 {
			timeout = parsed
		} else if logger != nil {
			logger.WarnTag("Synthesis", "invalid timeout %q, using %s", cfg.Timeout, defaultTimeout)
		}
	}

	return &Client{
		client:  openai.NewClientWithConfig(apiCfg),
		model:   cfg.ModelName,
		temp:    float32(cfg.Temperature),
		topP:    float32(cfg.TopP),
		maxTok:  cfg.MaxTokens,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// ReplaceSubject asks the service to redraw the crop with the reference
// bottle in place of the detected subject. Both images travel as data URIs in
// one multimodal message; generation parameters are pinned low-temperature so
// the service changes as little of the scene as possible.
//
// Returns the replacement image bytes, or an error when the service fails,
// exceeds the deadline, or answers with text only.
func (c *Client) ReplaceSubject(ctx context.Context, crop, reference []byte, instruction string) ([]byte, error) {
	_, spanEnd := observability.StartSpan(ctx, "synthesis.client", "replace_subject")

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temp,
		TopP:        c.topP,
		MaxTokens:   c.maxTok,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: instruction},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL: dataURI(crop),
				}},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL: dataURI(reference),
				}},
			},
		}},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		spanEnd(err)
		return nil, errors.Wrap(errors.KindSynthesis, "synthesis.replace", "generation call failed", err)
	}
	if len(resp.Choices) == 0 {
		err := errors.New(errors.KindSynthesis, "synthesis.replace", "no response choices")
		spanEnd(err)
		return nil, err
	}

	image, ok := extractImage(resp.Choices[0].Message.Content)
	if !ok {
		err := errors.New(errors.KindSynthesis, "synthesis.replace", "response carried no image data")
		spanEnd(err)
		return nil, err
	}

	if c.logger != nil {
		c.logger.DebugTag("Synthesis", "generation returned %d bytes", len(image))
	}
	spanEnd(nil)
	return image, nil
}

func dataURI(image []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)
}

// extractImage pulls inline image bytes out of a chat response. Services on
// this API return either a data URI, a bare base64 payload, or plain prose; a
// text-only answer is a failed generation.
func extractImage(content string) ([]byte, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, false
	}

	if idx := strings.Index(content, "base64,"); idx >= 0 {
		payload := content[idx+len("base64,"):]
		if end := strings.IndexAny(payload, "\"') \n"); end >= 0 {
			payload = payload[:end]
		}
		if decoded, err := base64.StdEncoding.DecodeString(payload); err == nil && len(decoded) > 0 {
			return decoded, true
		}
		return nil, false
	}

	if decoded, err := base64.StdEncoding.DecodeString(content); err == nil && len(decoded) > 0 {
		return decoded, true
	}
	return nil, false
}
