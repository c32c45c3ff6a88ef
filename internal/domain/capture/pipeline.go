package capture

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"bottleswap-server/internal/platform/config"
	"bottleswap-server/internal/platform/errors"
	"bottleswap-server/internal/platform/logging"
)

// Pipeline ingests one uploaded capture photo: stream with a size cap,
// validate, optionally persist a copy for later morph re-entry.
type Pipeline struct {
	cfg       config.UploadConfig
	validator *Validator
	logger    *logging.Logger
}

// Output is the sanitized artifact handed to detection.
type Output struct {
	ID     string
	Bytes  []byte
	Format string
	Width  int
	Height int
	// Path is where the upload was persisted, empty when persistence is
	// disabled.
	Path string
}

func NewPipeline(cfg config.UploadConfig, logger *logging.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		validator: NewValidator(cfg, logger),
		logger:    logger,
	}
}

// Ingest reads the upload to completion under the size cap and validates it.
// Each accepted upload gets a fresh id, which also names the persisted file.
func (p *Pipeline) Ingest(reader io.Reader, declaredFormat string) (*Output, error) {
	if reader == nil {
		return nil, errors.New(errors.KindDomain, "capture.ingest", "image reader is required")
	}

	maxSize := p.cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = 5 * 1024 * 1024
	}
	limited := &io.LimitedReader{R: reader, N: maxSize + 1}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, limited); err != nil {
		return nil, errors.Wrap(errors.KindDomain, "capture.ingest", "read upload", err)
	}
	if limited.N <= 0 {
		return nil, errors.New(errors.KindDomain, "capture.ingest",
			fmt.Sprintf("image exceeds maximum size of %d bytes", maxSize))
	}

	data := buf.Bytes()
	validation, err := p.validator.Validate(data, declaredFormat)
	if err != nil {
		return nil, errors.Wrap(errors.KindDomain, "capture.ingest", "validation failed", err)
	}

	out := &Output{
		ID:     uuid.NewString(),
		Bytes:  data,
		Format: validation.Format,
		Width:  validation.Width,
		Height: validation.Height,
	}

	if p.cfg.Dir != "" {
		path, err := p.persist(out)
		if err != nil {
			// Persistence feeds later morph re-entry; the current request
			// can proceed without it.
			if p.logger != nil {
				p.logger.WarnTag("Capture", "persist upload %s: %v", out.ID, err)
			}
		} else {
			out.Path = path
		}
	}

	if p.logger != nil {
		p.logger.DebugTag("Capture", "accepted upload %s: %s %dx%d %d bytes",
			out.ID, out.Format, out.Width, out.Height, len(data))
	}
	return out, nil
}

func (p *Pipeline) persist(out *Output) (string, error) {
	if err := os.MkdirAll(p.cfg.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(p.cfg.Dir, out.ID+"."+out.Format)
	if err := os.WriteFile(path, out.Bytes, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Load reads a previously persisted upload back by id and format.
func (p *Pipeline) Load(id, format string) ([]byte, error) {
	if p.cfg.Dir == "" {
		return nil, errors.New(errors.KindDomain, "capture.load", "upload persistence is disabled")
	}
	data, err := os.ReadFile(filepath.Join(p.cfg.Dir, id+"."+format))
	if err != nil {
		return nil, errors.Wrap(errors.KindDomain, "capture.load", "read persisted upload", err)
	}
	return data, nil
}
