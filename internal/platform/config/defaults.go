package config

import "time"

// DefaultConfig returns the built-in configuration. A `.config.yaml` in the
// working directory overrides any of these fields.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:    "0.0.0.0",
			Port:  8080,
			Token: "change_me",
			Auth: AuthConfig{
				Enabled:  true,
				TokenTTL: time.Hour,
			},
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			Enabled:   true,
			StaticDir: "./web",
		},
		Session: SessionConfig{
			Store: StoreConfig{
				Type:   "memory",
				Expiry: 24 * time.Hour,
				Memory: MemoryStoreConfig{
					Cleanup: 5 * time.Minute,
				},
				SQLite: SQLiteStoreConfig{
					DSN: "data/sessions.db",
				},
			},
		},
		Vision: VisionConfig{
			BaseURL: "https://vision.example.com/v1",
			Timeout: "10s",
		},
		Synthesis: SynthesisConfig{
			Type:        "openai",
			BaseURL:     "https://synthesis.example.com/v1",
			ModelName:   "image-edit-1",
			Temperature: 0.1,
			MaxTokens:   1024,
			TopP:        0.9,
			Timeout:     "60s",
		},
		Pipeline: PipelineConfig{
			TargetAspect:    0.5,
			PaddingFraction: 0.3,
			MaxExpansion:    2.5,
			MaxWorkingDim:   1024,
			OverlayScaleX:   1.2,
			OverlayScaleY:   1.1,
			// Sanity-correction thresholds: a region flatter than
			// can_max_aspect cannot be a bottle, taller than
			// bottle_min_aspect cannot be a can. Tunable, not measured.
			BottleMinAspect: 1.8,
			CanMaxAspect:    1.5,
			ReferenceImage:  "assets/reference_bottle.png",
			FeatherStart:    0.7,
		},
		Upload: UploadConfig{
			MaxFileSize:    5 * 1024 * 1024,
			MaxWidth:       8192,
			MaxHeight:      8192,
			MaxPixels:      50_000_000,
			AllowedFormats: []string{"jpeg", "jpg", "png", "webp"},
			Dir:            "data/uploads",
		},
	}
}
