package config

import (
	"time"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Web       WebConfig       `yaml:"web"`
	Session   SessionConfig   `yaml:"session"`
	Vision    VisionConfig    `yaml:"vision"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Upload    UploadConfig    `yaml:"upload"`
}

type ServerConfig struct {
	IP    string     `yaml:"ip"`
	Port  int        `yaml:"port"`
	Token string     `yaml:"token"`
	Auth  AuthConfig `yaml:"auth"`
}

type AuthConfig struct {
	Enabled  bool          `yaml:"enabled"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type WebConfig struct {
	Enabled   bool   `yaml:"enabled"`
	StaticDir string `yaml:"static_dir"`
}

// SessionConfig selects and tunes the session store backend.
type SessionConfig struct {
	Store StoreConfig `yaml:"store"`
}

type StoreConfig struct {
	Type   string             `yaml:"type"`
	Expiry time.Duration      `yaml:"expiry"`
	Redis  RedisStoreConfig   `yaml:"redis,omitempty"`
	SQLite SQLiteStoreConfig  `yaml:"sqlite,omitempty"`
	Memory MemoryStoreConfig  `yaml:"memory,omitempty"`
}

type RedisStoreConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

type SQLiteStoreConfig struct {
	DSN string `yaml:"dsn,omitempty"`
}

type MemoryStoreConfig struct {
	Cleanup time.Duration `yaml:"cleanup"`
}

// VisionConfig points at the external vision-detection service.
type VisionConfig struct {
	BaseURL string `yaml:"url"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
}

// SynthesisConfig points at the external image-synthesis service. The service
// speaks an OpenAI-compatible API.
type SynthesisConfig struct {
	Type        string  `yaml:"type"`
	ModelName   string  `yaml:"model_name"`
	BaseURL     string  `yaml:"url"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TopP        float64 `yaml:"top_p"`
	Timeout     string  `yaml:"timeout"`
}

// PipelineConfig carries the geometry and compositing tunables. The aspect
// sanity thresholds are deliberately plain knobs, not measured constants.
type PipelineConfig struct {
	TargetAspect     float64 `yaml:"target_aspect"`
	PaddingFraction  float64 `yaml:"padding_fraction"`
	MaxExpansion     float64 `yaml:"max_expansion"`
	MaxWorkingDim    int     `yaml:"max_working_dim"`
	OverlayScaleX    float64 `yaml:"overlay_scale_x"`
	OverlayScaleY    float64 `yaml:"overlay_scale_y"`
	BottleMinAspect  float64 `yaml:"bottle_min_aspect"`
	CanMaxAspect     float64 `yaml:"can_max_aspect"`
	ReferenceImage   string  `yaml:"reference_image"`
	FeatherStart     float64 `yaml:"feather_start"`
}

// UploadConfig bounds accepted capture images.
type UploadConfig struct {
	MaxFileSize    int64    `yaml:"max_file_size"`
	MaxWidth       int      `yaml:"max_width"`
	MaxHeight      int      `yaml:"max_height"`
	MaxPixels      int64    `yaml:"max_pixels"`
	AllowedFormats []string `yaml:"allowed_formats"`
	Dir            string   `yaml:"dir"`
}
