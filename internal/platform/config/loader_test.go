package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoader_Load(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, ".config.yaml")

	configContent := `
server:
  ip: "127.0.0.1"
  port: 9090
log:
  log_level: "DEBUG"
  log_dir: "/tmp/logs"
  log_file: "test.log"
pipeline:
  target_aspect: 0.45
  padding_fraction: 0.25
`

	err := os.WriteFile(configFile, []byte(configContent), 0o644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	loader := NewLoader().WithDotEnv(false).WithPath(configFile)
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.IP != "127.0.0.1" {
		t.Errorf("expected server IP 127.0.0.1, got %s", cfg.Server.IP)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected server port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "DEBUG" {
		t.Errorf("expected log level DEBUG, got %s", cfg.Log.Level)
	}
	if cfg.Pipeline.TargetAspect != 0.45 {
		t.Errorf("expected target aspect 0.45, got %f", cfg.Pipeline.TargetAspect)
	}
	if cfg.Pipeline.PaddingFraction != 0.25 {
		t.Errorf("expected padding fraction 0.25, got %f", cfg.Pipeline.PaddingFraction)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Pipeline.MaxExpansion != 2.5 {
		t.Errorf("expected default max expansion 2.5, got %f", cfg.Pipeline.MaxExpansion)
	}
}

func TestLoader_MissingFileFallsBackToDefaults(t *testing.T) {
	loader := NewLoader().WithDotEnv(false).WithPath(filepath.Join(t.TempDir(), "nope.yaml"))
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("missing config file should not be fatal: %v", err)
	}
	if cfg.Server.Port != DefaultConfig().Server.Port {
		t.Errorf("expected default port, got %d", cfg.Server.Port)
	}
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("VISION_API_KEY", "vk-test")
	t.Setenv("SYNTHESIS_API_KEY", "sk-test")
	t.Setenv("BOTTLESWAP_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := NewLoader().WithDotEnv(false).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Vision.APIKey != "vk-test" {
		t.Errorf("vision api key override missed, got %q", cfg.Vision.APIKey)
	}
	if cfg.Synthesis.APIKey != "sk-test" {
		t.Errorf("synthesis api key override missed, got %q", cfg.Synthesis.APIKey)
	}
}
