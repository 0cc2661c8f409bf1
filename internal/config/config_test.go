package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  name: photoid
  user: photoid
  password: secret
nats:
  url: nats://localhost:4222
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadBytes != 5*1024*1024 {
		t.Errorf("Server.MaxUploadBytes = %d, want 5MiB", cfg.Server.MaxUploadBytes)
	}
	if cfg.Vision.DetectionConfidence != 0.5 {
		t.Errorf("Vision.DetectionConfidence = %v, want 0.5", cfg.Vision.DetectionConfidence)
	}
	if cfg.Vision.EmbeddingDim != 512 {
		t.Errorf("Vision.EmbeddingDim = %d, want 512", cfg.Vision.EmbeddingDim)
	}
	if cfg.Resolve.MatchThreshold != 0.6 {
		t.Errorf("Resolve.MatchThreshold = %v, want 0.6", cfg.Resolve.MatchThreshold)
	}
	if cfg.Cache.ListingTTL != 5*time.Second {
		t.Errorf("Cache.ListingTTL = %v, want 5s", cfg.Cache.ListingTTL)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging defaults = %q/%q, want info/json", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoadDSN(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.internal
  port: 5433
  name: photos
  user: app
  password: pw
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := "postgres://app:pw@db.internal:5433/photos?sslmode=disable"
	if got := cfg.Database.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  name: photoid
`)

	t.Setenv("PHOTOID_DB_HOST", "override.internal")
	t.Setenv("PHOTOID_SERVER_PORT", "9000")
	t.Setenv("PHOTOID_API_KEY", "sekrit")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Host != "override.internal" {
		t.Errorf("Database.Host = %q, want override.internal", cfg.Database.Host)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.APIKey != "sekrit" {
		t.Errorf("Server.APIKey = %q, want sekrit", cfg.Server.APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load of missing file should fail")
	}
}
