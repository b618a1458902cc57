package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Port != 5000 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Hiro.BaseURL != DefaultHiroBaseURL {
		t.Errorf("base url = %q", cfg.Hiro.BaseURL)
	}
	if cfg.Hiro.MaxRetries != 3 {
		t.Errorf("max retries = %d", cfg.Hiro.MaxRetries)
	}
	if cfg.Display.SlideshowInterval.Duration != 30*time.Second {
		t.Errorf("slideshow interval = %v", cfg.Display.SlideshowInterval)
	}
	if cfg.Display.TouchHold.Duration != 500*time.Millisecond {
		t.Errorf("touch hold = %v", cfg.Display.TouchHold)
	}
	if cfg.Display.MetadataTimeout.Duration != 5*time.Second {
		t.Errorf("metadata timeout = %v", cfg.Display.MetadataTimeout)
	}
	if cfg.Content.MaxContentBytes() != 50*1024*1024 {
		t.Errorf("max content bytes = %d", cfg.Content.MaxContentBytes())
	}
	if !cfg.MDNS.Enabled {
		t.Error("mdns should default to enabled")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
storage_dir = "` + filepath.ToSlash(dir) + `"
address = "bc1pexample"
refresh_interval = "10m"

[server]
port = 8080

[hiro]
base_url = "http://localhost:9999/ordinals/v1/"
max_retries = 5

[display]
slideshow_interval = "12s"

[mdns]
enabled = false
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Address != "bc1pexample" {
		t.Errorf("address = %q", cfg.Address)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("addr = %q", cfg.Server.Addr())
	}
	if cfg.Hiro.BaseURL != "http://localhost:9999/ordinals/v1" {
		t.Errorf("trailing slash not trimmed: %q", cfg.Hiro.BaseURL)
	}
	if cfg.Hiro.MaxRetries != 5 {
		t.Errorf("max retries = %d", cfg.Hiro.MaxRetries)
	}
	if cfg.RefreshInterval.Duration != 10*time.Minute {
		t.Errorf("refresh interval = %v", cfg.RefreshInterval)
	}
	if cfg.Display.SlideshowInterval.Duration != 12*time.Second {
		t.Errorf("slideshow interval = %v", cfg.Display.SlideshowInterval)
	}
	if cfg.MDNS.Enabled {
		t.Error("mdns should be disabled")
	}
	if cfg.DBPath() != filepath.Join(dir, "ordframe.db") {
		t.Errorf("db path = %q", cfg.DBPath())
	}
}

func TestLoadConfigInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`refresh_interval = "soon"`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestSaveTemplateConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.toml")
	cfg := &Config{StorageDir: dir}

	if err := cfg.SaveTemplateConfig(path); err != nil {
		t.Fatalf("SaveTemplateConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.StorageDir != dir {
		t.Errorf("storage dir = %q, want %q", loaded.StorageDir, dir)
	}
	if loaded.Hiro.CacheTTL.Duration != time.Hour {
		t.Errorf("cache ttl = %v", loaded.Hiro.CacheTTL)
	}
}
