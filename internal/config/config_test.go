package config

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Store.URI == "" {
		t.Error("DefaultConfig should set a non-empty store URI")
	}
	if cfg.Profile.CacheRatio <= 0 || cfg.Profile.CacheRatio > 1 {
		t.Errorf("DefaultConfig cache_ratio out of range: %v", cfg.Profile.CacheRatio)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %q", cfg.Logging.Level)
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplyOverrides("postgresql://localhost/menger", "debug", true, 0.25)

	if cfg.Store.URI != "postgresql://localhost/menger" {
		t.Errorf("expected overridden URI, got %q", cfg.Store.URI)
	}
	if !cfg.Store.ReadOnly {
		t.Error("expected readonly override to stick")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected overridden log level, got %q", cfg.Logging.Level)
	}
	if cfg.Profile.CacheRatio != 0.25 {
		t.Errorf("expected overridden cache ratio, got %v", cfg.Profile.CacheRatio)
	}
}

func TestApplyOverrides_EmptyValuesIgnored(t *testing.T) {
	cfg := DefaultConfig()
	original := *cfg
	cfg.ApplyOverrides("", "", false, 0)

	if cfg.Store.URI != original.Store.URI {
		t.Error("empty URI override should not change the config")
	}
	if cfg.Logging.Level != original.Logging.Level {
		t.Error("empty log level override should not change the config")
	}
}
