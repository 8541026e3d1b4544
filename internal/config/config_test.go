package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadParsesYAMLAndExpandsEnv(t *testing.T) {
	t.Setenv("TEST_FHIRGUARD_PORT", "9090")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "server:\n  port: ${TEST_FHIRGUARD_PORT}\n  environment: staging\naudit:\n  enabled: true\n  retention_days: 30\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected expanded port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.Environment != "staging" {
		t.Errorf("expected environment staging, got %q", cfg.Server.Environment)
	}
	if cfg.Audit.RetentionDays != 30 {
		t.Errorf("expected retention days 30, got %d", cfg.Audit.RetentionDays)
	}
}

func TestLoadReturnsErrorForMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadFromEnvAppliesDefaults(t *testing.T) {
	cfg := LoadFromEnv()
	if cfg.Server.Port != 8085 {
		t.Errorf("expected default port 8085, got %d", cfg.Server.Port)
	}
	if cfg.Server.Environment != "development" {
		t.Errorf("expected default environment development, got %q", cfg.Server.Environment)
	}
	if !cfg.Audit.Enabled {
		t.Error("expected audit enabled by default")
	}
}

func TestLoadFromEnvHonorsOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("AUDIT_ENABLED", "false")

	cfg := LoadFromEnv()
	if cfg.Server.Port != 9999 {
		t.Errorf("expected overridden port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Audit.Enabled {
		t.Error("expected audit disabled by override")
	}
}
