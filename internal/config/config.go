// Package config loads fhirguard's service configuration: how the HTTP
// surface and batch tooling run, as distinct from the rule configuration
// document (internal/ruleconfig) that describes what an anonymization run
// does to a resource.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all service-level configuration for fhirguard.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Audit      AuditConfig      `yaml:"audit"`
	EquivClass EquivClassConfig `yaml:"equivalence_classes"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int    `yaml:"port"`
	Environment string `yaml:"environment"`
}

// AuditConfig configures the anonymization-run audit log (internal/audit).
type AuditConfig struct {
	Enabled       bool   `yaml:"enabled"`
	RetentionDays int    `yaml:"retention_days"`
	DetailLevel   string `yaml:"detail_level"`
}

// EquivClassConfig holds default batch settings (k and quasi-identifier
// paths) for the Equivalence-Class Builder. The HTTP handlers do not read
// them: each request supplies its own k and paths.
type EquivClassConfig struct {
	DefaultK                int      `yaml:"default_k"`
	DefaultQuasiIdentifiers []string `yaml:"default_quasi_identifiers"`
}

// Load reads a YAML configuration file, expanding ${VAR} environment
// references before unmarshaling.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromEnv builds a Config entirely from environment variables, falling
// back to production-sane defaults, for environments that run without a
// mounted YAML file.
func LoadFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnvInt("PORT", 8085),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Audit: AuditConfig{
			Enabled:       getEnvBool("AUDIT_ENABLED", true),
			RetentionDays: getEnvInt("AUDIT_RETENTION_DAYS", 2190),
			DetailLevel:   getEnv("AUDIT_DETAIL_LEVEL", "full"),
		},
		EquivClass: EquivClassConfig{
			DefaultK: getEnvInt("EQUIV_CLASS_DEFAULT_K", 5),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
