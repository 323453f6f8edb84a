package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:8080")
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.Server.LogLevel, "info")
	}
	if cfg.Audit.ChannelSize != 1000 {
		t.Errorf("Audit.ChannelSize = %d, want 1000", cfg.Audit.ChannelSize)
	}
	if cfg.Audit.BatchSize != 100 {
		t.Errorf("Audit.BatchSize = %d, want 100", cfg.Audit.BatchSize)
	}
	if cfg.Audit.WarningThreshold != 80 {
		t.Errorf("Audit.WarningThreshold = %d, want 80", cfg.Audit.WarningThreshold)
	}
	if cfg.Audit.Dir != "./audit-logs" {
		t.Errorf("Audit.Dir = %q, want %q", cfg.Audit.Dir, "./audit-logs")
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should default to true")
	}
}

func TestConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Server: ServerConfig{HTTPAddr: ":9090"},
		Audit:  AuditConfig{BatchSize: 50},
	}
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr was overwritten: got %q, want %q", cfg.Server.HTTPAddr, ":9090")
	}
	if cfg.Audit.BatchSize != 50 {
		t.Errorf("Audit.BatchSize was overwritten: got %d, want 50", cfg.Audit.BatchSize)
	}
}

func TestConfig_SetDevDefaults_NoopWithoutDevMode(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDevDefaults()

	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty without dev_mode", cfg.DatabaseURL)
	}
}

func TestConfig_SetDevDefaults_FillsRequiredFields(t *testing.T) {
	t.Parallel()

	cfg := Config{DevMode: true}
	cfg.SetDevDefaults()

	if cfg.DatabaseURL == "" {
		t.Error("expected a default DatabaseURL in dev mode")
	}
	if len(cfg.AuthSecret) < 32 {
		t.Errorf("expected a dev AuthSecret of at least 32 chars, got %d", len(cfg.AuthSecret))
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "development")
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q in dev mode", cfg.Server.LogLevel, "debug")
	}
}

func TestConfig_SetDevDefaults_PreservesExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := Config{DevMode: true, DatabaseURL: "postgres://explicit"}
	cfg.SetDevDefaults()

	if cfg.DatabaseURL != "postgres://explicit" {
		t.Errorf("DatabaseURL was overwritten: got %q", cfg.DatabaseURL)
	}
}

func TestFindConfigFileInPaths_EmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths(empty dir) = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_MatchesYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "mandate-authority.yaml")
	_ = os.WriteFile(cfgPath, []byte("server:\n  http_addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_MatchesYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "mandate-authority.yml")
	_ = os.WriteFile(cfgPath, []byte("server:\n  http_addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_IgnoresNoExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "mandate-authority"), []byte("\x7fELF binary"), 0755)

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths matched binary = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_PrefersYAMLOverYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "mandate-authority.yaml")
	ymlPath := filepath.Join(dir, "mandate-authority.yml")
	_ = os.WriteFile(yamlPath, []byte("server:\n  http_addr: :8080\n"), 0644)
	_ = os.WriteFile(ymlPath, []byte("server:\n  http_addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != yamlPath {
		t.Errorf("findConfigFileInPaths = %q, want %q (.yaml preferred)", got, yamlPath)
	}
}
