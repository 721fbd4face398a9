package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate points the loader at an empty working directory and home so no
// stray config file leaks into the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	return dir
}

func TestLoader_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 2*time.Minute {
		t.Errorf("Server.RequestTimeout = %v, want 2m", cfg.Server.RequestTimeout)
	}
	if cfg.Evidence.MaxBytes != 10<<20 {
		t.Errorf("Evidence.MaxBytes = %d, want %d", cfg.Evidence.MaxBytes, 10<<20)
	}
	if cfg.Inference.Provider != "disabled" {
		t.Errorf("Inference.Provider = %q, want disabled", cfg.Inference.Provider)
	}
	if len(cfg.Inference.AllowedMIMETypes) != 3 {
		t.Errorf("Inference.AllowedMIMETypes = %v, want 3 entries", cfg.Inference.AllowedMIMETypes)
	}
	if cfg.Reconcile.CallTimeout != 45*time.Second {
		t.Errorf("Reconcile.CallTimeout = %v, want 45s", cfg.Reconcile.CallTimeout)
	}
	if cfg.Internal.APIKey != "" {
		t.Errorf("Internal.APIKey = %q, want empty", cfg.Internal.APIKey)
	}

	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoader_EnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("WHEELCITY_LOG_LEVEL", "debug")
	t.Setenv("WHEELCITY_SERVER_PORT", "9090")
	t.Setenv("WHEELCITY_INFERENCE_API_KEY", "env-key")
	t.Setenv("WHEELCITY_RECONCILE_CALL_TIMEOUT", "5s")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Inference.APIKey != "env-key" {
		t.Errorf("Inference.APIKey = %q, want env-key", cfg.Inference.APIKey)
	}
	if cfg.Reconcile.CallTimeout != 5*time.Second {
		t.Errorf("Reconcile.CallTimeout = %v, want 5s", cfg.Reconcile.CallTimeout)
	}
}

func TestLoader_ConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	content := `
server:
  port: 7000
store:
  path: /tmp/wc.db
inference:
  provider: gemini
  model: gemini-2.0-flash
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader().WithConfigFile(path)
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Store.Path != "/tmp/wc.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Inference.Model != "gemini-2.0-flash" {
		t.Errorf("Inference.Model = %q", cfg.Inference.Model)
	}
	// Unset keys keep their defaults.
	if cfg.Evidence.UserAgent != "wheelcity-evidence/1.0" {
		t.Errorf("Evidence.UserAgent = %q", cfg.Evidence.UserAgent)
	}
	if loader.ConfigFile() != path {
		t.Errorf("ConfigFile() = %q, want %q", loader.ConfigFile(), path)
	}
}

func TestLoader_ProjectConfigDiscovered(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, ".wheelcity.yaml"), []byte("log:\n  format: json\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
}

func TestLoader_EnvFile(t *testing.T) {
	dir := isolate(t)
	envPath := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envPath, []byte("WHEELCITY_INTERNAL_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// Registered with t.Setenv so the variable godotenv sets is restored.
	t.Setenv("WHEELCITY_INTERNAL_API_KEY", "")
	os.Unsetenv("WHEELCITY_INTERNAL_API_KEY")

	cfg, err := NewLoader().WithEnvFile(envPath).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Internal.APIKey != "from-dotenv" {
		t.Errorf("Internal.APIKey = %q, want from-dotenv", cfg.Internal.APIKey)
	}
}

func TestLoader_EnvBeatsDotenv(t *testing.T) {
	dir := isolate(t)
	envPath := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envPath, []byte("WHEELCITY_LOG_LEVEL=error\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WHEELCITY_LOG_LEVEL", "warn")

	cfg, err := NewLoader().WithEnvFile(envPath).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
}

func TestLoader_InvalidConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewLoader().WithConfigFile(path).Load(); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestConfig_Secrets(t *testing.T) {
	cfg := &Config{}
	if got := cfg.Secrets(); len(got) != 0 {
		t.Errorf("Secrets() = %v, want none", got)
	}
	cfg.Internal.APIKey = "internal"
	cfg.Inference.APIKey = "gemini"
	if got := cfg.Secrets(); len(got) != 2 {
		t.Errorf("Secrets() = %v, want 2", got)
	}
}
