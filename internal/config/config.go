// Package config loads wheelcity configuration from defaults, a YAML file,
// .env and WHEELCITY_* environment variables.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Internal  InternalConfig  `mapstructure:"internal"`
	Evidence  EvidenceConfig  `mapstructure:"evidence"`
	Inference InferenceConfig `mapstructure:"inference"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// StoreConfig configures persistence.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// InternalConfig configures access to internal-only routes.
type InternalConfig struct {
	// APIKey guards internal routes. Empty disables them.
	APIKey string `mapstructure:"api_key"`
}

// EvidenceConfig configures evidence downloads.
type EvidenceConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxBytes  int64         `mapstructure:"max_bytes"`
	UserAgent string        `mapstructure:"user_agent"`
}

// InferenceConfig configures the label inference gateway.
type InferenceConfig struct {
	Provider          string        `mapstructure:"provider"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Temperature       float64       `mapstructure:"temperature"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxConcurrent     int           `mapstructure:"max_concurrent"`
	AllowedMIMETypes  []string      `mapstructure:"allowed_mime_types"`
}

// ReconcileConfig configures the reconciliation engine.
type ReconcileConfig struct {
	// CallTimeout bounds each evidence fetch and each inference call made
	// during one orchestration run.
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

// Secrets returns the configured secret values so the logger can redact
// them wherever they appear.
func (c *Config) Secrets() []string {
	var out []string
	for _, s := range []string{c.Internal.APIKey, c.Inference.APIKey} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
