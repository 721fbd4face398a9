package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WHEELCITY"

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envFile    string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return NewLoaderWithViper(viper.New())
}

// NewLoaderWithViper creates a loader using an existing viper instance, so
// CLI flags bound to it take precedence.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envFile:   ".env",
		envPrefix: EnvPrefix,
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvFile sets the dotenv file read before the environment. An empty
// path skips it.
func (l *Loader) WithEnvFile(path string) *Loader {
	l.envFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (WHEELCITY_*), including those from .env
// 3. Project config (.wheelcity.yaml in current directory)
// 4. User config (~/.config/wheelcity/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	// godotenv never overrides variables already set in the process.
	if l.envFile != "" {
		if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", l.envFile, err)
		}
	}

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".wheelcity")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "wheelcity"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults configures default values. Every key is registered so that
// AutomaticEnv can override it.
func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("server.host", "localhost")
	l.v.SetDefault("server.port", 8080)
	l.v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	l.v.SetDefault("server.request_timeout", "2m")

	l.v.SetDefault("store.path", ".wheelcity/wheelcity.db")

	l.v.SetDefault("internal.api_key", "")

	l.v.SetDefault("evidence.timeout", "15s")
	l.v.SetDefault("evidence.max_bytes", 10<<20)
	l.v.SetDefault("evidence.user_agent", "wheelcity-evidence/1.0")

	l.v.SetDefault("inference.provider", "disabled")
	l.v.SetDefault("inference.api_key", "")
	l.v.SetDefault("inference.model", "gemini-2.5-flash")
	l.v.SetDefault("inference.timeout", "30s")
	l.v.SetDefault("inference.temperature", 0.0)
	l.v.SetDefault("inference.requests_per_second", 2.0)
	l.v.SetDefault("inference.burst", 4)
	l.v.SetDefault("inference.max_concurrent", 4)
	l.v.SetDefault("inference.allowed_mime_types", []string{"image/jpeg", "image/png", "image/webp"})

	l.v.SetDefault("reconcile.call_timeout", "45s")
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}
