package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateServer(&cfg.Server)
	v.validateStore(&cfg.Store)
	v.validateEvidence(&cfg.Evidence)
	v.validateInference(&cfg.Inference)
	v.validateReconcile(&cfg.Reconcile)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}
	switch cfg.Format {
	case "auto", "text", "json":
	default:
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if cfg.Port < 1 || cfg.Port > 65535 {
		v.addError("server.port", cfg.Port, "must be between 1 and 65535")
	}
	if cfg.RequestTimeout <= 0 {
		v.addError("server.request_timeout", cfg.RequestTimeout, "must be positive")
	}
}

func (v *Validator) validateStore(cfg *StoreConfig) {
	if strings.TrimSpace(cfg.Path) == "" {
		v.addError("store.path", cfg.Path, "required")
	}
}

func (v *Validator) validateEvidence(cfg *EvidenceConfig) {
	if cfg.Timeout <= 0 {
		v.addError("evidence.timeout", cfg.Timeout, "must be positive")
	}
	if cfg.MaxBytes <= 0 {
		v.addError("evidence.max_bytes", cfg.MaxBytes, "must be positive")
	}
}

func (v *Validator) validateInference(cfg *InferenceConfig) {
	switch cfg.Provider {
	case "gemini":
		if cfg.APIKey == "" {
			v.addError("inference.api_key", "", "required when provider is gemini")
		}
		if cfg.Model == "" {
			v.addError("inference.model", cfg.Model, "required when provider is gemini")
		}
	case "disabled":
	default:
		v.addError("inference.provider", cfg.Provider, "must be one of: gemini, disabled")
	}

	if cfg.Timeout <= 0 {
		v.addError("inference.timeout", cfg.Timeout, "must be positive")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		v.addError("inference.temperature", cfg.Temperature, "must be between 0 and 2")
	}
	if cfg.RequestsPerSecond < 0 {
		v.addError("inference.requests_per_second", cfg.RequestsPerSecond, "must not be negative")
	}
	if cfg.Burst < 1 {
		v.addError("inference.burst", cfg.Burst, "must be at least 1")
	}
	if cfg.MaxConcurrent < 1 {
		v.addError("inference.max_concurrent", cfg.MaxConcurrent, "must be at least 1")
	}
	if len(cfg.AllowedMIMETypes) == 0 {
		v.addError("inference.allowed_mime_types", cfg.AllowedMIMETypes, "must list at least one type")
	}
	for _, mt := range cfg.AllowedMIMETypes {
		if !strings.HasPrefix(mt, "image/") {
			v.addError("inference.allowed_mime_types", mt, "only image types are accepted")
		}
	}
}

func (v *Validator) validateReconcile(cfg *ReconcileConfig) {
	if cfg.CallTimeout <= 0 {
		v.addError("reconcile.call_timeout", cfg.CallTimeout, "must be positive")
	}
}

// ValidateConfig is a convenience function to validate configuration.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}
