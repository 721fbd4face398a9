// Package inference derives ramp/curb labels from evidence photographs.
package inference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
	"github.com/kang022878/WheelCity-back-2025/internal/logging"
)

// Provider names accepted in configuration.
const (
	ProviderGemini   = "gemini"
	ProviderDisabled = "disabled"
)

// DefaultAllowedMIMETypes lists the image types sent to the model.
var DefaultAllowedMIMETypes = []string{"image/jpeg", "image/png", "image/webp"}

// Config configures an inference gateway.
type Config struct {
	Provider          string
	APIKey            string
	Model             string
	Timeout           time.Duration
	Temperature       float64
	RequestsPerSecond float64
	Burst             int
	MaxConcurrent     int
	AllowedMIMETypes  []string
}

// New builds the gateway selected by cfg.Provider.
func New(ctx context.Context, cfg Config, logger *logging.Logger) (core.InferenceGateway, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderGemini:
		return NewGeminiGateway(ctx, cfg, logger)
	case ProviderDisabled, "":
		return NewDisabledGateway(), nil
	default:
		return nil, fmt.Errorf("unknown inference provider: %s", cfg.Provider)
	}
}

// DisabledGateway fails every inference. Venues keep whatever label they
// have and disagreement windows end in needs-evidence.
type DisabledGateway struct{}

var _ core.InferenceGateway = DisabledGateway{}

// NewDisabledGateway returns a gateway that never produces a label.
func NewDisabledGateway() DisabledGateway {
	return DisabledGateway{}
}

// Name implements core.InferenceGateway.
func (DisabledGateway) Name() string { return ProviderDisabled }

// Infer implements core.InferenceGateway.
func (DisabledGateway) Infer(_ context.Context, _ core.EvidenceRef, _ []byte) (core.Label, error) {
	return core.Label{}, core.ErrInference(core.CodeGatewayDisabled, "inference is disabled")
}
