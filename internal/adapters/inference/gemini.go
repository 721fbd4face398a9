package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
	"github.com/kang022878/WheelCity-back-2025/internal/logging"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

const systemPrompt = `You assess wheelchair accessibility of building entrances from a single photograph.
Decide two facts about the entrance shown:
- ramp: true if a ramp or level step-free path leads to the door, false otherwise.
- curb: true if a curb, step or raised threshold blocks a wheelchair at the entrance, false otherwise.
Answer with one JSON object only: {"ramp": <bool>, "curb": <bool>, "reason": "<one sentence>"}.
If the photo does not show an entrance, use null for both fields.`

// contentGenerator is the slice of the genai client the gateway needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGateway classifies evidence with a Gemini vision model.
type GeminiGateway struct {
	models      contentGenerator
	model       string
	temperature float32
	timeout     time.Duration
	allowed     map[string]struct{}
	throttle    *throttle
	logger      *logging.Logger
}

var _ core.InferenceGateway = (*GeminiGateway)(nil)

// NewGeminiGateway creates a gateway backed by the Gemini API.
func NewGeminiGateway(ctx context.Context, cfg Config, logger *logging.Logger) (*GeminiGateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return newGeminiGateway(client.Models, cfg, logger), nil
}

func newGeminiGateway(models contentGenerator, cfg Config, logger *logging.Logger) *GeminiGateway {
	if logger == nil {
		logger = logging.NewNop()
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	allowedTypes := cfg.AllowedMIMETypes
	if len(allowedTypes) == 0 {
		allowedTypes = DefaultAllowedMIMETypes
	}
	allowed := make(map[string]struct{}, len(allowedTypes))
	for _, mt := range allowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(mt))] = struct{}{}
	}

	return &GeminiGateway{
		models:      models,
		model:       model,
		temperature: float32(cfg.Temperature),
		timeout:     cfg.Timeout,
		allowed:     allowed,
		throttle:    newThrottle(cfg.RequestsPerSecond, cfg.Burst, cfg.MaxConcurrent),
		logger:      logger.WithComponent("inference"),
	}
}

// Name implements core.InferenceGateway.
func (g *GeminiGateway) Name() string { return ProviderGemini + ":" + g.model }

// Infer implements core.InferenceGateway.
func (g *GeminiGateway) Infer(ctx context.Context, ref core.EvidenceRef, image []byte) (core.Label, error) {
	if len(image) == 0 {
		return core.Label{}, core.ErrInference(core.CodeUnsupportedMedia, "empty image")
	}
	mimeType := detectMIME(ref, image)
	if _, ok := g.allowed[mimeType]; !ok {
		return core.Label{}, core.ErrInference(core.CodeUnsupportedMedia,
			fmt.Sprintf("media type %s is not accepted", mimeType))
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	release, err := g.throttle.acquire(ctx)
	if err != nil {
		return core.Label{}, g.contextError(err)
	}
	defer release()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mimeType),
			genai.NewPartFromText("Classify the entrance in this photo."),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
		ResponseMIMEType:  "application/json",
	}

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		if ctx.Err() != nil {
			return core.Label{}, g.contextError(ctx.Err())
		}
		return core.Label{}, core.ErrInference(core.CodeModelFailed, "model call failed").WithCause(err)
	}
	if resp == nil {
		return core.Label{}, core.ErrInference(core.CodeModelFailed, "empty model response")
	}

	label, err := parseVerdict(resp.Text())
	if err != nil {
		g.logger.Debug("model output rejected", "evidence_ref", string(ref), "error", err)
		return core.Label{}, err
	}
	g.logger.Debug("label inferred",
		"evidence_ref", string(ref),
		"ramp", label.Ramp,
		"curb", label.Curb,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return label, nil
}

func (g *GeminiGateway) contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.ErrTimeout("inference timed out").WithCause(err)
	}
	return core.ErrInference(core.CodeModelFailed, "inference cancelled").WithCause(err)
}
