package tutor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// Sentinel errors distinguishing the two generation failure classes. The
// orchestrator maps them to ModeConfigError and ModeCallFailed.
var (
	// ErrNoAPIKey means no model client exists because GEMINI_API_KEY was
	// never configured. Deterministic: every turn fails the same way until
	// the key is provided.
	ErrNoAPIKey = errors.New("GEMINI_API_KEY not configured")

	// ErrGenerateFailed wraps transient model call failures.
	ErrGenerateFailed = errors.New("model call failed")
)

// generateTimeout bounds a single model call.
const generateTimeout = 60 * time.Second

// Generator produces a model completion for an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiGenerator calls the Gemini API with deterministic sampling.
// A nil client is valid and makes every call fail with ErrNoAPIKey; this
// keeps a misconfigured server bootable, reporting the problem per turn.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a generator for the given model. client may be
// nil when no API key is configured.
func NewGeminiGenerator(client *genai.Client, model string) *GeminiGenerator {
	return &GeminiGenerator{client: client, model: model}
}

// Generate runs a single completion at temperature 0.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.client == nil {
		return "", ErrNoAPIKey
	}

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature: genai.Ptr[float32](0),
		})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerateFailed, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", ErrGenerateFailed)
	}
	return text, nil
}
