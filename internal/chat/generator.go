package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
)

// ErrGenerationUnavailable indicates the model could not produce a reply.
var ErrGenerationUnavailable = errors.New("generation unavailable")

const generateTimeout = 60 * time.Second

// Generator produces an assistant reply for an assembled prompt. Defined
// here so the Assistant can be tested without a model behind it.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// GenkitGenerator calls the configured model through Genkit, with an
// optional client-side rate limit applied before each request.
type GenkitGenerator struct {
	g               *genkit.Genkit
	modelName       string
	temperature     float64
	maxOutputTokens int
	limiter         *rate.Limiter
	logger          *slog.Logger
}

// GeneratorConfig configures a GenkitGenerator.
type GeneratorConfig struct {
	Genkit          *genkit.Genkit
	ModelName       string
	Temperature     float64
	MaxOutputTokens int
	Limiter         *rate.Limiter // nil disables rate limiting
	Logger          *slog.Logger
}

// NewGenkitGenerator creates a Generator backed by Genkit.
func NewGenkitGenerator(cfg GeneratorConfig) (*GenkitGenerator, error) {
	if cfg.Genkit == nil {
		return nil, errors.New("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return nil, errors.New("model name is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &GenkitGenerator{
		g:               cfg.Genkit,
		modelName:       cfg.ModelName,
		temperature:     cfg.Temperature,
		maxOutputTokens: cfg.MaxOutputTokens,
		limiter:         cfg.Limiter,
		logger:          cfg.Logger,
	}, nil
}

// Generate runs one model call and returns the reply text. Model failures
// and empty responses map to ErrGenerationUnavailable so callers have a
// single signal for "no reply available".
func (g *GenkitGenerator) Generate(ctx context.Context, prompt Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: rate limit wait: %w", ErrGenerationUnavailable, err)
		}
	}

	start := time.Now()
	response, err := genkit.Generate(ctx, g.g,
		ai.WithModelName(g.modelName),
		ai.WithSystem(prompt.System),
		ai.WithPrompt("%s", prompt.Text),
		ai.WithConfig(map[string]any{
			"temperature":     g.temperature,
			"maxOutputTokens": g.maxOutputTokens,
		}),
	)
	if err != nil {
		g.logger.Error("generation failed",
			"model", g.modelName,
			"duration", time.Since(start),
			"error", err)
		return "", fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
	}

	text := strings.TrimSpace(response.Text())
	if text == "" {
		return "", fmt.Errorf("%w: model returned empty response", ErrGenerationUnavailable)
	}

	g.logger.Debug("generation complete",
		"model", g.modelName,
		"duration", time.Since(start),
		"response_length", len(text))
	return text, nil
}
