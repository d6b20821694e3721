// Package provider normalizes three chat-completion APIs (Google Gemini,
// OpenAI, Anthropic Claude) behind one Generator interface and dispatches by
// logical provider name.
//
// Generation failures never escape as errors: the Dispatcher converts every
// failure into a human-readable reply string so that an upstream outage
// degrades the chat experience instead of breaking it.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mzaleski/ai-rag-service/internal/observability"
)

// Fixed generation parameters, applied wherever the upstream API exposes them.
const (
	temperature     = 0.7
	maxOutputTokens = 2000
)

// ErrMissingAPIKey reports that a provider had no credential to call with.
var ErrMissingAPIKey = errors.New("missing api key")

// errEmptyCompletion reports that the upstream returned no usable text.
var errEmptyCompletion = errors.New("empty completion")

// Message is one prior conversation turn supplied by the caller. The generic
// role "model" means an assistant turn; each Generator translates it to the
// role token its upstream expects.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries everything a Generator needs for one completion. APIKey is
// request-scoped and never persisted or logged.
type Request struct {
	SystemPrompt string
	History      []Message
	UserMessage  string
	APIKey       string
	ModelID      string
}

// Generator produces one reply for a Request. Implemented once per provider.
type Generator interface {
	// Name returns the logical provider name used for dispatch.
	Name() string

	// DisplayName returns the human-readable name used in fallback replies.
	DisplayName() string

	// Generate issues the remote call and returns the reply text.
	Generate(ctx context.Context, req Request) (string, error)
}

// Dispatcher routes requests to Generators by provider name.
type Dispatcher struct {
	generators map[string]Generator
	metrics    *observability.Metrics
}

// NewDispatcher builds a Dispatcher over the given Generators. metrics may
// be nil (tests).
func NewDispatcher(metrics *observability.Metrics, generators ...Generator) *Dispatcher {
	byName := make(map[string]Generator, len(generators))
	for _, g := range generators {
		byName[g.Name()] = g
	}
	return &Dispatcher{generators: byName, metrics: metrics}
}

// Generate produces a reply for the named provider. It never returns an
// error: unknown providers, missing credentials, and upstream failures all
// come back as in-band reply text.
func (d *Dispatcher) Generate(ctx context.Context, name string, req Request) string {
	gen, ok := d.generators[name]
	if !ok {
		return fmt.Sprintf("Unsupported AI provider: %s", name)
	}

	text, err := gen.Generate(ctx, req)
	if err != nil {
		log.Printf("[PROVIDER] %s generation failed: %v", gen.Name(), err)
		if d.metrics != nil {
			d.metrics.ProviderErrors.WithLabelValues(gen.Name(), reasonOf(err)).Inc()
		}
		if errors.Is(err, ErrMissingAPIKey) {
			return fmt.Sprintf("%s is not available - missing API key.", gen.DisplayName())
		}
		return fmt.Sprintf("I'm sorry, an error occurred while generating a response from %s.", gen.DisplayName())
	}
	return text
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, ErrMissingAPIKey):
		return "missing_key"
	case errors.Is(err, errEmptyCompletion):
		return "empty_completion"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "upstream"
	}
}

// resolveModel maps a logical model id through a provider's lookup table,
// falling back to the provider's documented default.
func resolveModel(table map[string]string, modelID, fallback string) string {
	if m, ok := table[modelID]; ok {
		return m
	}
	return fallback
}
