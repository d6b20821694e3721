package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const googleDefaultModel = "gemini-1.5-flash"

// Gemini accepts a single free-form prompt, so the conversation is rendered
// as role-prefixed lines rather than structured messages.
var googleModels = map[string]string{
	"gemini-2.5-flash": "gemini-1.5-flash",
	"gemini-2.5-pro":   "gemini-1.5-pro",
	"gemini-1.5-flash": "gemini-1.5-flash",
	"gemini-1.5-pro":   "gemini-1.5-pro",
}

// Google generates replies through the Gemini generateContent REST API.
type Google struct {
	baseURL    string
	httpClient *http.Client

	// defaultKey mirrors the process-level GOOGLE_API_KEY credential; used
	// only when a request carries no key of its own.
	defaultKey string
}

// GoogleOption configures the Google generator.
type GoogleOption func(*Google)

// WithGoogleBaseURL overrides the upstream endpoint (tests).
func WithGoogleBaseURL(baseURL string) GoogleOption {
	return func(g *Google) {
		g.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithGoogleDefaultKey sets the fallback credential from configuration.
func WithGoogleDefaultKey(key string) GoogleOption {
	return func(g *Google) {
		g.defaultKey = key
	}
}

// NewGoogle creates the Gemini generator with an explicit call timeout.
func NewGoogle(timeout time.Duration, opts ...GoogleOption) *Google {
	g := &Google{
		baseURL:    "https://generativelanguage.googleapis.com/v1beta",
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Google) Name() string        { return "google" }
func (g *Google) DisplayName() string { return "Google Gemini" }

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate renders the conversation as one prompt and calls generateContent.
func (g *Google) Generate(ctx context.Context, req Request) (string, error) {
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = g.defaultKey
	}
	if apiKey == "" {
		return "", fmt.Errorf("google: %w", ErrMissingAPIKey)
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: buildGeminiPrompt(req)}}},
		},
		GenerationConfig: geminiGenConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxOutputTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("google: marshal request: %w", err)
	}

	model := resolveModel(googleModels, req.ModelID, googleDefaultModel)
	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("google: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", apiKey)

	res, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("google: request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", fmt.Errorf("google: unexpected status %d: %s", res.StatusCode, buf)
	}

	var payload geminiResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&payload); err != nil {
		return "", fmt.Errorf("google: decode response: %w", err)
	}

	var text strings.Builder
	if len(payload.Candidates) > 0 {
		for _, part := range payload.Candidates[0].Content.Parts {
			text.WriteString(part.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("google: %w", errEmptyCompletion)
	}
	return text.String(), nil
}

// buildGeminiPrompt flattens system prompt, history, and the new message
// into role-prefixed lines. Any non-user history role counts as assistant.
func buildGeminiPrompt(req Request) string {
	lines := []string{"System: " + req.SystemPrompt}
	for _, msg := range req.History {
		if msg.Role == "user" {
			lines = append(lines, "User: "+msg.Content)
		} else {
			lines = append(lines, "Assistant: "+msg.Content)
		}
	}
	lines = append(lines, "User: "+req.UserMessage)
	return strings.Join(lines, "\n")
}
