package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicDefaultModel = "claude-3-5-sonnet-20241022"

var anthropicModels = map[string]string{
	"claude-sonnet-4-20250514": "claude-3-5-sonnet-20241022",
	"claude-3-5-sonnet":        "claude-3-5-sonnet-20241022",
	"claude-3-haiku":           "claude-3-haiku-20240307",
}

// Anthropic generates replies through the Claude Messages API. The SDK
// client is built per call because the credential is request-scoped.
type Anthropic struct {
	baseURL string
	timeout time.Duration
}

// AnthropicOption configures the Anthropic generator.
type AnthropicOption func(*Anthropic)

// WithAnthropicBaseURL overrides the upstream endpoint (tests).
func WithAnthropicBaseURL(baseURL string) AnthropicOption {
	return func(a *Anthropic) {
		a.baseURL = baseURL
	}
}

// NewAnthropic creates the Claude generator with an explicit call timeout.
func NewAnthropic(timeout time.Duration, opts ...AnthropicOption) *Anthropic {
	a := &Anthropic{timeout: timeout}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Anthropic) Name() string        { return "anthropic" }
func (a *Anthropic) DisplayName() string { return "Claude" }

// Generate builds alternating message turns and calls Messages.New.
func (a *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	if req.APIKey == "" {
		return "", fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(req.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: a.timeout}),
	}
	if a.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(a.baseURL))
	}
	client := anthropic.NewClient(clientOpts...)

	var messages []anthropic.MessageParam
	for _, msg := range req.History {
		if msg.Role == "model" || msg.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		} else {
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserMessage)))

	resp, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(resolveModel(anthropicModels, req.ModelID, anthropicDefaultModel)),
		MaxTokens:   maxOutputTokens,
		Temperature: anthropic.Float(temperature),
		System: []anthropic.TextBlockParam{
			{Text: req.SystemPrompt},
		},
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: request failed: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("anthropic: %w", errEmptyCompletion)
	}
	return text, nil
}
