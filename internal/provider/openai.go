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

const openaiDefaultModel = "gpt-4"

var openaiModels = map[string]string{
	"gpt-4.1":       "gpt-4",
	"gpt-4":         "gpt-4",
	"gpt-3.5-turbo": "gpt-3.5-turbo",
}

// OpenAI generates replies through the Chat Completions API.
type OpenAI struct {
	baseURL    string
	httpClient *http.Client
}

// OpenAIOption configures the OpenAI generator.
type OpenAIOption func(*OpenAI)

// WithOpenAIBaseURL overrides the upstream endpoint (tests).
func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(o *OpenAI) {
		o.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// NewOpenAI creates the OpenAI generator with an explicit call timeout.
func NewOpenAI(timeout time.Duration, opts ...OpenAIOption) *OpenAI {
	o := &OpenAI{
		baseURL:    "https://api.openai.com/v1",
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *OpenAI) Name() string        { return "openai" }
func (o *OpenAI) DisplayName() string { return "OpenAI" }

type openaiChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type openaiChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Generate builds the message list and calls chat/completions.
func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	if req.APIKey == "" {
		return "", fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}

	messages := []Message{{Role: "system", Content: req.SystemPrompt}}
	for _, msg := range req.History {
		role := msg.Role
		if role == "model" {
			role = "assistant"
		}
		messages = append(messages, Message{Role: role, Content: msg.Content})
	}
	messages = append(messages, Message{Role: "user", Content: req.UserMessage})

	body, err := json.Marshal(openaiChatRequest{
		Model:       resolveModel(openaiModels, req.ModelID, openaiDefaultModel),
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	url := o.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	res, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", fmt.Errorf("openai: unexpected status %d: %s", res.StatusCode, buf)
	}

	var payload openaiChatResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&payload); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if len(payload.Choices) == 0 || payload.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai: %w", errEmptyCompletion)
	}
	return payload.Choices[0].Message.Content, nil
}
