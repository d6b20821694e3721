package provider_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mzaleski/ai-rag-service/internal/provider"
)

func claudeReply(text string) string {
	return `{"id":"msg_01","type":"message","role":"assistant",` +
		`"model":"claude-3-5-sonnet-20241022",` +
		`"content":[{"type":"text","text":` + jsonString(text) + `}],` +
		`"stop_reason":"end_turn","stop_sequence":null,` +
		`"usage":{"input_tokens":10,"output_tokens":5}}`
}

func TestAnthropic_Generate(t *testing.T) {
	var gotKey string
	var gotBody struct {
		Model     string  `json:"model"`
		MaxTokens int     `json:"max_tokens"`
		Temp      float64 `json:"temperature"`
		System    []struct {
			Text string `json:"text"`
		} `json:"system"`
		Messages []struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("Failed to decode upstream body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(claudeReply("Hi from Claude")))
	}))
	defer srv.Close()

	a := provider.NewAnthropic(5*time.Second, provider.WithAnthropicBaseURL(srv.URL))
	text, err := a.Generate(context.Background(), provider.Request{
		SystemPrompt: "You are terse.",
		History: []provider.Message{
			{Role: "user", Content: "Hello"},
			{Role: "model", Content: "Hi"},
		},
		UserMessage: "Bye",
		APIKey:      "sk-ant-test",
		ModelID:     "claude-sonnet-4-20250514",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "Hi from Claude" {
		t.Errorf("Expected reply text, got %q", text)
	}

	if gotKey != "sk-ant-test" {
		t.Errorf("Expected request-scoped key, got %q", gotKey)
	}
	if gotBody.Model != "claude-3-5-sonnet-20241022" {
		t.Errorf("Model mapping wrong, got %q", gotBody.Model)
	}
	if gotBody.MaxTokens != 2000 || gotBody.Temp != 0.7 {
		t.Errorf("Unexpected generation parameters: max=%d temp=%v", gotBody.MaxTokens, gotBody.Temp)
	}
	if len(gotBody.System) != 1 || gotBody.System[0].Text != "You are terse." {
		t.Errorf("System block wrong: %+v", gotBody.System)
	}

	wantRoles := []string{"user", "assistant", "user"}
	if len(gotBody.Messages) != len(wantRoles) {
		t.Fatalf("Expected %d messages, got %d", len(wantRoles), len(gotBody.Messages))
	}
	for i, role := range wantRoles {
		if gotBody.Messages[i].Role != role {
			t.Errorf("Message %d: expected role %q, got %q", i, role, gotBody.Messages[i].Role)
		}
	}
}

func TestAnthropic_MissingKey(t *testing.T) {
	a := provider.NewAnthropic(5 * time.Second)
	_, err := a.Generate(context.Background(), provider.Request{UserMessage: "hi"})
	if !errors.Is(err, provider.ErrMissingAPIKey) {
		t.Fatalf("Expected ErrMissingAPIKey, got %v", err)
	}
}

func TestAnthropic_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 400 is not retried by the SDK.
		http.Error(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	a := provider.NewAnthropic(5*time.Second, provider.WithAnthropicBaseURL(srv.URL))
	_, err := a.Generate(context.Background(), provider.Request{UserMessage: "hi", APIKey: "sk"})
	if err == nil {
		t.Fatal("Expected error on upstream failure")
	}
}
