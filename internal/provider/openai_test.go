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

func openaiReply(text string) string {
	return `{"choices":[{"message":{"role":"assistant","content":` + jsonString(text) + `}}]}`
}

func TestOpenAI_Generate(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody struct {
		Model       string             `json:"model"`
		Messages    []provider.Message `json:"messages"`
		Temperature float64            `json:"temperature"`
		MaxTokens   int                `json:"max_tokens"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("Failed to decode upstream body: %v", err)
		}
		w.Write([]byte(openaiReply("Hi from GPT")))
	}))
	defer srv.Close()

	o := provider.NewOpenAI(5*time.Second, provider.WithOpenAIBaseURL(srv.URL))
	text, err := o.Generate(context.Background(), provider.Request{
		SystemPrompt: "You are helpful.",
		History: []provider.Message{
			{Role: "user", Content: "Hello"},
			{Role: "model", Content: "Hi there"},
		},
		UserMessage: "How are you?",
		APIKey:      "sk-test",
		ModelID:     "gpt-4.1",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "Hi from GPT" {
		t.Errorf("Expected reply text, got %q", text)
	}

	if gotPath != "/chat/completions" {
		t.Errorf("Unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Expected bearer auth, got %q", gotAuth)
	}
	if gotBody.Model != "gpt-4" {
		t.Errorf("Model mapping wrong, got %q", gotBody.Model)
	}
	if gotBody.Temperature != 0.7 || gotBody.MaxTokens != 2000 {
		t.Errorf("Unexpected generation parameters: temp=%v max=%d", gotBody.Temperature, gotBody.MaxTokens)
	}

	want := []provider.Message{
		{Role: "system", Content: "You are helpful."},
		{Role: "user", Content: "Hello"},
		{Role: "assistant", Content: "Hi there"},
		{Role: "user", Content: "How are you?"},
	}
	if len(gotBody.Messages) != len(want) {
		t.Fatalf("Expected %d messages, got %d", len(want), len(gotBody.Messages))
	}
	for i, m := range want {
		if gotBody.Messages[i] != m {
			t.Errorf("Message %d: expected %+v, got %+v", i, m, gotBody.Messages[i])
		}
	}
}

func TestOpenAI_MissingKey(t *testing.T) {
	o := provider.NewOpenAI(5 * time.Second)
	_, err := o.Generate(context.Background(), provider.Request{UserMessage: "hi"})
	if !errors.Is(err, provider.ErrMissingAPIKey) {
		t.Fatalf("Expected ErrMissingAPIKey, got %v", err)
	}
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	o := provider.NewOpenAI(5*time.Second, provider.WithOpenAIBaseURL(srv.URL))
	_, err := o.Generate(context.Background(), provider.Request{UserMessage: "hi", APIKey: "sk"})
	if err == nil {
		t.Fatal("Expected error on empty choices")
	}
}

func TestOpenAI_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	o := provider.NewOpenAI(5*time.Second, provider.WithOpenAIBaseURL(srv.URL))
	_, err := o.Generate(context.Background(), provider.Request{UserMessage: "hi", APIKey: "sk"})
	if err == nil {
		t.Fatal("Expected error on non-2xx status")
	}
}
