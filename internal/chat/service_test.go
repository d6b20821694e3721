package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mzaleski/ai-rag-service/internal/memory"
	"github.com/mzaleski/ai-rag-service/internal/provider"
)

// mockMemory counts calls and records saved fragments.
type mockMemory struct {
	retrieveCalls int
	saveCalls     int
	memories      []string
	retrieveErr   error
	saveErr       error
	saved         []memory.Fragment
	lastLimit     int
}

func (m *mockMemory) Retrieve(ctx context.Context, userID, charID, query string, limit int) ([]string, error) {
	m.retrieveCalls++
	m.lastLimit = limit
	if m.retrieveErr != nil {
		return nil, m.retrieveErr
	}
	return m.memories, nil
}

func (m *mockMemory) Save(ctx context.Context, frag memory.Fragment) error {
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, frag)
	return nil
}

// mockDispatcher records the request it was handed.
type mockDispatcher struct {
	calls    int
	reply    string
	lastName string
	lastReq  provider.Request
}

func (m *mockDispatcher) Generate(ctx context.Context, name string, req provider.Request) string {
	m.calls++
	m.lastName = name
	m.lastReq = req
	return m.reply
}

func validRequest() Request {
	return Request{
		UserID:          "user1",
		CharID:          "char1",
		UserMessage:     "Hello there",
		CharacterPrompt: "You are a friendly wizard.",
		Provider:        "google",
		APIKey:          "key-123",
	}
}

func newTestService(mem *mockMemory, disp *mockDispatcher) *Service {
	svc := NewService(mem, disp, nil, 5)
	svc.newInteractionID = func() string { return "fixed-interaction-id" }
	return svc
}

func TestChat_HappyPath(t *testing.T) {
	mem := &mockMemory{memories: []string{"likes tea", "lives in Oslo"}}
	disp := &mockDispatcher{reply: "Greetings, traveler!"}
	svc := newTestService(mem, disp)

	resp, err := svc.Chat(context.Background(), validRequest())
	require.NoError(t, err)
	require.Equal(t, "Greetings, traveler!", resp.Response)
	require.Equal(t, 2, resp.MemoriesUsed)
	require.Equal(t, "google", resp.Provider)

	require.Equal(t, 1, mem.retrieveCalls)
	require.Equal(t, 5, mem.lastLimit)
	require.Equal(t, 1, disp.calls)
	require.Equal(t, "google", disp.lastName)
	require.Equal(t, "key-123", disp.lastReq.APIKey)
	require.Equal(t, "char1", disp.lastReq.ModelID)
	require.Contains(t, disp.lastReq.SystemPrompt, "You are a friendly wizard.")
	require.Contains(t, disp.lastReq.SystemPrompt, "- likes tea")
	require.Contains(t, disp.lastReq.SystemPrompt, "- lives in Oslo")
}

func TestChat_PersistsBothTurnHalves(t *testing.T) {
	mem := &mockMemory{}
	disp := &mockDispatcher{reply: "the reply"}
	svc := newTestService(mem, disp)

	_, err := svc.Chat(context.Background(), validRequest())
	require.NoError(t, err)

	require.Len(t, mem.saved, 2)
	userFrag, aiFrag := mem.saved[0], mem.saved[1]

	require.Equal(t, memory.MessageUser, userFrag.MessageType)
	require.Equal(t, "Hello there", userFrag.Text)
	require.Equal(t, memory.MessageAI, aiFrag.MessageType)
	require.Equal(t, "the reply", aiFrag.Text)

	// Both halves share one interaction ID and scope.
	require.Equal(t, "fixed-interaction-id", userFrag.InteractionID)
	require.Equal(t, userFrag.InteractionID, aiFrag.InteractionID)
	require.Equal(t, "user1", userFrag.UserID)
	require.Equal(t, "char1", userFrag.CharID)
}

func TestChat_MissingFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Request)
	}{
		{"no user id", func(r *Request) { r.UserID = "" }},
		{"no char id", func(r *Request) { r.CharID = "" }},
		{"no message", func(r *Request) { r.UserMessage = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mem := &mockMemory{}
			disp := &mockDispatcher{}
			svc := newTestService(mem, disp)

			req := validRequest()
			tc.mutate(&req)

			_, err := svc.Chat(context.Background(), req)
			var chatErr *Error
			require.ErrorAs(t, err, &chatErr)
			require.Equal(t, ErrorInvalidInput, chatErr.Code)
			require.Equal(t, "Missing required fields", chatErr.Message)

			// Validation rejects before any store or provider work.
			require.Zero(t, mem.retrieveCalls)
			require.Zero(t, mem.saveCalls)
			require.Zero(t, disp.calls)
		})
	}
}

func TestChat_MissingAPIKey(t *testing.T) {
	mem := &mockMemory{}
	disp := &mockDispatcher{}
	svc := newTestService(mem, disp)

	req := validRequest()
	req.APIKey = ""
	req.Provider = "anthropic"

	_, err := svc.Chat(context.Background(), req)
	var chatErr *Error
	require.ErrorAs(t, err, &chatErr)
	require.Equal(t, ErrorInvalidInput, chatErr.Code)
	require.Equal(t, "Missing API key for provider anthropic", chatErr.Message)
	require.Zero(t, disp.calls)
}

func TestChat_DefaultsProviderToGoogle(t *testing.T) {
	mem := &mockMemory{}
	disp := &mockDispatcher{reply: "ok"}
	svc := newTestService(mem, disp)

	req := validRequest()
	req.Provider = ""

	resp, err := svc.Chat(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "google", disp.lastName)
	require.Equal(t, "google", resp.Provider)
}

func TestChat_RetrievalFailureDegrades(t *testing.T) {
	mem := &mockMemory{retrieveErr: errors.New("store offline")}
	disp := &mockDispatcher{reply: "still answered"}
	svc := newTestService(mem, disp)

	resp, err := svc.Chat(context.Background(), validRequest())
	require.NoError(t, err)
	require.Equal(t, "still answered", resp.Response)
	require.Zero(t, resp.MemoriesUsed)

	// The turn is still persisted even though retrieval failed.
	require.Equal(t, 2, mem.saveCalls)
	require.Equal(t, "You are a friendly wizard.", disp.lastReq.SystemPrompt)
}

func TestChat_SaveFailureIsAbsorbed(t *testing.T) {
	mem := &mockMemory{saveErr: errors.New("disk full")}
	disp := &mockDispatcher{reply: "reply"}
	svc := newTestService(mem, disp)

	resp, err := svc.Chat(context.Background(), validRequest())
	require.NoError(t, err)
	require.Equal(t, "reply", resp.Response)
	require.Equal(t, 2, mem.saveCalls)
}

func TestChat_ProviderFallbackTextPassesThrough(t *testing.T) {
	// The dispatcher turns failures into in-band replies; the service treats
	// them like any other reply, including persisting them.
	mem := &mockMemory{}
	disp := &mockDispatcher{reply: "Unsupported AI provider: cohere"}
	svc := newTestService(mem, disp)

	req := validRequest()
	req.Provider = "cohere"

	resp, err := svc.Chat(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "Unsupported AI provider: cohere", resp.Response)
	require.Equal(t, "cohere", resp.Provider)
	require.Len(t, mem.saved, 2)
}

func TestChat_HistoryForwardedNotPersisted(t *testing.T) {
	mem := &mockMemory{}
	disp := &mockDispatcher{reply: "ok"}
	svc := newTestService(mem, disp)

	req := validRequest()
	req.History = []provider.Message{
		{Role: "user", Content: "earlier question"},
		{Role: "model", Content: "earlier answer"},
	}

	_, err := svc.Chat(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, req.History, disp.lastReq.History)

	// Only the current turn is written to long-term memory.
	require.Len(t, mem.saved, 2)
	for _, frag := range mem.saved {
		require.NotEqual(t, "earlier question", frag.Text)
		require.NotEqual(t, "earlier answer", frag.Text)
	}
}
