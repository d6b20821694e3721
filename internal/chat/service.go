// Package chat orchestrates one memory-augmented generation request:
// validate, retrieve relevant fragments, assemble the system prompt, call
// the provider dispatcher, persist the new turn, respond.
package chat

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/mzaleski/ai-rag-service/internal/memory"
	"github.com/mzaleski/ai-rag-service/internal/observability"
	"github.com/mzaleski/ai-rag-service/internal/provider"
)

// DefaultProvider is used when a request names none.
const DefaultProvider = "google"

// Memory is the long-term store consumed by the Service.
// Implemented by *memory.Adapter.
type Memory interface {
	Retrieve(ctx context.Context, userID, charID, query string, limit int) ([]string, error)
	Save(ctx context.Context, frag memory.Fragment) error
}

// Dispatcher produces a reply for a named provider; failures come back as
// in-band reply text. Implemented by *provider.Dispatcher.
type Dispatcher interface {
	Generate(ctx context.Context, name string, req provider.Request) string
}

// Request is one inbound chat turn. History is the caller-supplied
// short-term memory; it is never persisted here.
type Request struct {
	UserID          string
	CharID          string
	UserMessage     string
	History         []provider.Message
	CharacterPrompt string
	Provider        string
	APIKey          string
}

// Response is the successful result of a chat turn.
type Response struct {
	Response     string `json:"response"`
	MemoriesUsed int    `json:"memories_used"`
	Provider     string `json:"provider"`
}

// Service runs the single linear request flow.
type Service struct {
	memory        Memory
	dispatcher    Dispatcher
	metrics       *observability.Metrics
	retrieveLimit int

	// newInteractionID is a seam for tests; defaults to uuid.NewString.
	newInteractionID func() string
}

// NewService builds the orchestrator. metrics may be nil (tests); a
// retrieveLimit <= 0 falls back to memory.DefaultRetrieveLimit.
func NewService(mem Memory, dispatcher Dispatcher, metrics *observability.Metrics, retrieveLimit int) *Service {
	if retrieveLimit <= 0 {
		retrieveLimit = memory.DefaultRetrieveLimit
	}
	return &Service{
		memory:           mem,
		dispatcher:       dispatcher,
		metrics:          metrics,
		retrieveLimit:    retrieveLimit,
		newInteractionID: uuid.NewString,
	}
}

// Chat executes one memory-augmented turn.
//
// Store failures on both the read and write side are absorbed here by
// policy: a failed retrieval degrades to zero memories and a failed save is
// logged and dropped, so the user still receives a reply. Only input
// validation produces an error.
func (s *Service) Chat(ctx context.Context, req Request) (Response, error) {
	if req.Provider == "" {
		req.Provider = DefaultProvider
	}
	if req.UserID == "" || req.CharID == "" || req.UserMessage == "" {
		return Response{}, newError(ErrorInvalidInput, "Missing required fields", nil)
	}
	if req.APIKey == "" {
		return Response{}, newError(ErrorInvalidInput, "Missing API key for provider "+req.Provider, nil)
	}

	memories, err := s.memory.Retrieve(ctx, req.UserID, req.CharID, req.UserMessage, s.retrieveLimit)
	if err != nil {
		log.Printf("[CHAT] retrieval failed, continuing without memories: %v", err)
		s.countStoreError("retrieve")
		memories = nil
	}

	reply := s.dispatcher.Generate(ctx, req.Provider, provider.Request{
		SystemPrompt: buildSystemPrompt(req.CharacterPrompt, memories),
		History:      req.History,
		UserMessage:  req.UserMessage,
		APIKey:       req.APIKey,
		// The character identifier doubles as the model selector.
		ModelID: req.CharID,
	})

	interactionID := s.newInteractionID()
	s.persist(ctx, req, interactionID, memory.MessageUser, req.UserMessage)
	s.persist(ctx, req, interactionID, memory.MessageAI, reply)

	if s.metrics != nil {
		s.metrics.ChatRequests.WithLabelValues(req.Provider, "ok").Inc()
		s.metrics.MemoriesUsed.Observe(float64(len(memories)))
	}

	return Response{
		Response:     reply,
		MemoriesUsed: len(memories),
		Provider:     req.Provider,
	}, nil
}

func (s *Service) persist(ctx context.Context, req Request, interactionID string, msgType memory.MessageType, text string) {
	err := s.memory.Save(ctx, memory.Fragment{
		UserID:        req.UserID,
		CharID:        req.CharID,
		InteractionID: interactionID,
		MessageType:   msgType,
		Text:          text,
	})
	if err != nil {
		log.Printf("[CHAT] dropped %s fragment for interaction %s: %v", msgType, interactionID, err)
		s.countStoreError("save")
	}
}

func (s *Service) countStoreError(operation string) {
	if s.metrics != nil {
		s.metrics.StoreErrors.WithLabelValues(operation).Inc()
	}
}
