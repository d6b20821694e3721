package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mzaleski/ai-rag-service/internal/chat"
	"github.com/mzaleski/ai-rag-service/internal/observability"
	"github.com/mzaleski/ai-rag-service/internal/provider"
)

const serviceName = "AI RAG Service"

// ChatService runs one memory-augmented chat turn.
type ChatService interface {
	Chat(ctx context.Context, req chat.Request) (chat.Response, error)
}

// Readiness reports whether the vector store finished initializing.
type Readiness interface {
	Ready() bool
}

type Server struct {
	service   ChatService
	readiness Readiness
}

func New(service ChatService, readiness Readiness) *Server {
	return &Server{
		service:   service,
		readiness: readiness,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(recoverJSON)
	r.Use(allowCORS)

	r.Post("/chat", s.handleChat)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	return r
}

type chatRequest struct {
	UserID          string             `json:"userId"`
	AICharID        string             `json:"aiCharId"`
	UserMessage     string             `json:"userMessage"`
	ChatHistory     []provider.Message `json:"chatHistory"`
	CharacterPrompt string             `json:"characterPrompt"`
	APIKey          string             `json:"apiKey"`
	Provider        string             `json:"provider"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := s.service.Chat(r.Context(), chat.Request{
		UserID:          req.UserID,
		CharID:          req.AICharID,
		UserMessage:     req.UserMessage,
		History:         req.ChatHistory,
		CharacterPrompt: req.CharacterPrompt,
		Provider:        req.Provider,
		APIKey:          req.APIKey,
	})
	if err != nil {
		var chatErr *chat.Error
		if errors.As(err, &chatErr) && chatErr.Code == chat.ErrorInvalidInput {
			respondError(w, http.StatusBadRequest, chatErr.Message)
			return
		}
		log.Printf("[HTTP] /chat failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "initializing"
	if s.readiness.Ready() {
		status = "healthy"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       status,
		"service":      serviceName,
		"chroma_ready": s.readiness.Ready(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"chroma_initialized": s.readiness.Ready(),
		"service":            serviceName,
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// recoverJSON converts panics anywhere below into the opaque 500 body.
// Internals are logged server-side only.
func recoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[HTTP] panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				respondError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// allowCORS mirrors the permissive policy of the browser client this
// service was built for.
func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
