package memory

import (
	"context"
	"time"
)

// MessageType distinguishes the two fragments written per interaction.
type MessageType string

const (
	MessageUser MessageType = "user"
	MessageAI   MessageType = "ai"
)

// Fragment is one persisted unit of conversation text.
//
// Fragments are scoped by (UserID, CharID): retrieval never crosses that
// boundary. Each chat interaction produces exactly two fragments (the user's
// message and the AI's reply) sharing one InteractionID. Fragments are
// written once and never mutated; retention is the store's concern.
type Fragment struct {
	UserID        string
	CharID        string
	InteractionID string
	MessageType   MessageType
	Text          string
	Timestamp     time.Time
}

// Key returns the fragment's storage identity. Writing a fragment with an
// existing key overwrites it in place (upsert).
func (f Fragment) Key() string {
	return f.InteractionID + "_" + string(f.MessageType)
}

// Store is the vector storage backend.
// Implementations: chromem.Store (embedded, local or persistent).
type Store interface {
	// Save upserts one fragment under its Key.
	Save(ctx context.Context, frag Fragment) error

	// Search returns up to limit fragment texts from the (userID, charID)
	// scope, most similar to the query first. An empty scope yields an
	// empty slice, not an error.
	Search(ctx context.Context, userID, charID, query string, limit int) ([]string, error)

	// Close releases resources.
	Close() error
}

// Embedder converts text to vector embeddings.
// Implementations: mock.Embedder (testing, default), onnx.Embedder
// (all-MiniLM-L6-v2, build tag onnx), cache.Embedder (ristretto decorator).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
