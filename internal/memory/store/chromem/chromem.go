// Package chromem backs the memory store with chromem-go, a pure Go
// embedded vector database. The collection is shared; scope isolation is
// enforced with an exact-match metadata filter on user_id and ai_char_id.
package chromem

import (
	"context"
	"fmt"
	"log"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/mzaleski/ai-rag-service/internal/memory"
)

const collectionName = "ai_chat_memories"

// Store implements memory.Store on top of a chromem-go collection.
type Store struct {
	db       *chromem.DB
	col      *chromem.Collection
	embedder memory.Embedder
}

// New creates a chromem-backed store. With a non-empty path the database is
// persisted there; otherwise everything stays in memory (tests).
func New(path string, embedder memory.Embedder) (*Store, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open persistent db: %w", err)
		}
	}

	// Embeddings are computed by our embedder, never by chromem's default
	// embedding func, so none is passed here.
	col, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get or create collection: %w", err)
	}

	return &Store{db: db, col: col, embedder: embedder}, nil
}

// Save upserts one fragment under its "{interaction_id}_{message_type}" key.
func (s *Store) Save(ctx context.Context, frag memory.Fragment) error {
	embedding, err := s.embedder.Embed(ctx, frag.Text)
	if err != nil {
		return fmt.Errorf("embed fragment: %w", err)
	}

	doc := chromem.Document{
		ID:        frag.Key(),
		Content:   frag.Text,
		Embedding: embedding,
		Metadata: map[string]string{
			"user_id":        frag.UserID,
			"ai_char_id":     frag.CharID,
			"interaction_id": frag.InteractionID,
			"message_type":   string(frag.MessageType),
			"timestamp":      frag.Timestamp.Format(time.RFC3339),
		},
	}

	if err := s.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	log.Printf("[CHROMEM] stored document %s", doc.ID)
	return nil
}

// Search returns up to limit fragment texts from the (userID, charID) scope,
// ranked by cosine similarity to the query.
func (s *Store) Search(ctx context.Context, userID, charID, query string, limit int) ([]string, error) {
	// chromem rejects nResults greater than the collection size.
	if count := s.col.Count(); count == 0 {
		return nil, nil
	} else if limit > count {
		limit = count
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	where := map[string]string{
		"user_id":    userID,
		"ai_char_id": charID,
	}
	results, err := s.col.QueryEmbedding(ctx, embedding, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	texts := make([]string, 0, len(results))
	for _, res := range results {
		texts = append(texts, res.Content)
	}
	log.Printf("[CHROMEM] query scope (%s,%s) returned %d of %d requested", userID, charID, len(texts), limit)
	return texts, nil
}

// Close releases resources. chromem keeps state in memory (and flushed to
// disk on write when persistent), so there is nothing to tear down.
func (s *Store) Close() error {
	return nil
}
