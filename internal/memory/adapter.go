package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStoreUnavailable reports that the underlying store could not be
// initialized or reached. Callers on the chat path absorb it: a failed
// retrieval degrades to zero memories, a failed save is logged and dropped.
var ErrStoreUnavailable = errors.New("memory store unavailable")

// DefaultRetrieveLimit is the number of fragments injected into the prompt
// when the caller does not override it.
const DefaultRetrieveLimit = 5

// OpenFunc builds the Store on first use. Opening may be slow (persistent DB
// load, embedding model warm-up), which is why the Adapter defers it off the
// startup path.
type OpenFunc func(ctx context.Context) (Store, error)

// Adapter owns durable storage and similarity retrieval of Fragments, plus
// lazy one-time initialization of the store handle.
//
// Initialization uses double-checked locking: a lock-free ready check on the
// hot path, and a mutex-guarded re-check before opening, so concurrent first
// callers never open the store twice and later callers pay no locking cost.
// A failed open is retried by the next caller rather than latched.
type Adapter struct {
	open OpenFunc

	mu    sync.Mutex
	ready atomic.Bool
	store Store
}

// NewAdapter creates an Adapter that opens its store via open on first use.
func NewAdapter(open OpenFunc) *Adapter {
	return &Adapter{open: open}
}

// Ready reports whether the store finished initializing. Used by the health
// and status endpoints.
func (a *Adapter) Ready() bool {
	return a.ready.Load()
}

// WarmUp initializes the store from a background goroutine at process start,
// so that requests arriving before completion block only when they actually
// touch the store. Errors are logged; the next store access retries.
func (a *Adapter) WarmUp(ctx context.Context) {
	start := time.Now()
	if _, err := a.ensureReady(ctx); err != nil {
		log.Printf("[MEMORY] warm-up failed: %v", err)
		return
	}
	log.Printf("[MEMORY] store initialized in %s", time.Since(start).Round(time.Millisecond))
}

func (a *Adapter) ensureReady(ctx context.Context) (Store, error) {
	if a.ready.Load() {
		return a.store, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ready.Load() {
		return a.store, nil
	}

	s, err := a.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	a.store = s
	a.ready.Store(true)
	return s, nil
}

// Save writes one fragment. The storage key is derived from the fragment's
// InteractionID and MessageType, so saving twice under the same pair
// overwrites in place. The error is returned for the caller to absorb.
func (a *Adapter) Save(ctx context.Context, frag Fragment) error {
	s, err := a.ensureReady(ctx)
	if err != nil {
		return err
	}
	if frag.Timestamp.IsZero() {
		frag.Timestamp = time.Now()
	}
	if err := s.Save(ctx, frag); err != nil {
		return fmt.Errorf("save fragment %s: %w", frag.Key(), err)
	}
	log.Printf("[MEMORY] saved fragment %s", frag.Key())
	return nil
}

// Retrieve returns the limit most similar fragment texts whose metadata
// matches both userID and charID exactly. A limit <= 0 falls back to
// DefaultRetrieveLimit. An empty scope yields an empty slice and nil error.
func (a *Adapter) Retrieve(ctx context.Context, userID, charID, query string, limit int) ([]string, error) {
	s, err := a.ensureReady(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRetrieveLimit
	}
	texts, err := s.Search(ctx, userID, charID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search scope (%s,%s): %w", userID, charID, err)
	}
	return texts, nil
}

// Close releases the store if it was opened.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
