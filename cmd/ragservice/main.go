// Command ragservice runs the memory-augmented character chat backend: an
// HTTP API that retrieves relevant conversation fragments from an embedded
// vector store, folds them into the system prompt and dispatches generation
// to the requested AI provider.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mzaleski/ai-rag-service/internal/chat"
	"github.com/mzaleski/ai-rag-service/internal/config"
	"github.com/mzaleski/ai-rag-service/internal/httpapi"
	"github.com/mzaleski/ai-rag-service/internal/memory"
	"github.com/mzaleski/ai-rag-service/internal/memory/embedder/cache"
	storechromem "github.com/mzaleski/ai-rag-service/internal/memory/store/chromem"
	"github.com/mzaleski/ai-rag-service/internal/observability"
	"github.com/mzaleski/ai-rag-service/internal/provider"
)

func main() {
	// Missing .env is fine; real deployments use the process environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[MAIN] config: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		log.Fatalf("[MAIN] embedder: %v", err)
	}
	cached, err := cache.New(embedder, int64(cfg.EmbedCacheEntries))
	if err != nil {
		log.Fatalf("[MAIN] embedding cache: %v", err)
	}

	adapter := memory.NewAdapter(func(ctx context.Context) (memory.Store, error) {
		return storechromem.New(cfg.ChromaDBPath, cached)
	})
	defer func() {
		if err := adapter.Close(); err != nil {
			log.Printf("[MAIN] closing store: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The store may take a while to load from disk, so it warms up in the
	// background while the server already accepts traffic. /health reports
	// "initializing" until it finishes.
	go func() {
		adapter.WarmUp(ctx)
		if adapter.Ready() {
			metrics.StoreReady.Set(1)
		}
	}()

	dispatcher := provider.NewDispatcher(metrics,
		provider.NewGoogle(cfg.ProviderTimeout, provider.WithGoogleDefaultKey(cfg.GoogleAPIKey)),
		provider.NewOpenAI(cfg.ProviderTimeout),
		provider.NewAnthropic(cfg.ProviderTimeout),
	)

	service := chat.NewService(adapter, dispatcher, metrics, cfg.RetrieveLimit)
	server := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: httpapi.New(service, adapter).Router(),
	}

	go func() {
		log.Printf("[MAIN] listening on %s", cfg.BindAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[MAIN] server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[MAIN] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[MAIN] shutdown: %v", err)
	}
}
