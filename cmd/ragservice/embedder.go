//go:build !onnx

package main

import (
	"fmt"

	"github.com/mzaleski/ai-rag-service/internal/config"
	"github.com/mzaleski/ai-rag-service/internal/memory"
	"github.com/mzaleski/ai-rag-service/internal/memory/embedder/mock"
)

// buildEmbedder selects the embedding backend. The onnx backend needs cgo and
// a local runtime, so it lives behind the onnx build tag.
func buildEmbedder(cfg config.Config) (memory.Embedder, error) {
	switch cfg.Embedder {
	case "mock":
		return mock.New(), nil
	case "onnx":
		return nil, fmt.Errorf("EMBEDDER=onnx requires building with -tags onnx")
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.Embedder)
	}
}
