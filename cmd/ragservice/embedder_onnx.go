//go:build onnx

package main

import (
	"fmt"

	"github.com/mzaleski/ai-rag-service/internal/config"
	"github.com/mzaleski/ai-rag-service/internal/memory"
	"github.com/mzaleski/ai-rag-service/internal/memory/embedder/mock"
	"github.com/mzaleski/ai-rag-service/internal/memory/embedder/onnx"
)

func buildEmbedder(cfg config.Config) (memory.Embedder, error) {
	switch cfg.Embedder {
	case "mock":
		return mock.New(), nil
	case "onnx":
		return onnx.New(onnx.Config{
			ModelPath:         cfg.ONNXModelPath,
			TokenizerPath:     cfg.ONNXTokenizerPath,
			SharedLibraryPath: cfg.ONNXLibraryPath,
		})
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.Embedder)
	}
}
