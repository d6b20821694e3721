package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the RAG chat service.
// Loaded once at startup; no hot reload.
type Config struct {
	BindAddr         string
	MetricsNamespace string
	ShutdownTimeout  time.Duration

	ChromaDBPath  string
	RetrieveLimit int

	// Embedder selects the embedding backend: "mock" (default) or "onnx".
	Embedder          string
	ONNXModelPath     string
	ONNXTokenizerPath string
	ONNXLibraryPath   string
	EmbedCacheEntries int

	// GoogleAPIKey is the default credential for the google provider,
	// mirroring the original process-level Gemini setup. Requests still
	// carry their own key.
	GoogleAPIKey string

	ProviderTimeout time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "ragservice"),
		ChromaDBPath:      envOrDefault("CHROMA_DB_PATH", "./chroma_db"),
		Embedder:          strings.ToLower(envOrDefault("EMBEDDER", "mock")),
		ONNXModelPath:     trimSpaceEnv("ONNX_MODEL_PATH"),
		ONNXTokenizerPath: trimSpaceEnv("ONNX_TOKENIZER_PATH"),
		ONNXLibraryPath:   trimSpaceEnv("ONNX_LIBRARY_PATH"),
		GoogleAPIKey:      trimSpaceEnv("GOOGLE_API_KEY"),
		RetrieveLimit:     5,
		EmbedCacheEntries: 4096,
		ShutdownTimeout:   15 * time.Second,
		ProviderTimeout:   60 * time.Second,
	}

	port, err := intFromEnv("PORT", 5000)
	if err != nil {
		return Config{}, err
	}
	if port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("PORT must be a valid port number")
	}
	cfg.BindAddr = fmt.Sprintf(":%d", port)

	cfg.RetrieveLimit, err = intFromEnv("MEMORY_RETRIEVE_LIMIT", cfg.RetrieveLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbedCacheEntries, err = intFromEnv("EMBED_CACHE_ENTRIES", cfg.EmbedCacheEntries)
	if err != nil {
		return Config{}, err
	}
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ProviderTimeout, err = durationFromEnv("PROVIDER_TIMEOUT", cfg.ProviderTimeout)
	if err != nil {
		return Config{}, err
	}

	if cfg.RetrieveLimit <= 0 {
		return Config{}, fmt.Errorf("MEMORY_RETRIEVE_LIMIT must be positive")
	}
	if cfg.EmbedCacheEntries <= 0 {
		return Config{}, fmt.Errorf("EMBED_CACHE_ENTRIES must be positive")
	}
	if cfg.ProviderTimeout < time.Second {
		return Config{}, fmt.Errorf("PROVIDER_TIMEOUT must be at least 1s")
	}
	switch cfg.Embedder {
	case "mock", "onnx":
	default:
		return Config{}, fmt.Errorf("invalid EMBEDDER: %q (expected mock|onnx)", cfg.Embedder)
	}
	if cfg.Embedder == "onnx" && cfg.ONNXModelPath == "" {
		return Config{}, fmt.Errorf("EMBEDDER=onnx requires ONNX_MODEL_PATH")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func trimSpaceEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimSpaceEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimSpaceEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}
