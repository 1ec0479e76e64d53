package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ProviderType selects an embedding backend.
type ProviderType string

const (
	// ProviderOllama uses the Ollama HTTP API (default).
	ProviderOllama ProviderType = "ollama"

	// ProviderHash uses the offline hash embedder.
	ProviderHash ProviderType = "hash"

	// ProviderAuto probes Ollama and falls back to the hash embedder.
	ProviderAuto ProviderType = "auto"
)

// NewEmbedder builds an embedder for the given provider. The
// CODEATLAS_EMBEDDER environment variable overrides the provider;
// explicit selection of an unavailable backend is an error rather than
// a silent downgrade. Results are wrapped in the LRU cache unless
// CODEATLAS_EMBED_CACHE disables it.
func NewEmbedder(ctx context.Context, provider ProviderType, cfg OllamaConfig) (Embedder, error) {
	if env := strings.ToLower(os.Getenv("CODEATLAS_EMBEDDER")); env != "" {
		provider = ProviderType(env)
	}

	var embedder Embedder
	switch provider {
	case ProviderHash:
		embedder = NewHashEmbedder()

	case ProviderOllama:
		ollama := NewOllamaEmbedder(cfg)
		if !ollama.Available(ctx) {
			ollama.Close()
			return nil, fmt.Errorf("ollama unavailable at %s; use --embedder=hash for offline indexing", hostOrDefault(cfg))
		}
		embedder = ollama

	case ProviderAuto, "":
		ollama := NewOllamaEmbedder(cfg)
		if ollama.Available(ctx) {
			embedder = ollama
		} else {
			ollama.Close()
			slog.Info("ollama unavailable, using hash embedder", "host", hostOrDefault(cfg))
			embedder = NewHashEmbedder()
		}

	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}

	if cacheDisabled() {
		return embedder, nil
	}
	return NewCachedEmbedder(embedder, DefaultCacheSize), nil
}

func hostOrDefault(cfg OllamaConfig) string {
	if cfg.Host != "" {
		return cfg.Host
	}
	return DefaultOllamaHost
}

func cacheDisabled() bool {
	switch strings.ToLower(os.Getenv("CODEATLAS_EMBED_CACHE")) {
	case "false", "0", "off", "disabled":
		return true
	}
	return false
}
