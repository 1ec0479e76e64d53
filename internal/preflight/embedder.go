package preflight

import (
	"context"
	"fmt"
	"time"

	"github.com/codeatlas/codeatlas/internal/embed"
)

// embedderProbeTimeout bounds the reachability probe.
const embedderProbeTimeout = 5 * time.Second

// CheckEmbedder verifies the configured embedding backend. The hash
// embedder always passes; an unreachable Ollama host fails only when
// the config demands Ollama, since auto mode falls back to hash.
func (c *Checker) CheckEmbedder(ctx context.Context) Result {
	res := Result{Name: "embedder"}

	provider := embed.ProviderType(c.cfg.Embeddings.Provider)
	if provider == embed.ProviderHash {
		res.Status = StatusPass
		res.Message = "hash embedder (offline)"
		return res
	}

	probeCtx, cancel := context.WithTimeout(ctx, embedderProbeTimeout)
	defer cancel()

	ollama := embed.NewOllamaEmbedder(embed.OllamaConfig{
		Host:  c.cfg.Embeddings.OllamaHost,
		Model: c.cfg.Embeddings.Model,
	})
	defer ollama.Close()

	if ollama.Available(probeCtx) {
		res.Status = StatusPass
		res.Message = fmt.Sprintf("ollama reachable (model %s)", c.cfg.Embeddings.Model)
		return res
	}

	if provider == embed.ProviderOllama {
		res.Required = true
		res.Status = StatusFail
		res.Message = "ollama unreachable but embeddings.provider is 'ollama'"
		res.Hint = "start ollama, or set embeddings.provider to 'auto' or 'hash'"
		return res
	}

	res.Status = StatusWarn
	res.Message = "ollama unreachable; scans will use the hash embedder"
	return res
}
