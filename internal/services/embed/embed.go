package embed

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/mart1ny/rag-assistant/internal/platform/logger"
)

// Provider turns text into a fixed-dimension vector. Strategy selection
// happens once at startup; the orchestrator owns the fallback decision when a
// model-backed provider fails.
type Provider interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Fallback is the deterministic strategy: a sha256 digest of the UTF-8 text,
// each byte normalized to [0,1], cycled to the configured dimension. It gives
// stability, not semantic similarity.
type Fallback struct {
	dim int
}

func NewFallback(dim int) *Fallback {
	return &Fallback{dim: dim}
}

func (f *Fallback) Name() string { return "fallback" }

func (f *Fallback) Embed(_ context.Context, text string) ([]float32, error) {
	digest := sha256.Sum256([]byte(text))
	out := make([]float32, f.dim)
	for i := 0; i < f.dim; i++ {
		out[i] = float32(digest[i%len(digest)]) / 255.0
	}
	return out, nil
}

// EmbeddingBackend is the slice of the generative client the model-backed
// strategy needs.
type EmbeddingBackend interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// ModelBacked delegates to an external sentence-embedding model. The model's
// native vector is returned untruncated; a dimension mismatch against the
// configured size is warned about once, since it usually means the vector
// collection was provisioned for a different model.
type ModelBacked struct {
	backend  EmbeddingBackend
	dim      int
	log      *logger.Logger
	warnOnce sync.Once
}

func NewModelBacked(backend EmbeddingBackend, dim int, log *logger.Logger) *ModelBacked {
	return &ModelBacked{
		backend: backend,
		dim:     dim,
		log:     log.With("service", "ModelBackedEmbedder"),
	}
}

func (m *ModelBacked) Name() string { return "model" }

func (m *ModelBacked) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.backend == nil {
		return nil, fmt.Errorf("embedding backend not configured")
	}
	vectors, err := m.backend.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embedding backend returned no vector")
	}
	vec := vectors[0]
	if len(vec) != m.dim {
		m.warnOnce.Do(func() {
			m.log.Warn("embedding model output size differs from configured dimension",
				"model_dim", len(vec), "configured_dim", m.dim)
		})
	}
	return vec, nil
}
