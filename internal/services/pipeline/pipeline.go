package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mart1ny/rag-assistant/internal/domain"
	"github.com/mart1ny/rag-assistant/internal/pkg/apperr"
	"github.com/mart1ny/rag-assistant/internal/platform/logger"
	"github.com/mart1ny/rag-assistant/internal/services/embed"
)

const (
	MinChunkLimit = 1
	MaxChunkLimit = 8
)

// examplePrompts seeds the UI with questions the corpus can answer.
var examplePrompts = []string{
	"Как подготовиться к пайплайну RAG для курса?",
	"Что включает граф знаний для тем по машинному обучению?",
	"Как лучше объяснить студенту векторное хранилище?",
}

type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, limit int) ([]domain.Candidate, error)
}

type Hydrator interface {
	HydrateCandidates(ctx context.Context, candidates []domain.Candidate, limit int) ([]domain.ContentChunk, error)
}

type GraphBuilder interface {
	Build(ctx context.Context, topics []string) *domain.GraphContext
}

type Synthesizer interface {
	Synthesize(ctx context.Context, question string, chunks []domain.ContentChunk) string
}

// Deps are the process-wide collaborators, constructed once at startup.
// Embedder is the configured strategy; FallbackEmbedder is the deterministic
// one the pipeline switches to when the strategy fails, so the fallback
// policy lives here and not inside the providers.
type Deps struct {
	Log              *logger.Logger
	Embedder         embed.Provider
	FallbackEmbedder *embed.Fallback
	Search           VectorSearcher
	Documents        Hydrator
	Graph            GraphBuilder
	Synth            Synthesizer
	DefaultLimit     int
}

// Pipeline sequences embed → search → hydrate → graph-enrich → synthesize for
// one question. Each external call is attempted exactly once per request;
// failures are absorbed by fallback or surfaced as a terminal condition,
// never retried.
type Pipeline struct {
	deps             Deps
	log              *logger.Logger
	embedFallbackLog sync.Once
}

func New(deps Deps) (*Pipeline, error) {
	if deps.Log == nil {
		return nil, fmt.Errorf("pipeline: logger required")
	}
	if deps.Embedder == nil || deps.FallbackEmbedder == nil {
		return nil, fmt.Errorf("pipeline: embedder and fallback embedder required")
	}
	if deps.Search == nil || deps.Documents == nil || deps.Synth == nil {
		return nil, fmt.Errorf("pipeline: search, documents and synthesizer required")
	}
	if deps.DefaultLimit < MinChunkLimit || deps.DefaultLimit > MaxChunkLimit {
		return nil, fmt.Errorf("pipeline: default limit %d out of [%d,%d]", deps.DefaultLimit, MinChunkLimit, MaxChunkLimit)
	}
	return &Pipeline{deps: deps, log: deps.Log.With("service", "Pipeline")}, nil
}

// Examples returns fixed prompt suggestions for the transport layer.
func (p *Pipeline) Examples() []string {
	out := make([]string, len(examplePrompts))
	copy(out, examplePrompts)
	return out
}

// Answer runs the full retrieval-and-synthesis pipeline. Limit 0 selects the
// configured default. Distinct failure conditions reaching the caller:
// apperr.ErrInvalidArgument, apperr.ErrNotFound (no candidates) and
// apperr.ErrNoMatch (candidates resolved to nothing).
func (p *Pipeline) Answer(ctx context.Context, question string, limit int) (*domain.ChatResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question must not be empty: %w", apperr.ErrInvalidArgument)
	}
	if limit == 0 {
		limit = p.deps.DefaultLimit
	}
	if limit < MinChunkLimit || limit > MaxChunkLimit {
		return nil, fmt.Errorf("limit %d out of [%d,%d]: %w", limit, MinChunkLimit, MaxChunkLimit, apperr.ErrInvalidArgument)
	}

	vector := p.embedQuestion(ctx, question)

	candidates, err := p.deps.Search.Search(ctx, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(candidates) == 0 {
		return nil, apperr.ErrNotFound
	}

	chunks, err := p.deps.Documents.HydrateCandidates(ctx, candidates, limit)
	if err != nil {
		return nil, fmt.Errorf("hydrate candidates: %w", err)
	}
	if len(chunks) == 0 {
		// The index returned ids the relational store does not know: data
		// drift between the two, worth more than a plain miss in the logs.
		p.log.Warn("vector index and relational store disagree",
			"candidates", len(candidates), "question", question)
		return nil, apperr.ErrNoMatch
	}

	// Graph enrichment is independent of synthesis; run both concurrently.
	// Neither is allowed to fail the request.
	var (
		graph      *domain.GraphContext
		answerText string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if p.deps.Graph != nil {
			graph = p.deps.Graph.Build(gctx, chunkTopics(chunks))
		}
		return nil
	})
	g.Go(func() error {
		answerText = p.deps.Synth.Synthesize(gctx, question, chunks)
		return nil
	})
	_ = g.Wait()

	return &domain.ChatResponse{
		Answer:  answerText,
		Sources: chunks,
		Graph:   graph,
	}, nil
}

// embedQuestion applies the fallback policy: one attempt with the configured
// strategy, then the deterministic digest vector. The switch is logged at
// most once per process, keyed by the failing provider's name.
func (p *Pipeline) embedQuestion(ctx context.Context, question string) []float32 {
	vector, err := p.deps.Embedder.Embed(ctx, question)
	if err == nil && len(vector) > 0 {
		return vector
	}
	if err != nil {
		p.embedFallbackLog.Do(func() {
			p.log.Warn("embedding provider failed, switching to deterministic fallback",
				"provider", p.deps.Embedder.Name(), "error", err)
		})
	}
	vector, _ = p.deps.FallbackEmbedder.Embed(ctx, question)
	return vector
}

func chunkTopics(chunks []domain.ContentChunk) []string {
	topics := make([]string, 0, len(chunks))
	seen := make(map[string]bool, len(chunks))
	for _, chunk := range chunks {
		if chunk.Topic == nil {
			continue
		}
		topic := strings.TrimSpace(*chunk.Topic)
		if topic == "" || seen[topic] {
			continue
		}
		seen[topic] = true
		topics = append(topics, topic)
	}
	return topics
}
