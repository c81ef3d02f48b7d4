package app

import (
	"context"
	"fmt"

	"github.com/mart1ny/rag-assistant/internal/data/db"
	"github.com/mart1ny/rag-assistant/internal/data/repos"
	"github.com/mart1ny/rag-assistant/internal/platform/logger"
	"github.com/mart1ny/rag-assistant/internal/platform/neo4jdb"
	"github.com/mart1ny/rag-assistant/internal/platform/openai"
	"github.com/mart1ny/rag-assistant/internal/platform/qdrant"
	"github.com/mart1ny/rag-assistant/internal/services/answer"
	"github.com/mart1ny/rag-assistant/internal/services/embed"
	"github.com/mart1ny/rag-assistant/internal/services/graphctx"
	"github.com/mart1ny/rag-assistant/internal/services/pipeline"
)

// App is the explicit process-wide context: every backend handle is created
// exactly once here and passed by reference. Optional handles (graph store,
// generative backend) are nil when unconfigured.
type App struct {
	Log      *logger.Logger
	Config   Config
	Postgres *db.PostgresService
	Qdrant   *qdrant.Client
	Neo4j    *neo4jdb.Client
	OpenAI   openai.Client
	Pipeline *pipeline.Pipeline
}

func New(ctx context.Context, log *logger.Logger) (*App, error) {
	cfg := LoadConfig(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		return nil, fmt.Errorf("app: postgres: %w", err)
	}

	qc, err := qdrant.NewClient(log, qdrant.Config{
		URL:        cfg.QdrantURL,
		Collection: cfg.QdrantCollection,
		VectorDim:  cfg.EmbeddingDim,
	})
	if err != nil {
		return nil, fmt.Errorf("app: qdrant: %w", err)
	}
	// A collection/embedder dimension mismatch is fatal misconfiguration;
	// refuse to start rather than serve garbage neighbors.
	if err := qc.VerifyReady(ctx); err != nil {
		return nil, fmt.Errorf("app: qdrant verify: %w", err)
	}

	neo, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Warn("graph store init failed, continuing without graph context", "error", err)
		neo = nil
	}

	ai, err := openai.NewFromEnv(log)
	if err != nil {
		return nil, fmt.Errorf("app: openai: %w", err)
	}
	if ai == nil {
		log.Info("generative backend not configured, answers will be extractive")
	}

	fallback := embed.NewFallback(cfg.EmbeddingDim)
	var embedder embed.Provider = fallback
	if cfg.EmbeddingStrategy == StrategyModelBacked {
		if ai == nil {
			log.Warn("EMBEDDING_PROVIDER=model but no generative backend configured, using fallback embeddings")
		} else {
			embedder = embed.NewModelBacked(ai, cfg.EmbeddingDim, log)
		}
	}

	var chatBackend answer.ChatBackend
	if ai != nil {
		chatBackend = ai
	}
	synth := answer.NewSynthesizer(chatBackend, cfg.GenTemperature, cfg.GenMaxOutputTokens, log)
	builder := graphctx.NewBuilder(graphctx.NewStoreReader(neo), log)
	docRepo := repos.NewDocumentRepo(pg.DB(), log)

	p, err := pipeline.New(pipeline.Deps{
		Log:              log,
		Embedder:         embedder,
		FallbackEmbedder: fallback,
		Search:           qc,
		Documents:        docRepo,
		Graph:            builder,
		Synth:            synth,
		DefaultLimit:     cfg.DefaultChunkLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("app: pipeline: %w", err)
	}

	return &App{
		Log:      log,
		Config:   cfg,
		Postgres: pg,
		Qdrant:   qc,
		Neo4j:    neo,
		OpenAI:   ai,
		Pipeline: p,
	}, nil
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if a.Neo4j != nil {
		_ = a.Neo4j.Close(ctx)
	}
}
