package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mart1ny/rag-assistant/internal/app"
	"github.com/mart1ny/rag-assistant/internal/data/db"
	"github.com/mart1ny/rag-assistant/internal/data/repos"
	"github.com/mart1ny/rag-assistant/internal/platform/logger"
	"github.com/mart1ny/rag-assistant/internal/platform/openai"
	"github.com/mart1ny/rag-assistant/internal/platform/qdrant"
	"github.com/mart1ny/rag-assistant/internal/services/embed"
)

// Quick retrieval check from the terminal: embeds the query, searches the
// vector index and hydrates the hits, without going through the HTTP API.
func main() {
	limit := flag.Int("limit", 0, "max chunks to return (defaults to CHAT_CHUNK_LIMIT)")
	flag.Parse()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: search [-limit N] <query>")
		os.Exit(2)
	}

	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(context.Background(), log, query, *limit); err != nil {
		log.Fatal("search failed", "error", err)
	}
}

func run(ctx context.Context, log *logger.Logger, query string, limit int) error {
	cfg := app.LoadConfig(log)
	if limit <= 0 {
		limit = cfg.DefaultChunkLimit
	}

	qc, err := qdrant.NewClient(log, qdrant.Config{
		URL:        cfg.QdrantURL,
		Collection: cfg.QdrantCollection,
		VectorDim:  cfg.EmbeddingDim,
	})
	if err != nil {
		return err
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		return err
	}
	docRepo := repos.NewDocumentRepo(pg.DB(), log)

	embedder := pickEmbedder(cfg, log)
	vector, err := embedder.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}

	candidates, err := qc.Search(ctx, vector, limit)
	if err != nil {
		return fmt.Errorf("vector search: %w", err)
	}
	if len(candidates) == 0 {
		fmt.Println("No hits.")
		return nil
	}

	chunks, err := docRepo.HydrateCandidates(ctx, candidates, limit)
	if err != nil {
		return fmt.Errorf("hydrate: %w", err)
	}

	fmt.Printf("Query: %s (embedder=%s, hits=%d, hydrated=%d)\n\n", query, embedder.Name(), len(candidates), len(chunks))
	for i, chunk := range chunks {
		topic := "-"
		if chunk.Topic != nil {
			topic = *chunk.Topic
		}
		fmt.Printf("%d. [%.4f] %s · %s\n", i+1, chunk.Score, chunk.AssignmentTitle, topic)
		fmt.Printf("   %s\n", chunk.Content)
	}
	return nil
}

func pickEmbedder(cfg app.Config, log *logger.Logger) embed.Provider {
	if cfg.EmbeddingStrategy == app.StrategyModelBacked {
		backend, err := openai.NewFromEnv(log)
		if err == nil && backend != nil {
			return embed.NewModelBacked(backend, cfg.EmbeddingDim, log)
		}
		log.Warn("embedding model unavailable, using deterministic embeddings", "error", err)
	}
	return embed.NewFallback(cfg.EmbeddingDim)
}
