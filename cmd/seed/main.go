package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/mart1ny/rag-assistant/internal/app"
	"github.com/mart1ny/rag-assistant/internal/data/db"
	"github.com/mart1ny/rag-assistant/internal/data/graph"
	"github.com/mart1ny/rag-assistant/internal/data/repos"
	"github.com/mart1ny/rag-assistant/internal/domain"
	"github.com/mart1ny/rag-assistant/internal/platform/envutil"
	"github.com/mart1ny/rag-assistant/internal/platform/logger"
	"github.com/mart1ny/rag-assistant/internal/platform/neo4jdb"
	"github.com/mart1ny/rag-assistant/internal/platform/qdrant"
	"github.com/mart1ny/rag-assistant/internal/services/embed"
)

// material is one entry of the seed file: a course assignment with its
// pre-chunked content and graph neighborhood.
type material struct {
	Title         string   `yaml:"title"`
	Description   string   `yaml:"description"`
	Topic         string   `yaml:"topic"`
	Source        string   `yaml:"source"`
	RelatedTopics []string `yaml:"related_topics"`
	Chunks        []string `yaml:"chunks"`
}

func main() {
	materialsPath := flag.String("materials", "data/materials.yaml", "path to the materials file")
	flag.Parse()

	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(context.Background(), log, *materialsPath); err != nil {
		log.Fatal("seeding failed", "error", err)
	}
}

func run(ctx context.Context, log *logger.Logger, materialsPath string) error {
	cfg := app.LoadConfig(log)

	raw, err := os.ReadFile(materialsPath)
	if err != nil {
		return fmt.Errorf("read materials: %w", err)
	}
	var materials []material
	if err := yaml.Unmarshal(raw, &materials); err != nil {
		return fmt.Errorf("parse materials: %w", err)
	}
	if len(materials) == 0 {
		return fmt.Errorf("materials file %q is empty", materialsPath)
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		return err
	}
	if err := pg.AutoMigrateAll(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	docRepo := repos.NewDocumentRepo(pg.DB(), log)

	qc, err := qdrant.NewClient(log, qdrant.Config{
		URL:        cfg.QdrantURL,
		Collection: cfg.QdrantCollection,
		VectorDim:  cfg.EmbeddingDim,
	})
	if err != nil {
		return err
	}
	if err := qc.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	neo, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Warn("graph store unavailable, skipping concept graph merge", "error", err)
		neo = nil
	}
	if neo != nil {
		defer neo.Close(ctx)
	}

	var stream *redis.Client
	streamKey := envutil.GetEnv("INGEST_STREAM", "stream:ingest", log)
	if redisURL := envutil.GetEnv("REDIS_URL", "", log); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		stream = redis.NewClient(opts)
		defer stream.Close()
	}

	// Seeding always embeds deterministically so a reseed is reproducible
	// without the embedding model.
	embedder := embed.NewFallback(cfg.EmbeddingDim)

	inserted := 0
	graphItems := make([]graph.AssignmentGraph, 0, len(materials))
	for _, item := range materials {
		assignmentID := uuid.New()
		assignment := &domain.Assignment{
			ID:          assignmentID,
			Title:       item.Title,
			Description: optional(item.Description),
			Topic:       optional(item.Topic),
		}
		if err := docRepo.CreateAssignment(ctx, assignment); err != nil {
			return fmt.Errorf("insert assignment %q: %w", item.Title, err)
		}
		graphItems = append(graphItems, graph.AssignmentGraph{
			AssignmentID:  assignmentID.String(),
			Title:         item.Title,
			Topic:         item.Topic,
			RelatedTopics: item.RelatedTopics,
		})

		for idx, chunk := range item.Chunks {
			chunkNumber := idx
			doc := &domain.Document{
				ID:           uuid.New(),
				AssignmentID: assignmentID,
				Source:       optional(item.Source),
				ChunkNumber:  &chunkNumber,
				Content:      chunk,
			}
			if err := docRepo.CreateDocument(ctx, doc); err != nil {
				return fmt.Errorf("insert document for %q: %w", item.Title, err)
			}

			vector, err := embedder.Embed(ctx, chunk)
			if err != nil {
				return fmt.Errorf("embed chunk: %w", err)
			}
			pointID := uuid.New().String()
			err = qc.Upsert(ctx, []qdrant.Point{{
				ID:     pointID,
				Vector: vector,
				Payload: map[string]any{
					qdrant.PayloadAssignmentID: assignmentID.String(),
					qdrant.PayloadDocumentID:   doc.ID.String(),
					qdrant.PayloadChunkNumber:  chunkNumber,
					qdrant.PayloadTopic:        item.Topic,
					qdrant.PayloadSource:       item.Source,
				},
			}})
			if err != nil {
				return fmt.Errorf("upsert point: %w", err)
			}

			ref := &domain.VectorRef{
				DocumentID:       doc.ID,
				QdrantCollection: qc.Collection(),
				PointID:          pointID,
			}
			if err := docRepo.CreateVectorRef(ctx, ref); err != nil {
				return fmt.Errorf("insert vector ref: %w", err)
			}

			if stream != nil {
				err := stream.XAdd(ctx, &redis.XAddArgs{
					Stream: streamKey,
					Values: map[string]any{
						"assignment_id": assignmentID.String(),
						"document_id":   doc.ID.String(),
						"point_id":      pointID,
						"seeded_at":     time.Now().UTC().Format(time.RFC3339),
					},
				}).Err()
				if err != nil {
					log.Warn("ingest stream publish failed", "error", err)
				}
			}

			inserted++
		}
	}

	if err := graph.MergeAssignmentGraph(ctx, neo, log, graphItems); err != nil {
		log.Warn("concept graph merge failed", "error", err)
	}

	log.Info("seeding complete", "assignments", len(materials), "chunks", inserted, "collection", qc.Collection())
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
