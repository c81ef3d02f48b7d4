package app

import (
	"strings"

	"github.com/mart1ny/rag-assistant/internal/platform/envutil"
	"github.com/mart1ny/rag-assistant/internal/platform/logger"
)

type EmbeddingStrategy string

const (
	StrategyFallback    EmbeddingStrategy = "fallback"
	StrategyModelBacked EmbeddingStrategy = "model"
)

type Config struct {
	HTTPAddr     string
	AllowOrigins []string

	EmbeddingDim      int
	EmbeddingStrategy EmbeddingStrategy

	QdrantURL        string
	QdrantCollection string

	DefaultChunkLimit int

	GenTemperature     float64
	GenMaxOutputTokens int
}

func LoadConfig(log *logger.Logger) Config {
	strategy := StrategyFallback
	switch strings.ToLower(envutil.GetEnv("EMBEDDING_PROVIDER", "fallback", log)) {
	case "model", "openai":
		strategy = StrategyModelBacked
	}

	var origins []string
	if raw := envutil.GetEnv("CORS_ALLOW_ORIGINS", "", log); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	limit := envutil.GetEnvAsInt("CHAT_CHUNK_LIMIT", 6, log)
	if limit < 1 || limit > 8 {
		log.Warn("CHAT_CHUNK_LIMIT out of range, using default", "provided", limit, "default", 6)
		limit = 6
	}

	return Config{
		HTTPAddr:           envutil.GetEnv("HTTP_ADDR", ":8000", log),
		AllowOrigins:       origins,
		EmbeddingDim:       envutil.GetEnvAsInt("EMBEDDING_DIM", 384, log),
		EmbeddingStrategy:  strategy,
		QdrantURL:          envutil.GetEnv("QDRANT_URL", "http://localhost:6333", log),
		QdrantCollection:   envutil.GetEnv("QDRANT_COLLECTION", "course_materials", log),
		DefaultChunkLimit:  limit,
		GenTemperature:     envutil.GetEnvAsFloat("OPENAI_TEMPERATURE", 0.2, log),
		GenMaxOutputTokens: envutil.GetEnvAsInt("OPENAI_MAX_OUTPUT_TOKENS", 700, log),
	}
}
