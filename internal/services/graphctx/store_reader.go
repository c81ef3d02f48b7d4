package graphctx

import (
	"context"

	"github.com/mart1ny/rag-assistant/internal/data/graph"
	"github.com/mart1ny/rag-assistant/internal/platform/neo4jdb"
)

type storeReader struct {
	client *neo4jdb.Client
}

// NewStoreReader adapts the Neo4j concept queries to the Reader seam. A nil
// client yields a nil Reader, which the Builder treats as "graph absent".
func NewStoreReader(client *neo4jdb.Client) Reader {
	if client == nil || client.Driver == nil {
		return nil
	}
	return &storeReader{client: client}
}

func (r *storeReader) RelatedConceptEdges(ctx context.Context, topics []string, maxEdges int) ([]graph.Edge, error) {
	return graph.RelatedConceptEdges(ctx, r.client, topics, maxEdges)
}

func (r *storeReader) AssignmentTitlesForTopics(ctx context.Context, topicIDs []string, perTopic int) (map[string][]string, error) {
	return graph.AssignmentTitlesForTopics(ctx, r.client, topicIDs, perTopic)
}
