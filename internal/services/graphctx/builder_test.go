package graphctx

import (
	"context"
	"fmt"
	"testing"

	"github.com/mart1ny/rag-assistant/internal/data/graph"
	"github.com/mart1ny/rag-assistant/internal/domain"
	"github.com/mart1ny/rag-assistant/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

type fakeReader struct {
	edges    []graph.Edge
	titles   map[string][]string
	edgesErr error
	titleErr error

	edgeCalls  int
	titleCalls int
	lastTopics []string
	lastMax    int
	lastPer    int
}

func (f *fakeReader) RelatedConceptEdges(_ context.Context, topics []string, maxEdges int) ([]graph.Edge, error) {
	f.edgeCalls++
	f.lastTopics = topics
	f.lastMax = maxEdges
	return f.edges, f.edgesErr
}

func (f *fakeReader) AssignmentTitlesForTopics(_ context.Context, topicIDs []string, perTopic int) (map[string][]string, error) {
	f.titleCalls++
	f.lastPer = perTopic
	return f.titles, f.titleErr
}

func TestBuildEmptyTopics(t *testing.T) {
	b := NewBuilder(&fakeReader{}, mustTestLogger(t))
	if got := b.Build(context.Background(), nil); got != nil {
		t.Fatalf("nil topics: want nil context, got %+v", got)
	}
	if got := b.Build(context.Background(), []string{"", ""}); got != nil {
		t.Fatalf("blank topics: want nil context, got %+v", got)
	}
}

func TestBuildNilReader(t *testing.T) {
	b := NewBuilder(nil, mustTestLogger(t))
	if got := b.Build(context.Background(), []string{"rag-pipeline"}); got != nil {
		t.Fatalf("nil reader: want nil context, got %+v", got)
	}
}

func TestBuildStoreFailureDegradesToNil(t *testing.T) {
	reader := &fakeReader{edgesErr: fmt.Errorf("connection refused")}
	b := NewBuilder(reader, mustTestLogger(t))
	if got := b.Build(context.Background(), []string{"rag-pipeline"}); got != nil {
		t.Fatalf("store failure: want nil context, got %+v", got)
	}
}

func TestBuildNeighborhood(t *testing.T) {
	reader := &fakeReader{
		edges: []graph.Edge{
			{SourceID: "rag-pipeline", SourceLabel: "RAG pipeline", TargetID: "embeddings", TargetLabel: "Embeddings"},
			{SourceID: "rag-pipeline", SourceLabel: "RAG pipeline", TargetID: "embeddings", TargetLabel: "Embeddings"},
		},
		titles: map[string][]string{
			"rag-pipeline": {"Введение в RAG"},
			"embeddings":   {"Векторные представления текста"},
		},
	}
	b := NewBuilder(reader, mustTestLogger(t))

	got := b.Build(context.Background(), []string{"rag-pipeline", "rag-pipeline"})
	if got == nil {
		t.Fatalf("expected graph context")
	}
	if len(got.Nodes) != 2 {
		t.Fatalf("nodes: want=2 got=%d (%+v)", len(got.Nodes), got.Nodes)
	}
	if len(got.Edges) != 1 {
		t.Fatalf("edges after dedup: want=1 got=%d", len(got.Edges))
	}
	if got.Edges[0] != (domain.ConceptEdge{SourceTopicID: "rag-pipeline", TargetTopicID: "embeddings"}) {
		t.Fatalf("edge: %+v", got.Edges[0])
	}

	byID := map[string]domain.ConceptNode{}
	for _, n := range got.Nodes {
		byID[n.TopicID] = n
	}
	primaryNode, ok := byID["rag-pipeline"]
	if !ok || !primaryNode.IsPrimary {
		t.Fatalf("rag-pipeline should be a primary node: %+v", byID)
	}
	related, ok := byID["embeddings"]
	if !ok || related.IsPrimary {
		t.Fatalf("embeddings should be a non-primary node: %+v", byID)
	}
	if related.Label != "Embeddings" {
		t.Fatalf("label: want=Embeddings got=%q", related.Label)
	}
	if len(primaryNode.AssignmentTitles) != 1 || primaryNode.AssignmentTitles[0] != "Введение в RAG" {
		t.Fatalf("titles: %+v", primaryNode.AssignmentTitles)
	}

	if reader.lastMax != 40 {
		t.Fatalf("edge cap: want=40 got=%d", reader.lastMax)
	}
	if reader.lastPer != 3 {
		t.Fatalf("titles per topic: want=3 got=%d", reader.lastPer)
	}
	if len(reader.lastTopics) != 1 {
		t.Fatalf("topics should be deduplicated: %v", reader.lastTopics)
	}
}

func TestBuildTitleOnlyPrimaryTopic(t *testing.T) {
	// No outgoing edges, but the topic still has associated materials: it
	// contributes a single primary node.
	reader := &fakeReader{
		titles: map[string][]string{"vector-search": {"Поиск в Qdrant"}},
	}
	b := NewBuilder(reader, mustTestLogger(t))

	got := b.Build(context.Background(), []string{"vector-search"})
	if got == nil {
		t.Fatalf("expected graph context")
	}
	if len(got.Nodes) != 1 || len(got.Edges) != 0 {
		t.Fatalf("want 1 node 0 edges, got %d/%d", len(got.Nodes), len(got.Edges))
	}
	node := got.Nodes[0]
	if !node.IsPrimary || node.TopicID != "vector-search" {
		t.Fatalf("node: %+v", node)
	}
}

func TestBuildNoDataYieldsNil(t *testing.T) {
	b := NewBuilder(&fakeReader{}, mustTestLogger(t))
	if got := b.Build(context.Background(), []string{"unknown-topic"}); got != nil {
		t.Fatalf("no edges and no titles: want nil, got %+v", got)
	}
}

func TestBuildTruncatesTitleList(t *testing.T) {
	reader := &fakeReader{
		titles: map[string][]string{
			"rag-pipeline": {"Один", "Два", "Три", "Четыре"},
		},
	}
	b := NewBuilder(reader, mustTestLogger(t))

	got := b.Build(context.Background(), []string{"rag-pipeline"})
	if got == nil || len(got.Nodes) != 1 {
		t.Fatalf("unexpected context: %+v", got)
	}
	if len(got.Nodes[0].AssignmentTitles) != 3 {
		t.Fatalf("titles should be capped at 3, got %v", got.Nodes[0].AssignmentTitles)
	}
}
