package graphctx

import (
	"context"
	"sort"
	"sync"

	"github.com/mart1ny/rag-assistant/internal/data/graph"
	"github.com/mart1ny/rag-assistant/internal/domain"
	"github.com/mart1ny/rag-assistant/internal/platform/logger"
)

const (
	// maxEdgesPerRequest bounds response size and graph-store load.
	maxEdgesPerRequest = 40
	// maxTitlesPerTopic bounds the associated-assignment lookup per node.
	maxTitlesPerTopic = 3
)

// Reader is the slice of the graph store the builder consumes; faked in tests.
type Reader interface {
	RelatedConceptEdges(ctx context.Context, topics []string, maxEdges int) ([]graph.Edge, error)
	AssignmentTitlesForTopics(ctx context.Context, topicIDs []string, perTopic int) (map[string][]string, error)
}

// Builder expands the topics of a chunk set into a concept neighborhood.
// The graph store being absent or unreachable never fails a request: the
// builder degrades to a nil GraphContext and warns once per process.
type Builder struct {
	reader   Reader
	log      *logger.Logger
	warnOnce sync.Once
}

func NewBuilder(reader Reader, log *logger.Logger) *Builder {
	return &Builder{reader: reader, log: log.With("service", "GraphContextBuilder")}
}

func (b *Builder) Build(ctx context.Context, topics []string) *domain.GraphContext {
	topics = dedupeSorted(topics)
	if len(topics) == 0 || b.reader == nil {
		return nil
	}
	primary := make(map[string]bool, len(topics))
	for _, t := range topics {
		primary[t] = true
	}

	edges, err := b.reader.RelatedConceptEdges(ctx, topics, maxEdgesPerRequest)
	if err != nil {
		b.warnUnreachable(err)
		return nil
	}

	nodeByID := make(map[string]*domain.ConceptNode)
	addNode := func(id, label string) {
		if id == "" {
			return
		}
		if _, ok := nodeByID[id]; ok {
			return
		}
		if label == "" {
			label = id
		}
		nodeByID[id] = &domain.ConceptNode{
			TopicID:   id,
			Label:     label,
			IsPrimary: primary[id],
		}
	}

	seenEdges := make(map[[2]string]bool, len(edges))
	outEdges := make([]domain.ConceptEdge, 0, len(edges))
	for _, e := range edges {
		if e.SourceID == "" || e.TargetID == "" {
			continue
		}
		key := [2]string{e.SourceID, e.TargetID}
		if seenEdges[key] {
			continue
		}
		seenEdges[key] = true
		addNode(e.SourceID, e.SourceLabel)
		addNode(e.TargetID, e.TargetLabel)
		outEdges = append(outEdges, domain.ConceptEdge{
			SourceTopicID: e.SourceID,
			TargetTopicID: e.TargetID,
		})
	}

	lookup := make([]string, 0, len(nodeByID)+len(topics))
	for id := range nodeByID {
		lookup = append(lookup, id)
	}
	for _, t := range topics {
		if _, ok := nodeByID[t]; !ok {
			lookup = append(lookup, t)
		}
	}

	titles, err := b.reader.AssignmentTitlesForTopics(ctx, dedupeSorted(lookup), maxTitlesPerTopic)
	if err != nil {
		b.warnUnreachable(err)
		titles = nil
	}
	for id, list := range titles {
		if len(list) > maxTitlesPerTopic {
			list = list[:maxTitlesPerTopic]
		}
		if node, ok := nodeByID[id]; ok {
			node.AssignmentTitles = list
			continue
		}
		// A primary topic with associated materials but no outgoing edges
		// still contributes a node.
		if primary[id] {
			nodeByID[id] = &domain.ConceptNode{
				TopicID:          id,
				Label:            id,
				AssignmentTitles: list,
				IsPrimary:        true,
			}
		}
	}

	if len(nodeByID) == 0 {
		return nil
	}

	nodes := make([]domain.ConceptNode, 0, len(nodeByID))
	for _, node := range nodeByID {
		nodes = append(nodes, *node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].TopicID < nodes[j].TopicID })

	return &domain.GraphContext{Nodes: nodes, Edges: outEdges}
}

func (b *Builder) warnUnreachable(err error) {
	b.warnOnce.Do(func() {
		b.log.Warn("graph store unavailable, responses will omit graph context", "error", err)
	})
}

func dedupeSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
