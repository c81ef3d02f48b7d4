package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/mart1ny/rag-assistant/internal/platform/logger"
	"github.com/mart1ny/rag-assistant/internal/platform/neo4jdb"
)

// Edge is one outgoing RELATES_TO relation between two topic nodes.
type Edge struct {
	SourceID    string
	SourceLabel string
	TargetID    string
	TargetLabel string
}

// RelatedConceptEdges returns outgoing RELATES_TO edges whose source topic is
// in topics, capped at maxEdges.
func RelatedConceptEdges(ctx context.Context, client *neo4jdb.Client, topics []string, maxEdges int) ([]Edge, error) {
	if client == nil || client.Driver == nil {
		return nil, fmt.Errorf("graph: client unavailable")
	}
	if len(topics) == 0 || maxEdges <= 0 {
		return nil, nil
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (s:Topic)-[:RELATES_TO]->(t:Topic)
WHERE s.id IN $topics
RETURN s.id AS source_id,
       coalesce(s.label, s.id) AS source_label,
       t.id AS target_id,
       coalesce(t.label, t.id) AS target_label
LIMIT $max
`, map[string]any{"topics": topics, "max": maxEdges})
		if err != nil {
			return nil, err
		}

		var edges []Edge
		for res.Next(ctx) {
			rec := res.Record()
			edges = append(edges, Edge{
				SourceID:    stringValue(rec, "source_id"),
				SourceLabel: stringValue(rec, "source_label"),
				TargetID:    stringValue(rec, "target_id"),
				TargetLabel: stringValue(rec, "target_label"),
			})
		}
		return edges, res.Err()
	})
	if err != nil {
		return nil, err
	}
	edges, _ := result.([]Edge)
	return edges, nil
}

// AssignmentTitlesForTopics returns up to perTopic associated assignment
// titles for each topic id, keyed by topic id.
func AssignmentTitlesForTopics(ctx context.Context, client *neo4jdb.Client, topicIDs []string, perTopic int) (map[string][]string, error) {
	if client == nil || client.Driver == nil {
		return nil, fmt.Errorf("graph: client unavailable")
	}
	if len(topicIDs) == 0 || perTopic <= 0 {
		return nil, nil
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (a:Assignment)-[:ASSOCIATED_WITH]->(t:Topic)
WHERE t.id IN $topics
WITH t.id AS topic, collect(DISTINCT a.title)[..$per] AS titles
RETURN topic, titles
`, map[string]any{"topics": topicIDs, "per": perTopic})
		if err != nil {
			return nil, err
		}

		out := make(map[string][]string)
		for res.Next(ctx) {
			rec := res.Record()
			topic := stringValue(rec, "topic")
			if topic == "" {
				continue
			}
			rawTitles, _ := rec.Get("titles")
			list, _ := rawTitles.([]any)
			titles := make([]string, 0, len(list))
			for _, item := range list {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					titles = append(titles, strings.TrimSpace(s))
				}
			}
			if len(titles) > 0 {
				out[topic] = titles
			}
		}
		return out, res.Err()
	})
	if err != nil {
		return nil, err
	}
	titles, _ := result.(map[string][]string)
	return titles, nil
}

// AssignmentGraph describes what the seeder merges for one assignment: the
// assignment proxy node, its topic, and the topics it relates to.
type AssignmentGraph struct {
	AssignmentID  string
	Title         string
	Topic         string
	RelatedTopics []string
}

// MergeAssignmentGraph upserts topic nodes, ASSOCIATED_WITH and RELATES_TO
// edges. The query pipeline never writes to the graph; this is the ingestion
// collaborator's merge.
func MergeAssignmentGraph(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, items []AssignmentGraph) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if len(items) == 0 {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	assignments := make([]map[string]any, 0, len(items))
	rels := make([]map[string]any, 0, len(items))
	for _, item := range items {
		topic := strings.TrimSpace(item.Topic)
		if item.AssignmentID == "" || topic == "" {
			continue
		}
		assignments = append(assignments, map[string]any{
			"id":        item.AssignmentID,
			"title":     item.Title,
			"topic":     topic,
			"synced_at": now,
		})
		for _, related := range item.RelatedTopics {
			related = strings.TrimSpace(related)
			if related == "" || related == topic {
				continue
			}
			rels = append(rels, map[string]any{
				"source":    topic,
				"target":    related,
				"synced_at": now,
			})
		}
	}
	if len(assignments) == 0 {
		return nil
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	// Schema helpers are best-effort; restricted users may not create them.
	if res, err := session.Run(ctx, `CREATE CONSTRAINT topic_id_unique IF NOT EXISTS FOR (t:Topic) REQUIRE t.id IS UNIQUE`, nil); err != nil {
		if log != nil {
			log.Warn("neo4j schema init failed (continuing)", "error", err)
		}
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
UNWIND $assignments AS a
MERGE (t:Topic {id: a.topic})
ON CREATE SET t.label = a.topic
SET t.synced_at = a.synced_at
MERGE (asg:Assignment {id: a.id})
SET asg.title = a.title,
    asg.synced_at = a.synced_at
MERGE (asg)-[:ASSOCIATED_WITH]->(t)
`, map[string]any{"assignments": assignments})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}

		if len(rels) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $rels AS r
MERGE (s:Topic {id: r.source})
ON CREATE SET s.label = r.source
MERGE (t:Topic {id: r.target})
ON CREATE SET t.label = r.target
MERGE (s)-[e:RELATES_TO]->(t)
SET e.synced_at = r.synced_at
`, map[string]any{"rels": rels})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func stringValue(rec *neo4j.Record, key string) string {
	raw, ok := rec.Get(key)
	if !ok {
		return ""
	}
	s, _ := raw.(string)
	return strings.TrimSpace(s)
}
