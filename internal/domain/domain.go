package domain

import (
	"github.com/google/uuid"
)

// Candidate is one vector-search hit. DocumentID carries the raw payload value
// and may be missing or malformed; hydration decides what to do with it.
type Candidate struct {
	DocumentID string
	Score      float64
	Topic      string
	Source     string
}

// ContentChunk joins a Candidate with its persisted document record. It is
// assembled per request and never stored.
type ContentChunk struct {
	ID              uuid.UUID `json:"id"`
	AssignmentTitle string    `json:"assignment_title"`
	Topic           *string   `json:"topic"`
	Source          *string   `json:"source"`
	ChunkNumber     *int      `json:"chunk_number"`
	Content         string    `json:"content"`
	Score           float64   `json:"score"`
}

// ConceptNode is a topic in the knowledge graph. IsPrimary marks topics that
// appear in the current request's chunk set; the rest were reached by expansion.
type ConceptNode struct {
	TopicID          string   `json:"topic_id"`
	Label            string   `json:"label"`
	AssignmentTitles []string `json:"assignment_titles,omitempty"`
	IsPrimary        bool     `json:"is_primary"`
}

// ConceptEdge is a directed RELATES_TO relation between two topics.
type ConceptEdge struct {
	SourceTopicID string `json:"source_topic_id"`
	TargetTopicID string `json:"target_topic_id"`
}

// GraphContext is the concept neighborhood of a response. Nodes are unique by
// topic id, edges by the ordered (source, target) pair. A nil GraphContext
// means no graph context was available; an empty one is never produced.
type GraphContext struct {
	Nodes []ConceptNode `json:"nodes"`
	Edges []ConceptEdge `json:"edges"`
}

// ChatResponse is the outward-facing result of one answered question.
type ChatResponse struct {
	Answer  string         `json:"answer"`
	Sources []ContentChunk `json:"sources"`
	Graph   *GraphContext  `json:"graph,omitempty"`
}

// Assignment is the grouping record for course materials.
type Assignment struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title       string    `gorm:"not null"`
	Description *string
	Topic       *string
}

// Document is one content chunk of an assignment as persisted in Postgres.
type Document struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	AssignmentID uuid.UUID `gorm:"type:uuid;not null;index"`
	Source       *string
	ChunkNumber  *int
	Content      string `gorm:"not null"`
}

// VectorRef links a document row to the vector-index point written for it.
type VectorRef struct {
	ID               uint      `gorm:"primaryKey"`
	DocumentID       uuid.UUID `gorm:"type:uuid;not null;index"`
	QdrantCollection string    `gorm:"not null"`
	PointID          string    `gorm:"not null"`
}
