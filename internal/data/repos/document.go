package repos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mart1ny/rag-assistant/internal/domain"
	"github.com/mart1ny/rag-assistant/internal/platform/logger"
)

// DocumentRepo resolves vector-search candidates into content chunks and
// persists documents on the ingestion side.
type DocumentRepo interface {
	HydrateCandidates(ctx context.Context, candidates []domain.Candidate, limit int) ([]domain.ContentChunk, error)
	CreateAssignment(ctx context.Context, assignment *domain.Assignment) error
	CreateDocument(ctx context.Context, doc *domain.Document) error
	CreateVectorRef(ctx context.Context, ref *domain.VectorRef) error
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: baseLog.With("repo", "DocumentRepo")}
}

type hydratedRow struct {
	ID          uuid.UUID
	Content     string
	Source      *string
	ChunkNumber *int
	Title       string
	Topic       *string
}

// HydrateCandidates issues one batched join keyed by the surviving id set and
// re-walks candidates in their original order. Candidates with malformed ids
// or without a matching row are skipped, never reported as errors.
func (r *documentRepo) HydrateCandidates(ctx context.Context, candidates []domain.Candidate, limit int) ([]domain.ContentChunk, error) {
	ids := wellFormedIDs(candidates)
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []hydratedRow
	err := r.db.WithContext(ctx).
		Raw(`
			SELECT d.id, d.content, d.source, d.chunk_number, a.title, a.topic
			FROM documents d
			JOIN assignments a ON d.assignment_id = a.id
			WHERE d.id IN ?
		`, ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	rowByID := make(map[uuid.UUID]hydratedRow, len(rows))
	for _, row := range rows {
		rowByID[row.ID] = row
	}
	return assembleChunks(candidates, rowByID, limit), nil
}

func wellFormedIDs(candidates []domain.Candidate) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(candidates))
	seen := make(map[uuid.UUID]struct{}, len(candidates))
	for _, cand := range candidates {
		raw := strings.TrimSpace(cand.DocumentID)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// assembleChunks preserves candidate order: the output is a strict sub-order
// of the input with unmatched entries dropped, capped at limit.
func assembleChunks(candidates []domain.Candidate, rowByID map[uuid.UUID]hydratedRow, limit int) []domain.ContentChunk {
	if limit <= 0 {
		return nil
	}
	out := make([]domain.ContentChunk, 0, limit)
	for _, cand := range candidates {
		id, err := uuid.Parse(strings.TrimSpace(cand.DocumentID))
		if err != nil || id == uuid.Nil {
			continue
		}
		row, ok := rowByID[id]
		if !ok {
			continue
		}
		out = append(out, domain.ContentChunk{
			ID:              row.ID,
			AssignmentTitle: row.Title,
			Topic:           row.Topic,
			Source:          row.Source,
			ChunkNumber:     row.ChunkNumber,
			Content:         row.Content,
			Score:           cand.Score,
		})
		if len(out) >= limit {
			break
		}
	}
	return out
}

func (r *documentRepo) CreateAssignment(ctx context.Context, assignment *domain.Assignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *documentRepo) CreateDocument(ctx context.Context, doc *domain.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *documentRepo) CreateVectorRef(ctx context.Context, ref *domain.VectorRef) error {
	return r.db.WithContext(ctx).Create(ref).Error
}
