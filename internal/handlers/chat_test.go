package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mart1ny/rag-assistant/internal/domain"
	"github.com/mart1ny/rag-assistant/internal/platform/logger"
	"github.com/mart1ny/rag-assistant/internal/services/embed"
	"github.com/mart1ny/rag-assistant/internal/services/pipeline"
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

type stubSearcher struct {
	candidates []domain.Candidate
}

func (s stubSearcher) Search(_ context.Context, _ []float32, _ int) ([]domain.Candidate, error) {
	return s.candidates, nil
}

type stubHydrator struct {
	chunks []domain.ContentChunk
}

func (s stubHydrator) HydrateCandidates(_ context.Context, _ []domain.Candidate, _ int) ([]domain.ContentChunk, error) {
	return s.chunks, nil
}

type stubSynth struct{}

func (stubSynth) Synthesize(_ context.Context, question string, _ []domain.ContentChunk) string {
	return "### Короткий ответ на запрос «" + question + "»"
}

func newTestRouter(t *testing.T, search stubSearcher, docs stubHydrator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fallback := embed.NewFallback(8)
	p, err := pipeline.New(pipeline.Deps{
		Log:              mustTestLogger(t),
		Embedder:         fallback,
		FallbackEmbedder: fallback,
		Search:           search,
		Documents:        docs,
		Synth:            stubSynth{},
		DefaultLimit:     6,
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}

	h := NewChatHandler(p, mustTestLogger(t))
	r := gin.New()
	r.POST("/api/chat", h.Chat)
	r.GET("/api/examples", h.Examples)
	return r
}

func doChat(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChatSuccess(t *testing.T) {
	id := uuid.New()
	topic := "rag-pipeline"
	r := newTestRouter(t,
		stubSearcher{candidates: []domain.Candidate{{DocumentID: id.String(), Score: 0.9}}},
		stubHydrator{chunks: []domain.ContentChunk{{
			ID:              id,
			AssignmentTitle: "Введение в RAG",
			Topic:           &topic,
			Content:         "RAG объединяет поиск и генерацию.",
			Score:           0.9,
		}}},
	)

	w := doChat(t, r, `{"message": "Как работает RAG?", "limit": 3}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", w.Code, w.Body.String())
	}

	var resp domain.ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Sources) != 1 {
		t.Fatalf("sources: want=1 got=%d", len(resp.Sources))
	}
	if !strings.Contains(resp.Answer, "Как работает RAG?") {
		t.Fatalf("answer missing question: %s", resp.Answer)
	}
}

func TestChatNotFound(t *testing.T) {
	r := newTestRouter(t, stubSearcher{}, stubHydrator{})

	w := doChat(t, r, `{"message": "неизвестная тема"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: want=404 got=%d body=%s", w.Code, w.Body.String())
	}
	var envelope ErrorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("code: want=not_found got=%q", envelope.Error.Code)
	}
}

func TestChatNoMatch(t *testing.T) {
	r := newTestRouter(t,
		stubSearcher{candidates: []domain.Candidate{{DocumentID: "not-a-uuid", Score: 0.9}}},
		stubHydrator{},
	)

	w := doChat(t, r, `{"message": "вопрос"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: want=404 got=%d body=%s", w.Code, w.Body.String())
	}
	var envelope ErrorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error.Code != "no_match" {
		t.Fatalf("code: want=no_match got=%q", envelope.Error.Code)
	}
}

func TestChatValidation(t *testing.T) {
	r := newTestRouter(t, stubSearcher{}, stubHydrator{})

	if w := doChat(t, r, `{"message": "   "}`); w.Code != http.StatusBadRequest {
		t.Fatalf("blank message status: want=400 got=%d", w.Code)
	}
	if w := doChat(t, r, `{"message": "вопрос", "limit": 99}`); w.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range limit status: want=400 got=%d", w.Code)
	}
	if w := doChat(t, r, `{not json`); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status: want=400 got=%d", w.Code)
	}
}

func TestExamplesEndpoint(t *testing.T) {
	r := newTestRouter(t, stubSearcher{}, stubHydrator{})

	req := httptest.NewRequest(http.MethodGet, "/api/examples", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", w.Code)
	}

	var resp struct {
		Examples []string `json:"examples"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Examples) != 3 {
		t.Fatalf("examples: want=3 got=%d", len(resp.Examples))
	}
}
