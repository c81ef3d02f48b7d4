package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

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

func newTestClient(t *testing.T, handler http.Handler, dim int) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(mustTestLogger(t), Config{
		URL:        srv.URL,
		Collection: "course_materials",
		VectorDim:  dim,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func vectorOf(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = 0.5
	}
	return v
}

func TestSearchDecodesCandidates(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/course_materials/points/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Vector      []float32 `json:"vector"`
			Limit       int       `json:"limit"`
			WithPayload bool      `json:"with_payload"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(body.Vector) != 4 || body.Limit != 3 || !body.WithPayload {
			t.Errorf("unexpected request body: %+v", body)
		}
		fmt.Fprint(w, `{
			"result": [
				{"id": "p1", "score": 0.92, "payload": {"document_id": "doc-1", "topic": "rag-pipeline", "source": "lectures/rag.md"}},
				{"id": "p2", "score": 0.80, "payload": {"document_id": "doc-2"}},
				{"id": "p3", "score": 0.50, "payload": {}}
			],
			"status": "ok",
			"time": 0.001
		}`)
	})
	client := newTestClient(t, handler, 4)

	got, err := client.Search(context.Background(), vectorOf(4), 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("candidates: want=3 got=%d", len(got))
	}
	if got[0].DocumentID != "doc-1" || got[0].Topic != "rag-pipeline" || got[0].Score != 0.92 {
		t.Fatalf("first candidate: %+v", got[0])
	}
	// Missing payload keys surface as empty strings, not errors.
	if got[2].DocumentID != "" {
		t.Fatalf("empty payload should yield empty document id: %+v", got[2])
	}
}

func TestSearchEmptyResult(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"result": [], "status": "ok", "time": 0.001}`)
	})
	client := newTestClient(t, handler, 4)

	got, err := client.Search(context.Background(), vectorOf(4), 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("want empty result, got %+v", got)
	}
}

func TestSearchDimensionValidation(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Errorf("request must not reach the server")
	}), 8)

	_, err := client.Search(context.Background(), vectorOf(4), 5)
	var operr *OperationError
	if !errors.As(err, &operr) || operr.Code != OperationErrorValidation {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestSearchEnvelopeStatusError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"result": null, "status": {"error": "collection not loaded"}, "time": 0.001}`)
	})
	client := newTestClient(t, handler, 4)

	_, err := client.Search(context.Background(), vectorOf(4), 5)
	var operr *OperationError
	if !errors.As(err, &operr) || operr.Code != OperationErrorQueryFailed {
		t.Fatalf("want query failure, got %v", err)
	}
}

func TestVerifyReadyDimensionMismatch(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/readyz":
			w.WriteHeader(http.StatusOK)
		case "/collections/course_materials":
			fmt.Fprint(w, `{"result": {"config": {"params": {"vectors": {"size": 768, "distance": "Cosine"}}}}, "status": "ok", "time": 0.001}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	client := newTestClient(t, handler, 384)

	err := client.VerifyReady(context.Background())
	var operr *OperationError
	if !errors.As(err, &operr) || operr.Code != OperationErrorValidation {
		t.Fatalf("want validation error for size mismatch, got %v", err)
	}
}

func TestVerifyReadyPicksUpDistance(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/readyz":
			w.WriteHeader(http.StatusOK)
		case "/collections/course_materials":
			fmt.Fprint(w, `{"result": {"config": {"params": {"vectors": {"size": 4, "distance": "Euclid"}}}}, "status": "ok", "time": 0.001}`)
		case "/collections/course_materials/points/search":
			fmt.Fprint(w, `{"result": [{"id": "p1", "score": 3.0, "payload": {"document_id": "doc-1"}}], "status": "ok", "time": 0.001}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	client := newTestClient(t, handler, 4)

	if err := client.VerifyReady(context.Background()); err != nil {
		t.Fatalf("VerifyReady: %v", err)
	}
	got, err := client.Search(context.Background(), vectorOf(4), 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// Euclid distances are folded into a descending-is-better score.
	if want := 1.0 / 4.0; got[0].Score != want {
		t.Fatalf("normalized score: want=%v got=%v", want, got[0].Score)
	}
}

func TestEnsureCollectionCreatesOnMissing(t *testing.T) {
	var created bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/course_materials" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"status": {"error": "not found"}, "time": 0.001}`)
		case http.MethodPut:
			var body struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode create request: %v", err)
			}
			if body.Vectors.Size != 384 || body.Vectors.Distance != "Cosine" {
				t.Errorf("unexpected create request: %+v", body)
			}
			created = true
			fmt.Fprint(w, `{"result": true, "status": "ok", "time": 0.001}`)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})
	client := newTestClient(t, handler, 384)

	if err := client.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if !created {
		t.Fatalf("collection was not created")
	}
}

func TestUpsertValidatesPoints(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Errorf("request must not reach the server")
	}), 4)

	err := client.Upsert(context.Background(), []Point{{ID: "p1", Vector: vectorOf(3)}})
	var operr *OperationError
	if !errors.As(err, &operr) || operr.Code != OperationErrorValidation {
		t.Fatalf("want validation error, got %v", err)
	}

	if err := client.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("empty upsert should be a no-op, got %v", err)
	}
}
