package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"researchgraph/internal/rag"
)

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Error map[string]any `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func TestWriteDomainErrNotFound(t *testing.T) {
	s := &Server{log: zap.NewNop()}
	rec := httptest.NewRecorder()
	s.writeDomainErr(rec, &rag.NotFoundError{Resource: "paper", ID: "x", Reason: "paper does not exist"})

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	e := decodeErrorBody(t, rec)
	if e["code"] != "RG-API-4004" {
		t.Fatalf("code = %v", e["code"])
	}
	if e["message"] != "Requested paper was not found." {
		t.Fatalf("message = %v", e["message"])
	}
}

func TestWriteDomainErrRateLimited(t *testing.T) {
	s := &Server{log: zap.NewNop()}
	rec := httptest.NewRecorder()
	s.writeDomainErr(rec, &rag.RateLimitedError{RetryAfter: 60 * time.Second})

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	e := decodeErrorBody(t, rec)
	if e["code"] != "RG-API-4029" {
		t.Fatalf("code = %v", e["code"])
	}
	if e["retry_after_seconds"] != float64(60) {
		t.Fatalf("retry_after_seconds = %v", e["retry_after_seconds"])
	}
}

func TestWriteDomainErrUpstream(t *testing.T) {
	s := &Server{log: zap.NewNop()}
	rec := httptest.NewRecorder()
	s.writeDomainErr(rec, &rag.UpstreamError{Op: "generate", Err: errors.New("boom")})

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	e := decodeErrorBody(t, rec)
	if e["code"] != "RG-API-5020" {
		t.Fatalf("code = %v", e["code"])
	}
}

func TestWriteDomainErrEmptyQuestion(t *testing.T) {
	s := &Server{log: zap.NewNop()}
	rec := httptest.NewRecorder()
	s.writeDomainErr(rec, rag.ErrEmptyQuestion)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	e := decodeErrorBody(t, rec)
	if e["message"] != "Question must not be empty." {
		t.Fatalf("message = %v", e["message"])
	}
}

func TestToAPIErrorDBDown(t *testing.T) {
	got := toAPIError(http.StatusInternalServerError, errors.New("dial tcp 127.0.0.1:5432: connection refused"))
	if got.Code != "RG-DB-5002" {
		t.Fatalf("code = %q", got.Code)
	}
}

func TestToAPIErrorSchemaMissing(t *testing.T) {
	got := toAPIError(http.StatusInternalServerError, errors.New(`relation "papers" does not exist`))
	if got.Code != "RG-DB-5001" {
		t.Fatalf("code = %q", got.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := withCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/chat", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS headers")
	}
}
