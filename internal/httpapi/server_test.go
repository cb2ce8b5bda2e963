package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studyrag/internal/assembler"
	"studyrag/internal/domain"
	"studyrag/internal/generation"
	"studyrag/internal/service"
)

type stubService struct {
	answer    service.Answer
	askErr    error
	lastQ     service.Question
	report    service.LoadReport
	loadErr   error
	corpora   []service.CorpusInfo
	summaries []service.Summary
	deck      service.Deck
	deckErr   error
	panicOn   bool
}

func (s *stubService) Ask(_ context.Context, q service.Question) (service.Answer, error) {
	if s.panicOn {
		panic("boom")
	}
	s.lastQ = q
	return s.answer, s.askErr
}

func (s *stubService) LoadDocuments(context.Context, []string) (service.LoadReport, error) {
	return s.report, s.loadErr
}

func (s *stubService) Corpora() []service.CorpusInfo { return s.corpora }

func (s *stubService) Summaries() ([]service.Summary, error) { return s.summaries, nil }

func (s *stubService) Flashcards(context.Context, []string, string) (service.Deck, error) {
	return s.deck, s.deckErr
}

func do(t *testing.T, svc Service, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rr := httptest.NewRecorder()
	NewServer(svc, zap.NewNop()).Routes().ServeHTTP(rr, httptest.NewRequest(method, path, &buf))
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func TestAsk_OK(t *testing.T) {
	svc := &stubService{answer: service.Answer{
		Prompt: assembler.Prompt{
			Text:   "search results: ...",
			Chunks: []domain.Chunk{{DocumentID: "notes.pdf", PageNumber: 4, Text: "entropy rises"}},
		},
		Result: generation.Result{Text: "Entropy rises [Page no. 4]."},
	}}

	rr := do(t, svc, http.MethodPost, "/v1/ask", askRequest{Question: "entropy?", Context: "PHY102", ImagePath: "fig.png"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	resp := decodeBody[askResponse](t, rr)
	assert.Equal(t, "Entropy rises [Page no. 4].", resp.Answer)
	assert.Equal(t, []chunkResponse{{Document: "notes.pdf", Page: 4, Text: "entropy rises"}}, resp.Chunks)
	assert.Empty(t, resp.Error)
	assert.Equal(t, service.Question{Text: "entropy?", Context: "PHY102", ImagePath: "fig.png"}, svc.lastQ)
}

func TestAsk_GenerationFailureKeepsPrompt(t *testing.T) {
	svc := &stubService{answer: service.Answer{
		Prompt: assembler.Prompt{Text: "the prompt"},
		Result: generation.Result{Err: &generation.Error{Provider: "openai", Err: errors.New("quota")}},
	}}

	rr := do(t, svc, http.MethodPost, "/v1/ask", askRequest{Question: "q"})
	require.Equal(t, http.StatusBadGateway, rr.Code)
	resp := decodeBody[askResponse](t, rr)
	assert.Equal(t, "the prompt", resp.Prompt)
	assert.Contains(t, resp.Error, "quota")
}

func TestAsk_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"no results", domain.ErrNoResults, http.StatusNotFound, "no_results"},
		{"embedding", fmt.Errorf("query a.pdf: %w", domain.ErrEmbeddingService), http.StatusBadGateway, "embedding_service_error"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, &stubService{askErr: tt.err}, http.MethodPost, "/v1/ask", askRequest{Question: "q"})
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.code, decodeBody[errorResponse](t, rr).Code)
		})
	}
}

func TestAsk_Validation(t *testing.T) {
	rr := do(t, &stubService{}, http.MethodPost, "/v1/ask", askRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	NewServer(&stubService{}, nil).Routes().ServeHTTP(rr,
		httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewBufferString("{not json")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "bad_request", decodeBody[errorResponse](t, rr).Code)
}

func TestLoadCorpora(t *testing.T) {
	svc := &stubService{report: service.LoadReport{
		Loaded: []service.Loaded{
			{ID: "a.txt", Kind: domain.KindFlatText, Pages: 1, Chunks: 3},
			{ID: "b.txt", Kind: domain.KindFlatText, Pages: 1, Warning: domain.ErrEmptyCorpus},
		},
		Failed: []service.Failure{{Path: "c.pptx", Err: domain.ErrUnsupportedFormat}},
	}}

	rr := do(t, svc, http.MethodPost, "/v1/corpora", loadRequest{Paths: []string{"*.txt", "c.pptx"}})
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeBody[loadResponse](t, rr)
	require.Len(t, resp.Loaded, 2)
	assert.Equal(t, "empty corpus", resp.Loaded[1].Warning)
	assert.Equal(t, []failureResponse{{Path: "c.pptx", Error: "unsupported format"}}, resp.Failed)
}

func TestLoadCorpora_NothingLoaded(t *testing.T) {
	svc := &stubService{
		report:  service.LoadReport{Failed: []service.Failure{{Path: "c.pptx", Err: domain.ErrUnsupportedFormat}}},
		loadErr: domain.ErrUnsupportedFormat,
	}
	rr := do(t, svc, http.MethodPost, "/v1/corpora", loadRequest{Paths: []string{"c.pptx"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, svc, http.MethodPost, "/v1/corpora", loadRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListCorporaAndHealth(t *testing.T) {
	svc := &stubService{corpora: []service.CorpusInfo{{ID: "a.txt", Chunks: 3}}}

	rr := do(t, svc, http.MethodGet, "/v1/corpora", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"id":"a.txt","chunks":3}]`, rr.Body.String())

	rr = do(t, svc, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","corpora":1}`, rr.Body.String())
}

func TestSummaries(t *testing.T) {
	svc := &stubService{summaries: []service.Summary{{ID: "a.txt", Text: "Trees are graphs."}}}
	rr := do(t, svc, http.MethodGet, "/v1/summaries", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"id":"a.txt","summary":"Trees are graphs."}]`, rr.Body.String())
}

func TestFlashcards(t *testing.T) {
	svc := &stubService{deck: service.Deck{Flashcards: []service.Flashcard{{Question: "Q", Answer: "A"}}}}
	rr := do(t, svc, http.MethodPost, "/v1/flashcards", flashcardsRequest{Paths: []string{"a.txt"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"flashcards":[{"question":"Q","answer":"A"}]}`, rr.Body.String())

	svc.deckErr = fmt.Errorf("parse: %w", domain.ErrMalformedFlashcards)
	rr = do(t, svc, http.MethodPost, "/v1/flashcards", flashcardsRequest{Paths: []string{"a.txt"}})
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "malformed_flashcards", decodeBody[errorResponse](t, rr).Code)
}

func TestRecoverer(t *testing.T) {
	rr := do(t, &stubService{panicOn: true}, http.MethodPost, "/v1/ask", askRequest{Question: "q"})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "internal_error", decodeBody[errorResponse](t, rr).Code)
}

func TestRequestIDPropagated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	req.Header.Set("X-Request-ID", "req-42")
	rr := httptest.NewRecorder()
	NewServer(&stubService{}, nil).Routes().ServeHTTP(rr, req)
	assert.Equal(t, "req-42", rr.Header().Get("X-Request-ID"))
}
