// Package httpapi exposes a study session over a JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"studyrag/internal/domain"
	"studyrag/internal/logger"
	"studyrag/internal/metrics"
	"studyrag/internal/service"
)

// Service is the part of a study session the API serves.
type Service interface {
	Ask(ctx context.Context, q service.Question) (service.Answer, error)
	LoadDocuments(ctx context.Context, patterns []string) (service.LoadReport, error)
	Corpora() []service.CorpusInfo
	Summaries() ([]service.Summary, error)
	Flashcards(ctx context.Context, paths []string, studentContext string) (service.Deck, error)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server routes API requests to a Service.
type Server struct {
	svc           Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an API server.
func NewServer(svc Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		svc:    svc,
		logger: logger,
		errorHandlers: []errorHandler{
			sentinelHandler(domain.ErrNoResults, http.StatusNotFound, "no_results"),
			sentinelHandler(domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, "unsupported_format"),
			sentinelHandler(domain.ErrEmbeddingService, http.StatusBadGateway, "embedding_service_error"),
			sentinelHandler(domain.ErrGenerationService, http.StatusBadGateway, "generation_service_error"),
			sentinelHandler(domain.ErrMalformedFlashcards, http.StatusBadGateway, "malformed_flashcards"),
		},
	}
}

// Routes builds the chi router with recovery, request logging and metrics.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(requestLogger(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/ask", s.ask)
		r.Get("/corpora", s.listCorpora)
		r.Post("/corpora", s.loadCorpora)
		r.Get("/summaries", s.summaries)
		r.Post("/flashcards", s.flashcards)
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type askRequest struct {
	Question  string `json:"question"`
	Context   string `json:"context"`
	ImagePath string `json:"image_path"`
}

type chunkResponse struct {
	Document string `json:"document"`
	Page     int    `json:"page"`
	Text     string `json:"text"`
}

type askResponse struct {
	Answer string          `json:"answer,omitempty"`
	Prompt string          `json:"prompt"`
	Chunks []chunkResponse `json:"chunks"`
	Error  string          `json:"error,omitempty"`
}

type loadRequest struct {
	Paths []string `json:"paths"`
}

type loadedResponse struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Pages   int    `json:"pages"`
	Chunks  int    `json:"chunks"`
	Warning string `json:"warning,omitempty"`
}

type failureResponse struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type loadResponse struct {
	Loaded []loadedResponse  `json:"loaded"`
	Failed []failureResponse `json:"failed"`
}

type summaryResponse struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
}

type flashcardsRequest struct {
	Paths   []string `json:"paths"`
	Context string   `json:"context"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"corpora": len(s.svc.Corpora()),
	})
}

// ask handles POST /v1/ask. A generation failure is reported as 502 with the
// assembled prompt, so the client can resubmit it.
func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "question is required")
		return
	}

	ans, err := s.svc.Ask(r.Context(), service.Question{
		Text:      req.Question,
		Context:   req.Context,
		ImagePath: req.ImagePath,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := askResponse{
		Answer: ans.Result.Text,
		Prompt: ans.Prompt.Text,
		Chunks: make([]chunkResponse, len(ans.Prompt.Chunks)),
	}
	for i, c := range ans.Prompt.Chunks {
		resp.Chunks[i] = chunkResponse{Document: c.DocumentID, Page: c.PageNumber, Text: c.Text}
	}
	if !ans.Result.OK() {
		logger.FromContext(r.Context()).Warn("Generation failed", zap.Error(ans.Result.Err))
		resp.Error = ans.Result.Err.Error()
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listCorpora(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Corpora())
}

// loadCorpora handles POST /v1/corpora. Partial failures are listed in the
// response; if nothing loaded the status is 422.
func (s *Server) loadCorpora(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Paths) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "paths are required")
		return
	}

	report, err := s.svc.LoadDocuments(r.Context(), req.Paths)
	if err != nil && len(report.Failed) == 0 {
		s.handleDomainError(w, r, err)
		return
	}

	resp := loadResponse{
		Loaded: make([]loadedResponse, len(report.Loaded)),
		Failed: make([]failureResponse, len(report.Failed)),
	}
	for i, l := range report.Loaded {
		resp.Loaded[i] = loadedResponse{ID: l.ID, Kind: string(l.Kind), Pages: l.Pages, Chunks: l.Chunks}
		if l.Warning != nil {
			resp.Loaded[i].Warning = l.Warning.Error()
		}
	}
	for i, f := range report.Failed {
		resp.Failed[i] = failureResponse{Path: f.Path, Error: f.Err.Error()}
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

func (s *Server) summaries(w http.ResponseWriter, r *http.Request) {
	sums, err := s.svc.Summaries()
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	resp := make([]summaryResponse, len(sums))
	for i, sum := range sums {
		resp[i] = summaryResponse{ID: sum.ID, Summary: sum.Text}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) flashcards(w http.ResponseWriter, r *http.Request) {
	var req flashcardsRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Paths) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "paths are required")
		return
	}
	deck, err := s.svc.Flashcards(r.Context(), req.Paths, req.Context)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deck)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

// requestLogger tags each request with an ID, places a request-scoped logger
// in the context and emits one log line per request.
func requestLogger(base *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)

			reqLogger := base.With(zap.String("request_id", requestID))
			ctx := logger.ContextWithLogger(r.Context(), reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
			)
		})
	}
}

// jsonRecoverer returns JSON instead of a plain text stacktrace on panic.
func jsonRecoverer(log *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					log.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
