package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferd/internal/manager"
	"inferd/internal/memtrack"
	"inferd/internal/multipart"
	"inferd/pkg/types"
)

// EmbeddingService defines the embedding operations required by the HTTP layer.
type EmbeddingService interface {
	EncodeSingle(ctx context.Context, text string) ([]float32, error)
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
	Dimensions() int
	Ready() bool
}

// TranscriptionService defines the transcription operations required by the HTTP layer.
type TranscriptionService interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
	Available() bool
}

type server struct {
	emb     EmbeddingService
	tr      TranscriptionService
	tracker *memtrack.Tracker
}

// NewMux builds the request dispatcher: exact method+path routing over the
// fixed endpoint set, JSON errors for unknown routes and method mismatches,
// and panic recovery at the mux boundary.
func NewMux(emb EmbeddingService, tr TranscriptionService, sampler memtrack.Sampler) http.Handler {
	s := &server{emb: emb, tr: tr, tracker: memtrack.New(sampler)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(recovererJSON)
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Post("/embed_single", s.handleEmbedSingle)
	r.Post("/embed", s.handleEmbed)
	r.Post("/transcribe", s.handleTranscribe)

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// recovererJSON converts handler panics into the uniform 500 JSON body
// instead of chi's plain-text response. No stack trace reaches the client.
func recovererJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				if zlog != nil {
					zlog.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
				}
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	// No wrapped operation, so no before-sample and no delta.
	sample := s.tracker.Measure()
	ObserveProcessMemory(sample.ProcessRSSMB)
	resp := types.HealthResponse{
		Status:                 "healthy",
		Model:                  s.emb.ModelName(),
		Dimensions:             s.emb.Dimensions(),
		TranscriptionAvailable: s.tr.Available(),
		Memory:                 memtrack.Report(nil, sample),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleEmbedSingle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req types.EmbedSingleRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeServiceError(w, r, errValidation("text is required"), start, memtrack.Sample{})
		return
	}

	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	var embedding []float32
	before, after, err := s.tracker.Wrap(func() error {
		var opErr error
		embedding, opErr = s.emb.EncodeSingle(ctx, req.Text)
		return opErr
	})
	ObserveProcessMemory(after.ProcessRSSMB)
	if err != nil {
		s.writeServiceError(w, r, err, start, after)
		return
	}
	writeJSON(w, http.StatusOK, types.EmbedSingleResponse{
		Embedding:  embedding,
		Dimensions: len(embedding),
		Memory:     memtrack.Report(&before, after),
	})
	logRequestEnd(r, http.StatusOK, start, after.ProcessRSSMB, nil)
}

func (s *server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req types.EmbedRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if len(req.Texts) == 0 {
		s.writeServiceError(w, r, errValidation("texts is required and must be non-empty"), start, memtrack.Sample{})
		return
	}

	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	var embeddings [][]float32
	before, after, err := s.tracker.Wrap(func() error {
		var opErr error
		embeddings, opErr = s.emb.EncodeBatch(ctx, req.Texts)
		return opErr
	})
	ObserveProcessMemory(after.ProcessRSSMB)
	if err != nil {
		s.writeServiceError(w, r, err, start, after)
		return
	}
	writeJSON(w, http.StatusOK, types.EmbedResponse{
		Embeddings: embeddings,
		Dimensions: len(embeddings[0]),
		Count:      len(embeddings),
		Memory:     memtrack.Report(&before, after),
	})
	logRequestEnd(r, http.StatusOK, start, after.ProcessRSSMB, nil)
}

func (s *server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !s.tr.Available() {
		s.writeServiceError(w, r, manager.ErrModelUnavailable("transcription backend not available"), start, memtrack.Sample{})
		return
	}
	boundary, err := multipart.Boundary(r.Header.Get("Content-Type"))
	if err != nil {
		s.writeServiceError(w, r, err, start, memtrack.Sample{})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeServiceError(w, r, errValidation("failed to read request body"), start, memtrack.Sample{})
		return
	}
	if len(body) == 0 {
		s.writeServiceError(w, r, errValidation("no content provided"), start, memtrack.Sample{})
		return
	}
	parts, err := multipart.Parse(body, boundary)
	if err != nil {
		s.writeServiceError(w, r, err, start, memtrack.Sample{})
		return
	}
	audio, ok := multipart.Lookup(parts, "audio")
	if !ok {
		s.writeServiceError(w, r, errValidation("no 'audio' file provided in form data"), start, memtrack.Sample{})
		return
	}
	if len(audio.Body) == 0 {
		s.writeServiceError(w, r, errValidation("audio file is empty"), start, memtrack.Sample{})
		return
	}
	if audio.Filename == "" {
		s.writeServiceError(w, r, errValidation("no file uploaded"), start, memtrack.Sample{})
		return
	}

	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	var text string
	before, after, err := s.tracker.Wrap(func() error {
		var opErr error
		text, opErr = s.tr.Transcribe(ctx, audio.Body, audio.Filename)
		return opErr
	})
	ObserveProcessMemory(after.ProcessRSSMB)
	if err != nil {
		s.writeServiceError(w, r, err, start, after)
		return
	}
	writeJSON(w, http.StatusOK, types.TranscribeResponse{
		Transcription: text,
		Filename:      audio.Filename,
		Memory:        memtrack.Report(&before, after),
	})
	logRequestEnd(r, http.StatusOK, start, after.ProcessRSSMB, nil)
}

// writeServiceError maps service errors onto the fixed taxonomy: 503 for an
// unavailable model, 429 for backpressure, the carried code for typed HTTP
// errors, and a generic 500 for everything else (no internals leaked).
func (s *server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, start time.Time, after memtrack.Sample) {
	status := http.StatusInternalServerError
	msg := "internal server error"
	switch {
	case manager.IsModelUnavailable(err):
		status = http.StatusServiceUnavailable
		msg = err.Error()
	case manager.IsTooBusy(err):
		status = http.StatusTooManyRequests
		msg = err.Error()
		IncrementBackpressure(routePatternOrPath(r))
	case multipart.IsMalformedBody(err):
		status = http.StatusBadRequest
		msg = err.Error()
	default:
		if he, ok := err.(HTTPError); ok {
			status = he.StatusCode()
			msg = he.Error()
		}
	}
	if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
		// Client went away or the server is shutting down; nothing to write.
		return
	}
	writeJSONError(w, status, msg)
	logRequestEnd(r, status, start, after.ProcessRSSMB, err)
}

// decodeJSONBody enforces the JSON content type and size limit, decoding
// into dst. It writes the error response itself and reports success.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		// Covers wrong-typed fields and oversized bodies; no size details leak.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Error().Err(err).Msg("failed to encode response")
	}
}
