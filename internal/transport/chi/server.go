package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/adoptapet/internal/domain"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/request"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/adoptapet/internal/logger"
	healthuc "github.com/kailas-cloud/adoptapet/internal/usecase/health"
)

// maxUploadMemory is the multipart memory budget; larger parts spill to disk.
const maxUploadMemory = 32 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the pet search JSON API.
type Server struct {
	search        Searcher
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		search: search,
		health: health,
		logger: logger,
	}
	// Order matters: a total failure caused by the embedding provider is a 502,
	// any other total failure a 503, before the generic validation sentinels.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEncoding, http.StatusBadRequest,
			ErrorCodeEncodingFailed, "The query could not be encoded"),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway,
			ErrorCodeEmbeddingProviderError, "Embedding provider error"),
		sentinelHandler(domain.ErrTotalFailure, http.StatusServiceUnavailable,
			ErrorCodeSearchFailed, "Search is temporarily unavailable"),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable,
			ErrorCodeIndexUnavailable, "Search index unavailable"),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout,
			ErrorCodeSearchFailed, "Search timed out"),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest,
			ErrorCodeVectorDimMismatch, "Vector dimension mismatch"),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest,
			ErrorCodeValidationFailed, "Invalid search request"),
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/api/search", s.SearchText)
	r.Post("/api/search/image", s.SearchImage)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// SearchText handles GET /api/search?q=&top_k=.
func (s *Server) SearchText(w http.ResponseWriter, r *http.Request) {
	var q string
	if err := runtime.BindQueryParameter("form", true, false, "q", r.URL.Query(), &q); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, fmt.Sprintf("Invalid format for parameter q: %s", err))
		return
	}
	topK, err := bindTopK(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}

	if strings.TrimSpace(q) == "" {
		writeError(w, http.StatusBadRequest, ErrorCodeEmptyQuery, request.EmptyQueryMessage)
		return
	}

	query, err := request.NewText(q, topK)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	s.runSearch(w, r, query)
}

// SearchImage handles POST /api/search/image (multipart: file, top_k).
func (s *Server) SearchImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, request.MaxImageSize+maxUploadMemory)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid multipart body: "+err.Error())
		return
	}

	topK, err := bindTopK(url.Values(r.MultipartForm.Value))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Image file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, request.MaxImageSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Failed to read image: "+err.Error())
		return
	}

	query, err := request.NewImage(data, header.Filename, topK)
	if err != nil {
		code := ErrorCodeValidationFailed
		if errors.Is(err, domain.ErrEncoding) {
			code = ErrorCodeEncodingFailed
		}
		writeError(w, http.StatusBadRequest, code, err.Error())
		return
	}

	s.runSearch(w, r, query)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, query request.Query) {
	ctx, usage := domain.NewContextWithUsage(r.Context())
	ctx = logpkg.With(ctx,
		zap.String("query_type", string(query.Kind())),
		zap.Int("top_k", query.TopK()),
	)
	resp, err := s.search.Search(ctx, query)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, searchResponseToAPI(resp))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// bindTopK reads the optional top_k parameter. Absent means the default.
func bindTopK(values url.Values) (int, error) {
	var topK *int
	if err := runtime.BindQueryParameter("form", true, false, "top_k", values, &topK); err != nil {
		return 0, fmt.Errorf("invalid format for parameter top_k: %w", err)
	}
	if topK == nil {
		return request.DefaultTopK, nil
	}
	if *topK < 1 || *topK > request.MaxTopK {
		return 0, fmt.Errorf("top_k must be between 1 and %d", request.MaxTopK)
	}
	return *topK, nil
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.Tokens()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func sentinelHandler(sentinel error, status int, code ErrorCode, msg string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func searchResponseToAPI(r *result.Response) SearchResponse {
	failed := make([]string, len(r.FailedPartitions))
	for i, p := range r.FailedPartitions {
		failed[i] = string(p)
	}
	return SearchResponse{
		SearchID:         r.SearchID,
		Query:            r.Query,
		QueryType:        string(r.Kind),
		Listings:         itemsToAPI(r.Listings),
		Images:           itemsToAPI(r.Images),
		TotalHits:        r.TotalCandidates,
		SearchTimeMs:     float64(r.Elapsed.Microseconds()) / 1000,
		Degraded:         r.Degraded,
		FailedPartitions: failed,
	}
}

func itemsToAPI(items []result.ScoredItem) []SearchResultItem {
	out := make([]SearchResultItem, len(items))
	for i, it := range items {
		out[i] = SearchResultItem{
			Pet:         it.Pet,
			Score:       it.Score,
			Explanation: it.Explanation(),
		}
	}
	return out
}
