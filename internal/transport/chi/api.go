package chi

import (
	"github.com/kailas-cloud/adoptapet/internal/domain/pet"
)

// ErrorCode is a machine-readable error code.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest             ErrorCode = "bad_request"
	ErrorCodeEmptyQuery             ErrorCode = "empty_query"
	ErrorCodeEncodingFailed         ErrorCode = "encoding_failed"
	ErrorCodeValidationFailed       ErrorCode = "validation_failed"
	ErrorCodeVectorDimMismatch      ErrorCode = "vector_dim_mismatch"
	ErrorCodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	ErrorCodeIndexUnavailable       ErrorCode = "index_unavailable"
	ErrorCodeSearchFailed           ErrorCode = "search_failed"
	ErrorCodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SearchResultItem is one hit with its match explanation.
type SearchResultItem struct {
	Pet         pet.Pet `json:"pet"`
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

// SearchResponse is the body of both search endpoints.
type SearchResponse struct {
	SearchID         string             `json:"search_id"`
	Query            string             `json:"query"`
	QueryType        string             `json:"query_type"`
	Listings         []SearchResultItem `json:"listings"`
	Images           []SearchResultItem `json:"images"`
	TotalHits        int                `json:"total_hits"`
	SearchTimeMs     float64            `json:"search_time_ms"`
	Degraded         bool               `json:"degraded"`
	FailedPartitions []string           `json:"failed_partitions,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
