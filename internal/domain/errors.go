package domain

import "errors"

var (
	// ErrEncoding signals input the embedding provider cannot encode (empty text, corrupt image).
	ErrEncoding = errors.New("encoding error")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidRequest signals a request the vector index rejects; never retried.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrIndexUnavailable signals a transient vector index failure; retryable.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrPartialResult signals that some partitions failed while others succeeded.
	ErrPartialResult = errors.New("partial result")
	// ErrTotalFailure signals that every fetch task failed.
	ErrTotalFailure = errors.New("total failure")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidItem signals an item that violates the stored-item invariants.
	ErrInvalidItem = errors.New("invalid item")
)
