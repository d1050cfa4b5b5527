package search

import (
	"context"

	"github.com/kailas-cloud/adoptapet/internal/domain"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/knn"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/result"
)

// Repository defines the storage contract for search operations.
type Repository interface {
	// Search returns hits best first and the number of raw candidates considered.
	Search(ctx context.Context, req knn.Request) ([]result.ScoredItem, int, error)
}

// Embedder vectorizes text and images into the shared embedding space.
type Embedder interface {
	EmbedText(ctx context.Context, text string) (domain.EmbeddingResult, error)
	EmbedImage(ctx context.Context, image []byte) (domain.EmbeddingResult, error)
}
