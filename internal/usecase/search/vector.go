package search

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/adoptapet/internal/domain"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/kind"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/request"
)

// buildVector embeds the query once, bounded by the embed timeout.
// The returned vector is unit length and has the index dimension.
func (s *Service) buildVector(ctx context.Context, q *request.Query) ([]float32, error) {
	if s.cfg.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.EmbedTimeout)
		defer cancel()
	}

	var (
		res domain.EmbeddingResult
		err error
	)
	switch q.Kind() {
	case kind.Text:
		res, err = s.embed.EmbedText(ctx, q.Text())
	case kind.Image:
		res, err = s.embed.EmbedImage(ctx, q.Image())
	default:
		return nil, fmt.Errorf("%w: unsupported query kind %q", domain.ErrInvalidRequest, q.Kind())
	}
	if err != nil {
		return nil, fmt.Errorf("vectorize %s query: %w", q.Kind(), err)
	}

	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)

	if err := domain.ValidateVector(res.Embedding, s.dim); err != nil {
		return nil, fmt.Errorf("vectorize %s query: %w: %w", q.Kind(), domain.ErrEmbeddingProviderError, err)
	}
	if !domain.IsUnit(res.Embedding) {
		return domain.Normalize(res.Embedding), nil
	}
	return res.Embedding, nil
}
