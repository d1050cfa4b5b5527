package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/adoptapet/internal/domain"
)

// InstrumentedEmbedder wraps Embedder with per-call logging.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai,
// cache metrics in repository/embcache.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder with observability.
func NewInstrumentedEmbedder(inner domain.Embedder, provider, model string, logger *zap.Logger) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		logger:   logger,
	}
}

// EmbedText delegates to the inner embedder and logs the outcome.
func (p *InstrumentedEmbedder) EmbedText(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return p.observe("text", len(text), func() (domain.EmbeddingResult, error) {
		return p.inner.EmbedText(ctx, text)
	})
}

// EmbedImage delegates to the inner embedder and logs the outcome.
func (p *InstrumentedEmbedder) EmbedImage(ctx context.Context, image []byte) (domain.EmbeddingResult, error) {
	return p.observe("image", len(image), func() (domain.EmbeddingResult, error) {
		return p.inner.EmbedImage(ctx, image)
	})
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	hc, ok := p.inner.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding health check: %w", err)
	}
	return nil
}

func (p *InstrumentedEmbedder) observe(
	modality string, inputSize int, call func() (domain.EmbeddingResult, error),
) (domain.EmbeddingResult, error) {
	start := time.Now()

	result, err := call()

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.String("modality", modality),
			zap.Int("input_size", inputSize),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed %s: %w", modality, err)
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.String("modality", modality),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}
