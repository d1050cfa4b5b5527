package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/adoptapet/internal/domain"
	"github.com/kailas-cloud/adoptapet/internal/metrics"
)

// Embedder is a cross-modal embedding provider behind an OpenAI-compatible /embeddings API
// (e.g. a CLIP server). Text goes in as a string, images as a JPEG data URI.
type Embedder struct {
	client     *openai.Client
	textModel  openai.EmbeddingModel
	imageModel openai.EmbeddingModel
	dimensions int
	imageSize  int
	user       string
	provider   string
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	TextModel  string
	ImageModel string
	Dimensions int
	ImageSize  int
	User       string
	Provider   string
	Logger     *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
// An empty ImageModel reuses TextModel, as CLIP serves both towers under one name.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	imageModel := cfg.ImageModel
	if imageModel == "" {
		imageModel = cfg.TextModel
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		textModel:  openai.EmbeddingModel(cfg.TextModel),
		imageModel: openai.EmbeddingModel(imageModel),
		dimensions: cfg.Dimensions,
		imageSize:  cfg.ImageSize,
		user:       cfg.User,
		provider:   cfg.Provider,
		logger:     cfg.Logger,
	}
}

// EmbedText implements domain.TextEmbedder. Blank text fails with domain.ErrEncoding.
func (e *Embedder) EmbedText(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: text is empty", domain.ErrEncoding)
	}
	return e.embed(ctx, "text", e.textModel, text)
}

// EmbedImage implements domain.ImageEmbedder. Undecodable bytes fail with domain.ErrEncoding
// before any request is made.
func (e *Embedder) EmbedImage(ctx context.Context, image []byte) (domain.EmbeddingResult, error) {
	metrics.EmbeddingImageBytes.Observe(float64(len(image)))
	uri, err := prepareImage(image, e.imageSize)
	if err != nil {
		metrics.ObserveEmbedding(e.provider, string(e.imageModel), "image", metrics.EmbeddingBadImage, 0)
		return domain.EmbeddingResult{}, err
	}
	return e.embed(ctx, "image", e.imageModel, uri)
}

// embed performs one request and returns an L2-normalized vector with transport-level metrics.
func (e *Embedder) embed(
	ctx context.Context, modality string, model openai.EmbeddingModel, input string,
) (domain.EmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{input},
		Model:          model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	observe := func(status string) {
		metrics.ObserveEmbedding(e.provider, string(model), modality, status, duration)
	}

	if err != nil {
		observe(metrics.EmbeddingAPIError)
		e.logger.Warn("Embedding request failed",
			zap.String("modality", modality), zap.Duration("duration", duration), zap.Error(err))
		return domain.EmbeddingResult{}, parseAPIError(err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		observe(metrics.EmbeddingEmptyResponse)
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}

	vec := resp.Data[0].Embedding
	if e.dimensions > 0 && len(vec) != e.dimensions {
		observe(metrics.EmbeddingDimensionMismatch)
		return domain.EmbeddingResult{}, fmt.Errorf("got %d dimensions, want %d: %w: %w",
			len(vec), e.dimensions, domain.ErrVectorDimMismatch, domain.ErrEmbeddingProviderError)
	}

	observe(metrics.EmbeddingSuccess)
	totalTokens := resp.Usage.TotalTokens
	promptTokens := resp.Usage.PromptTokens
	metrics.AddEmbeddingTokens(e.provider, string(model), promptTokens, totalTokens)

	return domain.EmbeddingResult{
		Embedding:    domain.Normalize(vec),
		PromptTokens: promptTokens,
		TotalTokens:  totalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors wrap domain.ErrEmbeddingProviderError; 400/422 replies also wrap
// domain.ErrEncoding because the provider refused the input itself.
func parseAPIError(err error) error {
	wrap := domain.ErrEmbeddingProviderError

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return statusError(reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %w: %w", wrap, err)
}

func statusError(status int, detail string, wrap error) error {
	if status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
		return fmt.Errorf("embedding API error %d: %s: %w: %w", status, detail, domain.ErrEncoding, wrap)
	}
	return fmt.Errorf("embedding API error %d: %s: %w", status, detail, wrap)
}

// extractDetail extracts the "detail" field from a JSON error body (FastAPI error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
