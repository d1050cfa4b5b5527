package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/adoptapet/internal/db"
	"github.com/kailas-cloud/adoptapet/internal/domain"
)

func TestEmbedText_CacheMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestCachedEmbedder(t, inner)

	var setKey string
	var setTTL time.Duration
	ms.setFn = func(_ context.Context, key string, _ []byte, ttl time.Duration) error {
		setKey, setTTL = key, ttl
		return nil
	}

	result, err := ce.EmbedText(context.Background(), "fluffy cat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", result.Embedding)
	}
	if result.TotalTokens != 10 {
		t.Fatalf("expected TotalTokens=10, got %d", result.TotalTokens)
	}
	if !strings.HasPrefix(setKey, cacheKeyPrefix+"text:clip:") {
		t.Errorf("unexpected cache key %q", setKey)
	}
	if setTTL != time.Hour {
		t.Errorf("ttl = %v, want 1h", setTTL)
	}
}

func TestEmbedText_CacheHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	cached := vectorToCacheBytes([]float32{0.4, 0.5, 0.6})
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return cached, nil
	}

	result, err := ce.EmbedText(context.Background(), "fluffy cat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.4 {
		t.Fatalf("expected cached vector, got: %v", result.Embedding)
	}
	if result.TotalTokens != 0 {
		t.Fatalf("expected TotalTokens=0 on cache hit, got %d", result.TotalTokens)
	}
	if inner.textCalls != 0 {
		t.Errorf("inner embedder called %d times on hit", inner.textCalls)
	}
}

func TestEmbedImage_KeyedByModality(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	var keys []string
	ms.getFn = func(_ context.Context, key string) ([]byte, error) {
		keys = append(keys, key)
		return nil, db.ErrKeyNotFound
	}

	if _, err := ce.EmbedText(context.Background(), "abc"); err != nil {
		t.Fatal(err)
	}
	if _, err := ce.EmbedImage(context.Background(), []byte("abc")); err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] == keys[1] {
		t.Errorf("text and image with equal bytes must not share a key: %v", keys)
	}
	if inner.imageCalls != 1 {
		t.Errorf("image calls = %d", inner.imageCalls)
	}
}

func TestEmbedText_InnerErrorKeepsSentinel(t *testing.T) {
	inner := &mockEmbedder{err: domain.ErrEncoding}
	ce, _ := newTestCachedEmbedder(t, inner)

	_, err := ce.EmbedText(context.Background(), "x")
	if !errors.Is(err, domain.ErrEncoding) {
		t.Fatalf("expected ErrEncoding, got %v", err)
	}
}

func TestEmbedText_StoreFailuresAreNotFatal(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.5}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, errors.New("connection reset")
	}
	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		return errors.New("connection reset")
	}

	result, err := ce.EmbedText(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Embedding[0] != 0.5 {
		t.Errorf("unexpected vector %v", result.Embedding)
	}
}

func TestEmbedText_CorruptCacheEntryIsMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.5}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte{1, 2, 3}, nil
	}

	if _, err := ce.EmbedText(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.textCalls != 1 {
		t.Errorf("expected fallback to inner embedder, got %d calls", inner.textCalls)
	}
}

func TestCacheCounter(t *testing.T) {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "test_embedding_cache_total"},
		[]string{"modality", "result"},
	)
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ms := &mockKVStore{}
	ce := New(inner, ms, "clip", time.Hour, counter, zap.NewNop())

	if _, err := ce.EmbedImage(context.Background(), []byte{1}); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("image", "miss")); got != 1 {
		t.Errorf("image miss = %v, want 1", got)
	}
}

type checkingEmbedder struct {
	mockEmbedder
	err error
}

func (c *checkingEmbedder) HealthCheck(context.Context) error { return c.err }

func TestCachedEmbedder_HealthCheckForwards(t *testing.T) {
	inner := &checkingEmbedder{err: errors.New("provider down")}
	ce := New(inner, &mockKVStore{}, "clip", time.Hour, nil, zap.NewNop())
	if err := ce.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected inner health error")
	}

	plain, _ := newTestCachedEmbedder(t, &mockEmbedder{})
	if err := plain.HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
