package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kailas-cloud/adoptapet/internal/domain"
	"github.com/kailas-cloud/adoptapet/internal/domain/pet"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/knn"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/result"
)

const testDim = 4

// --- Mocks ---

type mockRepo struct {
	mu     sync.Mutex
	calls  []knn.Request
	search func(ctx context.Context, req knn.Request) ([]result.ScoredItem, error)
	// considered overrides the reported candidate count; nil reports len(items).
	considered func(req knn.Request) int
}

func (m *mockRepo) Search(ctx context.Context, req knn.Request) ([]result.ScoredItem, int, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	items, err := m.search(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	if m.considered != nil {
		return items, m.considered(req), nil
	}
	return items, len(items), nil
}

func (m *mockRepo) callsFor(p pet.Partition) []knn.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []knn.Request
	for _, c := range m.calls {
		if c.Partition() == p {
			out = append(out, c)
		}
	}
	return out
}

func (m *mockRepo) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// byPartition serves fixed lists per partition filter.
func byPartition(lists map[pet.Partition][]result.ScoredItem) func(context.Context, knn.Request) ([]result.ScoredItem, error) {
	return func(_ context.Context, req knn.Request) ([]result.ScoredItem, error) {
		items := lists[req.Partition()]
		if len(items) > req.K() {
			items = items[:req.K()]
		}
		return items, nil
	}
}

type mockEmbedder struct {
	textFn     func(text string) (domain.EmbeddingResult, error)
	imageFn    func(image []byte) (domain.EmbeddingResult, error)
	textCalls  int
	imageCalls int
}

func (m *mockEmbedder) EmbedText(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.textCalls++
	if m.textFn != nil {
		return m.textFn(text)
	}
	return domain.EmbeddingResult{Embedding: unitVec()}, nil
}

func (m *mockEmbedder) EmbedImage(_ context.Context, image []byte) (domain.EmbeddingResult, error) {
	m.imageCalls++
	if m.imageFn != nil {
		return m.imageFn(image)
	}
	return domain.EmbeddingResult{Embedding: unitVec()}, nil
}

// --- Helpers ---

func unitVec() []float32 { return []float32{1, 0, 0, 0} }

func testConfig() Config {
	return Config{
		Primary: pet.PetFinder,
		Shares: []Share{
			{Partition: pet.PetFinder, Proportion: 0.6},
			{Partition: pet.OxfordIIIT, Proportion: 0.4},
		},
		Oversample:      3,
		OversampleFloor: 5,
		RetryAttempts:   3,
		RetryBaseDelay:  time.Millisecond,
	}
}

// ranked builds n items of partition p with strictly descending scores starting at top.
func ranked(p pet.Partition, n int, top float64) []result.ScoredItem {
	items := make([]result.ScoredItem, n)
	for i := range items {
		items[i] = scored(p, fmt.Sprintf("%s%d", p.IDPrefix(), i), top-float64(i)*0.01)
	}
	return items
}

func scored(p pet.Partition, id string, score float64) result.ScoredItem {
	return result.ScoredItem{
		Pet:       pet.Pet{ID: id, Partition: p, Name: "Unknown"},
		Score:     score,
		Partition: p,
	}
}

func countByPartition(items []result.ScoredItem) map[pet.Partition]int {
	out := make(map[pet.Partition]int)
	for _, it := range items {
		out[it.Partition]++
	}
	return out
}

func ids(items []result.ScoredItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Pet.ID
	}
	return out
}
