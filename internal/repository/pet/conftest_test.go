package pet

import (
	"context"
	"testing"

	"github.com/kailas-cloud/adoptapet/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	createIndexFn    func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn      func(ctx context.Context, name string) error
	indexExistsFn    func(ctx context.Context, name string) (bool, error)
	upsertItemsFn    func(ctx context.Context, index string, items []db.Item) error
	deleteItemFn     func(ctx context.Context, index, key string) error
	searchWeightedFn func(ctx context.Context, q *db.WeightedKNNQuery) (*db.SearchResult, error)
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return true, nil
}

func (m *mockStore) UpsertItems(ctx context.Context, index string, items []db.Item) error {
	if m.upsertItemsFn != nil {
		return m.upsertItemsFn(ctx, index, items)
	}
	return nil
}

func (m *mockStore) DeleteItem(ctx context.Context, index, key string) error {
	if m.deleteItemFn != nil {
		return m.deleteItemFn(ctx, index, key)
	}
	return nil
}

func (m *mockStore) SearchWeighted(ctx context.Context, q *db.WeightedKNNQuery) (*db.SearchResult, error) {
	if m.searchWeightedFn != nil {
		return m.searchWeightedFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	repo := New(ms, IndexConfig{
		Name:        "pets",
		KeyPrefix:   "pet:",
		Dimensions:  2,
		Algorithm:   db.VectorHNSW,
		M:           16,
		EFConstruct: 200,
	})
	return repo, ms
}
