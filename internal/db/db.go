package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	KVStore
	IndexManager
	ItemWriter
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Item is one indexed record: scalar attributes plus named vector fields.
type Item struct {
	Key     string
	Fields  map[string]string
	Vectors map[string][]float32
}

// ItemWriter stores indexed records.
type ItemWriter interface {
	// UpsertItems writes all items in a single round-trip, replacing existing ones.
	UpsertItems(ctx context.Context, index string, items []Item) error
	DeleteItem(ctx context.Context, index, key string) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IndexManager provides index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides weighted multi-field vector search.
type Searcher interface {
	SearchWeighted(ctx context.Context, q *WeightedKNNQuery) (*SearchResult, error)
}
