package pet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/adoptapet/internal/db"
	"github.com/kailas-cloud/adoptapet/internal/domain"
	dompet "github.com/kailas-cloud/adoptapet/internal/domain/pet"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/knn"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/result"
)

// store is the consumer interface for pet storage (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	UpsertItems(ctx context.Context, index string, items []db.Item) error
	DeleteItem(ctx context.Context, index, key string) error
	SearchWeighted(ctx context.Context, q *db.WeightedKNNQuery) (*db.SearchResult, error)
}

// IndexConfig describes the pet index layout.
type IndexConfig struct {
	Name        string
	KeyPrefix   string
	Dimensions  int
	Algorithm   db.VectorAlgorithm
	M           int
	EFConstruct int
}

// Repo implements usecase/search.Repository and usecase/ingest.Repository.
type Repo struct {
	store store
	index IndexConfig
}

// New creates a pet repository.
func New(s store, index IndexConfig) *Repo {
	return &Repo{store: s, index: index}
}

// Dimensions returns the embedding dimension of the index.
func (r *Repo) Dimensions() int { return r.index.Dimensions }

// Search runs one weighted multi-field query. It returns the hits, best first, and the
// number of raw candidates the backend considered.
func (r *Repo) Search(ctx context.Context, req knn.Request) ([]result.ScoredItem, int, error) {
	w := req.Weights()
	q := &db.WeightedKNNQuery{
		IndexName: r.index.Name,
		Vector:    req.Vector(),
		Fields: []db.VectorWeight{
			{Field: fieldTextEmbedding, Weight: w.Text},
			{Field: fieldImageEmbedding, Weight: w.Image},
		},
		K:            req.K(),
		ReturnFields: returnFields,
	}
	if req.Filtered() {
		q.Filters = []db.TagMatch{{Field: fieldSource, Value: string(req.Partition())}}
	}

	sr, err := r.store.SearchWeighted(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("search %s: %w", r.index.Name, classify(err))
	}

	items := make([]result.ScoredItem, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		p := parseFields(strings.TrimPrefix(e.Key, r.index.KeyPrefix), e.Fields)
		items = append(items, result.ScoredItem{Pet: p, Score: e.Score, Partition: p.Partition})
	}
	return items, sr.Total, nil
}

// Upsert writes validated records with their embeddings.
func (r *Repo) Upsert(ctx context.Context, records []dompet.Record) error {
	items := make([]db.Item, 0, len(records))
	for i := range records {
		rec := &records[i]
		fields, err := buildFields(&rec.Pet)
		if err != nil {
			return fmt.Errorf("%w: %s: metadata: %w", domain.ErrInvalidItem, rec.ID, err)
		}
		items = append(items, db.Item{
			Key:    r.index.KeyPrefix + rec.ID,
			Fields: fields,
			Vectors: map[string][]float32{
				fieldTextEmbedding:  rec.TextEmbedding,
				fieldImageEmbedding: rec.ImageEmbedding,
			},
		})
	}
	if err := r.store.UpsertItems(ctx, r.index.Name, items); err != nil {
		return fmt.Errorf("upsert %d pets: %w", len(items), classify(err))
	}
	return nil
}

// Delete removes one pet by ID, e.g. once it has been adopted.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.DeleteItem(ctx, r.index.Name, r.index.KeyPrefix+id); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return fmt.Errorf("pet %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("delete pet %s: %w", id, classify(err))
	}
	return nil
}

// CreateIndex creates the pet index: a partition TAG, breed/species TAGs, age NUMERIC and
// one vector field per embedding.
func (r *Repo) CreateIndex(ctx context.Context) error {
	def, err := r.indexDefinition()
	if err != nil {
		return err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return fmt.Errorf("index %s: %w", r.index.Name, err)
		}
		return fmt.Errorf("create index %s: %w", r.index.Name, classify(err))
	}
	return nil
}

// DropIndex removes the pet index.
func (r *Repo) DropIndex(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.index.Name); err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return fmt.Errorf("index %s: %w", r.index.Name, domain.ErrNotFound)
		}
		return fmt.Errorf("drop index %s: %w", r.index.Name, classify(err))
	}
	return nil
}

// IndexExists reports whether the pet index exists.
func (r *Repo) IndexExists(ctx context.Context) (bool, error) {
	ok, err := r.store.IndexExists(ctx, r.index.Name)
	if err != nil {
		return false, fmt.Errorf("index %s: %w", r.index.Name, classify(err))
	}
	return ok, nil
}

func (r *Repo) indexDefinition() (*db.IndexDefinition, error) {
	spec := db.VectorSpec{
		Algorithm:   r.index.Algorithm,
		Dim:         r.index.Dimensions,
		Distance:    db.DistanceCosine,
		M:           r.index.M,
		EFConstruct: r.index.EFConstruct,
	}
	return db.NewIndex(r.index.Name).
		Prefix(r.index.KeyPrefix).
		Tag(fieldSource).
		Tag(fieldSpecies).
		TagWith(fieldBreed, db.TagOptions{Separator: "|"}).
		Numeric(fieldAgeMonths).
		Vector(fieldTextEmbedding, spec).
		Vector(fieldImageEmbedding, spec).
		Build()
}

// classify maps store errors onto domain sentinels, keeping the original chain.
func classify(err error) error {
	switch {
	case errors.Is(err, db.ErrUnavailable):
		return fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	case errors.Is(err, db.ErrIndexNotFound), errors.Is(err, db.ErrRejected):
		return fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	default:
		return err
	}
}
