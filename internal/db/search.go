package db

import "errors"

// VectorWeight pairs a vector field with its weight in the combined score.
type VectorWeight struct {
	Field  string
	Weight float64
}

// TagMatch is an exact-match pre-filter on a tag field.
type TagMatch struct {
	Field string
	Value string
}

// WeightedKNNQuery is the input for weighted multi-field vector search.
//
// Each hit is scored as sum(weight_f * cos(Vector, field_f)) over Fields
// and the K best hits are returned, best first.
type WeightedKNNQuery struct {
	IndexName    string
	Vector       []float32
	Fields       []VectorWeight
	Filters      []TagMatch
	K            int
	ReturnFields []string
}

// Validate checks the query shape before it is sent to a backend.
func (q *WeightedKNNQuery) Validate() error {
	if q.IndexName == "" {
		return errors.New("index name is required")
	}
	if len(q.Vector) == 0 {
		return errors.New("vector is required")
	}
	if q.K <= 0 {
		return errors.New("k must be positive")
	}
	if len(q.Fields) == 0 {
		return errors.New("at least one vector field is required")
	}
	for _, f := range q.Fields {
		if !IsValidIdentifier(f.Field) {
			return errors.New("invalid vector field name: " + f.Field)
		}
	}
	for _, m := range q.Filters {
		if !IsValidIdentifier(m.Field) {
			return errors.New("invalid filter field name: " + m.Field)
		}
	}
	return nil
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
