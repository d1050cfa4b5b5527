// Package knn builds weighted multi-field similarity requests.
//
// A request scores every candidate as
//
//	w_text * cos(q, text_embedding) + w_image * cos(q, image_embedding)
//
// optionally restricted to a single partition, and keeps the top K.
package knn

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/adoptapet/internal/domain"
	"github.com/kailas-cloud/adoptapet/internal/domain/pet"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/kind"
)

// Request is a validated weighted multi-field similarity request (immutable value object).
type Request struct {
	vector    []float32
	weights   kind.Weights
	k         int
	partition pet.Partition
}

// New validates and creates a Request. An empty partition means no filter.
// dim is the index dimension; a query vector of any other length fails with
// domain.ErrVectorDimMismatch.
func New(vector []float32, w kind.Weights, k int, partition pet.Partition, dim int) (Request, error) {
	if err := domain.ValidateVector(vector, dim); err != nil {
		return Request{}, fmt.Errorf("query vector: %w", err)
	}
	if k <= 0 {
		return Request{}, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidRequest, k)
	}
	if !validWeight(w.Text) || !validWeight(w.Image) {
		return Request{}, fmt.Errorf("%w: weights must be finite and non-negative", domain.ErrInvalidRequest)
	}
	if w.Text == 0 && w.Image == 0 {
		return Request{}, fmt.Errorf("%w: at least one field weight must be positive", domain.ErrInvalidRequest)
	}
	if partition != "" && !partition.IsValid() {
		return Request{}, fmt.Errorf("%w: unknown partition %q", domain.ErrInvalidRequest, partition)
	}

	v := make([]float32, len(vector))
	copy(v, vector)

	return Request{vector: v, weights: w, k: k, partition: partition}, nil
}

func validWeight(w float64) bool {
	return w >= 0 && !math.IsInf(w, 0) && !math.IsNaN(w)
}

// Vector returns the query embedding.
func (r *Request) Vector() []float32 { return r.vector }

// Weights returns the field weights.
func (r *Request) Weights() kind.Weights { return r.weights }

// K returns the number of results to keep.
func (r *Request) K() int { return r.k }

// Partition returns the partition filter ("" when unfiltered).
func (r *Request) Partition() pet.Partition { return r.partition }

// Filtered reports whether the request is restricted to one partition.
func (r *Request) Filtered() bool { return r.partition != "" }

// Score computes the combined score of a candidate. A missing embedding contributes zero.
func (r *Request) Score(textEmbedding, imageEmbedding []float32) (float64, error) {
	var score float64
	if len(textEmbedding) > 0 {
		cos, err := domain.Dot(r.vector, textEmbedding)
		if err != nil {
			return 0, fmt.Errorf("text embedding: %w", err)
		}
		score += r.weights.Text * cos
	}
	if len(imageEmbedding) > 0 {
		cos, err := domain.Dot(r.vector, imageEmbedding)
		if err != nil {
			return 0, fmt.Errorf("image embedding: %w", err)
		}
		score += r.weights.Image * cos
	}
	return score, nil
}
