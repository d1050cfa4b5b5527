package pet

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/adoptapet/internal/domain"
)

// Species values.
const (
	Dog = "Dog"
	Cat = "Cat"
)

// Pet is one adoptable-pet record as stored in the index, without embeddings.
type Pet struct {
	ID          string         `json:"pet_id"`
	Partition   Partition      `json:"source"`
	Name        string         `json:"name"`
	Species     string         `json:"species"`
	Breed       string         `json:"breed"`
	AgeMonths   *int           `json:"age_months"`
	Gender      *string        `json:"gender"`
	Description string         `json:"description"`
	ImagePath   string         `json:"image_path"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Record is a Pet with its precomputed text and image embeddings, as produced by the
// offline indexing pipeline.
type Record struct {
	Pet
	TextEmbedding  []float32 `json:"text_embedding"`
	ImageEmbedding []float32 `json:"image_embedding"`
}

// Validate checks the stored-item invariants: a partition-prefixed ID, a known species,
// and unit-norm embeddings of dimension dim.
func (r *Record) Validate(dim int) error {
	if r.ID == "" {
		return fmt.Errorf("%w: pet_id is required", domain.ErrInvalidItem)
	}
	if !r.Partition.IsValid() {
		return fmt.Errorf("%w: %s: unknown source %q", domain.ErrInvalidItem, r.ID, r.Partition)
	}
	if !strings.HasPrefix(r.ID, r.Partition.IDPrefix()) {
		return fmt.Errorf("%w: %s: id must start with %q",
			domain.ErrInvalidItem, r.ID, r.Partition.IDPrefix())
	}
	if r.Species != Dog && r.Species != Cat {
		return fmt.Errorf("%w: %s: species must be %q or %q", domain.ErrInvalidItem, r.ID, Dog, Cat)
	}
	if r.Name == "" {
		r.Name = "Unknown"
	}
	embeddings := []struct {
		name string
		vec  []float32
	}{
		{"text", r.TextEmbedding},
		{"image", r.ImageEmbedding},
	}
	for _, e := range embeddings {
		if err := domain.ValidateVector(e.vec, dim); err != nil {
			return fmt.Errorf("%w: %s: %s embedding: %w", domain.ErrInvalidItem, r.ID, e.name, err)
		}
		if !domain.IsUnit(e.vec) {
			return fmt.Errorf("%w: %s: %s embedding is not unit length (norm %.4f)",
				domain.ErrInvalidItem, r.ID, e.name, domain.Norm(e.vec))
		}
	}
	return nil
}
