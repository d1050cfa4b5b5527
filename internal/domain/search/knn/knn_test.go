package knn

import (
	"errors"
	"math"
	"testing"

	"github.com/kailas-cloud/adoptapet/internal/domain"
	"github.com/kailas-cloud/adoptapet/internal/domain/pet"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/kind"
)

func unit(v ...float32) []float32 { return domain.Normalize(v) }

func TestNew_Valid(t *testing.T) {
	q := unit(1, 2, 3)
	r, err := New(q, kind.Text.Weights(), 10, pet.PetFinder, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.K() != 10 {
		t.Errorf("K() = %d", r.K())
	}
	if !r.Filtered() || r.Partition() != pet.PetFinder {
		t.Errorf("Partition() = %q", r.Partition())
	}
	if r.Weights() != kind.Text.Weights() {
		t.Errorf("Weights() = %+v", r.Weights())
	}
	q[0] = 42
	if r.Vector()[0] == 42 {
		t.Error("request must not alias the caller's vector")
	}
}

func TestNew_Unfiltered(t *testing.T) {
	r, err := New(unit(1, 0), kind.Image.Weights(), 5, "", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Filtered() {
		t.Error("expected unfiltered request")
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name    string
		vec     []float32
		w       kind.Weights
		k       int
		part    pet.Partition
		wantErr error
	}{
		{"dim mismatch", unit(1, 0), kind.Text.Weights(), 5, "", domain.ErrVectorDimMismatch},
		{"empty vector", nil, kind.Text.Weights(), 5, "", domain.ErrVectorDimMismatch},
		{"zero k", unit(1, 0, 0), kind.Text.Weights(), 0, "", domain.ErrInvalidRequest},
		{"negative weight", unit(1, 0, 0), kind.Weights{Text: -1, Image: 1}, 5, "", domain.ErrInvalidRequest},
		{"zero weights", unit(1, 0, 0), kind.Weights{}, 5, "", domain.ErrInvalidRequest},
		{"unknown partition", unit(1, 0, 0), kind.Text.Weights(), 5, "kaggle", domain.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.vec, tt.w, tt.k, tt.part, 3)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestScore_CombinedFormula(t *testing.T) {
	q := unit(1, 1, 0)
	textEmb := unit(1, 0, 0)
	imageEmb := unit(0, 1, 1)

	for _, k := range []kind.Kind{kind.Text, kind.Image} {
		r, err := New(q, k.Weights(), 1, "", 3)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		got, err := r.Score(textEmb, imageEmb)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		cosText, _ := domain.Dot(q, textEmb)
		cosImage, _ := domain.Dot(q, imageEmb)
		want := k.Weights().Text*cosText + k.Weights().Image*cosImage
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("%s: Score = %f, want %f", k, got, want)
		}
	}
}

func TestScore_IdenticalVectorsReachWeightSum(t *testing.T) {
	q := unit(0.3, 0.4, 0.5)
	r, _ := New(q, kind.Text.Weights(), 1, "", 3)
	got, err := r.Score(q, q)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if math.Abs(got-2.5) > 1e-6 {
		t.Errorf("Score = %f, want 2.5", got)
	}
}

func TestScore_MissingEmbedding(t *testing.T) {
	q := unit(1, 0)
	r, _ := New(q, kind.Image.Weights(), 1, "", 2)
	got, err := r.Score(nil, q)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if math.Abs(got-2.0) > 1e-6 {
		t.Errorf("Score = %f, want 2.0 (image only)", got)
	}
}

func TestScore_DimMismatch(t *testing.T) {
	r, _ := New(unit(1, 0), kind.Text.Weights(), 1, "", 2)
	if _, err := r.Score(unit(1, 0, 0), nil); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("expected ErrVectorDimMismatch, got %v", err)
	}
}
