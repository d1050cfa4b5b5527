package result

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/adoptapet/internal/domain/pet"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/kind"
)

// ScoredItem is one search hit: a pet, its combined score and the partition it was fetched from.
type ScoredItem struct {
	Pet       pet.Pet
	Score     float64
	Partition pet.Partition
}

// Explanation renders a one-line summary of why the item matched.
func (s ScoredItem) Explanation() string {
	return fmt.Sprintf("Match score: %.3f | Source: %s | Breed: %s | Species: %s",
		s.Score, s.Partition, s.Pet.Breed, s.Pet.Species)
}

// Response is the composed outcome of one search.
type Response struct {
	SearchID string
	Query    string
	Kind     kind.Kind
	// Listings are drawn from the primary partition only.
	Listings []ScoredItem
	// Images span all partitions, merged by quota.
	Images []ScoredItem
	// TotalCandidates counts raw candidates across all fetch tasks before dedup.
	TotalCandidates int
	Elapsed         time.Duration
	// Degraded is set when at least one fetch task failed but others succeeded.
	Degraded         bool
	FailedPartitions []pet.Partition
}
