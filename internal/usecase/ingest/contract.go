package ingest

import (
	"context"

	dompet "github.com/kailas-cloud/adoptapet/internal/domain/pet"
)

// Repository writes validated pet records to the index.
type Repository interface {
	Upsert(ctx context.Context, records []dompet.Record) error
}
