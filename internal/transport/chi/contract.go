package chi

import (
	"context"

	"github.com/kailas-cloud/adoptapet/internal/domain/search/request"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/adoptapet/internal/usecase/health"
)

// Searcher runs a composed pet search.
type Searcher interface {
	Search(ctx context.Context, q request.Query) (*result.Response, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
