package search

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/adoptapet/internal/domain"
	"github.com/kailas-cloud/adoptapet/internal/domain/pet"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/request"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/adoptapet/internal/logger"
	"github.com/kailas-cloud/adoptapet/internal/metrics"
)

// Config controls composition, oversampling and fetch resilience.
type Config struct {
	// Primary is the only partition listings are drawn from.
	Primary pet.Partition
	// Shares declares the partitions of the images section, in output order.
	Shares []Share
	// Oversample multiplies each partition's quota need when fetching image candidates.
	Oversample int
	// OversampleFloor is the minimum number of extra candidates per image task.
	OversampleFloor int
	EmbedTimeout    time.Duration
	FetchTimeout    time.Duration
	RetryAttempts   int
	RetryBaseDelay  time.Duration
}

// Service composes the two-section search response.
type Service struct {
	repo   Repository
	embed  Embedder
	dim    int
	cfg    Config
	logger *zap.Logger
}

// New creates a search service. dim is the index embedding dimension.
func New(repo Repository, embed Embedder, dim int, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, embed: embed, dim: dim, cfg: cfg, logger: logger}
}

// Search embeds the query once, then fetches listings from the primary partition and
// quota-merged images from every partition concurrently.
//
// Input the embedder cannot encode fails with domain.ErrEncoding before any fetch.
// When every fetch task fails the error wraps domain.ErrTotalFailure. When only some
// fail the response is marked degraded and lists the failed partitions.
func (s *Service) Search(ctx context.Context, q request.Query) (*result.Response, error) {
	start := time.Now()
	k := q.Kind()

	resp, err := s.search(ctx, &q)

	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case resp.Degraded:
		outcome = "degraded"
	}
	metrics.SearchDuration.WithLabelValues(string(k), outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, err
	}
	resp.Elapsed = time.Since(start)
	return resp, nil
}

func (s *Service) search(ctx context.Context, q *request.Query) (*result.Response, error) {
	log := s.log(ctx)

	vector, err := s.buildVector(ctx, q)
	if err != nil {
		if errors.Is(err, domain.ErrEncoding) || errors.Is(err, domain.ErrInvalidRequest) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrTotalFailure, err)
	}

	w := q.Kind().Weights()
	n := q.TopK()

	listingTasks := []Task{{Partition: s.cfg.Primary, Count: n}}
	imageTasks := s.imageTasks(n)

	var listingOut, imageOut []Outcome
	var g errgroup.Group
	g.Go(func() error {
		listingOut = s.Fetch(ctx, vector, w, listingTasks)
		return nil
	})
	g.Go(func() error {
		imageOut = s.Fetch(ctx, vector, w, imageTasks)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("search canceled: %w", err)
	}

	resp := &result.Response{
		SearchID: uuid.NewString(),
		Query:    q.Echo(),
		Kind:     q.Kind(),
	}

	var failures []error
	failed := make(map[pet.Partition]bool)
	record := func(o Outcome) {
		failures = append(failures, o.Err)
		failed[o.Task.Partition] = true
		log.Warn("Fetch task failed",
			zap.String("partition", partitionLabel(o.Task.Partition)),
			zap.Int("count", o.Task.Count),
			zap.Error(o.Err),
		)
	}

	for _, o := range listingOut {
		if o.Err != nil {
			record(o)
			continue
		}
		resp.TotalCandidates += o.Considered
		resp.Listings = s.primaryOnly(log, o.Items, n)
	}

	lists := make([]RankedList, 0, len(imageOut))
	for _, o := range imageOut {
		if o.Err != nil {
			record(o)
			continue
		}
		resp.TotalCandidates += o.Considered
		lists = append(lists, RankedList{Partition: o.Task.Partition, Items: o.Items})
	}
	resp.Images = MergeQuota(lists, s.cfg.Shares, n)

	if len(failures) == len(listingOut)+len(imageOut) {
		return nil, fmt.Errorf("%w: %w", domain.ErrTotalFailure, errors.Join(failures...))
	}

	if len(failures) > 0 {
		resp.Degraded = true
		resp.FailedPartitions = s.failedInOrder(failed)
		metrics.DegradedResponsesTotal.WithLabelValues(string(q.Kind())).Inc()
		log.Warn("Serving partial search result",
			zap.String("search_id", resp.SearchID),
			zap.Strings("failed_partitions", partitionStrings(resp.FailedPartitions)),
			zap.Error(fmt.Errorf("%w: %w", domain.ErrPartialResult, errors.Join(failures...))),
		)
	}

	metrics.SearchCandidates.WithLabelValues(string(q.Kind())).Observe(float64(resp.TotalCandidates))

	return resp, nil
}

// log prefers the request-scoped logger so task failures carry the request ID.
func (s *Service) log(ctx context.Context) *zap.Logger {
	return logpkg.FromContextOr(ctx, s.logger)
}

// imageTasks creates one oversampled fetch per declared partition.
func (s *Service) imageTasks(n int) []Task {
	p := proportions(s.cfg.Shares)
	tasks := make([]Task, 0, len(s.cfg.Shares))
	for i, sh := range s.cfg.Shares {
		need := int(p[i]*float64(n) + 0.5)
		tasks = append(tasks, Task{
			Partition: sh.Partition,
			Count:     oversample(need, s.cfg.Oversample, s.cfg.OversampleFloor),
		})
	}
	return tasks
}

// primaryOnly keeps the n best hits of the primary partition. The index filter already
// guarantees this; mismatches are dropped and logged.
func (s *Service) primaryOnly(log *zap.Logger, items []result.ScoredItem, n int) []result.ScoredItem {
	out := make([]result.ScoredItem, 0, min(len(items), n))
	for _, it := range items {
		if it.Partition != s.cfg.Primary {
			log.Warn("Dropping listing outside the primary partition",
				zap.String("id", it.Pet.ID), zap.String("partition", string(it.Partition)))
			continue
		}
		out = append(out, it)
	}
	sortRanked(out)
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// failedInOrder lists failed partitions in declared order, primary first if undeclared.
func (s *Service) failedInOrder(failed map[pet.Partition]bool) []pet.Partition {
	out := make([]pet.Partition, 0, len(failed))
	if failed[s.cfg.Primary] && !slices.ContainsFunc(s.cfg.Shares, func(sh Share) bool {
		return sh.Partition == s.cfg.Primary
	}) {
		out = append(out, s.cfg.Primary)
	}
	for _, sh := range s.cfg.Shares {
		if failed[sh.Partition] && !slices.Contains(out, sh.Partition) {
			out = append(out, sh.Partition)
		}
	}
	return out
}

func partitionStrings(ps []pet.Partition) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}
