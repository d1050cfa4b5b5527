package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/adoptapet/internal/domain"
	"github.com/kailas-cloud/adoptapet/internal/domain/pet"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/kind"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/knn"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/result"
	"github.com/kailas-cloud/adoptapet/internal/metrics"
)

// unfiltered is the metrics label of a task without a partition filter.
const unfiltered = "all"

// Task is one index query: an optional partition filter and the number of hits to request.
type Task struct {
	Partition pet.Partition
	Count     int
}

// Outcome is the result of one Task. On success Items holds the hits and Considered the
// number of candidates the index scored to produce them; otherwise Err is set.
type Outcome struct {
	Task       Task
	Items      []result.ScoredItem
	Considered int
	Err        error
}

// Fetch runs every task concurrently and returns one outcome per task, in task order.
// A failing task never cancels its siblings; the caller decides what a failure means.
func (s *Service) Fetch(ctx context.Context, vector []float32, w kind.Weights, tasks []Task) []Outcome {
	outcomes := make([]Outcome, len(tasks))
	if len(tasks) == 0 {
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(len(tasks))

	for i, t := range tasks {
		outcomes[i].Task = t
		g.Go(func() error {
			items, considered, err := s.fetchOne(ctx, vector, w, t)
			outcomes[i].Items = items
			outcomes[i].Considered = considered
			outcomes[i].Err = err
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// fetchOne runs a single task with bounded retries on transient index errors.
func (s *Service) fetchOne(ctx context.Context, vector []float32, w kind.Weights, t Task) ([]result.ScoredItem, int, error) {
	label := partitionLabel(t.Partition)

	req, err := knn.New(vector, w, t.Count, t.Partition, s.dim)
	if err != nil {
		metrics.FetchAttemptsTotal.WithLabelValues(label, "fatal").Inc()
		metrics.FetchFailuresTotal.WithLabelValues(label).Inc()
		return nil, 0, fmt.Errorf("build query for %s: %w", label, err)
	}

	var (
		items      []result.ScoredItem
		considered int
	)
	attempt := 0

	op := func() error {
		attempt++
		got, total, err := s.attempt(ctx, req)
		if err == nil {
			metrics.FetchAttemptsTotal.WithLabelValues(label, "success").Inc()
			items, considered = got, total
			return nil
		}
		if isRetryable(ctx, err) {
			metrics.FetchAttemptsTotal.WithLabelValues(label, "retryable").Inc()
			return err
		}
		metrics.FetchAttemptsTotal.WithLabelValues(label, "fatal").Inc()
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		s.log(ctx).Debug("Retrying index query",
			zap.String("partition", label),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(op, s.retryPolicy(ctx), notify); err != nil {
		metrics.FetchFailuresTotal.WithLabelValues(label).Inc()
		return nil, 0, fmt.Errorf("fetch %s after %d attempt(s): %w", label, attempt, err)
	}
	return items, considered, nil
}

// attempt runs one index query under its own timeout. The count is never below the
// number of returned hits.
func (s *Service) attempt(ctx context.Context, req knn.Request) ([]result.ScoredItem, int, error) {
	if s.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
	}
	items, total, err := s.repo.Search(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	return items, max(total, len(items)), nil
}

func (s *Service) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryBaseDelay
	b.MaxElapsedTime = 0

	retries := s.cfg.RetryAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// isRetryable reports whether a failed attempt may be repeated: transient index errors
// and per-attempt timeouts while the caller is still waiting.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return errors.Is(err, domain.ErrIndexUnavailable) || errors.Is(err, context.DeadlineExceeded)
}

func partitionLabel(p pet.Partition) string {
	if p == "" {
		return unfiltered
	}
	return string(p)
}

// oversample scales a quota need so dedup and shortfall have room to work.
func oversample(need, factor, floor int) int {
	if factor < 1 {
		factor = 1
	}
	return max(need*factor, need+floor)
}
