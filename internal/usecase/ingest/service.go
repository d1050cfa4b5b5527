// Package ingest bulk-loads precomputed pet records (JSON Lines, one record with both
// embeddings per line) into the pet index.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	dompet "github.com/kailas-cloud/adoptapet/internal/domain/pet"
)

// Defaults for Config.
const (
	DefaultBatchSize = 100
	DefaultWorkers   = 4
	// maxLineSize fits a record with two 2048-dimensional embeddings.
	maxLineSize = 16 << 20
)

// ErrNoFiles is returned when a glob matches nothing.
var ErrNoFiles = errors.New("no input files matched")

// Config controls batching and write concurrency.
type Config struct {
	BatchSize  int
	Workers    int
	Dimensions int
}

// Report summarizes one load.
type Report struct {
	Files    int
	Lines    int
	Loaded   int
	Rejected int
}

// Service loads records through a bounded worker pool.
type Service struct {
	repo   Repository
	cfg    Config
	logger *zap.Logger
}

// New creates an ingest service, filling zero config values with defaults.
func New(repo Repository, cfg Config, logger *zap.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Service{repo: repo, cfg: cfg, logger: logger}
}

// LoadGlob loads every file matching pattern (doublestar syntax, e.g. "data/**/*.jsonl")
// in lexical order. Invalid records are skipped and counted; write failures abort the
// load and are returned after in-flight batches finish.
func (s *Service) LoadGlob(ctx context.Context, pattern string) (Report, error) {
	files, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return Report{}, fmt.Errorf("glob %q: %w", pattern, err)
	}
	if len(files) == 0 {
		return Report{}, fmt.Errorf("%w: %s", ErrNoFiles, pattern)
	}
	sort.Strings(files)

	l, err := s.newLoad(ctx)
	if err != nil {
		return Report{}, err
	}
	defer l.pool.Release()

	for _, f := range files {
		if err := l.file(f); err != nil {
			l.fail(err)
			break
		}
		l.report.Files++
	}
	return l.finish()
}

// Load reads records from r. source names the input in logs.
func (s *Service) Load(ctx context.Context, r io.Reader, source string) (Report, error) {
	l, err := s.newLoad(ctx)
	if err != nil {
		return Report{}, err
	}
	defer l.pool.Release()

	if err := l.read(r, source); err != nil {
		l.fail(err)
	}
	l.report.Files = 1
	return l.finish()
}

// load is the state of one LoadGlob/Load call.
type load struct {
	s      *Service
	ctx    context.Context
	cancel context.CancelFunc
	pool   *ants.Pool
	wg     sync.WaitGroup
	loaded atomic.Int64

	mu   sync.Mutex
	errs []error

	batch  []dompet.Record
	report Report
}

func (s *Service) newLoad(ctx context.Context) (*load, error) {
	pool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	return &load{s: s, ctx: ctx, cancel: cancel, pool: pool}, nil
}

func (l *load) file(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return l.read(f, path)
}

func (l *load) read(r io.Reader, source string) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for sc.Scan() {
		if err := l.ctx.Err(); err != nil {
			return err
		}
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		l.report.Lines++

		var rec dompet.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			l.reject(source, line, fmt.Errorf("decode: %w", err))
			continue
		}
		if err := rec.Validate(l.s.cfg.Dimensions); err != nil {
			l.reject(source, line, err)
			continue
		}

		l.batch = append(l.batch, rec)
		if len(l.batch) >= l.s.cfg.BatchSize {
			if err := l.flush(); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", source, err)
	}
	return nil
}

func (l *load) reject(source string, line int, err error) {
	l.report.Rejected++
	l.s.logger.Warn("Skipping invalid record",
		zap.String("source", source),
		zap.Int("line", line),
		zap.Error(err),
	)
}

// flush hands the current batch to the pool.
func (l *load) flush() error {
	if len(l.batch) == 0 {
		return nil
	}
	batch := l.batch
	l.batch = nil

	l.wg.Add(1)
	err := l.pool.Submit(func() {
		defer l.wg.Done()
		if err := l.s.repo.Upsert(l.ctx, batch); err != nil {
			l.fail(fmt.Errorf("upsert batch of %d: %w", len(batch), err))
			return
		}
		l.loaded.Add(int64(len(batch)))
	})
	if err != nil {
		l.wg.Done()
		return fmt.Errorf("submit batch: %w", err)
	}
	return nil
}

// fail records an error and stops the remaining work.
func (l *load) fail(err error) {
	l.mu.Lock()
	if len(l.errs) == 0 || !errors.Is(err, context.Canceled) {
		l.errs = append(l.errs, err)
	}
	l.mu.Unlock()
	l.cancel()
}

func (l *load) finish() (Report, error) {
	if l.ctx.Err() == nil {
		if err := l.flush(); err != nil {
			l.fail(err)
		}
	}
	l.wg.Wait()
	l.cancel()

	l.report.Loaded = int(l.loaded.Load())

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.errs) > 0 {
		return l.report, errors.Join(l.errs...)
	}
	return l.report, nil
}
