// Package fetch executes one fetch round across many sources under a
// shared budget. Individual source failures never escape this package;
// partial success is the normal case.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"signalscout/internal/source"
)

// Options bound a fetch round.
type Options struct {
	AttemptTimeout time.Duration
	Budget         time.Duration
	BackoffBase    time.Duration
	Retries        int
	MaxConcurrent  int64
}

func (o Options) withDefaults() Options {
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 5 * time.Second
	}
	if o.Budget <= 0 {
		o.Budget = 5 * time.Second
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 200 * time.Millisecond
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 50
	}
	return o
}

// Result is the merged outcome of one round. Signals are ordered by
// source priority so that fetch completion order never leaks into the
// final ranking.
type Result struct {
	Signals  []source.Signal
	Used     []string
	Skipped  []string
	Degraded bool
}

type outcome struct {
	id      string
	signals []source.Signal
	err     error
}

// Fetcher runs fetch rounds against a shared registry.
type Fetcher struct {
	reg    *source.Registry
	opts   Options
	logger *zap.Logger
}

func New(reg *source.Registry, opts Options, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{reg: reg, opts: opts.withDefaults(), logger: logger}
}

// FetchAll fetches every filtered source concurrently and returns whatever
// succeeded within the budget. It never returns an error: failed sources
// land in Skipped, and an expired budget sets Degraded.
func (f *Fetcher) FetchAll(ctx context.Context, filters map[string]source.Filter) Result {
	now := time.Now()

	var active []*source.Source
	var skipped []string
	for _, src := range f.reg.All() {
		if _, ok := filters[src.ID]; !ok {
			continue
		}
		if !src.Health.Allow(now) {
			f.logger.Debug("skipping circuit-open source", zap.String("source", src.ID))
			skipped = append(skipped, src.ID)
			continue
		}
		active = append(active, src)
	}

	if len(active) == 0 {
		return Result{Skipped: skipped}
	}

	roundCtx, cancel := context.WithTimeout(ctx, f.opts.Budget)
	defer cancel()

	results := make(chan outcome, len(active))
	sem := semaphore.NewWeighted(f.opts.MaxConcurrent)
	for _, src := range active {
		go f.fetchOne(roundCtx, sem, src, filters[src.ID], results)
	}

	bySource := map[string][]source.Signal{}
	received := map[string]bool{}
	degraded := false

collect:
	for range active {
		select {
		case o := <-results:
			received[o.id] = true
			if o.err != nil {
				skipped = append(skipped, o.id)
				continue
			}
			bySource[o.id] = o.signals
		case <-roundCtx.Done():
			// Budget expired; pending sources are abandoned, their
			// goroutines drain into the buffered channel on their own.
			degraded = true
			break collect
		}
	}

	result := Result{Degraded: degraded}
	for _, src := range active {
		if signals, ok := bySource[src.ID]; ok {
			result.Used = append(result.Used, src.ID)
			result.Signals = append(result.Signals, signals...)
		} else if !received[src.ID] {
			f.logger.Warn("source abandoned at budget", zap.String("source", src.ID))
			skipped = append(skipped, src.ID)
		}
	}
	sort.Strings(skipped)
	result.Skipped = skipped
	return result
}

// fetchOne runs the attempt/retry loop for a single source and reports
// exactly one outcome. Transport failures count toward the circuit;
// malformed payloads are logged and surface as an empty round.
func (f *Fetcher) fetchOne(ctx context.Context, sem *semaphore.Weighted, src *source.Source, flt source.Filter, results chan<- outcome) {
	if err := sem.Acquire(ctx, 1); err != nil {
		results <- outcome{id: src.ID, err: err}
		return
	}
	defer sem.Release(1)

	var lastErr error
	for attempt := 0; attempt <= f.opts.Retries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, f.opts.BackoffBase<<(attempt-1)); err != nil {
				results <- outcome{id: src.ID, err: err}
				return
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, f.opts.AttemptTimeout)
		signals, err := src.Adapter.Fetch(attemptCtx, flt)
		cancel()

		if err == nil {
			src.Health.RecordSuccess()
			results <- outcome{id: src.ID, signals: signals}
			return
		}
		if errors.Is(err, source.ErrMalformed) {
			f.logger.Warn("malformed payload, treating round as empty",
				zap.String("source", src.ID), zap.Error(err))
			results <- outcome{id: src.ID, err: err}
			return
		}

		if ctx.Err() != nil {
			// round budget expired mid-attempt; abandonment is not a
			// health observation
			results <- outcome{id: src.ID, err: ctx.Err()}
			return
		}

		lastErr = err
		src.Health.RecordFailure(time.Now())
		f.logger.Debug("fetch attempt failed",
			zap.String("source", src.ID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	f.logger.Warn("source unavailable after retries",
		zap.String("source", src.ID),
		zap.String("health", string(src.Health.State())),
		zap.Error(lastErr))
	results <- outcome{id: src.ID, err: fmt.Errorf("%w: %v", source.ErrUnavailable, lastErr)}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
