// Package engine wires the analyzer, filter selector, fetcher, and
// scoring engine into one call. Nothing here outlives a single query
// except the shared source registry's health state.
package engine

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"signalscout/internal/config"
	"signalscout/internal/enrich"
	"signalscout/internal/fetch"
	"signalscout/internal/filter"
	"signalscout/internal/query"
	"signalscout/internal/source"
)

// Request is one intelligence query.
type Request struct {
	Query          string
	ProfileTags    []string
	Limit          int
	ExpandClusters bool
}

// Response is the ranked result set. Degraded means the fetch budget
// expired before every selected source completed.
type Response struct {
	RequestID      string
	Context        query.Context
	Results        []enrich.Signal
	Degraded       bool
	SourcesUsed    []string
	SourcesSkipped []string
	Elapsed        time.Duration
}

// Engine is safe for concurrent use; per-query state stays on the stack.
type Engine struct {
	cfg      *config.Config
	reg      *source.Registry
	fetcher  *fetch.Fetcher
	enricher *enrich.Enricher
	client   *http.Client
	logger   *zap.Logger
	now      func() time.Time
}

// New builds an engine from config, constructing the registry and its
// adapters. client may be nil.
func New(cfg *config.Config, client *http.Client, logger *zap.Logger) (*Engine, error) {
	reg, err := source.NewRegistry(cfg, client)
	if err != nil {
		return nil, err
	}
	return FromRegistry(cfg, reg, client, logger, nil), nil
}

// FromRegistry wires an engine around an existing registry. A nil clock
// defaults to time.Now; tests inject a fixed one.
func FromRegistry(cfg *config.Config, reg *source.Registry, client *http.Client, logger *zap.Logger, clock func() time.Time) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	opts := fetch.Options{
		AttemptTimeout: cfg.AttemptTimeout(),
		Budget:         cfg.QueryBudget(),
		BackoffBase:    cfg.BackoffBase(),
		Retries:        cfg.Retries(),
		MaxConcurrent:  int64(cfg.MaxConcurrent()),
	}
	return &Engine{
		cfg:      cfg,
		reg:      reg,
		fetcher:  fetch.New(reg, opts, logger),
		enricher: enrich.New(cfg.Authorities, reg),
		client:   client,
		logger:   logger,
		now:      clock,
	}
}

// Registry exposes the catalog for the sources command.
func (e *Engine) Registry() *source.Registry {
	return e.reg
}

// Query runs the full pipeline: analyze, select filters, fetch in
// parallel, enrich, rank, truncate. Source-level trouble never fails the
// call; an empty result set is a valid answer.
func (e *Engine) Query(ctx context.Context, req Request) (*Response, error) {
	start := e.now()
	id := uuid.NewString()

	profile := e.profile(req.ProfileTags)
	qctx := query.Analyze(req.Query, profile)
	e.logger.Debug("query analyzed",
		zap.String("request", id),
		zap.String("intent", string(qctx.Intent)),
		zap.String("domain", string(qctx.Domain)),
		zap.Strings("keywords", qctx.Keywords))

	filters := filter.Select(qctx, e.reg.All())
	resp := &Response{RequestID: id, Context: qctx}
	if len(filters) == 0 {
		e.logger.Info("no eligible sources for query",
			zap.String("request", id),
			zap.String("intent", string(qctx.Intent)),
			zap.String("domain", string(qctx.Domain)))
		resp.Elapsed = e.now().Sub(start)
		return resp, nil
	}

	round := e.fetcher.FetchAll(ctx, filters)
	enriched := e.enricher.Enrich(round.Signals, qctx, profile, e.now())

	resp.Results = enrich.SelectTop(enriched, req.Limit, req.ExpandClusters)
	resp.Degraded = round.Degraded
	resp.SourcesUsed = round.Used
	resp.SourcesSkipped = round.Skipped
	resp.Elapsed = e.now().Sub(start)

	e.logger.Info("query complete",
		zap.String("request", id),
		zap.Int("fetched", len(round.Signals)),
		zap.Int("returned", len(resp.Results)),
		zap.Bool("degraded", resp.Degraded),
		zap.Duration("elapsed", resp.Elapsed))
	return resp, nil
}

func (e *Engine) profile(tags []string) *query.Profile {
	if len(tags) == 0 {
		tags = e.cfg.Profile.Tags
	}
	if len(tags) == 0 {
		return nil
	}
	return &query.Profile{Tags: tags}
}
