// Package source holds the static catalog of content sources, the fetch
// adapter contract, and the per-source health state machine. Health is the
// only state that survives across queries within a process.
package source

import (
	"context"
	"errors"
	"strings"
	"time"

	"signalscout/internal/query"
)

// Class groups sources by the kind of content they serve.
type Class string

const (
	ClassCode       Class = "code"
	ClassDiscussion Class = "discussion"
	ClassResearch   Class = "research"
	ClassArticle    Class = "article"
)

// Mode is a fetch mode a source may support.
type Mode string

const (
	ModeTrending Mode = "trending"
	ModeTop      Mode = "top"
	ModeLatest   Mode = "latest"
	ModeSearch   Mode = "search"
)

// Metric names the popularity unit a source reports.
type Metric string

const (
	MetricPoints Metric = "points"
	MetricStars  Metric = "stars"
	MetricNone   Metric = "none"
)

// ErrMalformed marks a response that arrived but could not be parsed.
// The fetcher treats it as an empty result rather than a transport failure.
var ErrMalformed = errors.New("malformed response")

// ErrUnavailable wraps a source's last transport error once its retry
// budget is spent.
var ErrUnavailable = errors.New("source unavailable")

// Signal is one fetched content item. Immutable once fetched.
type Signal struct {
	ID          string
	SourceID    string
	Title       string
	URL         string
	Author      string
	Description string
	Published   time.Time // zero when the source reports none
	Popularity  *int      // source-native metric, nil when absent
}

// Filter is the per-source fetch configuration derived from a query.
// Read-only once built; never shared between sources.
type Filter struct {
	Mode     Mode
	Keywords []string
	Language string
	Window   query.TimeWindow
}

// Adapter is implemented once per external source. Fetch must return an
// empty slice for "no results" and reserve errors for transport or parse
// failures; those are consumed only by the resilient fetcher.
type Adapter interface {
	Fetch(ctx context.Context, f Filter) ([]Signal, error)
}

// Source is one catalog entry. Priority is the registry order and doubles
// as the final sort tie-break.
type Source struct {
	ID       string
	Name     string
	Class    Class
	Metric   Metric
	Modes    []Mode
	Priority int
	Weight   float64
	Adapter  Adapter
	Health   *Health
}

// Supports reports whether the source offers the given fetch mode.
func (s *Source) Supports(m Mode) bool {
	for _, mode := range s.Modes {
		if mode == m {
			return true
		}
	}
	return false
}

// WindowCutoff converts a time window into the oldest acceptable publish
// time. Unbounded returns the zero time.
func WindowCutoff(w query.TimeWindow, now time.Time) time.Time {
	switch w {
	case query.Day:
		return now.Add(-24 * time.Hour)
	case query.Week:
		return now.Add(-7 * 24 * time.Hour)
	case query.Month:
		return now.Add(-30 * 24 * time.Hour)
	default:
		return time.Time{}
	}
}

// withinWindow keeps signals with no timestamp; absence is not penalized
// at fetch time.
func withinWindow(published, cutoff time.Time) bool {
	if published.IsZero() || cutoff.IsZero() {
		return true
	}
	return !published.Before(cutoff)
}

// matchesKeywords reports whether any keyword appears in the title or
// description. An empty keyword set matches everything.
func matchesKeywords(s Signal, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	text := strings.ToLower(s.Title + " " + s.Description)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
