package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"signalscout/internal/source"
)

// stubAdapter scripts per-call behavior for one source.
type stubAdapter struct {
	signals []source.Signal
	err     error
	delay   time.Duration
	calls   atomic.Int32
}

func (a *stubAdapter) Fetch(ctx context.Context, f source.Filter) ([]source.Signal, error) {
	a.calls.Add(1)
	if a.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.delay):
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.signals, nil
}

// flakyAdapter fails a fixed number of times before succeeding.
type flakyAdapter struct {
	failures int
	signals  []source.Signal
	calls    atomic.Int32
}

func (a *flakyAdapter) Fetch(ctx context.Context, f source.Filter) ([]source.Signal, error) {
	n := int(a.calls.Add(1))
	if n <= a.failures {
		return nil, fmt.Errorf("connection reset (attempt %d)", n)
	}
	return a.signals, nil
}

func sig(id, sourceID, title string) source.Signal {
	return source.Signal{ID: id, SourceID: sourceID, Title: title, URL: "https://example.com/" + id}
}

func newSource(id string, a source.Adapter) *source.Source {
	return &source.Source{ID: id, Name: id, Adapter: a, Health: source.NewHealth(time.Minute)}
}

func filtersFor(ids ...string) map[string]source.Filter {
	m := map[string]source.Filter{}
	for _, id := range ids {
		m[id] = source.Filter{Mode: source.ModeSearch}
	}
	return m
}

func TestFetchAllMergesInRegistryOrder(t *testing.T) {
	// The second source answers slower, but signal order must follow
	// registry priority, not completion order.
	a := newSource("a", &stubAdapter{signals: []source.Signal{sig("a1", "a", "first")}, delay: 50 * time.Millisecond})
	b := newSource("b", &stubAdapter{signals: []source.Signal{sig("b1", "b", "second")}})
	reg := source.NewStaticRegistry([]*source.Source{a, b})

	f := New(reg, Options{Budget: 2 * time.Second}, zap.NewNop())
	res := f.FetchAll(context.Background(), filtersFor("a", "b"))

	if res.Degraded {
		t.Error("round should not be degraded")
	}
	if len(res.Signals) != 2 || res.Signals[0].ID != "a1" || res.Signals[1].ID != "b1" {
		t.Errorf("unexpected merge order: %+v", res.Signals)
	}
	if len(res.Used) != 2 || res.Used[0] != "a" {
		t.Errorf("unexpected used list: %v", res.Used)
	}
}

func TestFetchAllPartialFailure(t *testing.T) {
	ok := newSource("ok", &stubAdapter{signals: []source.Signal{sig("s1", "ok", "fine")}})
	bad := newSource("bad", &stubAdapter{err: errors.New("dns failure")})
	reg := source.NewStaticRegistry([]*source.Source{ok, bad})

	f := New(reg, Options{Retries: 1, BackoffBase: time.Millisecond}, zap.NewNop())
	res := f.FetchAll(context.Background(), filtersFor("ok", "bad"))

	if len(res.Signals) != 1 {
		t.Fatalf("expected the healthy source's signals, got %d", len(res.Signals))
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != "bad" {
		t.Errorf("skipped = %v, want [bad]", res.Skipped)
	}
	// A failed source is a partial result, not a degraded round.
	if res.Degraded {
		t.Error("individual source failure must not mark the round degraded")
	}
}

func TestFetchAllOneOfFiveFails(t *testing.T) {
	var sources []*source.Source
	for _, id := range []string{"a", "b", "c", "d"} {
		sources = append(sources, newSource(id, &stubAdapter{signals: []source.Signal{sig(id+"1", id, "story")}}))
	}
	sources = append(sources, newSource("e", &stubAdapter{err: errors.New("timeout")}))
	reg := source.NewStaticRegistry(sources)

	f := New(reg, Options{Retries: 2, BackoffBase: time.Millisecond}, zap.NewNop())
	res := f.FetchAll(context.Background(), filtersFor("a", "b", "c", "d", "e"))

	if len(res.Skipped) != 1 || res.Skipped[0] != "e" {
		t.Errorf("skipped = %v, want exactly [e]", res.Skipped)
	}
	if len(res.Signals) != 4 || len(res.Used) != 4 {
		t.Errorf("expected results from the 4 healthy sources, got %d signals from %v", len(res.Signals), res.Used)
	}
	if res.Degraded {
		t.Error("the budget was not exceeded; degraded must be false")
	}
}

func TestFetchAllRetriesThenSucceeds(t *testing.T) {
	flaky := &flakyAdapter{failures: 2, signals: []source.Signal{sig("f1", "flaky", "eventually")}}
	src := newSource("flaky", flaky)
	reg := source.NewStaticRegistry([]*source.Source{src})

	f := New(reg, Options{Retries: 2, BackoffBase: time.Millisecond}, zap.NewNop())
	res := f.FetchAll(context.Background(), filtersFor("flaky"))

	if len(res.Signals) != 1 {
		t.Fatalf("expected success after retries, got skipped=%v", res.Skipped)
	}
	if got := flaky.calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
	// The eventual success resets health.
	if st := src.Health.State(); st != source.Healthy {
		t.Errorf("health = %s, want healthy", st)
	}
}

func TestFetchAllOpensCircuitAfterExhaustedRetries(t *testing.T) {
	src := newSource("down", &stubAdapter{err: errors.New("connection refused")})
	reg := source.NewStaticRegistry([]*source.Source{src})

	f := New(reg, Options{Retries: 2, BackoffBase: time.Millisecond}, zap.NewNop())
	res := f.FetchAll(context.Background(), filtersFor("down"))

	if len(res.Skipped) != 1 {
		t.Fatalf("expected source skipped, got %v", res.Skipped)
	}
	// Three consecutive failed attempts open the circuit.
	if st := src.Health.State(); st != source.CircuitOpen {
		t.Errorf("health = %s, want circuit-open", st)
	}

	// The next round skips it without calling the adapter.
	adapter := src.Adapter.(*stubAdapter)
	before := adapter.calls.Load()
	res2 := f.FetchAll(context.Background(), filtersFor("down"))
	if adapter.calls.Load() != before {
		t.Error("circuit-open source must not be fetched")
	}
	if len(res2.Skipped) != 1 || res2.Skipped[0] != "down" {
		t.Errorf("skipped = %v, want [down]", res2.Skipped)
	}
}

func TestFetchAllMalformedNoRetryNoHealthPenalty(t *testing.T) {
	adapter := &stubAdapter{err: fmt.Errorf("decoding body: %w", source.ErrMalformed)}
	src := newSource("garbled", adapter)
	reg := source.NewStaticRegistry([]*source.Source{src})

	f := New(reg, Options{Retries: 2, BackoffBase: time.Millisecond}, zap.NewNop())
	res := f.FetchAll(context.Background(), filtersFor("garbled"))

	if len(res.Signals) != 0 {
		t.Errorf("expected no signals, got %d", len(res.Signals))
	}
	if len(res.Skipped) != 1 {
		t.Errorf("malformed source should land in skipped, got %v", res.Skipped)
	}
	if got := adapter.calls.Load(); got != 1 {
		t.Errorf("malformed payload must not be retried, got %d calls", got)
	}
	if st := src.Health.State(); st != source.Healthy {
		t.Errorf("malformed payload is not a transport failure; health = %s", st)
	}
}

// hangingAdapter never answers within the round; it only notices the
// context, long after the budget.
type hangingAdapter struct{}

func (hangingAdapter) Fetch(ctx context.Context, f source.Filter) ([]source.Signal, error) {
	<-ctx.Done()
	time.Sleep(200 * time.Millisecond)
	return nil, ctx.Err()
}

func TestFetchAllBudgetExpiryDegrades(t *testing.T) {
	fast := newSource("fast", &stubAdapter{signals: []source.Signal{sig("f1", "fast", "quick")}})
	slow := newSource("slow", hangingAdapter{})
	reg := source.NewStaticRegistry([]*source.Source{fast, slow})

	f := New(reg, Options{Budget: 100 * time.Millisecond, AttemptTimeout: time.Second}, zap.NewNop())
	res := f.FetchAll(context.Background(), filtersFor("fast", "slow"))

	if !res.Degraded {
		t.Error("expired budget must mark the round degraded")
	}
	if len(res.Signals) != 1 || res.Signals[0].ID != "f1" {
		t.Errorf("expected the fast source's signals, got %+v", res.Signals)
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != "slow" {
		t.Errorf("skipped = %v, want [slow]", res.Skipped)
	}
	// Abandonment at the budget is not a health observation.
	if st := slow.Health.State(); st != source.Healthy {
		t.Errorf("abandoned source health = %s, want healthy", st)
	}
}

func TestFetchAllOnlyFetchesFilteredSources(t *testing.T) {
	wanted := newSource("wanted", &stubAdapter{signals: []source.Signal{sig("w1", "wanted", "hit")}})
	other := &stubAdapter{}
	unwanted := newSource("unwanted", other)
	reg := source.NewStaticRegistry([]*source.Source{wanted, unwanted})

	f := New(reg, Options{}, zap.NewNop())
	res := f.FetchAll(context.Background(), filtersFor("wanted"))

	if other.calls.Load() != 0 {
		t.Error("unfiltered source must not be fetched")
	}
	if len(res.Used) != 1 || res.Used[0] != "wanted" {
		t.Errorf("used = %v, want [wanted]", res.Used)
	}
	if len(res.Skipped) != 0 {
		t.Errorf("unfiltered sources are not skipped, got %v", res.Skipped)
	}
}

func TestFetchAllEmptyFilters(t *testing.T) {
	reg := source.NewStaticRegistry([]*source.Source{newSource("a", &stubAdapter{})})
	f := New(reg, Options{}, zap.NewNop())

	res := f.FetchAll(context.Background(), map[string]source.Filter{})
	if len(res.Signals) != 0 || len(res.Used) != 0 || res.Degraded {
		t.Errorf("empty filter set should produce an empty result, got %+v", res)
	}
}
