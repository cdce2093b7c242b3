package source

import (
	"fmt"
	"net/http"
	"time"

	"signalscout/internal/config"
)

// kindDefaults binds an adapter kind to its class, metric, and the fetch
// modes it natively supports.
var kindDefaults = map[string]struct {
	class  Class
	metric Metric
	modes  []Mode
}{
	"hackernews": {ClassDiscussion, MetricPoints, []Mode{ModeTrending, ModeTop, ModeLatest, ModeSearch}},
	"lobsters":   {ClassDiscussion, MetricPoints, []Mode{ModeTrending, ModeTop, ModeLatest, ModeSearch}},
	"github":     {ClassCode, MetricStars, []Mode{ModeTrending, ModeTop, ModeLatest, ModeSearch}},
	"feed":       {ClassArticle, MetricNone, []Mode{ModeLatest, ModeSearch}},
	"arxiv":      {ClassResearch, MetricNone, []Mode{ModeLatest, ModeSearch}},
}

// Registry is the ordered source catalog shared by all queries.
type Registry struct {
	sources []*Source
	byID    map[string]*Source
}

// NewRegistry builds sources from config in declaration order. Registry
// order defines source priority for result tie-breaking.
func NewRegistry(cfg *config.Config, client *http.Client) (*Registry, error) {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	cooldown := cfg.CircuitCooldown()

	r := &Registry{byID: map[string]*Source{}}
	for i, sc := range cfg.EnabledSources() {
		defaults, ok := kindDefaults[sc.Kind]
		if !ok {
			return nil, fmt.Errorf("source %q: unknown kind %q", sc.ID, sc.Kind)
		}

		var adapter Adapter
		switch sc.Kind {
		case "hackernews":
			adapter = NewHackerNews(client)
		case "lobsters":
			adapter = NewLobsters(client)
		case "github":
			adapter = NewGitHub(client)
		case "feed":
			adapter = NewFeed(sc.ID, sc.URL)
		case "arxiv":
			adapter = NewArxiv(client)
		}

		weight := sc.Weight
		if weight == 0 {
			weight = 0.5
		}
		name := sc.Name
		if name == "" {
			name = sc.ID
		}

		src := &Source{
			ID:       sc.ID,
			Name:     name,
			Class:    defaults.class,
			Metric:   defaults.metric,
			Modes:    defaults.modes,
			Priority: i,
			Weight:   weight,
			Adapter:  adapter,
			Health:   NewHealth(cooldown),
		}
		r.sources = append(r.sources, src)
		r.byID[src.ID] = src
	}
	return r, nil
}

// NewStaticRegistry builds a registry from pre-assembled sources,
// bypassing config. Priority follows slice order.
func NewStaticRegistry(sources []*Source) *Registry {
	r := &Registry{byID: map[string]*Source{}}
	for i, s := range sources {
		s.Priority = i
		if s.Health == nil {
			s.Health = NewHealth(5 * time.Minute)
		}
		r.sources = append(r.sources, s)
		r.byID[s.ID] = s
	}
	return r
}

// All returns the sources in priority order.
func (r *Registry) All() []*Source {
	return r.sources
}

// Get looks up a source by id.
func (r *Registry) Get(id string) (*Source, bool) {
	s, ok := r.byID[id]
	return s, ok
}
