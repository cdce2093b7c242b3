// Package filter maps an analyzed query onto per-source fetch
// configurations. Pure decision table, no I/O.
package filter

import (
	"signalscout/internal/query"
	"signalscout/internal/source"
)

// intentMode is the fetch mode each intent asks for. A source that does
// not support the mode is excluded from the round entirely rather than
// fetched with an empty filter.
var intentMode = map[query.Intent]source.Mode{
	query.Trending:   source.ModeTrending,
	query.Best:       source.ModeTop,
	query.Latest:     source.ModeLatest,
	query.Search:     source.ModeSearch,
	query.Comparison: source.ModeSearch,
}

// domainClasses is the set of source classes each domain may reach.
// nil means no restriction.
var domainClasses = map[query.Domain][]source.Class{
	query.Code:     {source.ClassCode, source.ClassDiscussion},
	query.Research: {source.ClassResearch},
	query.Tutorial: {source.ClassArticle},
	query.General:  nil,
}

// Select builds one filter per eligible source. Filters are never shared
// between sources.
func Select(ctx query.Context, sources []*source.Source) map[string]source.Filter {
	mode, ok := intentMode[ctx.Intent]
	if !ok {
		mode = source.ModeSearch
	}

	// Latest-intent research queries route only to research sources even
	// though latest is broadly supported.
	classes := domainClasses[ctx.Domain]

	filters := make(map[string]source.Filter)
	for _, src := range sources {
		if !classAllowed(src.Class, classes) {
			continue
		}
		if !src.Supports(mode) {
			continue
		}

		f := source.Filter{
			Mode:   mode,
			Window: ctx.Window,
		}
		switch mode {
		case source.ModeTrending:
			f.Language = ctx.Language
		case source.ModeTop, source.ModeSearch:
			f.Keywords = append([]string(nil), ctx.Keywords...)
			f.Language = ctx.Language
		case source.ModeLatest:
			f.Language = ctx.Language
		}
		filters[src.ID] = f
	}
	return filters
}

func classAllowed(c source.Class, allowed []source.Class) bool {
	if allowed == nil {
		return true
	}
	for _, a := range allowed {
		if a == c {
			return true
		}
	}
	return false
}
