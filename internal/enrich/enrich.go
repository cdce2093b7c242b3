// Package enrich turns raw fetched signals into scored, deduplicated,
// clustered results. Scoring is deterministic for fixed inputs and a
// fixed clock.
package enrich

import (
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"signalscout/internal/config"
	"signalscout/internal/query"
	"signalscout/internal/source"
)

// Adjustment is one named scoring delta.
type Adjustment struct {
	Name  string `json:"name"`
	Delta int    `json:"delta"`
}

// Signal is a scored result. Built once per query execution and
// discarded with the response.
type Signal struct {
	source.Signal
	BaseScore    int
	Adjustments  []Adjustment
	FinalScore   int
	DetectedTags []string
	IsAuthority  bool
	ClusterID    string
	RelatedIDs   []string

	insertOrder int
	priority    int
}

const (
	personalizationPerTag = 10
	personalizationCap    = 30
	authorityCap          = 20
	freshnessFloor        = -30
	jaccardThreshold      = 0.3
)

// techTerms is the fixed technology dictionary scanned against title and
// description. Single words only; matching is per-token.
var techTerms = []string{
	"redis", "postgres", "postgresql", "mysql", "sqlite", "mongodb",
	"cassandra", "dragonfly", "memcached", "cache", "caching", "database",
	"databases", "kafka", "rabbitmq", "nats", "queue", "grpc", "graphql",
	"kubernetes", "docker", "terraform", "linux", "wasm", "webassembly",
	"python", "golang", "rust", "javascript", "typescript", "java",
	"ruby", "swift", "kotlin", "react", "vue", "angular", "nextjs",
	"django", "flask", "fastapi", "rails", "spring", "llm", "transformer",
	"embedding", "inference", "pytorch", "tensorflow", "performance",
	"latency", "security", "encryption", "observability", "tracing",
	"replication", "sharding", "consensus", "raft", "distributed",
}

// SourceInfo is the per-source data scoring needs: class for the research
// bonus, metric for popularity tiers, priority for tie-breaking.
type SourceInfo struct {
	Class    source.Class
	Metric   source.Metric
	Priority int
}

// Enricher scores and clusters signals. The authority directory is
// injected at construction and never mutated.
type Enricher struct {
	authorities map[string]map[string]float64
	sources     map[string]SourceInfo
}

// New builds an enricher from the authority directory and registry.
func New(authorities []config.Authority, reg *source.Registry) *Enricher {
	e := &Enricher{
		authorities: make(map[string]map[string]float64, len(authorities)),
		sources:     map[string]SourceInfo{},
	}
	for _, a := range authorities {
		tags := make(map[string]float64, len(a.Tags))
		for tag, w := range a.Tags {
			tags[strings.ToLower(tag)] = w
		}
		e.authorities[strings.ToLower(a.Name)] = tags
	}
	if reg != nil {
		for _, src := range reg.All() {
			e.sources[src.ID] = SourceInfo{Class: src.Class, Metric: src.Metric, Priority: src.Priority}
		}
	}
	return e
}

// Enrich deduplicates, scores, clusters, and sorts. The returned slice is
// ordered best-first; use SelectTop to apply the result limit.
func (e *Enricher) Enrich(raw []source.Signal, qctx query.Context, profile *query.Profile, now time.Time) []Signal {
	deduped := dedupe(raw)

	enriched := make([]Signal, 0, len(deduped))
	for i, s := range deduped {
		es := Signal{Signal: s, insertOrder: i}
		if info, ok := e.sources[s.SourceID]; ok {
			es.priority = info.Priority
		} else {
			es.priority = len(e.sources)
		}
		es.DetectedTags = detectTags(s.Title + " " + s.Description)
		es.BaseScore = baseScore(s, qctx.Keywords)
		es.Adjustments = e.adjustments(&es, profile, now)

		total := es.BaseScore
		for _, a := range es.Adjustments {
			total += a.Delta
		}
		es.FinalScore = clamp(total, 0, 100)
		enriched = append(enriched, es)
	}

	cluster(enriched, qctx.Keywords)

	sort.SliceStable(enriched, func(i, j int) bool {
		a, b := enriched[i], enriched[j]
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		if !a.Published.Equal(b.Published) {
			// more recent first; unknown timestamps sort last
			if a.Published.IsZero() || b.Published.IsZero() {
				return b.Published.IsZero()
			}
			return a.Published.After(b.Published)
		}
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		return a.insertOrder < b.insertOrder
	})
	return enriched
}

// SelectTop returns up to limit results. By default only cluster
// representatives (the best-scoring member) are kept; expand includes
// cluster members as well, still counted against the limit.
func SelectTop(enriched []Signal, limit int, expand bool) []Signal {
	if limit <= 0 {
		limit = 10
	}
	var out []Signal
	seenCluster := map[string]bool{}
	for _, s := range enriched {
		if !expand && s.ClusterID != "" {
			if seenCluster[s.ClusterID] {
				continue
			}
			seenCluster[s.ClusterID] = true
		}
		out = append(out, s)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// dedupe groups by normalized URL and keeps the instance with the richest
// metadata: having a timestamp beats having a popularity metric beats
// first-seen.
func dedupe(raw []source.Signal) []source.Signal {
	best := map[string]source.Signal{}
	bestRank := map[string]int{}
	var order []string

	for _, s := range raw {
		key := NormalizeURL(s.URL)
		r := richness(s)
		cur, seen := bestRank[key]
		if !seen {
			order = append(order, key)
		}
		// strict > keeps the first-seen instance on rank ties
		if !seen || r > cur {
			best[key] = s
			bestRank[key] = r
		}
	}

	out := make([]source.Signal, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

func richness(s source.Signal) int {
	r := 0
	if !s.Published.IsZero() {
		r += 2
	}
	if s.Popularity != nil {
		r++
	}
	return r
}

// trackingParams are stripped during URL normalization.
var trackingParams = map[string]bool{
	"utm_source": true, "utm_medium": true, "utm_campaign": true,
	"utm_term": true, "utm_content": true, "ref": true, "fbclid": true,
	"gclid": true, "mc_cid": true, "mc_eid": true,
}

// NormalizeURL lower-cases the host, strips tracking parameters and the
// fragment, and trims a trailing slash.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimSuffix(strings.ToLower(raw), "/")
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if trackingParams[strings.ToLower(param)] {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()
	return strings.TrimSuffix(u.String(), "/")
}

func detectTags(text string) []string {
	tokens := map[string]bool{}
	for _, t := range strings.Fields(strings.ToLower(text)) {
		tokens[strings.Trim(t, ".,;:!?()[]{}\"'")] = true
	}
	var tags []string
	for _, term := range techTerms {
		if tokens[term] {
			tags = append(tags, term)
		}
	}
	return tags
}

// baseScore is a heuristic in [0,100] built from title and description
// quality: a non-empty description and query keywords appearing in the
// title both raise it.
func baseScore(s source.Signal, keywords []string) int {
	score := 40
	if strings.TrimSpace(s.Title) == "" {
		score = 20
	}
	if strings.TrimSpace(s.Description) != "" {
		score += 20
	}

	title := strings.ToLower(s.Title)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(title, strings.ToLower(kw)) {
			hits++
		}
	}
	if hits > 3 {
		hits = 3
	}
	score += hits * 10
	return clamp(score, 0, 100)
}

// adjustments computes the independently-capped deltas. They are summed
// before the final clamp, never clamped individually against each other.
func (e *Enricher) adjustments(s *Signal, profile *query.Profile, now time.Time) []Adjustment {
	var adj []Adjustment

	if d := e.personalization(s, profile); d != 0 {
		adj = append(adj, Adjustment{Name: "personalization", Delta: d})
	}
	if d := e.authority(s); d != 0 {
		s.IsAuthority = true
		adj = append(adj, Adjustment{Name: "authority", Delta: d})
	}
	if d := e.sourceQuality(s); d != 0 {
		adj = append(adj, Adjustment{Name: "source quality", Delta: d})
	}
	if d := freshness(s.Published, now); d != 0 {
		adj = append(adj, Adjustment{Name: "freshness", Delta: d})
	}
	return adj
}

func (e *Enricher) personalization(s *Signal, profile *query.Profile) int {
	if profile == nil || len(profile.Tags) == 0 {
		return 0
	}
	profileTags := map[string]bool{}
	for _, t := range profile.Tags {
		profileTags[strings.ToLower(t)] = true
	}
	overlap := 0
	for _, tag := range s.DetectedTags {
		if profileTags[tag] {
			overlap++
		}
	}
	delta := overlap * personalizationPerTag
	if delta > personalizationCap {
		delta = personalizationCap
	}
	return delta
}

func (e *Enricher) authority(s *Signal) int {
	if s.Author == "" {
		return 0
	}
	tags, ok := e.authorities[strings.ToLower(s.Author)]
	if !ok {
		return 0
	}
	best := 0.0
	for _, tag := range s.DetectedTags {
		if w, found := tags[tag]; found && w > best {
			best = w
		}
	}
	if best == 0 {
		return 0
	}
	delta := int(math.Round(best * 20))
	if delta > authorityCap {
		delta = authorityCap
	}
	return delta
}

func (e *Enricher) sourceQuality(s *Signal) int {
	info, ok := e.sources[s.SourceID]
	if !ok {
		return 0
	}
	if info.Class == source.ClassResearch {
		return 10
	}
	if s.Popularity == nil {
		return 0
	}
	p := *s.Popularity
	switch info.Metric {
	case source.MetricStars:
		switch {
		case p >= 10000:
			return 15
		case p >= 5000:
			return 10
		case p >= 1000:
			return 5
		}
	case source.MetricPoints:
		switch {
		case p >= 500:
			return 15
		case p >= 250:
			return 10
		case p >= 50:
			return 5
		}
	}
	return 0
}

// freshness is the age penalty, always <= 0. Items without a timestamp
// are not penalized. The decay freezes at the day-14 value and never
// exceeds the -30 floor.
func freshness(published time.Time, now time.Time) int {
	if published.IsZero() {
		return 0
	}
	age := int(now.Sub(published).Hours() / 24)
	var penalty int
	switch {
	case age <= 3:
		penalty = 0
	case age <= 7:
		penalty = -2 * (age - 3)
	case age <= 14:
		penalty = -8 - 3*(age-7)
	default:
		penalty = -8 - 3*7
	}
	if penalty < freshnessFloor {
		penalty = freshnessFloor
	}
	return penalty
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
