package query

import (
	"strings"
	"unicode"
)

// Intent is the classified purpose behind a query.
type Intent string

const (
	Trending   Intent = "trending"
	Best       Intent = "best"
	Latest     Intent = "latest"
	Comparison Intent = "comparison"
	Search     Intent = "search"
)

// Domain narrows which source classes a query should reach.
type Domain string

const (
	Code     Domain = "code"
	Research Domain = "research"
	Tutorial Domain = "tutorial"
	General  Domain = "general"
)

// TimeWindow bounds how far back results should reach.
type TimeWindow string

const (
	Day       TimeWindow = "day"
	Week      TimeWindow = "week"
	Month     TimeWindow = "month"
	Unbounded TimeWindow = "unbounded"
)

// Profile carries the technology tags the caller cares about.
type Profile struct {
	Tags []string
}

// Context is the analyzed form of a free-text query. Built once per
// request and never mutated afterwards.
type Context struct {
	Intent   Intent
	Domain   Domain
	Keywords []string
	Language string
	Window   TimeWindow
}

// intentRules are evaluated in order; the first matching predicate wins.
// Adding an intent is a data change, not a control-flow change.
var intentRules = []struct {
	intent  Intent
	markers []string
}{
	{Trending, []string{"trending", "hot", "popular"}},
	{Best, []string{"best", "top", "recommended"}},
	{Latest, []string{"new", "latest", "recent"}},
	{Comparison, []string{"vs", "alternative", "alternatives", "instead of"}},
}

var domainMarkers = []struct {
	domain  Domain
	markers []string
}{
	{Research, []string{"paper", "papers", "arxiv", "research", "study"}},
	{Tutorial, []string{"tutorial", "guide", "how to", "howto", "learn"}},
	{Code, []string{
		"library", "framework", "compiler", "debugger", "cli", "sdk",
		"database", "kubernetes", "docker", "api", "repo", "repository",
		"package", "tool", "tooling", "linter", "runtime",
	}},
}

var windowMarkers = []struct {
	window  TimeWindow
	markers []string
}{
	{Day, []string{"today", "past day", "last 24 hours"}},
	{Week, []string{"this week", "past week", "last week"}},
	{Month, []string{"this month", "past month", "last month"}},
}

// languages is the fixed set of recognized programming-language names.
var languages = []string{
	"python", "javascript", "typescript", "go", "golang", "rust",
	"java", "ruby", "php", "swift", "kotlin", "scala", "elixir", "haskell",
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "is": true, "it": true, "its": true,
	"this": true, "that": true, "are": true, "was": true, "were": true, "be": true,
	"what": true, "whats": true, "when": true, "where": true, "who": true,
	"which": true, "why": true, "how": true, "should": true, "could": true,
	"would": true, "will": true, "can": true, "about": true, "into": true,
	"there": true, "here": true, "some": true, "more": true, "most": true,
	"other": true, "than": true, "then": true, "them": true, "they": true,
	"have": true, "has": true, "had": true, "does": true, "doing": true,
	"your": true, "yours": true, "mine": true, "ours": true, "their": true,
}

const maxKeywords = 5

// Analyze classifies free-text into a complete Context. It never fails:
// empty or unparseable text falls back to search/general/unbounded.
func Analyze(text string, profile *Profile) Context {
	normalized := normalize(text)
	tokens := strings.Fields(normalized)

	ctx := Context{
		Intent: Search,
		Domain: General,
		Window: Unbounded,
	}

	ctx.Intent = classifyIntent(normalized, tokens)
	ctx.Domain = classifyDomain(normalized, tokens)
	ctx.Keywords = extractKeywords(tokens)
	ctx.Language = detectLanguage(tokens)
	ctx.Window = detectWindow(normalized)

	// Trending queries are implicitly recent even without an explicit
	// marker ("what's trending" means this week, not all time).
	if ctx.Window == Unbounded && ctx.Intent == Trending {
		ctx.Window = Week
	}

	_ = profile // profile influences scoring, not analysis
	return ctx
}

func classifyIntent(normalized string, tokens []string) Intent {
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}
	for _, rule := range intentRules {
		for _, m := range rule.markers {
			if strings.Contains(m, " ") {
				if strings.Contains(normalized, m) {
					return rule.intent
				}
			} else if tokenSet[m] {
				return rule.intent
			}
		}
	}
	return Search
}

func classifyDomain(normalized string, tokens []string) Domain {
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}
	for _, rule := range domainMarkers {
		for _, m := range rule.markers {
			if strings.Contains(m, " ") {
				if strings.Contains(normalized, m) {
					return rule.domain
				}
			} else if tokenSet[m] {
				return rule.domain
			}
		}
	}
	return General
}

// extractKeywords keeps tokens of length >= 4 that are not stop words and
// returns up to 5 distinct tokens, most frequent first, first-seen order
// breaking frequency ties.
func extractKeywords(tokens []string) []string {
	counts := map[string]int{}
	var order []string
	for _, t := range tokens {
		if len(t) < 4 || stopWords[t] {
			continue
		}
		if counts[t] == 0 {
			order = append(order, t)
		}
		counts[t]++
	}

	// Stable selection: frequency descending, first-seen order for ties.
	selected := make([]string, len(order))
	copy(selected, order)
	for i := 1; i < len(selected); i++ {
		for j := i; j > 0 && counts[selected[j]] > counts[selected[j-1]]; j-- {
			selected[j], selected[j-1] = selected[j-1], selected[j]
		}
	}

	if len(selected) > maxKeywords {
		selected = selected[:maxKeywords]
	}
	return selected
}

func detectLanguage(tokens []string) string {
	for _, t := range tokens {
		for _, lang := range languages {
			if t == lang {
				if lang == "golang" {
					return "go"
				}
				return lang
			}
		}
	}
	return ""
}

func detectWindow(normalized string) TimeWindow {
	for _, rule := range windowMarkers {
		for _, m := range rule.markers {
			if strings.Contains(normalized, m) {
				return rule.window
			}
		}
	}
	return Unbounded
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r):
			b.WriteRune(r)
		case r == '+' || r == '#':
			// keep c++ and c# style names intact
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
