package engine

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"signalscout/internal/query"
	"signalscout/internal/source"
)

// Verdict is the outcome of evaluating a single URL against the caller's
// profile.
type Verdict struct {
	URL            string
	Title          string
	Description    string
	Score          int
	Tags           []string
	Recommendation string
	WorthReading   bool
}

const (
	readThreshold = 70
	skimThreshold = 50
)

// AnalyzeURL fetches one page, extracts its title and meta description,
// and runs it through the same scoring path as a fetch round.
func (e *Engine) AnalyzeURL(ctx context.Context, rawURL string, profileTags []string) (*Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	title, desc, err := e.fetchPageMeta(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}

	profile := e.profile(profileTags)
	sig := source.Signal{
		ID:          "web-" + rawURL,
		SourceID:    "web",
		Title:       title,
		URL:         rawURL,
		Description: desc,
	}
	qctx := query.Context{Intent: query.Search, Domain: query.General, Window: query.Unbounded}
	enriched := e.enricher.Enrich([]source.Signal{sig}, qctx, profile, e.now())
	if len(enriched) == 0 {
		return nil, fmt.Errorf("nothing to score for %s", rawURL)
	}

	es := enriched[0]
	v := &Verdict{
		URL:          rawURL,
		Title:        title,
		Description:  desc,
		Score:        es.FinalScore,
		Tags:         es.DetectedTags,
		WorthReading: es.FinalScore >= skimThreshold,
	}
	switch {
	case es.FinalScore >= readThreshold:
		v.Recommendation = "Highly relevant - read it"
	case es.FinalScore >= skimThreshold:
		v.Recommendation = "Somewhat relevant - skim it"
	default:
		v.Recommendation = "Low relevance - skip unless curious"
	}

	e.logger.Debug("url analyzed",
		zap.String("url", rawURL),
		zap.Int("score", v.Score),
		zap.Strings("tags", v.Tags))
	return v, nil
}

func (e *Engine) fetchPageMeta(ctx context.Context, rawURL string) (title, desc string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", "signalscout/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("parsing page: %w", err)
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = rawURL
	}
	desc, _ = doc.Find(`meta[name="description"]`).First().Attr("content")
	desc = strings.TrimSpace(desc)
	return title, desc, nil
}
