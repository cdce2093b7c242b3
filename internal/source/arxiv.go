package source

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var arxivDateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// Arxiv scrapes recent-listing pages for computer-science categories.
// Research queries route here exclusively.
type Arxiv struct {
	client   *http.Client
	baseURL  string
	listPath string
	limit    int
}

func NewArxiv(client *http.Client) *Arxiv {
	if client == nil {
		client = &http.Client{}
	}
	return &Arxiv{
		client:   client,
		baseURL:  "https://arxiv.org",
		listPath: "/list/cs/recent",
		limit:    25,
	}
}

func (a *Arxiv) Fetch(ctx context.Context, f Filter) ([]Signal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+a.listPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "signalscout/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing arxiv listing: %w", ErrMalformed)
	}

	// The listing shares one dateline per <dl> block.
	published := time.Time{}
	if match := arxivDateExpr.FindString(doc.Find("h3").First().Text()); match != "" {
		if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
			published = parsed.UTC()
		}
	}

	cutoff := WindowCutoff(f.Window, time.Now())
	var signals []Signal
	doc.Find("dl > dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
		dd := dt.Next()

		link := dt.Find(`a[href*="/abs/"]`).First()
		href, _ := link.Attr("href")
		if href == "" {
			return true
		}
		if !strings.HasPrefix(href, "http") {
			href = a.baseURL + href
		}

		title := strings.TrimSpace(dd.Find(".list-title").First().Text())
		title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))
		if title == "" {
			return true
		}

		abstract := strings.TrimSpace(dd.Find(".mathjax").First().Text())
		abstract = strings.TrimSpace(strings.TrimPrefix(abstract, "Abstract:"))

		authors := strings.TrimSpace(dd.Find(".list-authors a").First().Text())

		s := Signal{
			ID:          "arxiv-" + strings.TrimPrefix(href, a.baseURL+"/abs/"),
			SourceID:    "arxiv",
			Title:       title,
			URL:         href,
			Author:      authors,
			Description: truncate(abstract, 300),
			Published:   published,
		}
		if !withinWindow(s.Published, cutoff) {
			return true
		}
		if f.Mode == ModeSearch && !matchesKeywords(s, f.Keywords) {
			return true
		}
		signals = append(signals, s)
		return len(signals) < a.limit
	})

	return signals, nil
}
