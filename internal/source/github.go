package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GitHub fetches repositories via the search API. Trending mode
// approximates the trending page by restricting creation date to the
// query window and sorting by stars.
type GitHub struct {
	client  *http.Client
	baseURL string
	limit   int
}

func NewGitHub(client *http.Client) *GitHub {
	if client == nil {
		client = &http.Client{}
	}
	return &GitHub{
		client:  client,
		baseURL: "https://api.github.com",
		limit:   25,
	}
}

type ghSearchResponse struct {
	Items []struct {
		FullName    string `json:"full_name"`
		HTMLURL     string `json:"html_url"`
		Description string `json:"description"`
		Stars       int    `json:"stargazers_count"`
		PushedAt    string `json:"pushed_at"`
		Owner       struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"items"`
}

func (g *GitHub) Fetch(ctx context.Context, f Filter) ([]Signal, error) {
	terms := make([]string, 0, len(f.Keywords)+2)
	terms = append(terms, f.Keywords...)
	if f.Language != "" {
		terms = append(terms, "language:"+f.Language)
	}

	sort := "stars"
	switch f.Mode {
	case ModeTrending:
		cutoff := WindowCutoff(f.Window, time.Now())
		if cutoff.IsZero() {
			cutoff = time.Now().Add(-7 * 24 * time.Hour)
		}
		terms = append(terms, "created:>"+cutoff.Format("2006-01-02"))
	case ModeLatest:
		sort = "updated"
	}
	if len(terms) == 0 {
		terms = append(terms, "stars:>100")
	}

	q := url.Values{}
	q.Set("q", strings.Join(terms, " "))
	q.Set("sort", sort)
	q.Set("order", "desc")
	q.Set("per_page", fmt.Sprintf("%d", g.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.baseURL+"/search/repositories?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github returned %s", resp.Status)
	}

	var result ghSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding github search: %w", ErrMalformed)
	}

	signals := make([]Signal, 0, len(result.Items))
	for _, item := range result.Items {
		if item.FullName == "" {
			continue
		}
		stars := item.Stars
		s := Signal{
			ID:          "gh-" + item.FullName,
			SourceID:    "github",
			Title:       item.FullName,
			URL:         item.HTMLURL,
			Author:      item.Owner.Login,
			Description: item.Description,
			Popularity:  &stars,
		}
		if ts, err := time.Parse(time.RFC3339, item.PushedAt); err == nil {
			s.Published = ts.UTC()
		}
		signals = append(signals, s)
	}
	return signals, nil
}
