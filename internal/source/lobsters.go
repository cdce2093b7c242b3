package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Lobsters fetches stories from the lobste.rs JSON endpoints. The site has
// no JSON search endpoint, so search mode filters the hottest page by
// keyword client-side.
type Lobsters struct {
	client  *http.Client
	baseURL string
	limit   int
}

func NewLobsters(client *http.Client) *Lobsters {
	if client == nil {
		client = &http.Client{}
	}
	return &Lobsters{
		client:  client,
		baseURL: "https://lobste.rs",
		limit:   25,
	}
}

type lobstersStory struct {
	ShortID       string   `json:"short_id"`
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Score         int      `json:"score"`
	CreatedAt     string   `json:"created_at"`
	Tags          []string `json:"tags"`
	CommentsURL   string   `json:"comments_url"`
	SubmitterUser string   `json:"submitter_user"`
}

func (l *Lobsters) Fetch(ctx context.Context, f Filter) ([]Signal, error) {
	page := "/hottest.json"
	if f.Mode == ModeLatest {
		page = "/newest.json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+page, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lobsters returned %s", resp.Status)
	}

	var stories []lobstersStory
	if err := json.NewDecoder(resp.Body).Decode(&stories); err != nil {
		return nil, fmt.Errorf("decoding lobsters stories: %w", ErrMalformed)
	}

	cutoff := WindowCutoff(f.Window, time.Now())
	signals := make([]Signal, 0, len(stories))
	for _, st := range stories {
		if st.Title == "" {
			continue
		}
		link := st.URL
		if link == "" {
			link = st.CommentsURL
		}
		score := st.Score
		s := Signal{
			ID:          "lobsters-" + st.ShortID,
			SourceID:    "lobsters",
			Title:       st.Title,
			URL:         link,
			Author:      st.SubmitterUser,
			Description: joinTags(st.Tags),
			Popularity:  &score,
		}
		if ts, err := time.Parse(time.RFC3339, st.CreatedAt); err == nil {
			s.Published = ts.UTC()
		}
		if !withinWindow(s.Published, cutoff) {
			continue
		}
		if f.Mode == ModeSearch && !matchesKeywords(s, f.Keywords) {
			continue
		}
		signals = append(signals, s)
		if len(signals) >= l.limit {
			break
		}
	}
	return signals, nil
}

func joinTags(tags []string) string {
	out := ""
	for i, t := range tags {
		if i > 0 {
			out += ", "
		}
		out += t
	}
	return out
}
