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

const hnItemPage = "https://news.ycombinator.com/item?id="

// HackerNews fetches stories from the official Firebase API and falls back
// to the Algolia search API for keyword queries.
type HackerNews struct {
	client    *http.Client
	baseURL   string
	searchURL string
	limit     int
}

func NewHackerNews(client *http.Client) *HackerNews {
	if client == nil {
		client = &http.Client{}
	}
	return &HackerNews{
		client:    client,
		baseURL:   "https://hacker-news.firebaseio.com/v0",
		searchURL: "https://hn.algolia.com/api/v1",
		limit:     25,
	}
}

type hnItem struct {
	ID    int    `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
	By    string `json:"by"`
	Score int    `json:"score"`
	Time  int64  `json:"time"`
}

type hnSearchResponse struct {
	Hits []struct {
		ObjectID  string `json:"objectID"`
		Title     string `json:"title"`
		URL       string `json:"url"`
		Author    string `json:"author"`
		Points    int    `json:"points"`
		CreatedAt int64  `json:"created_at_i"`
	} `json:"hits"`
}

func (h *HackerNews) Fetch(ctx context.Context, f Filter) ([]Signal, error) {
	if f.Mode == ModeSearch {
		return h.search(ctx, f)
	}

	list := "topstories"
	switch f.Mode {
	case ModeTop:
		list = "beststories"
	case ModeLatest:
		list = "newstories"
	}

	var ids []int
	if err := h.getJSON(ctx, fmt.Sprintf("%s/%s.json", h.baseURL, list), &ids); err != nil {
		return nil, err
	}
	if len(ids) > h.limit {
		ids = ids[:h.limit]
	}

	cutoff := WindowCutoff(f.Window, time.Now())
	signals := make([]Signal, 0, len(ids))
	for _, id := range ids {
		var item hnItem
		if err := h.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", h.baseURL, id), &item); err != nil {
			// One broken story should not sink the round.
			continue
		}
		if item.Type != "story" || item.Title == "" {
			continue
		}
		s := h.toSignal(item)
		if !withinWindow(s.Published, cutoff) {
			continue
		}
		signals = append(signals, s)
	}
	return signals, nil
}

func (h *HackerNews) search(ctx context.Context, f Filter) ([]Signal, error) {
	q := url.Values{}
	q.Set("query", strings.Join(f.Keywords, " "))
	q.Set("tags", "story")

	var resp hnSearchResponse
	if err := h.getJSON(ctx, h.searchURL+"/search?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	cutoff := WindowCutoff(f.Window, time.Now())
	signals := make([]Signal, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		if hit.Title == "" {
			continue
		}
		link := hit.URL
		if link == "" {
			link = hnItemPage + hit.ObjectID
		}
		points := hit.Points
		s := Signal{
			ID:         "hn-" + hit.ObjectID,
			SourceID:   "hackernews",
			Title:      hit.Title,
			URL:        link,
			Author:     hit.Author,
			Popularity: &points,
		}
		if hit.CreatedAt > 0 {
			s.Published = time.Unix(hit.CreatedAt, 0).UTC()
		}
		if withinWindow(s.Published, cutoff) {
			signals = append(signals, s)
		}
		if len(signals) >= h.limit {
			break
		}
	}
	return signals, nil
}

func (h *HackerNews) toSignal(item hnItem) Signal {
	link := item.URL
	if link == "" {
		link = fmt.Sprintf("%s%d", hnItemPage, item.ID)
	}
	score := item.Score
	s := Signal{
		ID:         fmt.Sprintf("hn-%d", item.ID),
		SourceID:   "hackernews",
		Title:      item.Title,
		URL:        link,
		Author:     item.By,
		Popularity: &score,
	}
	if item.Time > 0 {
		s.Published = time.Unix(item.Time, 0).UTC()
	}
	return s
}

func (h *HackerNews) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hackernews returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", rawURL, ErrMalformed)
	}
	return nil
}
