package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Feed fetches a syndication (RSS/Atom) feed. Feeds have no server-side
// query surface, so search mode filters items by keyword after parsing.
type Feed struct {
	id     string
	url    string
	parser *gofeed.Parser
	limit  int
}

func NewFeed(id, url string) *Feed {
	return &Feed{
		id:     id,
		url:    url,
		parser: gofeed.NewParser(),
		limit:  25,
	}
}

func (f *Feed) Fetch(ctx context.Context, filter Filter) ([]Signal, error) {
	feed, err := f.parser.ParseURLWithContext(f.url, ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var uerr *url.Error
		if errors.As(err, &uerr) {
			// transport failure, retryable
			return nil, err
		}
		return nil, fmt.Errorf("parsing feed %s: %w", f.id, ErrMalformed)
	}

	cutoff := WindowCutoff(filter.Window, time.Now())
	signals := make([]Signal, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Title == "" || item.Link == "" {
			continue
		}

		desc := item.Description
		if desc == "" {
			desc = item.Content
		}
		desc = truncate(stripHTML(desc), 300)

		author := ""
		if item.Author != nil {
			author = item.Author.Name
		}

		s := Signal{
			ID:          f.id + "-" + item.Link,
			SourceID:    f.id,
			Title:       item.Title,
			URL:         item.Link,
			Author:      author,
			Description: desc,
		}
		if item.PublishedParsed != nil {
			s.Published = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			s.Published = item.UpdatedParsed.UTC()
		}

		if !withinWindow(s.Published, cutoff) {
			continue
		}
		if filter.Mode == ModeSearch && !matchesKeywords(s, filter.Keywords) {
			continue
		}
		signals = append(signals, s)
		if len(signals) >= f.limit {
			break
		}
	}
	return signals, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
