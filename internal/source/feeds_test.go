package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func rssBody(pubDate time.Time) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
  <title>Dev Blog</title>
  <item>
    <title>Profiling Go services in production</title>
    <link>https://blog.example.com/profiling-go</link>
    <description>&lt;p&gt;Using pprof and &lt;b&gt;tracing&lt;/b&gt; to find latency.&lt;/p&gt;</description>
    <author>jane@example.com (Jane)</author>
    <pubDate>%s</pubDate>
  </item>
  <item>
    <title>Office chairs reviewed</title>
    <link>https://blog.example.com/chairs</link>
    <pubDate>%s</pubDate>
  </item>
</channel></rss>`, pubDate.Format(time.RFC1123Z), pubDate.Format(time.RFC1123Z))
}

func TestFeedFetch(t *testing.T) {
	pub := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssBody(pub))
	}))
	defer srv.Close()

	f := NewFeed("devblog", srv.URL)
	signals, err := f.Fetch(context.Background(), Filter{Mode: ModeLatest})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(signals))
	}
	s := signals[0]
	if s.SourceID != "devblog" || s.Title != "Profiling Go services in production" {
		t.Errorf("unexpected signal: %+v", s)
	}
	// HTML is stripped from descriptions.
	if s.Description != "Using pprof and tracing to find latency." {
		t.Errorf("description = %q", s.Description)
	}
	if s.Published.IsZero() {
		t.Error("expected pubDate parsed")
	}
}

func TestFeedSearchFiltersByKeyword(t *testing.T) {
	pub := time.Now().UTC().Add(-2 * time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssBody(pub))
	}))
	defer srv.Close()

	f := NewFeed("devblog", srv.URL)
	signals, err := f.Fetch(context.Background(), Filter{Mode: ModeSearch, Keywords: []string{"pprof"}})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(signals) != 1 || signals[0].URL != "https://blog.example.com/profiling-go" {
		t.Errorf("expected only the matching item, got %+v", signals)
	}
}

func TestFeedMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not a feed")
	}))
	defer srv.Close()

	f := NewFeed("devblog", srv.URL)
	_, err := f.Fetch(context.Background(), Filter{Mode: ModeLatest})
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestFeedUnreachableIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(nil))
	srv.Close() // connection refused from here on

	f := NewFeed("devblog", srv.URL)
	_, err := f.Fetch(context.Background(), Filter{Mode: ModeLatest})
	if err == nil {
		t.Fatal("expected error for unreachable feed")
	}
	if errors.Is(err, ErrMalformed) {
		t.Error("connection failures must stay retryable, not malformed")
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"<p>hello <b>world</b></p>", "hello world"},
		{"no markup", "no markup"},
		{"<div>\n  spaced\n  out\n</div>", "spaced out"},
	}
	for _, tt := range tests {
		if got := stripHTML(tt.in); got != tt.want {
			t.Errorf("stripHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("abcdefghij", 8); got != "abcde..." {
		t.Errorf("truncate = %q, want abcde...", got)
	}
}
