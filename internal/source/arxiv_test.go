package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const arxivListing = `<html><body>
<h3>Fri, 13 Jun 2025 (showing 2 of 2 entries)</h3>
<dl>
  <dt>
    <a href="/abs/2506.01234" title="Abstract">arXiv:2506.01234</a>
  </dt>
  <dd>
    <div class="list-title">Title: Consensus Protocols Under Partial Synchrony</div>
    <div class="list-authors"><a href="/a/doe_j_1">Jane Doe</a></div>
    <p class="mathjax">Abstract: We study raft-style consensus with partial synchrony.</p>
  </dd>
  <dt>
    <a href="/abs/2506.05678" title="Abstract">arXiv:2506.05678</a>
  </dt>
  <dd>
    <div class="list-title">Title: Learned Embeddings for Log Search</div>
    <div class="list-authors"><a href="/a/smith_a_1">Alex Smith</a></div>
    <p class="mathjax">Abstract: Embedding models applied to structured logs.</p>
  </dd>
</dl>
</body></html>`

func TestArxivFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/list/cs/recent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, arxivListing)
	}))
	defer srv.Close()

	a := NewArxiv(srv.Client())
	a.baseURL = srv.URL

	signals, err := a.Fetch(context.Background(), Filter{Mode: ModeLatest})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(signals) != 2 {
		t.Fatalf("expected 2 papers, got %d", len(signals))
	}

	s := signals[0]
	if s.ID != "arxiv-2506.01234" {
		t.Errorf("id = %s", s.ID)
	}
	if s.Title != "Consensus Protocols Under Partial Synchrony" {
		t.Errorf("title = %q", s.Title)
	}
	if s.Author != "Jane Doe" {
		t.Errorf("author = %q", s.Author)
	}
	if s.Description != "We study raft-style consensus with partial synchrony." {
		t.Errorf("description = %q", s.Description)
	}
	want := time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC)
	if !s.Published.Equal(want) {
		t.Errorf("published = %v, want %v", s.Published, want)
	}
	if s.URL != srv.URL+"/abs/2506.01234" {
		t.Errorf("url = %s", s.URL)
	}
}

func TestArxivSearchFiltersByKeyword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, arxivListing)
	}))
	defer srv.Close()

	a := NewArxiv(srv.Client())
	a.baseURL = srv.URL

	signals, err := a.Fetch(context.Background(), Filter{Mode: ModeSearch, Keywords: []string{"consensus"}})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(signals) != 1 || signals[0].ID != "arxiv-2506.01234" {
		t.Errorf("expected only the consensus paper, got %+v", signals)
	}
}

func TestArxivServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewArxiv(srv.Client())
	a.baseURL = srv.URL

	if _, err := a.Fetch(context.Background(), Filter{Mode: ModeLatest}); err == nil {
		t.Error("expected error for 503")
	}
}
