package enrich

import (
	"fmt"
	"strings"
)

// cluster links every pair of signals whose term overlap exceeds the
// Jaccard threshold, then groups the linked graph with union-find.
// Linked pairs become cross-references of each other; each connected
// component of two or more members gets a cluster id.
func cluster(signals []Signal, keywords []string) {
	n := len(signals)
	if n < 2 {
		return
	}

	terms := make([]map[string]bool, n)
	for i := range signals {
		terms[i] = termSet(&signals[i], keywords)
	}

	uf := newUnionFind(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if jaccard(terms[i], terms[j]) > jaccardThreshold {
				uf.union(i, j)
				signals[i].RelatedIDs = append(signals[i].RelatedIDs, signals[j].ID)
				signals[j].RelatedIDs = append(signals[j].RelatedIDs, signals[i].ID)
			}
		}
	}

	// Cluster ids are numbered by the first member's position so the
	// assignment is stable for identical input.
	clusterNum := map[int]int{}
	next := 1
	for i := 0; i < n; i++ {
		root := uf.find(i)
		if uf.size(root) < 2 {
			continue
		}
		num, ok := clusterNum[root]
		if !ok {
			num = next
			next++
			clusterNum[root] = num
		}
		signals[i].ClusterID = fmt.Sprintf("c%d", num)
	}
}

// termSet is the signal's detected tags plus any query keywords found in
// its text.
func termSet(s *Signal, keywords []string) map[string]bool {
	set := make(map[string]bool, len(s.DetectedTags)+len(keywords))
	for _, t := range s.DetectedTags {
		set[t] = true
	}
	text := strings.ToLower(s.Title + " " + s.Description)
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if kw != "" && strings.Contains(text, kw) {
			set[kw] = true
		}
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

type unionFind struct {
	parent []int
	rank   []int
	count  []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
		count:  make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.count[i] = 1
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(x, y int) {
	rx, ry := uf.find(x), uf.find(y)
	if rx == ry {
		return
	}
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.count[rx] += uf.count[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
}

func (uf *unionFind) size(x int) int {
	return uf.count[uf.find(x)]
}
