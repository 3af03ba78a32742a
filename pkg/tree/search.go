package tree

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// SearchResult is one fuzzy label match.
type SearchResult struct {
	ID             string
	Text           string
	Score          int
	MatchedIndexes []int
}

// labelSource exposes loaded node labels in display order to fuzzy.FindFrom.
type labelSource struct {
	t   *Tree
	ids []string
}

func (s labelSource) String(i int) string { return s.t.nodes[s.ids[i]].Text }
func (s labelSource) Len() int            { return len(s.ids) }

// Search fuzzy-matches query against the labels of every loaded node and
// returns matches best first. Hidden nodes are skipped. Ties keep display
// order.
func (t *Tree) Search(query string) []SearchResult {
	query = strings.TrimSpace(query)
	if query == "" || t.destroyed {
		return nil
	}
	src := labelSource{t: t}
	for _, id := range t.preorder(model.RootID, false) {
		if !t.nodes[id].State.Hidden {
			src.ids = append(src.ids, id)
		}
	}
	matches := fuzzy.FindFrom(query, src)
	out := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		out = append(out, SearchResult{
			ID:             src.ids[m.Index],
			Text:           m.Str,
			Score:          m.Score,
			MatchedIndexes: m.MatchedIndexes,
		})
	}
	return out
}
