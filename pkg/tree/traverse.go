package tree

import (
	"slices"
	"strings"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// Path joins the labels from the top-level ancestor down to id.
func (t *Tree) Path(id, sep string) string {
	n := t.nodes[id]
	if n == nil || n.IsRoot() {
		return ""
	}
	parts := make([]string, 0, len(n.Parents))
	for i := len(n.Parents) - 1; i >= 0; i-- {
		if a := n.Parents[i]; a != model.RootID {
			parts = append(parts, t.nodes[a].Text)
		}
	}
	parts = append(parts, n.Text)
	return strings.Join(parts, sep)
}

// Parents returns the ancestors of id, nearest first, root included.
func (t *Tree) Parents(id string) []string {
	if n := t.nodes[id]; n != nil {
		return slices.Clone(n.Parents)
	}
	return nil
}

// Descendants returns every loaded descendant of id in display order.
func (t *Tree) Descendants(id string) []string {
	return t.preorder(id, false)
}

// Visible returns the ids a full render would draw, in display order:
// children of open nodes, hidden nodes skipped.
func (t *Tree) Visible() []string {
	var out []string
	var walk func(*model.Node)
	walk = func(n *model.Node) {
		for _, c := range n.Children {
			cn := t.nodes[c]
			if cn == nil || cn.State.Hidden {
				continue
			}
			out = append(out, c)
			if cn.State.Opened && cn.State.Loaded {
				walk(cn)
			}
		}
	}
	walk(t.nodes[model.RootID])
	return out
}

// Next returns the node drawn after id, or "" at the end. An empty id
// yields the first visible node.
func (t *Tree) Next(id string) string {
	vis := t.Visible()
	if id == "" {
		if len(vis) == 0 {
			return ""
		}
		return vis[0]
	}
	i := slices.Index(vis, id)
	if i < 0 || i+1 >= len(vis) {
		return ""
	}
	return vis[i+1]
}

// Prev returns the node drawn before id, or "" at the start.
func (t *Tree) Prev(id string) string {
	vis := t.Visible()
	i := slices.Index(vis, id)
	if i <= 0 {
		return ""
	}
	return vis[i-1]
}
