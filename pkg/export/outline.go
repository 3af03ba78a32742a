// Package export renders a loaded tree as a Markdown outline, an SVG
// drawing or a PNG image.
package export

import (
	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/tree"
)

// Options controls which nodes an export includes.
type Options struct {
	Title string
	// Root is the node whose descendants are exported (model.RootID if empty).
	Root string
	// Expanded includes loaded children of closed nodes. By default only
	// what a full render would draw is exported.
	Expanded bool
	// Hidden includes nodes with the hidden flag.
	Hidden bool
}

// Row is one line of an exported outline.
type Row struct {
	ID       string
	Text     string
	Icon     string
	Depth    int // relative to Options.Root
	Visual   tree.Visual
	Selected bool
	Disabled bool
	// Last reports whether the row is its parent's last exported child.
	Last bool
}

// Outline flattens the tree into rows in display order.
func Outline(t *tree.Tree, opts Options) []Row {
	root := opts.Root
	if root == "" {
		root = model.RootID
	}
	var rows []Row
	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		kids := make([]*model.Node, 0, len(t.Children(id)))
		for _, c := range t.Children(id) {
			n := t.Get(c)
			if n == nil || (n.State.Hidden && !opts.Hidden) {
				continue
			}
			kids = append(kids, n)
		}
		for i, n := range kids {
			rows = append(rows, Row{
				ID:       n.ID,
				Text:     n.Text,
				Icon:     n.Icon,
				Depth:    depth,
				Visual:   t.VisualOf(n.ID),
				Selected: n.State.Selected,
				Disabled: n.State.Disabled,
				Last:     i == len(kids)-1,
			})
			if n.State.Loaded && (n.State.Opened || opts.Expanded) {
				walk(n.ID, depth+1)
			}
		}
	}
	if t.Has(root) {
		walk(root, 0)
	}
	return rows
}

// summary counts the rows by flag.
type summary struct {
	total, selected, disabled, closed int
}

func summarize(rows []Row) summary {
	var s summary
	for _, r := range rows {
		s.total++
		if r.Selected {
			s.selected++
		}
		if r.Disabled {
			s.disabled++
		}
		if r.Visual == tree.VisualClosed {
			s.closed++
		}
	}
	return s
}
