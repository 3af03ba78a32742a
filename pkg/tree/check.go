package tree

import (
	"errors"
	"fmt"
	"slices"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// Check verifies the store's structural indexes: parent/children symmetry,
// ancestor chains, descendant sets and selection membership. A non-nil
// result is a programming error, never a user-facing one.
func (t *Tree) Check() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	for id, n := range t.nodes {
		if n.ID != id {
			add("node %q stored under key %q", n.ID, id)
		}
		if n.IsRoot() {
			continue
		}
		p := t.nodes[n.Parent]
		switch {
		case p == nil:
			add("node %q: parent %q missing", id, n.Parent)
			continue
		case p.IndexOf(id) < 0:
			add("node %q: not in children of parent %q", id, n.Parent)
		}
		if want := chainFor(p); !slices.Equal(n.Parents, want) {
			add("node %q: parents %v, expected %v", id, n.Parents, want)
		}
		for _, a := range n.Parents {
			if an := t.nodes[a]; an == nil || !an.ChildrenD.Has(id) {
				add("node %q: missing from children_d of ancestor %q", id, a)
			}
		}
	}

	for id, n := range t.nodes {
		seen := model.IDSet{}
		for _, c := range n.Children {
			if seen.Has(c) {
				add("node %q: child %q listed twice", id, c)
			}
			seen.Add(c)
			if cn := t.nodes[c]; cn == nil {
				add("node %q: child %q missing", id, c)
			} else if cn.Parent != id {
				add("node %q: child %q has parent %q", id, c, cn.Parent)
			}
		}
		reach := model.NewIDSet(t.preorder(id, false)...)
		if !reach.Equal(n.ChildrenD) {
			add("node %q: children_d has %d ids, %d reachable", id, n.ChildrenD.Len(), reach.Len())
		}
	}

	tracked := model.IDSet{}
	for _, id := range t.selected {
		if tracked.Has(id) {
			add("selection: %q listed twice", id)
		}
		tracked.Add(id)
		n := t.nodes[id]
		switch {
		case n == nil:
			add("selection: %q not in store", id)
		case !n.State.Selected:
			add("selection: %q tracked but not flagged", id)
		}
	}
	for id, n := range t.nodes {
		if n.State.Selected && !tracked.Has(id) {
			add("selection: %q flagged but not tracked", id)
		}
	}
	return errors.Join(errs...)
}
