package tree

import (
	"fmt"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// chainFor returns the Parents value for a new child of n.
func chainFor(n *model.Node) []string {
	chain := make([]string, 0, len(n.Parents)+1)
	chain = append(chain, n.ID)
	return append(chain, n.Parents...)
}

// merge assigns final ids to a fragment and inserts its nodes into the
// store. It does not link the fragment's roots under the target; callers
// do that with attach (create, copy) or by replacing the children (load).
// Validation happens before the first write, so a failed merge leaves the
// store untouched.
//
// Temporary keys get fresh ids. Explicit nested ids that collide with the
// store are re-invented; explicit flat ids that collide fail the merge.
func (t *Tree) merge(f *fragment) error {
	remap := make(map[string]string)
	for _, key := range f.order {
		if _, clash := t.nodes[key]; clash {
			if f.flat {
				return fmt.Errorf("%w: %q already exists", ErrDuplicateID, key)
			}
			remap[key] = ""
		} else if f.invented.Has(key) {
			remap[key] = ""
		}
	}
	if len(remap) > 0 {
		taken := func(id string) bool {
			if _, inFrag := f.nodes[id]; inFrag {
				return true
			}
			_, used := remap[id]
			return used
		}
		for _, key := range f.order {
			if v, ok := remap[key]; ok && v == "" {
				remap[key] = t.newID(taken)
			}
		}
		f.rename(remap)
	}
	for _, id := range f.order {
		t.nodes[id] = f.nodes[id]
	}
	return nil
}

// rename rewrites every key in the fragment through remap.
func (f *fragment) rename(remap map[string]string) {
	re := func(id string) string {
		if v, ok := remap[id]; ok {
			return v
		}
		return id
	}
	nodes := make(map[string]*model.Node, len(f.nodes))
	for key, n := range f.nodes {
		n.ID = re(n.ID)
		n.Parent = re(n.Parent)
		for i, p := range n.Parents {
			n.Parents[i] = re(p)
		}
		for i, c := range n.Children {
			n.Children[i] = re(c)
		}
		if len(n.ChildrenD) > 0 {
			d := make(model.IDSet, len(n.ChildrenD))
			for c := range n.ChildrenD {
				d.Add(re(c))
			}
			n.ChildrenD = d
		}
		nodes[re(key)] = n
	}
	f.nodes = nodes
	for i, k := range f.roots {
		f.roots[i] = re(k)
	}
	for i, k := range f.order {
		f.order[i] = re(k)
	}
	for i, k := range f.selected {
		f.selected[i] = re(k)
	}
	f.invented = model.IDSet{}
}

// reconcileSelection applies a merged fragment's selection. The live
// selection is never overwritten: payload-selected nodes are added, and
// select/deselect intents recorded for ids that did not exist yet while a
// background parse was outstanding win over the payload. It reports
// whether the selection changed.
func (t *Tree) reconcileSelection(f *fragment) bool {
	changed := false
	for _, id := range f.selected {
		if want, ok := t.intents[id]; ok && !want {
			continue
		}
		if t.addSelected(id) {
			changed = true
		}
	}
	for id, want := range t.intents {
		if _, ok := f.nodes[id]; !ok {
			continue
		}
		if want {
			changed = t.addSelected(id) || changed
		} else {
			changed = t.removeSelected(id) || changed
		}
		delete(t.intents, id)
	}
	return changed
}
