package tree

import (
	"slices"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// Node store primitives. Every function here leaves the ancestor closure
// and children_d completeness intact on return.

// attach inserts a parsed subtree under parent at index. The subtree's
// nodes must already be in the store with correct Parents chains.
func (t *Tree) attach(parent *model.Node, index int, roots []string, all []string) {
	index = max(0, min(index, len(parent.Children)))
	parent.Children = slices.Insert(parent.Children, index, roots...)
	parent.ChildrenD.Add(all...)
	for _, a := range parent.Parents {
		if an := t.nodes[a]; an != nil {
			an.ChildrenD.Add(all...)
		}
	}
}

// detach unlinks n from its parent's children and from every ancestor's
// children_d without removing anything from the store.
func (t *Tree) detach(n *model.Node) (oldIndex int) {
	oldIndex = -1
	if p := t.nodes[n.Parent]; p != nil {
		oldIndex = p.IndexOf(n.ID)
		if oldIndex >= 0 {
			p.Children = slices.Delete(p.Children, oldIndex, oldIndex+1)
		}
	}
	for _, a := range n.Parents {
		if an := t.nodes[a]; an != nil {
			an.ChildrenD.Remove(n.ID)
			an.ChildrenD.RemoveSet(n.ChildrenD)
		}
	}
	return oldIndex
}

// removeSubtree deletes id and all of its descendants from the store, the
// parent's children, every ancestor's children_d and the selection. It
// returns the removed ids in pre-order and the subset that was selected.
// Pending loads inside the subtree are resolved as failed once the store
// is consistent again.
func (t *Tree) removeSubtree(id string) (removed, deselected []string) {
	n := t.nodes[id]
	if n == nil || n.IsRoot() {
		return nil, nil
	}
	removed = t.preorder(id, true)
	t.detach(n)

	var orphaned []*pendingLoad
	gone := model.NewIDSet(removed...)
	for _, rid := range removed {
		rn := t.nodes[rid]
		if rn != nil && rn.State.Selected {
			deselected = append(deselected, rid)
		}
		if pl := t.pending[rid]; pl != nil {
			orphaned = append(orphaned, pl)
			delete(t.pending, rid)
			loadsTotal.WithLabelValues("discarded").Inc()
		}
		delete(t.nodes, rid)
		delete(t.changed, rid)
	}
	if len(deselected) > 0 {
		t.selected = slices.DeleteFunc(t.selected, gone.Has)
	}
	for _, pl := range orphaned {
		for _, w := range pl.waiters {
			w(false)
		}
	}
	return removed, deselected
}

// preorder lists the descendants of id in display order, optionally
// including id itself.
func (t *Tree) preorder(id string, self bool) []string {
	n := t.nodes[id]
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.ChildrenD)+1)
	if self {
		out = append(out, id)
	}
	var walk func(*model.Node)
	walk = func(n *model.Node) {
		for _, c := range n.Children {
			out = append(out, c)
			if cn := t.nodes[c]; cn != nil {
				walk(cn)
			}
		}
	}
	walk(n)
	return out
}

// rebase rewrites the Parents chain of n and every descendant after n has
// been re-linked under newParent.
func (t *Tree) rebase(n *model.Node, newParent *model.Node) {
	oldLen := len(n.Parents)
	prefix := make([]string, 0, len(newParent.Parents)+1)
	prefix = append(prefix, newParent.ID)
	prefix = append(prefix, newParent.Parents...)

	n.Parent = newParent.ID
	n.Parents = slices.Clone(prefix)
	for d := range n.ChildrenD {
		dn := t.nodes[d]
		if dn == nil {
			continue
		}
		keep := len(dn.Parents) - oldLen
		chain := make([]string, 0, keep+len(prefix))
		chain = append(chain, dn.Parents[:keep]...)
		chain = append(chain, prefix...)
		dn.Parents = chain
	}
}
