package tree

import (
	"github.com/vanderheijden86/arbor/pkg/model"
)

// OpenNode shows the children of id. An unloaded node is loaded first and
// opened when the load lands; a node that is already loading is opened
// when the pending load completes, without a second fetch.
func (t *Tree) OpenNode(id string, done func(ok bool)) {
	if done == nil {
		done = func(bool) {}
	}
	if t.destroyed {
		done(false)
		return
	}
	n := t.nodes[id]
	if n == nil {
		done(false)
		return
	}
	if !n.State.Loaded {
		t.LoadNode(id, func(ok bool) {
			if !ok {
				done(false)
				return
			}
			t.OpenNode(id, done)
		})
		return
	}
	if n.IsRoot() || n.State.Opened {
		done(true)
		return
	}
	n.State.Opened = true
	t.markChanged(id, !t.adapter.HasChildrenBlock(id))
	t.emit(Event{Type: EventOpen, Node: id})
	done(true)
}

// CloseNode hides the children of id.
func (t *Tree) CloseNode(id string) {
	if t.destroyed {
		return
	}
	n := t.nodes[id]
	if n == nil || n.IsRoot() || !n.State.Opened {
		return
	}
	n.State.Opened = false
	t.markChanged(id, false)
	t.emit(Event{Type: EventClose, Node: id})
}

// ToggleNode opens a closed node and closes an open one.
func (t *Tree) ToggleNode(id string) {
	if t.IsOpen(id) {
		t.CloseNode(id)
		return
	}
	t.OpenNode(id, nil)
}

// IsOpen reports whether id is opened.
func (t *Tree) IsOpen(id string) bool {
	n := t.nodes[id]
	return n != nil && n.State.Opened
}

// IsLeaf reports whether id is loaded and has no visible child.
func (t *Tree) IsLeaf(id string) bool {
	return t.VisualOf(id) == VisualLeaf
}

// OpenAll loads the whole subtree of id and opens every node in it.
func (t *Tree) OpenAll(id string, done func(ok bool)) {
	if done == nil {
		done = func(bool) {}
	}
	t.LoadAll(id, func(ok bool) {
		if t.nodes[id] == nil {
			done(false)
			return
		}
		for _, d := range t.preorder(id, true) {
			if n := t.nodes[d]; n.State.Loaded && len(n.Children) > 0 {
				t.OpenNode(d, nil)
			}
		}
		done(ok)
	})
}

// CloseAll closes id and every descendant.
func (t *Tree) CloseAll(id string) {
	for _, d := range t.preorder(id, true) {
		t.CloseNode(d)
	}
}

// OpenTo opens every ancestor of id so it becomes visible.
func (t *Tree) OpenTo(id string) bool {
	n := t.nodes[id]
	if n == nil {
		return false
	}
	for i := len(n.Parents) - 1; i >= 0; i-- {
		if a := n.Parents[i]; a != model.RootID {
			t.OpenNode(a, nil)
		}
	}
	return true
}
