package tree

import (
	"slices"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// addSelected marks id selected and appends it to the tracker. In single
// selection mode every other node is deselected first.
func (t *Tree) addSelected(id string) bool {
	n := t.nodes[id]
	if n == nil || n.IsRoot() || n.State.Selected {
		return false
	}
	if t.opts.SingleSelect {
		for _, other := range slices.Clone(t.selected) {
			t.removeSelected(other)
		}
	}
	n.State.Selected = true
	t.selected = append(t.selected, id)
	t.markChanged(id, false)
	return true
}

func (t *Tree) removeSelected(id string) bool {
	n := t.nodes[id]
	if n == nil || !n.State.Selected {
		return false
	}
	n.State.Selected = false
	if i := slices.Index(t.selected, id); i >= 0 {
		t.selected = slices.Delete(t.selected, i, i+1)
	}
	t.markChanged(id, false)
	return true
}

// SelectNode adds id to the selection. An unknown id is remembered while a
// background parse is running, or may still start, and applied if that parse
// brings it in. Otherwise it is ErrNotFound.
func (t *Tree) SelectNode(id string) error {
	if t.destroyed {
		return ErrDestroyed
	}
	n := t.nodes[id]
	if n == nil {
		if t.awaiting() {
			t.intents[id] = true
			return nil
		}
		return ErrNotFound
	}
	if n.IsRoot() {
		return ErrRootImmutable
	}
	if !t.addSelected(id) {
		return nil
	}
	t.adapter.Focus(id)
	t.emit(Event{Type: EventSelect, Node: id, IDs: t.Selected()})
	t.emitChanged(string(EventSelect), id)
	return nil
}

// awaiting reports whether a background parse may still merge nodes the
// caller can already name. Plain loads commit before the caller regains
// control of the selection, so they never count.
func (t *Tree) awaiting() bool {
	if t.inflight > 0 {
		return true
	}
	return t.worker != nil && t.sched.Deferred() && len(t.pending) > 0
}

// DeselectNode removes id from the selection.
func (t *Tree) DeselectNode(id string) error {
	if t.destroyed {
		return ErrDestroyed
	}
	if t.nodes[id] == nil {
		if t.awaiting() {
			t.intents[id] = false
			return nil
		}
		return ErrNotFound
	}
	if !t.removeSelected(id) {
		return nil
	}
	t.emit(Event{Type: EventDeselect, Node: id, IDs: t.Selected()})
	t.emitChanged(string(EventDeselect), id)
	return nil
}

// SelectAll selects every loaded node. In single selection mode only the
// last node in display order stays selected.
func (t *Tree) SelectAll() {
	if t.destroyed {
		return
	}
	changed := false
	for _, id := range t.preorder(model.RootID, false) {
		changed = t.addSelected(id) || changed
	}
	if changed {
		t.emit(Event{Type: EventSelectAll, IDs: t.Selected()})
		t.emitChanged(string(EventSelectAll), "")
	}
}

// DeselectAll clears the selection.
func (t *Tree) DeselectAll() {
	if t.destroyed || len(t.selected) == 0 {
		return
	}
	for _, id := range slices.Clone(t.selected) {
		t.removeSelected(id)
	}
	t.emit(Event{Type: EventDeselectAll})
	t.emitChanged(string(EventDeselectAll), "")
}

// Selected returns the selected ids in selection order.
func (t *Tree) Selected() []string {
	return slices.Clone(t.selected)
}

// SelectedNodes returns copies of the selected nodes.
func (t *Tree) SelectedNodes() []*model.Node {
	out := make([]*model.Node, 0, len(t.selected))
	for _, id := range t.selected {
		out = append(out, t.nodes[id].Clone())
	}
	return out
}

// IsSelected reports whether id is selected.
func (t *Tree) IsSelected(id string) bool {
	n := t.nodes[id]
	return n != nil && n.State.Selected
}

// TopSelected returns the selected nodes that have no selected ancestor.
func (t *Tree) TopSelected() []string {
	var out []string
	for _, id := range t.selected {
		n := t.nodes[id]
		covered := false
		for _, a := range n.Parents {
			if t.IsSelected(a) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, id)
		}
	}
	return out
}

// BottomSelected returns the selected nodes that have no selected descendant.
func (t *Tree) BottomSelected() []string {
	var out []string
	for _, id := range t.selected {
		n := t.nodes[id]
		covered := false
		for d := range n.ChildrenD {
			if t.IsSelected(d) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, id)
		}
	}
	return out
}
