package tree

import (
	"slices"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// Snapshot is the transient view state of a tree: which nodes are open,
// which are selected and where the viewport is.
type Snapshot struct {
	Open     []string `json:"open"`
	Selected []string `json:"selected"`
	Scroll   Scroll   `json:"scroll"`
}

// GetState captures the open nodes in display order, the selection and the
// adapter's scroll position.
func (t *Tree) GetState() Snapshot {
	s := Snapshot{
		Open:     []string{},
		Selected: t.Selected(),
		Scroll:   t.adapter.Scroll(),
	}
	for _, id := range t.preorder(model.RootID, false) {
		if n := t.nodes[id]; n.State.Opened && n.State.Loaded {
			s.Open = append(s.Open, id)
		}
	}
	return s
}

// SetState replays a snapshot: open nodes are loaded and opened, then the
// selection is replaced and the scroll position restored. Ids that no
// longer exist are skipped. done may be nil.
func (t *Tree) SetState(s Snapshot, done func(ok bool)) {
	if done == nil {
		done = func(bool) {}
	}
	if t.destroyed {
		done(false)
		return
	}
	open := slices.Clone(s.Open)
	t.LoadNodes(open, func(ok bool) {
		for _, id := range open {
			if t.IsLoaded(id) {
				t.OpenNode(id, nil)
			}
		}
		t.DeselectAll()
		for _, id := range s.Selected {
			if t.Has(id) {
				t.SelectNode(id)
			}
		}
		t.adapter.RestoreScroll(s.Scroll)
		t.emit(Event{Type: EventSetState, IDs: t.Selected()})
		done(ok)
	})
}

// Refresh reloads the whole tree and replays the state captured before the
// reload.
func (t *Tree) Refresh(done func(ok bool)) {
	if done == nil {
		done = func(bool) {}
	}
	if t.destroyed {
		done(false)
		return
	}
	snap := t.GetState()
	t.emit(Event{Type: EventRefresh, Node: model.RootID})
	t.LoadNode(model.RootID, func(ok bool) {
		if !ok {
			done(false)
			return
		}
		t.Redraw()
		t.SetState(snap, done)
	})
}

// RefreshNode reloads the subtree of id, reopening and reselecting the
// descendants that come back.
func (t *Tree) RefreshNode(id string, done func(ok bool)) {
	if done == nil {
		done = func(bool) {}
	}
	n := t.nodes[id]
	if t.destroyed || n == nil {
		done(false)
		return
	}
	var open, selected []string
	for _, d := range t.preorder(id, false) {
		dn := t.nodes[d]
		if dn.State.Opened {
			open = append(open, d)
		}
		if dn.State.Selected {
			selected = append(selected, d)
		}
	}
	wasOpen := n.State.Opened
	t.emit(Event{Type: EventRefresh, Node: id})
	t.LoadNode(id, func(ok bool) {
		if !ok {
			done(false)
			return
		}
		t.LoadNodes(open, func(bool) {
			for _, d := range open {
				if t.IsLoaded(d) {
					t.OpenNode(d, nil)
				}
			}
			for _, d := range selected {
				if t.Has(d) {
					t.SelectNode(d)
				}
			}
			if wasOpen {
				t.OpenNode(id, nil)
			}
			done(true)
		})
	})
}
