package tree

import (
	"slices"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// afterLoad loads id and then runs replay. When the load completes within
// the call (synchronous fetchers on an inline scheduler) replay's error is
// returned; otherwise ErrPending is, and replay runs when the load lands.
func (t *Tree) afterLoad(id string, replay func() error) error {
	ran := false
	var err error
	t.LoadNode(id, func(ok bool) {
		ran = true
		if !ok {
			err = ErrLoadFailed
			return
		}
		err = replay()
	})
	if ran {
		return err
	}
	return ErrPending
}

// CreateNode parses rec as a nested record and inserts it under parent at
// pos. It returns the id of the new node. An unloaded target parent is
// loaded first.
func (t *Tree) CreateNode(parent string, rec model.Record, pos Position) (string, error) {
	if t.destroyed {
		return "", t.destroyedErr(OpCreate)
	}
	par := t.nodes[parent]
	if par == nil {
		return "", t.fail(KindConflict, OpCreate, "", parent, -1, ErrInvalidParent)
	}
	target, idx := t.resolve(par, pos)
	if !target.State.Loaded {
		var id string
		err := t.afterLoad(target.ID, func() error {
			var err error
			id, err = t.CreateNode(parent, rec, pos)
			return err
		})
		return id, err
	}

	rc := rec.Clone()
	if err := t.gate(CheckRequest{Op: OpCreate, Record: &rc, Parent: target.Clone(), Position: idx}); err != nil {
		return "", t.report(err)
	}
	f, err := parsePayload(t.ctx, parseRequest{target: target.ID, chain: chainFor(target), payload: model.NestedPayload{rc}})
	if err != nil {
		return "", t.report(parseError(OpCreate, "", err))
	}
	if err := t.merge(f); err != nil {
		return "", t.report(parseError(OpCreate, "", err))
	}
	t.attach(target, idx, f.roots, f.order)
	if t.reconcileSelection(f) {
		t.emitChanged(OpCreate, f.roots[0])
	}
	t.markStructural(target.ID)

	id := f.roots[0]
	t.succeeded(OpCreate)
	t.emit(Event{Type: EventCreate, Node: id, Parent: target.ID, Position: idx})
	return id, nil
}

// RenameNode replaces the label of id.
func (t *Tree) RenameNode(id, text string) error {
	if t.destroyed {
		return t.destroyedErr(OpRename)
	}
	n := t.nodes[id]
	switch {
	case n == nil:
		return t.fail(KindConflict, OpRename, id, "", -1, ErrNotFound)
	case n.IsRoot():
		return t.fail(KindConflict, OpRename, id, "", -1, ErrRootImmutable)
	}
	if err := t.gate(CheckRequest{Op: OpRename, Node: n.Clone(), Parent: t.nodes[n.Parent].Clone(), Position: -1}); err != nil {
		return t.report(err)
	}
	old := n.Text
	n.Text = text
	t.markChanged(id, false)
	t.succeeded(OpRename)
	t.emit(Event{Type: EventRename, Node: id, Parent: n.Parent, Text: text, OldText: old})
	return nil
}

// DeleteNode removes each id with its whole subtree. Every id is checked
// before anything is removed, so a denial leaves the tree untouched. A
// single changed event reports selected nodes that went away.
func (t *Tree) DeleteNode(ids ...string) error {
	if t.destroyed {
		return t.destroyedErr(OpDelete)
	}
	multi := len(ids) > 1
	for _, id := range ids {
		n := t.nodes[id]
		switch {
		case n == nil:
			return t.fail(KindConflict, OpDelete, id, "", -1, ErrNotFound)
		case n.IsRoot():
			return t.fail(KindConflict, OpDelete, id, "", -1, ErrRootImmutable)
		}
		par := t.nodes[n.Parent]
		if err := t.gate(CheckRequest{Op: OpDelete, Node: n.Clone(), Parent: par.Clone(), Position: par.IndexOf(id), Multi: multi}); err != nil {
			return t.report(err)
		}
	}
	var deselected []string
	for _, id := range ids {
		if t.nodes[id] == nil {
			continue // inside an earlier id's subtree
		}
		deselected = append(deselected, t.deleteOne(id)...)
	}
	if len(deselected) > 0 {
		t.emitChanged(OpDelete, "")
	}
	return nil
}

// deleteOne removes id without consulting the gate and returns the
// selected ids that were removed.
func (t *Tree) deleteOne(id string) []string {
	n := t.nodes[id]
	parent := n.Parent
	idx := t.nodes[parent].IndexOf(id)
	focused := t.adapter.FocusedID()
	removed, deselected := t.removeSubtree(id)
	t.markStructural(parent)
	if focused != "" && slices.Contains(removed, focused) {
		t.refocus(parent)
	}
	t.succeeded(OpDelete)
	t.emit(Event{Type: EventDelete, Node: id, Parent: parent, Position: idx, IDs: removed})
	return deselected
}

// refocus hands focus to parent, or to the first top-level node when the
// parent is the root.
func (t *Tree) refocus(parent string) {
	if parent == model.RootID {
		parent = ""
		if root := t.nodes[model.RootID]; len(root.Children) > 0 {
			parent = root.Children[0]
		}
	}
	t.adapter.Focus(parent)
}

// MoveNode moves ids under parent at pos. The first id is placed at pos;
// each following id is placed after the previously moved one, so a
// multi-selection keeps its order.
func (t *Tree) MoveNode(ids []string, parent string, pos Position) error {
	return t.moveNodes(nil, ids, parent, pos)
}

// MoveNodeFrom moves ids out of origin, another tree instance, into this
// one. The nodes keep their ids where they do not collide, their state and
// their data; they are deleted from origin afterwards.
func (t *Tree) MoveNodeFrom(origin *Tree, ids []string, parent string, pos Position) error {
	return t.moveNodes(origin, ids, parent, pos)
}

func (t *Tree) moveNodes(origin *Tree, ids []string, parent string, pos Position) error {
	if t.destroyed {
		return t.destroyedErr(OpMove)
	}
	if origin == t {
		origin = nil
	}
	if origin != nil && origin.destroyed {
		return t.fail(KindConflict, OpMove, "", parent, -1, ErrDestroyed)
	}
	par := t.nodes[parent]
	if par == nil {
		return t.fail(KindConflict, OpMove, "", parent, -1, ErrInvalidParent)
	}
	if target, _ := t.resolve(par, pos); !target.State.Loaded {
		return t.afterLoad(target.ID, func() error { return t.moveNodes(origin, ids, parent, pos) })
	}
	if err := t.checkMove(origin, ids, par, pos); err != nil {
		return err
	}
	multi := len(ids) > 1
	carried := model.NewIDSet()
	prev := ""
	for _, id := range ids {
		p, ps := par, pos
		if prev != "" {
			p, ps = t.nodes[prev], After
		}
		var err error
		if origin != nil {
			if carried.Has(id) {
				continue // moved with an earlier id's subtree
			}
			carried.Add(id)
			carried.AddSet(origin.nodes[id].ChildrenD)
			prev, err = t.moveForeign(origin, id, p, ps, multi)
		} else {
			prev, err = t.moveOne(id, p, ps, multi)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// checkMove rejects a move before anything is applied when any id is
// missing, is the root, or would become its own descendant. Every id after
// the first lands next to the previous one, so all share the first target.
func (t *Tree) checkMove(origin *Tree, ids []string, par *model.Node, pos Position) error {
	src := t
	if origin != nil {
		src = origin
	}
	target, idx := t.resolve(par, pos)
	for _, id := range ids {
		n := src.nodes[id]
		switch {
		case n == nil:
			return t.fail(KindConflict, OpMove, id, target.ID, -1, ErrNotFound)
		case n.IsRoot():
			return t.fail(KindConflict, OpMove, id, target.ID, -1, ErrRootImmutable)
		case origin == nil && (target.ID == id || n.ChildrenD.Has(target.ID)):
			return t.fail(KindConflict, OpMove, id, target.ID, idx, ErrCycle)
		}
	}
	return nil
}

// moveOne relocates id inside this instance and returns its id.
func (t *Tree) moveOne(id string, par *model.Node, pos Position, multi bool) (string, error) {
	n := t.nodes[id]
	switch {
	case n == nil:
		return "", t.fail(KindConflict, OpMove, id, par.ID, -1, ErrNotFound)
	case n.IsRoot():
		return "", t.fail(KindConflict, OpMove, id, par.ID, -1, ErrRootImmutable)
	}
	target, idx := t.resolve(par, pos)
	if target.ID == n.ID || n.ChildrenD.Has(target.ID) {
		return "", t.fail(KindConflict, OpMove, id, target.ID, idx, ErrCycle)
	}
	if err := t.gate(CheckRequest{Op: OpMove, Node: n.Clone(), Parent: target.Clone(), Position: idx, Multi: multi}); err != nil {
		return "", t.report(err)
	}

	oldParent := t.nodes[n.Parent]
	oldIdx := oldParent.IndexOf(id)
	focused := t.adapter.FocusedID()
	movesFocus := focused != "" && (focused == id || n.ChildrenD.Has(focused))

	if oldParent == target {
		if idx > oldIdx {
			idx--
		}
		target.Children = slices.Delete(target.Children, oldIdx, oldIdx+1)
		idx = min(idx, len(target.Children))
		target.Children = slices.Insert(target.Children, idx, id)
		t.markStructural(target.ID)
	} else {
		t.detach(n)
		t.rebase(n, target)
		moved := make([]string, 0, len(n.ChildrenD)+1)
		moved = append(moved, id)
		for d := range n.ChildrenD {
			moved = append(moved, d)
		}
		t.attach(target, idx, []string{id}, moved)
		t.markStructural(oldParent.ID)
		t.markStructural(target.ID)
	}
	if movesFocus {
		t.refocus(oldParent.ID)
	}
	t.succeeded(OpMove)
	t.emit(Event{
		Type:        EventMove,
		Node:        id,
		Parent:      target.ID,
		Position:    idx,
		OldParent:   oldParent.ID,
		OldPosition: oldIdx,
	})
	return id, nil
}

// moveForeign serializes id from origin, parses it into this tree and
// deletes it from origin. Both gates are consulted before any mutation.
func (t *Tree) moveForeign(origin *Tree, id string, par *model.Node, pos Position, multi bool) (string, error) {
	n := origin.nodes[id]
	switch {
	case n == nil:
		return "", t.fail(KindConflict, OpMove, id, par.ID, -1, ErrNotFound)
	case n.IsRoot():
		return "", t.fail(KindConflict, OpMove, id, par.ID, -1, ErrRootImmutable)
	}
	target, idx := t.resolve(par, pos)
	oldParent := origin.nodes[n.Parent]
	oldIdx := oldParent.IndexOf(id)
	if err := origin.gate(CheckRequest{Op: OpDelete, Node: n.Clone(), Parent: oldParent.Clone(), Position: oldIdx, Multi: multi}); err != nil {
		err.Op = OpMove
		return "", t.report(err)
	}
	req := CheckRequest{Op: OpMove, Node: n.Clone(), Parent: target.Clone(), Position: idx, Origin: origin.id, Foreign: true, Multi: multi}
	if err := t.gate(req); err != nil {
		return "", t.report(err)
	}

	rec := origin.toRecord(n, JSONOptions{})
	f, err := parsePayload(t.ctx, parseRequest{target: target.ID, chain: chainFor(target), payload: model.NestedPayload{rec}})
	if err != nil {
		return "", t.report(parseError(OpMove, id, err))
	}
	if err := t.merge(f); err != nil {
		return "", t.report(parseError(OpMove, id, err))
	}
	t.attach(target, idx, f.roots, f.order)
	if t.reconcileSelection(f) {
		t.emitChanged(OpMove, f.roots[0])
	}
	t.markStructural(target.ID)

	if desel := origin.deleteOne(id); len(desel) > 0 {
		origin.emitChanged(OpDelete, "")
	}
	placed := f.roots[0]
	t.succeeded(OpMove)
	t.emit(Event{
		Type:        EventMove,
		Node:        placed,
		Parent:      target.ID,
		Position:    idx,
		OldParent:   oldParent.ID,
		OldPosition: oldIdx,
		Origin:      origin.id,
		Original:    id,
	})
	return placed, nil
}

// CopyNode copies ids under parent at pos. Copies get fresh ids and
// default state but keep text, icon, data and attributes. Multiple ids
// chain "after" the previous copy, like MoveNode.
func (t *Tree) CopyNode(ids []string, parent string, pos Position) ([]string, error) {
	return t.copyNodes(t, ids, parent, pos)
}

// CopyNodeFrom copies ids out of origin into this tree. origin is not
// modified.
func (t *Tree) CopyNodeFrom(origin *Tree, ids []string, parent string, pos Position) ([]string, error) {
	return t.copyNodes(origin, ids, parent, pos)
}

func (t *Tree) copyNodes(origin *Tree, ids []string, parent string, pos Position) ([]string, error) {
	if t.destroyed {
		return nil, t.destroyedErr(OpCopy)
	}
	if origin == nil {
		origin = t
	}
	if origin.destroyed {
		return nil, t.fail(KindConflict, OpCopy, "", parent, -1, ErrDestroyed)
	}
	par := t.nodes[parent]
	if par == nil {
		return nil, t.fail(KindConflict, OpCopy, "", parent, -1, ErrInvalidParent)
	}
	if target, _ := t.resolve(par, pos); !target.State.Loaded {
		var copies []string
		err := t.afterLoad(target.ID, func() error {
			var err error
			copies, err = t.copyNodes(origin, ids, parent, pos)
			return err
		})
		return copies, err
	}

	// Snapshot every source first so copying into a source's own subtree
	// does not copy the copy.
	recs := make([]model.Record, len(ids))
	srcs := make([]*model.Node, len(ids))
	for i, id := range ids {
		n := origin.nodes[id]
		if n == nil || n.IsRoot() {
			return nil, t.fail(KindConflict, OpCopy, id, parent, -1, ErrNotFound)
		}
		srcs[i] = n
		recs[i] = origin.toRecord(n, JSONOptions{NoID: true, NoState: true})
	}

	multi := len(ids) > 1
	foreign := origin != t
	copies := make([]string, 0, len(ids))
	for i, rec := range recs {
		p, ps := par, pos
		if i > 0 {
			p, ps = t.nodes[copies[i-1]], After
		}
		target, idx := t.resolve(p, ps)
		req := CheckRequest{Op: OpCopy, Node: srcs[i].Clone(), Parent: target.Clone(), Position: idx, Multi: multi}
		if foreign {
			req.Origin, req.Foreign = origin.id, true
		}
		if err := t.gate(req); err != nil {
			return copies, t.report(err)
		}
		f, err := parsePayload(t.ctx, parseRequest{target: target.ID, chain: chainFor(target), payload: model.NestedPayload{rec}})
		if err != nil {
			return copies, t.report(parseError(OpCopy, ids[i], err))
		}
		if err := t.merge(f); err != nil {
			return copies, t.report(parseError(OpCopy, ids[i], err))
		}
		t.attach(target, idx, f.roots, f.order)
		t.markStructural(target.ID)
		copies = append(copies, f.roots[0])

		ev := Event{Type: EventCopy, Node: f.roots[0], Original: ids[i], Parent: target.ID, Position: idx}
		if foreign {
			ev.Origin = origin.id
		}
		t.succeeded(OpCopy)
		t.emit(ev)
	}
	return copies, nil
}
