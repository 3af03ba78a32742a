package tree

import (
	"maps"

	"github.com/vanderheijden86/arbor/pkg/model"
)

func (t *Tree) setFlag(id string, flag func(*model.Node) *bool, want bool, ev EventType) bool {
	n := t.nodes[id]
	if t.destroyed || n == nil || n.IsRoot() {
		return false
	}
	p := flag(n)
	if *p == want {
		return false
	}
	*p = want
	t.markChanged(id, false)
	t.emit(Event{Type: ev, Node: id})
	return true
}

var (
	disabledFlag = func(n *model.Node) *bool { return &n.State.Disabled }
	hiddenFlag   = func(n *model.Node) *bool { return &n.State.Hidden }
)

// DisableNode marks id disabled.
func (t *Tree) DisableNode(id string) bool {
	return t.setFlag(id, disabledFlag, true, EventDisable)
}

// EnableNode clears the disabled flag of id.
func (t *Tree) EnableNode(id string) bool {
	return t.setFlag(id, disabledFlag, false, EventEnable)
}

// IsDisabled reports whether id is disabled.
func (t *Tree) IsDisabled(id string) bool {
	n := t.nodes[id]
	return n != nil && n.State.Disabled
}

// HideNode hides id. Its parent is redrawn because hiding can turn it
// into a leaf.
func (t *Tree) HideNode(id string) bool {
	if !t.setFlag(id, hiddenFlag, true, EventHide) {
		return false
	}
	t.markParent(id)
	return true
}

// ShowNode clears the hidden flag of id.
func (t *Tree) ShowNode(id string) bool {
	if !t.setFlag(id, hiddenFlag, false, EventShow) {
		return false
	}
	t.markParent(id)
	return true
}

func (t *Tree) markParent(id string) {
	if p := t.nodes[id].Parent; p != model.RootID {
		t.markChanged(p, false)
	}
}

// ShowAll clears the hidden flag on every node.
func (t *Tree) ShowAll() {
	for _, id := range t.preorder(model.RootID, false) {
		t.ShowNode(id)
	}
}

// SetIcon replaces the icon reference of id.
func (t *Tree) SetIcon(id, icon string) bool {
	n := t.nodes[id]
	if t.destroyed || n == nil || n.IsRoot() {
		return false
	}
	n.Icon = icon
	t.markChanged(id, false)
	return true
}

// SetAttr sets one container (li) or label (a) attribute of id. An empty
// value removes the attribute.
func (t *Tree) SetAttr(id string, label bool, key, value string) bool {
	n := t.nodes[id]
	if t.destroyed || n == nil || n.IsRoot() {
		return false
	}
	bag := &n.ContainerAttr
	if label {
		bag = &n.LabelAttr
	}
	if value == "" {
		delete(*bag, key)
	} else {
		if *bag == nil {
			*bag = make(map[string]string)
		}
		(*bag)[key] = value
	}
	t.markChanged(id, false)
	return true
}

// Attrs returns copies of the attribute bags of id.
func (t *Tree) Attrs(id string) (container, label map[string]string) {
	n := t.nodes[id]
	if n == nil {
		return nil, nil
	}
	return maps.Clone(n.ContainerAttr), maps.Clone(n.LabelAttr)
}
