// Package model defines the node record owned by the tree engine and the
// external record shapes fetch strategies hand to it.
package model

import (
	"sort"
)

// RootID is the reserved id of the synthetic root node. Top-level nodes use it
// as their parent.
const RootID = "#"

// Node is the authoritative record for one element of the hierarchy.
type Node struct {
	ID       string   `json:"id"`
	Parent   string   `json:"parent,omitempty"`  // empty only for the root
	Parents  []string `json:"parents,omitempty"` // nearest ancestor first, root last
	Children []string `json:"children"`          // display order

	// ChildrenD holds every descendant id at any depth.
	ChildrenD IDSet `json:"-"`

	Text          string            `json:"text"`
	Icon          string            `json:"icon,omitempty"`
	State         State             `json:"state"`
	Data          any               `json:"data,omitempty"`
	ContainerAttr map[string]string `json:"li_attr,omitempty"`
	LabelAttr     map[string]string `json:"a_attr,omitempty"`

	// Original is the externally supplied record the node was parsed from.
	Original *Record `json:"-"`
}

// IsRoot reports whether n is the synthetic root.
func (n *Node) IsRoot() bool {
	return n != nil && n.ID == RootID
}

// Depth returns the number of real ancestors (0 for top-level nodes).
func (n *Node) Depth() int {
	if n == nil || len(n.Parents) == 0 {
		return 0
	}
	return len(n.Parents) - 1
}

// IndexOf returns the position of id among n's children, or -1.
func (n *Node) IndexOf(id string) int {
	for i, c := range n.Children {
		if c == id {
			return i
		}
	}
	return -1
}

// Clone creates a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	clone := *n
	clone.Parents = append([]string(nil), n.Parents...)
	clone.Children = append([]string(nil), n.Children...)
	clone.ChildrenD = n.ChildrenD.Clone()
	clone.State = n.State.Clone()
	clone.Data = CloneData(n.Data)
	clone.ContainerAttr = cloneAttr(n.ContainerAttr)
	clone.LabelAttr = cloneAttr(n.LabelAttr)
	if n.Original != nil {
		orig := n.Original.Clone()
		clone.Original = &orig
	}
	return &clone
}

// NewRoot returns the synthetic root record in its initial, unloaded state.
func NewRoot() *Node {
	return &Node{
		ID:        RootID,
		Children:  []string{},
		ChildrenD: IDSet{},
		State:     State{Opened: true},
	}
}

// IDSet is an unordered set of node ids.
type IDSet map[string]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts ids.
func (s IDSet) Add(ids ...string) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// AddSet inserts every member of other.
func (s IDSet) AddSet(other IDSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Remove deletes ids.
func (s IDSet) Remove(ids ...string) {
	for _, id := range ids {
		delete(s, id)
	}
}

// RemoveSet deletes every member of other.
func (s IDSet) RemoveSet(other IDSet) {
	if len(s) == 0 {
		return
	}
	for id := range other {
		delete(s, id)
	}
}

// Len returns the number of members.
func (s IDSet) Len() int {
	return len(s)
}

// Clone returns an independent copy (never nil).
func (s IDSet) Clone() IDSet {
	c := make(IDSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Sorted returns the members in lexical order.
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets hold the same ids.
func (s IDSet) Equal(other IDSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

func cloneAttr(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// CloneData deep-copies the JSON-shaped values stored in Node.Data.
// Values that are not maps, slices or scalars are shared.
func CloneData(v any) any {
	switch t := v.(type) {
	case map[string]any:
		c := make(map[string]any, len(t))
		for k, val := range t {
			c[k] = CloneData(val)
		}
		return c
	case []any:
		c := make([]any, len(t))
		for i, val := range t {
			c[i] = CloneData(val)
		}
		return c
	case map[string]string:
		return cloneAttr(t)
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
