package tree

import (
	"log/slog"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// Visual is a node's resolved display class.
type Visual int

const (
	VisualUnknown Visual = iota
	VisualLeaf
	VisualClosed
	VisualOpen
)

func (v Visual) String() string {
	switch v {
	case VisualLeaf:
		return "leaf"
	case VisualClosed:
		return "closed"
	case VisualOpen:
		return "open"
	default:
		return "unknown"
	}
}

// RenderNode is the regeneration request for one node. When ReuseChildren
// is set the adapter keeps the node's existing children block; otherwise
// Children lists what to draw below it (nil for a closed node).
type RenderNode struct {
	ID            string
	Visual        Visual
	Text          string
	Icon          string
	Selected      bool
	Disabled      bool
	Hidden        bool
	Loading       bool
	Failed        bool
	Depth         int
	ContainerAttr map[string]string
	LabelAttr     map[string]string
	ReuseChildren bool
	Children      []*RenderNode
}

// RenderPlan is the output of one flush. A full plan replaces the whole
// view with Nodes (the top-level nodes); a partial plan regenerates each
// listed node in place.
type RenderPlan struct {
	Full  bool
	Nodes []*RenderNode
}

// Empty reports whether the plan regenerates nothing.
func (p RenderPlan) Empty() bool {
	return !p.Full && len(p.Nodes) == 0
}

// Count returns the number of regenerated nodes, including nested ones.
func (p RenderPlan) Count() int {
	var count func([]*RenderNode) int
	count = func(nodes []*RenderNode) int {
		n := len(nodes)
		for _, rn := range nodes {
			n += count(rn.Children)
		}
		return n
	}
	return count(p.Nodes)
}

// markChanged adds id to the render worklist. Deep entries regenerate the
// node's children; shallow ones reuse them. Touching the root's children
// requires a full rebuild.
func (t *Tree) markChanged(id string, deep bool) {
	if id == model.RootID {
		t.full = true
		return
	}
	if _, ok := t.nodes[id]; !ok {
		return
	}
	prev, seen := t.changed[id]
	if !seen {
		t.changedOrder = append(t.changedOrder, id)
	}
	t.changed[id] = prev || deep
}

// markStructural marks a parent whose children list changed.
func (t *Tree) markStructural(parent string) {
	t.markChanged(parent, true)
}

// Redraw forces a full rebuild on the next flush.
func (t *Tree) Redraw() {
	t.full = true
}

// Pending reports whether a flush would regenerate anything or has
// reopens queued from the previous pass.
func (t *Tree) Pending() bool {
	return t.full || len(t.changedOrder) > 0 || len(t.reopen) > 0
}

// VisualOf classifies id from its loaded and opened flags and whether it
// has a visible child.
func (t *Tree) VisualOf(id string) Visual {
	n := t.nodes[id]
	if n == nil {
		return VisualUnknown
	}
	return t.visual(n)
}

func (t *Tree) visual(n *model.Node) Visual {
	if !n.State.Loaded {
		return VisualClosed
	}
	if !t.hasVisibleChild(n) {
		return VisualLeaf
	}
	if n.State.Opened {
		return VisualOpen
	}
	return VisualClosed
}

func (t *Tree) hasVisibleChild(n *model.Node) bool {
	for _, c := range n.Children {
		if cn := t.nodes[c]; cn != nil && !cn.State.Hidden {
			return true
		}
	}
	return false
}

// Flush consumes the worklist, hands the resulting plan to the adapter and
// returns it. Nodes found opened but not loaded are closed in the plan and
// reopened on a later scheduler turn, after their children load. With an
// inline scheduler that turn is the start of the next Flush, so the fetcher
// never runs while a plan is being built.
func (t *Tree) Flush() RenderPlan {
	if t.destroyed {
		return RenderPlan{}
	}
	t.runReopens()
	var reopen []string
	var plan RenderPlan

	switch {
	case t.full:
		plan.Full = true
		plan.Nodes = make([]*RenderNode, 0, len(t.nodes[model.RootID].Children))
		for _, c := range t.nodes[model.RootID].Children {
			plan.Nodes = append(plan.Nodes, t.renderNode(t.nodes[c], true, &reopen))
		}
	default:
		for _, id := range t.changedOrder {
			n := t.nodes[id]
			if n == nil || !t.drawable(n) || t.coveredByDeepAncestor(n) {
				continue
			}
			plan.Nodes = append(plan.Nodes, t.renderNode(n, t.changed[id], &reopen))
		}
	}
	t.full = false
	t.changed = make(map[string]bool)
	t.changedOrder = nil

	mode := "partial"
	switch {
	case plan.Full:
		mode = "full"
	case plan.Empty():
		mode = "empty"
	}
	flushesTotal.WithLabelValues(mode).Inc()
	if !plan.Empty() {
		regeneratedNodes.Observe(float64(plan.Count()))
		t.adapter.Regenerate(plan)
		t.log.Debug("render flush", slog.String("mode", mode), slog.Int("nodes", plan.Count()))
	}
	if plan.Full {
		t.emit(Event{Type: EventRedraw, Node: model.RootID})
	}

	if !t.sched.Deferred() {
		t.reopen = append(t.reopen, reopen...)
		return plan
	}
	for _, id := range reopen {
		t.sched.Schedule(func() {
			if t.destroyed {
				return
			}
			t.OpenNode(id, nil)
		})
	}
	return plan
}

// runReopens opens the nodes the previous inline pass had to close.
func (t *Tree) runReopens() {
	ids := t.reopen
	t.reopen = nil
	for _, id := range ids {
		if t.destroyed {
			return
		}
		t.OpenNode(id, nil)
	}
}

// drawable reports whether a changed node currently has a place in the
// view: it is drawn already, or its parent's children block is showing.
func (t *Tree) drawable(n *model.Node) bool {
	if t.adapter.IsMaterialized(n.ID) || n.Parent == model.RootID {
		return true
	}
	p := t.nodes[n.Parent]
	return p != nil && p.State.Opened && t.adapter.IsMaterialized(p.ID)
}

func (t *Tree) coveredByDeepAncestor(n *model.Node) bool {
	for _, a := range n.Parents {
		if t.changed[a] {
			return true
		}
	}
	return false
}

// renderNode builds the regeneration request for n. A shallow request
// reuses an existing children block; otherwise an open node's children are
// generated, and a closed node's are not.
func (t *Tree) renderNode(n *model.Node, deep bool, reopen *[]string) *RenderNode {
	if n.State.Opened && !n.State.Loaded && !n.State.Loading {
		n.State.Opened = false
		*reopen = append(*reopen, n.ID)
	}
	rn := &RenderNode{
		ID:            n.ID,
		Visual:        t.visual(n),
		Text:          n.Text,
		Icon:          n.Icon,
		Selected:      n.State.Selected,
		Disabled:      n.State.Disabled,
		Hidden:        n.State.Hidden,
		Loading:       n.State.Loading,
		Failed:        n.State.Failed,
		Depth:         n.Depth(),
		ContainerAttr: n.ContainerAttr,
		LabelAttr:     n.LabelAttr,
	}
	if !deep && len(n.Children) > 0 && t.adapter.HasChildrenBlock(n.ID) {
		rn.ReuseChildren = true
		return rn
	}
	if n.State.Opened && n.State.Loaded {
		rn.Children = make([]*RenderNode, 0, len(n.Children))
		for _, c := range n.Children {
			if cn := t.nodes[c]; cn != nil {
				rn.Children = append(rn.Children, t.renderNode(cn, true, reopen))
			}
		}
	}
	return rn
}
