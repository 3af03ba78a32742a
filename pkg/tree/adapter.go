package tree

import "github.com/vanderheijden86/arbor/pkg/model"

// Scroll is the adapter's viewport position, captured in state snapshots.
type Scroll struct {
	Top  int `json:"top"`
	Left int `json:"left"`
}

// Adapter turns render plans into an on-screen representation and reports
// back what is currently materialized and focused.
type Adapter interface {
	Regenerate(plan RenderPlan)
	IsMaterialized(id string) bool
	HasChildrenBlock(id string) bool
	FocusedID() string
	Focus(id string)
	Scroll() Scroll
	RestoreScroll(Scroll)
}

// HeadlessAdapter tracks materialization from the plans it receives
// without drawing anything. It is the default adapter and the reference
// for terminal or web adapters.
type HeadlessAdapter struct {
	materialized map[string][]string // id -> materialized child ids (nil: no block)
	hasBlock     map[string]bool
	focused      string
	scroll       Scroll
	plans        int
	last         RenderPlan
}

// NewHeadlessAdapter returns an adapter with nothing materialized.
func NewHeadlessAdapter() *HeadlessAdapter {
	return &HeadlessAdapter{
		materialized: make(map[string][]string),
		hasBlock:     make(map[string]bool),
	}
}

// Regenerate applies a plan to the materialized view.
func (h *HeadlessAdapter) Regenerate(plan RenderPlan) {
	h.plans++
	h.last = plan
	if plan.Full {
		h.materialized = make(map[string][]string)
		h.hasBlock = make(map[string]bool)
		ids := make([]string, 0, len(plan.Nodes))
		for _, rn := range plan.Nodes {
			h.add(rn)
			ids = append(ids, rn.ID)
		}
		h.materialized[model.RootID] = ids
		h.hasBlock[model.RootID] = true
		return
	}
	for _, rn := range plan.Nodes {
		h.add(rn)
	}
}

func (h *HeadlessAdapter) add(rn *RenderNode) {
	if rn.ReuseChildren {
		if _, ok := h.materialized[rn.ID]; !ok {
			h.materialized[rn.ID] = nil
		}
		return
	}
	h.drop(rn.ID)
	var ids []string
	for _, c := range rn.Children {
		h.add(c)
		ids = append(ids, c.ID)
	}
	h.materialized[rn.ID] = ids
	h.hasBlock[rn.ID] = rn.Children != nil
}

// drop forgets the materialized descendants of id.
func (h *HeadlessAdapter) drop(id string) {
	for _, c := range h.materialized[id] {
		h.drop(c)
		delete(h.materialized, c)
		delete(h.hasBlock, c)
	}
	h.materialized[id] = nil
	h.hasBlock[id] = false
}

// IsMaterialized reports whether id has been drawn.
func (h *HeadlessAdapter) IsMaterialized(id string) bool {
	_, ok := h.materialized[id]
	return ok
}

// HasChildrenBlock reports whether id's children are drawn.
func (h *HeadlessAdapter) HasChildrenBlock(id string) bool {
	return h.hasBlock[id]
}

func (h *HeadlessAdapter) FocusedID() string      { return h.focused }
func (h *HeadlessAdapter) Focus(id string)        { h.focused = id }
func (h *HeadlessAdapter) Scroll() Scroll         { return h.scroll }
func (h *HeadlessAdapter) RestoreScroll(s Scroll) { h.scroll = s }

// Plans returns how many plans were applied.
func (h *HeadlessAdapter) Plans() int { return h.plans }

// LastPlan returns the most recent plan.
func (h *HeadlessAdapter) LastPlan() RenderPlan { return h.last }
