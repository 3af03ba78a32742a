package tree

import (
	"context"
	"testing"

	"github.com/vanderheijden86/arbor/pkg/model"
)

func planIDs(p RenderPlan) []string {
	ids := make([]string, 0, len(p.Nodes))
	for _, rn := range p.Nodes {
		ids = append(ids, rn.ID)
	}
	return ids
}

func TestFlush_Idempotent(t *testing.T) {
	tr := newLoaded(t, Options{})
	first := tr.Flush()
	if !first.Full || len(first.Nodes) != 3 {
		t.Fatalf("expected a full plan with 3 top-level nodes, got full=%v nodes=%v", first.Full, planIDs(first))
	}
	if tr.Pending() {
		t.Error("expected worklist cleared after flush")
	}
	if second := tr.Flush(); !second.Empty() {
		t.Errorf("expected empty second flush, got %v", planIDs(second))
	}
	if got := tr.Adapter().(*HeadlessAdapter).Plans(); got != 1 {
		t.Errorf("expected adapter called once, got %d", got)
	}
}

func TestFlush_ShallowChange(t *testing.T) {
	tr := newLoaded(t, Options{})
	tr.Flush()

	if err := tr.RenameNode("b", "Bravo"); err != nil {
		t.Fatal(err)
	}
	plan := tr.Flush()
	if plan.Full || len(plan.Nodes) != 1 {
		t.Fatalf("expected one partial node, got full=%v %v", plan.Full, planIDs(plan))
	}
	rn := plan.Nodes[0]
	if rn.ID != "b" || rn.Text != "Bravo" || rn.Visual != VisualLeaf {
		t.Errorf("unexpected render node %+v", rn)
	}
}

func TestFlush_OpenRendersChildren(t *testing.T) {
	tr := newLoaded(t, Options{})
	tr.Flush()

	tr.OpenNode("a", nil)
	plan := tr.Flush()
	if plan.Full || len(plan.Nodes) != 1 {
		t.Fatalf("expected one partial node, got %v", planIDs(plan))
	}
	rn := plan.Nodes[0]
	if rn.Visual != VisualOpen || rn.ReuseChildren || len(rn.Children) != 2 {
		t.Fatalf("expected open a with two generated children, got %+v", rn)
	}
	if rn.Children[1].Visual != VisualClosed || rn.Children[1].Depth != 1 {
		t.Errorf("expected closed a2 at depth 1, got %+v", rn.Children[1])
	}

	// a's children block now exists, so a state flip on a reuses it.
	tr.DisableNode("a")
	plan = tr.Flush()
	if len(plan.Nodes) != 1 || !plan.Nodes[0].ReuseChildren || !plan.Nodes[0].Disabled {
		t.Errorf("expected shallow regeneration of a, got %+v", plan.Nodes)
	}
}

func TestFlush_SkipsNodesNotDrawn(t *testing.T) {
	tr := newLoaded(t, Options{})
	tr.Flush()

	// a2x sits under the closed node a2 and has never been drawn.
	if err := tr.RenameNode("a2x", "Deeper"); err != nil {
		t.Fatal(err)
	}
	if plan := tr.Flush(); !plan.Empty() {
		t.Errorf("expected nothing to regenerate, got %v", planIDs(plan))
	}
}

func TestFlush_DeepAncestorCoversDescendants(t *testing.T) {
	tr := newLoaded(t, Options{})
	tr.OpenNode("a", nil)
	tr.OpenNode("a2", nil)
	tr.Flush()

	if err := tr.RenameNode("a2x", "Deeper"); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.CreateNode("a", model.Record{Text: "new"}, Last); err != nil {
		t.Fatal(err)
	}
	plan := tr.Flush()
	if ids := planIDs(plan); len(ids) != 1 || ids[0] != "a" {
		t.Errorf("expected only a regenerated, got %v", ids)
	}
}

func TestFlush_TopLevelStructureIsFull(t *testing.T) {
	tr := newLoaded(t, Options{})
	tr.Flush()
	if _, err := tr.CreateNode(model.RootID, model.Record{Text: "top"}, Last); err != nil {
		t.Fatal(err)
	}
	if plan := tr.Flush(); !plan.Full || len(plan.Nodes) != 4 {
		t.Errorf("expected full plan with 4 nodes, got full=%v %v", plan.Full, planIDs(plan))
	}
}

func TestFlush_ReopensUnloadedOpenNode(t *testing.T) {
	fetches := 0
	f := FetchFunc(func(_ context.Context, n *model.Node, done func(model.Payload, error)) {
		switch n.ID {
		case model.RootID:
			done(model.NestedPayload{
				{ID: "z", Text: "Z", State: map[string]bool{"opened": true}, Children: model.Lazy()},
			}, nil)
		default:
			fetches++
			done(model.NestedPayload{{ID: "z1", Text: "Z one"}}, nil)
		}
	})
	tr := newLoaded(t, Options{Fetcher: f})

	plan := tr.Flush()
	if plan.Nodes[0].Visual != VisualClosed {
		t.Errorf("expected z drawn closed, got %v", plan.Nodes[0].Visual)
	}
	if fetches != 0 || tr.IsLoaded("z") {
		t.Fatalf("expected no fetch during the flush, got %d fetches", fetches)
	}
	if !tr.Pending() {
		t.Error("expected the reopen to keep the tree pending")
	}

	plan = tr.Flush()
	if fetches != 1 || !tr.IsLoaded("z") || !tr.IsOpen("z") {
		t.Fatalf("expected z loaded and reopened by the next flush, fetches=%d", fetches)
	}
	if ids := planIDs(plan); len(ids) != 1 || ids[0] != "z" || len(plan.Nodes[0].Children) != 1 {
		t.Errorf("expected z regenerated with its child, got %v", ids)
	}
	if plan := tr.Flush(); !plan.Empty() || tr.Pending() {
		t.Errorf("expected a settled tree, got %v", planIDs(plan))
	}
}

func TestFlush_ReopenOnDeferredScheduler(t *testing.T) {
	loop := NewLoop()
	tr := New(Options{Scheduler: loop, Data: model.NestedPayload{
		{ID: "z", Text: "Z", State: map[string]bool{"opened": true}, Children: model.Lazy()},
	}})
	defer tr.Destroy()
	if !runLoad(t, loop, tr, model.RootID) {
		t.Fatal("root load failed")
	}

	tr.Flush()
	if tr.IsLoaded("z") {
		t.Fatal("expected the reopen to wait for the loop")
	}
	opened := false
	for i := 0; i < 10 && !opened; i++ {
		loop.Drain()
		opened = tr.IsOpen("z")
	}
	if !opened || !tr.IsLoaded("z") {
		t.Error("expected z loaded and reopened by the loop")
	}
}

func TestVisual_HiddenChildrenDoNotCount(t *testing.T) {
	tr := newLoaded(t, Options{})
	if tr.VisualOf("a2") != VisualClosed {
		t.Fatalf("expected a2 closed, got %v", tr.VisualOf("a2"))
	}
	tr.HideNode("a2x")
	if tr.VisualOf("a2") != VisualLeaf {
		t.Errorf("expected a2 to become a leaf, got %v", tr.VisualOf("a2"))
	}
	tr.ShowAll()
	if tr.VisualOf("a2") != VisualClosed {
		t.Errorf("expected a2 closed again, got %v", tr.VisualOf("a2"))
	}
	if tr.VisualOf("c") != VisualClosed || tr.VisualOf("nope") != VisualUnknown {
		t.Error("expected unloaded c closed and unknown id unknown")
	}
}

func TestRedraw(t *testing.T) {
	log := &eventLog{}
	tr := newLoaded(t, Options{OnEvent: log.add})
	tr.Flush()
	tr.Redraw()
	if plan := tr.Flush(); !plan.Full {
		t.Error("expected Redraw to force a full plan")
	}
	if n := log.count(EventRedraw); n != 2 {
		t.Errorf("expected a redraw event per full flush, got %d", n)
	}
}
