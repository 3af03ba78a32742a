package tree

import (
	"bytes"
	"errors"
	"slices"
	"testing"

	"github.com/vanderheijden86/arbor/pkg/model"
)

func TestSelection(t *testing.T) {
	log := &eventLog{}
	tr := newLoaded(t, Options{OnEvent: log.add})

	for _, id := range []string{"a", "a2x", "a2"} {
		if err := tr.SelectNode(id); err != nil {
			t.Fatal(err)
		}
	}
	if got := tr.Selected(); !slices.Equal(got, []string{"a", "a2x", "a2"}) {
		t.Errorf("expected selection order kept, got %v", got)
	}
	if got := tr.TopSelected(); !slices.Equal(got, []string{"a"}) {
		t.Errorf("expected top selected [a], got %v", got)
	}
	if got := tr.BottomSelected(); !slices.Equal(got, []string{"a2x"}) {
		t.Errorf("expected bottom selected [a2x], got %v", got)
	}
	if tr.Adapter().FocusedID() != "a2" {
		t.Errorf("expected focus on last selected node, got %q", tr.Adapter().FocusedID())
	}
	if n := log.count(EventSelect); n != 3 {
		t.Errorf("expected 3 select events, got %d", n)
	}

	if err := tr.SelectNode("a"); err != nil || log.count(EventSelect) != 3 {
		t.Error("expected reselecting to be a silent no-op")
	}
	if err := tr.DeselectNode("a2x"); err != nil {
		t.Fatal(err)
	}
	if err := tr.SelectNode("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	tr.DeselectAll()
	if len(tr.Selected()) != 0 {
		t.Errorf("expected empty selection, got %v", tr.Selected())
	}
	tr.SelectAll()
	if got := len(tr.Selected()); got != 6 {
		t.Errorf("expected every loaded node selected, got %d", got)
	}
	mustCheck(t, tr)
}

func TestSelection_Single(t *testing.T) {
	tr := newLoaded(t, Options{SingleSelect: true})
	tr.SelectNode("a")
	tr.SelectNode("b")
	if got := tr.Selected(); !slices.Equal(got, []string{"b"}) {
		t.Errorf("expected [b], got %v", got)
	}
	tr.SelectAll()
	if got := tr.Selected(); !slices.Equal(got, []string{"c"}) {
		t.Errorf("expected only the last node kept, got %v", got)
	}
	mustCheck(t, tr)
}

func TestSelection_PayloadSelectedNodesJoinTracker(t *testing.T) {
	tr := newLoaded(t, Options{Data: model.NestedPayload{
		{ID: "x", Text: "X", State: map[string]bool{"selected": true}},
		{ID: "y", Text: "Y"},
	}})
	if got := tr.Selected(); !slices.Equal(got, []string{"x"}) {
		t.Errorf("expected [x], got %v", got)
	}
	mustCheck(t, tr)
}

func TestFlags(t *testing.T) {
	log := &eventLog{}
	tr := newLoaded(t, Options{OnEvent: log.add})

	if !tr.DisableNode("b") || tr.DisableNode("b") {
		t.Error("expected first disable to change state and second to be a no-op")
	}
	if !tr.IsDisabled("b") {
		t.Error("expected b disabled")
	}
	tr.EnableNode("b")
	if tr.IsDisabled("b") {
		t.Error("expected b enabled")
	}
	if log.count(EventDisable) != 1 || log.count(EventEnable) != 1 {
		t.Error("expected one disable and one enable event")
	}
	if tr.DisableNode(model.RootID) {
		t.Error("expected root flags to be immutable")
	}

	tr.SetIcon("b", "folder")
	tr.SetAttr("b", false, "class", "hot")
	tr.SetAttr("b", true, "href", "#b")
	li, a := tr.Attrs("b")
	if li["class"] != "hot" || a["href"] != "#b" || tr.Get("b").Icon != "folder" {
		t.Errorf("unexpected attrs li=%v a=%v", li, a)
	}
	tr.SetAttr("b", false, "class", "")
	if li, _ := tr.Attrs("b"); len(li) != 0 {
		t.Errorf("expected attribute removed, got %v", li)
	}
}

func TestGetJSON_Options(t *testing.T) {
	tr := newLoaded(t, Options{})
	tr.SetAttr("b", false, "class", "hot")

	recs, err := tr.GetJSON("a", JSONOptions{NoID: true, NoState: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].ID != "" || recs[0].State != nil {
		t.Fatalf("expected one record without id or state, got %+v", recs)
	}
	if recs[0].Children == nil || len(recs[0].Children.Items) != 2 {
		t.Errorf("expected nested children, got %+v", recs[0].Children)
	}

	recs, _ = tr.GetJSON(model.RootID, JSONOptions{NoChildren: true, NoLiAttr: true, NoData: true})
	if len(recs) != 3 || recs[1].LiAttr != nil || recs[1].Data != nil || recs[0].Children != nil {
		t.Errorf("expected top-level records stripped, got %+v", recs)
	}

	recs, _ = tr.GetJSON("a", JSONOptions{Flat: true})
	var ids []string
	for _, r := range recs {
		ids = append(ids, r.ID+"<"+r.Parent)
	}
	if want := []string{"a<#", "a1<a", "a2<a", "a2x<a2"}; !slices.Equal(ids, want) {
		t.Errorf("expected %v, got %v", want, ids)
	}

	recs, _ = tr.GetJSON("c", JSONOptions{})
	if recs[0].Children == nil || !recs[0].Children.Lazy {
		t.Error("expected unloaded node serialized with the lazy marker")
	}

	if _, err := tr.GetJSON("nope", JSONOptions{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, flat := range []bool{false, true} {
		name := "nested"
		if flat {
			name = "flat"
		}
		t.Run(name, func(t *testing.T) {
			src := newLoaded(t, Options{})
			src.SelectNode("a2")
			src.OpenNode("a", nil)
			src.SetAttr("a1", true, "title", "first")

			opts := JSONOptions{Flat: flat}
			data, err := src.MarshalJSON(model.RootID, opts)
			if err != nil {
				t.Fatal(err)
			}
			payload, err := model.DecodePayload(data)
			if err != nil {
				t.Fatalf("DecodePayload failed: %v", err)
			}
			if flat && payload.Kind() != model.KindFlat {
				t.Fatalf("expected flat payload, got %v", payload.Kind())
			}

			dst := newLoaded(t, Options{Data: payload})
			again, _ := dst.MarshalJSON(model.RootID, opts)
			if !bytes.Equal(data, again) {
				t.Errorf("round trip changed the tree\nfirst:  %s\nsecond: %s", data, again)
			}
			if !dst.IsSelected("a2") || !dst.IsOpen("a") || dst.IsLoaded("c") {
				t.Error("expected state flags to survive the round trip")
			}
		})
	}
}

func TestState_RoundTrip(t *testing.T) {
	src := newLoaded(t, Options{})
	src.OpenNode("a", nil)
	src.OpenNode("c", nil)
	src.SelectNode("a1")
	src.SelectNode("b")
	src.Adapter().RestoreScroll(Scroll{Top: 12})

	snap := src.GetState()
	if !slices.Equal(snap.Open, []string{"a", "c"}) {
		t.Errorf("expected open [a c], got %v", snap.Open)
	}
	if !slices.Equal(snap.Selected, []string{"a1", "b"}) {
		t.Errorf("expected selected [a1 b], got %v", snap.Selected)
	}

	log := &eventLog{}
	dst := newLoaded(t, Options{OnEvent: log.add})
	dst.SelectNode("a2x")
	ok := false
	dst.SetState(snap, func(res bool) { ok = res })
	if !ok {
		t.Fatal("expected SetState to succeed")
	}
	got := dst.GetState()
	if !slices.Equal(got.Open, snap.Open) || !slices.Equal(got.Selected, snap.Selected) || got.Scroll != snap.Scroll {
		t.Errorf("expected %+v, got %+v", snap, got)
	}
	if log.count(EventSetState) != 1 {
		t.Error("expected one set_state event")
	}
}

func TestState_SkipsMissingIDs(t *testing.T) {
	tr := newLoaded(t, Options{})
	done := false
	tr.SetState(Snapshot{Open: []string{"gone", "a"}, Selected: []string{"gone", "b"}}, func(bool) { done = true })
	if !done {
		t.Fatal("expected completion")
	}
	if !tr.IsOpen("a") || !slices.Equal(tr.Selected(), []string{"b"}) {
		t.Errorf("expected existing ids applied, open a=%v selected=%v", tr.IsOpen("a"), tr.Selected())
	}
}

func TestRefresh(t *testing.T) {
	tr := newLoaded(t, Options{})
	tr.OpenNode("a", nil)
	tr.SelectNode("a1")
	if err := tr.RenameNode("b", "renamed"); err != nil {
		t.Fatal(err)
	}

	ok := false
	tr.Refresh(func(res bool) { ok = res })
	if !ok {
		t.Fatal("expected refresh to succeed")
	}
	if tr.Text("b") != "Beta" {
		t.Errorf("expected b reloaded from source, got %q", tr.Text("b"))
	}
	if !tr.IsOpen("a") || !tr.IsSelected("a1") {
		t.Error("expected open and selected state replayed")
	}
	mustCheck(t, tr)
}

func TestRefreshNode(t *testing.T) {
	f := newManualFetcher(sample())
	tr := newLoaded(t, Options{Fetcher: f})
	tr.OpenNode("c", nil)
	f.dones["c"](model.NestedPayload{{ID: "k", Text: "K"}}, nil)
	tr.SelectNode("k")

	ok := false
	tr.RefreshNode("c", func(res bool) { ok = res })
	f.dones["c"](model.NestedPayload{{ID: "k", Text: "K2"}, {ID: "m", Text: "M"}}, nil)

	if !ok {
		t.Fatal("expected refresh to succeed")
	}
	if f.calls["c"] != 2 {
		t.Errorf("expected a second fetch, got %d", f.calls["c"])
	}
	if tr.Text("k") != "K2" || !tr.IsSelected("k") || !tr.IsOpen("c") {
		t.Error("expected k reloaded, still selected, c still open")
	}
	mustCheck(t, tr)
}
