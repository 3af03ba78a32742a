package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/tree"
)

func load(t *testing.T, tr *tree.Tree, id string) {
	t.Helper()
	ok := false
	tr.LoadNode(id, func(res bool) { ok = res })
	require.True(t, ok, "load of %q failed: %v", id, tr.LastError())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestStatic(t *testing.T) {
	src := &Static{
		Root:     model.NestedPayload{{ID: "a", Text: "A", Children: model.Lazy()}},
		Children: map[string]model.Payload{"a": model.TextOnlyPayload{"x", "y"}},
	}
	tr := tree.New(tree.Options{Fetcher: src, IDPrefix: "s"})
	defer tr.Destroy()

	load(t, tr, model.RootID)
	assert.False(t, tr.IsLoaded("a"))
	load(t, tr, "a")
	assert.Equal(t, []string{"s_1", "s_2"}, tr.Children("a"))
	assert.Equal(t, "y", tr.Text("s_2"))
	require.NoError(t, tr.Check())
}

func TestFunc(t *testing.T) {
	boom := errors.New("backend down")
	src := Func(func(_ context.Context, n *model.Node) (model.Payload, error) {
		if n.IsRoot() {
			return model.NestedPayload{{ID: "a", Text: "A", Children: model.Lazy()}}, nil
		}
		return nil, boom
	})
	tr := tree.New(tree.Options{Fetcher: src})
	defer tr.Destroy()

	load(t, tr, model.RootID)
	ok := true
	tr.LoadNode("a", func(res bool) { ok = res })
	assert.False(t, ok)
	assert.True(t, tr.IsFailed("a"))
	assert.ErrorIs(t, tr.LastError(), boom)
}

func TestFile_WholeJSON(t *testing.T) {
	path := writeFile(t, "tree.json", `[
		{"id": "a", "text": "A", "children": [{"id": "a1", "text": "A1"}]},
		{"id": "b", "text": "B", "data": {"k": "v"}}
	]`)
	tr := tree.New(tree.Options{Fetcher: NewFile(path, false)})
	defer tr.Destroy()

	load(t, tr, model.RootID)
	assert.Equal(t, []string{"a", "b"}, tr.Children(model.RootID))
	assert.Equal(t, []string{"a1"}, tr.Children("a"))
	assert.Equal(t, map[string]any{"k": "v"}, tr.Get("b").Data)
}

func TestFile_JSONLSkipsMalformedLines(t *testing.T) {
	path := writeFile(t, "tree.jsonl", strings.Join([]string{
		`{"id": "a", "parent": "#", "text": "A"}`,
		`{not json`,
		``,
		`{"id": "a1", "parent": "a", "text": "A1"}`,
		`{"id": "b", "parent": "#", "text": "B"}`,
	}, "\n"))
	tr := tree.New(tree.Options{Fetcher: NewFile(path, false)})
	defer tr.Destroy()

	load(t, tr, model.RootID)
	assert.Equal(t, []string{"a", "b"}, tr.Children(model.RootID))
	assert.Equal(t, []string{"a1"}, tr.Children("a"))
	require.NoError(t, tr.Check())
}

func TestFile_Lazy(t *testing.T) {
	path := writeFile(t, "tree.json", `[
		{"id": "a", "parent": "#", "text": "A"},
		{"id": "a1", "parent": "a", "text": "A1"},
		{"id": "a1x", "parent": "a1", "text": "A1X"},
		{"id": "b", "parent": "#", "text": "B"}
	]`)
	tr := tree.New(tree.Options{Fetcher: NewFile(path, true)})
	defer tr.Destroy()

	load(t, tr, model.RootID)
	assert.Equal(t, []string{"a", "b"}, tr.Children(model.RootID))
	assert.False(t, tr.IsLoaded("a"), "a has children in the file and must load lazily")
	assert.True(t, tr.IsLoaded("b"), "b has no children and loads as a leaf")

	load(t, tr, "a")
	assert.Equal(t, []string{"a1"}, tr.Children("a"))
	assert.False(t, tr.IsLoaded("a1"))
	load(t, tr, "a1")
	assert.Equal(t, "A1X", tr.Text("a1x"))
	require.NoError(t, tr.Check())
}

func TestFile_LazyNeedsIDs(t *testing.T) {
	path := writeFile(t, "tree.json", `[{"text": "anonymous"}]`)
	tr := tree.New(tree.Options{Fetcher: NewFile(path, true)})
	defer tr.Destroy()

	ok := true
	tr.LoadNode(model.RootID, func(res bool) { ok = res })
	assert.False(t, ok)
	assert.ErrorIs(t, tr.LastError(), model.ErrMalformedPayload)
}

func TestFile_Missing(t *testing.T) {
	tr := tree.New(tree.Options{Fetcher: NewFile(filepath.Join(t.TempDir(), "nope.json"), false)})
	defer tr.Destroy()

	ok := true
	tr.LoadNode(model.RootID, func(res bool) { ok = res })
	assert.False(t, ok)
	assert.ErrorIs(t, tr.LastError(), tree.ErrLoadFailed)
}

func TestSQLSource(t *testing.T) {
	src, err := OpenSQL(filepath.Join(t.TempDir(), "db", "tree.db"), "")
	require.NoError(t, err)
	defer src.Close()

	ctx := context.Background()
	require.NoError(t, src.Insert(ctx, model.RootID,
		model.Record{ID: "a", Text: "A", Icon: "folder", Children: model.Items(
			model.Record{ID: "a1", Text: "A1", Data: map[string]any{"size": 3.0}},
			model.Record{ID: "a2", Text: "A2"},
		)},
		model.Record{ID: "b", Text: "B"},
	))

	tr := tree.New(tree.Options{Fetcher: src})
	defer tr.Destroy()
	load(t, tr, model.RootID)
	assert.Equal(t, []string{"a", "b"}, tr.Children(model.RootID))
	assert.False(t, tr.IsLoaded("a"))
	assert.Equal(t, "folder", tr.Get("a").Icon)

	load(t, tr, "a")
	assert.Equal(t, []string{"a1", "a2"}, tr.Children("a"))
	assert.Equal(t, map[string]any{"size": 3.0}, tr.Get("a1").Data)
	require.NoError(t, tr.Check())
}

func TestSQLSource_RejectsBadTable(t *testing.T) {
	_, err := NewSQLSource(nil, "nodes; DROP TABLE x")
	assert.Error(t, err)
}

func TestSQLSource_InsertNeedsIDs(t *testing.T) {
	src, err := OpenSQL(filepath.Join(t.TempDir(), "tree.db"), "items")
	require.NoError(t, err)
	defer src.Close()

	err = src.Insert(context.Background(), model.RootID, model.Record{Text: "no id"})
	assert.ErrorIs(t, err, model.ErrMalformedPayload)
	kids, err := src.Children(context.Background(), model.RootID)
	require.NoError(t, err)
	assert.Empty(t, kids, "failed insert must roll back")
}

func TestParseHTML(t *testing.T) {
	src, err := HTML(`
		<div id="tree">
		  <ul>
		    <li id="a" class="hot" data-jstree='{"opened": true, "icon": "folder"}'>
		      <a href="#a" title="first">Alpha   node</a>
		      <ul>
		        <li id="a1" data-jstree='{"selected": true}'>Child</li>
		      </ul>
		    </li>
		    <li id="b">Beta</li>
		  </ul>
		</div>`)
	require.NoError(t, err)

	p := src.Root.(model.NestedPayload)
	require.Len(t, p, 2)
	a := p[0]
	assert.Equal(t, "a", a.ID)
	assert.Equal(t, "Alpha node", a.Text)
	assert.Equal(t, "folder", a.Icon)
	assert.Equal(t, map[string]bool{"opened": true}, a.State)
	assert.Equal(t, map[string]string{"class": "hot"}, a.LiAttr)
	assert.Equal(t, map[string]string{"href": "#a", "title": "first"}, a.AAttr)
	require.NotNil(t, a.Children)
	assert.Equal(t, "Child", a.Children.Items[0].Text)

	tr := tree.New(tree.Options{Fetcher: src})
	defer tr.Destroy()
	load(t, tr, model.RootID)
	assert.True(t, tr.IsOpen("a"))
	assert.Equal(t, []string{"a1"}, tr.Selected())
}

func TestParseHTML_BadState(t *testing.T) {
	_, err := ParseHTML(strings.NewReader(`<ul><li id="x" data-jstree="{oops">X</li></ul>`))
	assert.ErrorIs(t, err, model.ErrMalformedPayload)
}

func TestParseHTML_NoList(t *testing.T) {
	p, err := ParseHTML(strings.NewReader(`<p>nothing here</p>`))
	require.NoError(t, err)
	assert.Empty(t, p)
}

func TestAsync(t *testing.T) {
	loop := tree.NewLoop()
	src := Async(&Static{Root: model.TextOnlyPayload{"one", "two"}})
	tr := tree.New(tree.Options{Fetcher: src, Scheduler: loop})
	defer tr.Destroy()

	finished := false
	tr.LoadNode(model.RootID, func(bool) { finished = true })
	assert.True(t, tr.IsLoading(model.RootID))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, loop.RunUntil(ctx, func() bool { return finished }))
	assert.Equal(t, 2, tr.Len())
}

func TestWatch_RefreshesOnWrite(t *testing.T) {
	path := writeFile(t, "tree.json", `[{"id": "a", "text": "A"}, {"id": "b", "text": "B"}]`)
	loop := tree.NewLoop()
	f := NewFile(path, false)
	tr := tree.New(tree.Options{Fetcher: f, Scheduler: loop})
	defer tr.Destroy()

	tr.LoadNode(model.RootID, nil)
	loop.Drain()
	require.Equal(t, "A", tr.Text("a"))
	require.NoError(t, tr.SelectNode("b"))

	w, err := Watch(tr, f, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte(`[{"id": "a", "text": "Changed"}, {"id": "b", "text": "B"}]`), 0644))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, loop.RunUntil(ctx, func() bool { return tr.Text("a") == "Changed" }))
	assert.GreaterOrEqual(t, w.Reloads(), int64(1))
	assert.True(t, tr.IsSelected("b"), "selection survives the refresh")
}

func TestDebouncer_CoalescesBursts(t *testing.T) {
	d := newDebouncer(30 * time.Millisecond)
	calls := make(chan int, 10)
	for i := range 5 {
		d.Trigger(func() { calls <- i })
	}
	select {
	case got := <-calls:
		assert.Equal(t, 4, got)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced callback never ran")
	}
	select {
	case extra := <-calls:
		t.Fatalf("expected one callback, got another (%d)", extra)
	case <-time.After(100 * time.Millisecond):
	}

	d.Trigger(func() { calls <- 99 })
	d.Cancel()
	select {
	case <-calls:
		t.Fatal("cancelled callback ran")
	case <-time.After(100 * time.Millisecond):
	}
}
