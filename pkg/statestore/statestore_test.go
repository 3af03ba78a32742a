package statestore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/tree"
)

func snap(open ...string) tree.Snapshot {
	return tree.Snapshot{Open: open, Selected: []string{"b"}, Scroll: tree.Scroll{Top: 4}}
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func TestStores_SaveLoadDelete(t *testing.T) {
	backends := map[string]func(t *testing.T) Store{
		"json": func(t *testing.T) Store {
			return NewJSONFile(filepath.Join(t.TempDir(), ".arbor", DefaultFileName))
		},
		"bolt": func(t *testing.T) Store {
			s, err := OpenBolt(filepath.Join(t.TempDir(), "state.db"), BoltOptions{})
			require.NoError(t, err)
			return s
		},
	}
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			_, ok, err := s.Load("main")
			require.NoError(t, err)
			assert.False(t, ok, "empty store has no snapshot")

			require.NoError(t, s.Save("main", snap("a")))
			require.NoError(t, s.Save("main", snap("a", "c")))
			require.NoError(t, s.Save("other", snap("x")))

			got, ok, err := s.Load("main")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, snap("a", "c"), got, "latest save wins")

			require.NoError(t, s.Delete("main"))
			require.NoError(t, s.Delete("main"), "deleting twice is fine")
			_, ok, _ = s.Load("main")
			assert.False(t, ok)
			_, ok, _ = s.Load("other")
			assert.True(t, ok, "other keys are untouched")
		})
	}
}

func TestJSONFile_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	s := NewJSONFile(path)
	s.Now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	require.NoError(t, s.Save("main", snap("a")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"version": 1,
		"trees": {
			"main": {
				"saved_at": "2026-01-02T03:04:05Z",
				"state": {"open": ["a"], "selected": ["b"], "scroll": {"top": 4, "left": 0}}
			}
		}
	}`, string(data))
}

func TestJSONFile_CorruptFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s := NewJSONFile(path)
	_, ok, err := s.Load("main")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save("main", snap("a")), "a corrupt file is replaced on save")
	_, ok, _ = s.Load("main")
	assert.True(t, ok)
}

func TestJSONFile_NewerVersionRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99, "trees": {}}`), 0644))

	_, _, err := NewJSONFile(path).Load("main")
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
	assert.ErrorIs(t, NewJSONFile(path).Save("main", snap()), ErrUnsupportedVersion)
}

func TestBolt_HistoryAndKeep(t *testing.T) {
	c := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s, err := OpenBolt(filepath.Join(t.TempDir(), "state.db"), BoltOptions{Keep: 2, Now: c.Now})
	require.NoError(t, err)
	defer s.Close()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Save("main", snap(id)))
		c.now = c.now.Add(time.Minute)
	}
	hist, err := s.History("main")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, []string{"c"}, hist[0].State.Open)
	assert.Equal(t, []string{"b"}, hist[1].State.Open)
	assert.Greater(t, hist[0].ID, hist[1].ID, "ulid keys sort by save time")
}

func TestBolt_TTL(t *testing.T) {
	c := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := OpenBolt(path, BoltOptions{TTL: time.Hour, Now: c.Now})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save("main", snap("a")))
	c.now = c.now.Add(30 * time.Minute)
	_, ok, _ := s.Load("main")
	assert.True(t, ok)

	c.now = c.now.Add(time.Hour)
	_, ok, err = s.Load("main")
	require.NoError(t, err)
	assert.False(t, ok, "expired snapshot is ignored")
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open("", filepath.Join(dir, "s.json"), 0)
	require.NoError(t, err)
	assert.IsType(t, &JSONFile{}, s)

	s, err = Open(BackendBolt, filepath.Join(dir, "s.db"), time.Hour)
	require.NoError(t, err)
	assert.IsType(t, &Bolt{}, s)
	require.NoError(t, s.Close())

	_, err = Open("redis", "", 0)
	assert.Error(t, err)
}

func TestCaptureRestore(t *testing.T) {
	data := model.NestedPayload{
		{ID: "a", Text: "A", Children: model.Items(model.Record{ID: "a1", Text: "A1"})},
		{ID: "b", Text: "B"},
	}
	newTree := func() *tree.Tree {
		tr := tree.New(tree.Options{Data: data})
		tr.LoadNode(model.RootID, nil)
		return tr
	}
	s := NewJSONFile(filepath.Join(t.TempDir(), DefaultFileName))

	src := newTree()
	defer src.Destroy()
	src.OpenNode("a", nil)
	require.NoError(t, src.SelectNode("a1"))
	require.NoError(t, Capture(s, "main", src))

	dst := newTree()
	defer dst.Destroy()
	applied := false
	require.NoError(t, Restore(s, "main", dst, func(ok bool) { applied = ok }))
	assert.True(t, applied)
	assert.True(t, dst.IsOpen("a"))
	assert.Equal(t, []string{"a1"}, dst.Selected())

	applied = true
	require.NoError(t, Restore(s, "missing", dst, func(ok bool) { applied = ok }))
	assert.False(t, applied)
}
