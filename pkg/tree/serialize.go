package tree

import (
	"maps"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// JSONOptions controls GetJSON. Flat output ignores NoID and NoChildren,
// since ids and parent links are what make the flat form a tree.
type JSONOptions struct {
	Flat       bool
	NoID       bool
	NoState    bool
	NoChildren bool
	NoData     bool
	NoLiAttr   bool
	NoAAttr    bool
}

// GetJSON serializes id in the load format. For the root it returns the
// top-level records (nested) or every record (flat); for any other node a
// single nested record or the node and its descendants flat. Unloaded
// nodes carry the lazy children marker so reloading them fetches again.
func (t *Tree) GetJSON(id string, opts JSONOptions) ([]model.Record, error) {
	n := t.nodes[id]
	if n == nil {
		return nil, ErrNotFound
	}
	if opts.Flat {
		ids := t.preorder(id, !n.IsRoot())
		out := make([]model.Record, 0, len(ids))
		for _, d := range ids {
			out = append(out, t.flatRecord(t.nodes[d], opts))
		}
		return out, nil
	}
	if n.IsRoot() {
		out := make([]model.Record, 0, len(n.Children))
		for _, c := range n.Children {
			out = append(out, t.toRecord(t.nodes[c], opts))
		}
		return out, nil
	}
	return []model.Record{t.toRecord(n, opts)}, nil
}

// MarshalJSON is GetJSON followed by encoding.
func (t *Tree) MarshalJSON(id string, opts JSONOptions) ([]byte, error) {
	recs, err := t.GetJSON(id, opts)
	if err != nil {
		return nil, err
	}
	return json.Marshal(recs)
}

// toRecord serializes n and, unless excluded, its subtree.
func (t *Tree) toRecord(n *model.Node, opts JSONOptions) model.Record {
	rec := t.baseRecord(n, opts)
	if !opts.NoID {
		rec.ID = n.ID
	}
	if opts.NoChildren {
		return rec
	}
	if !n.State.Loaded {
		rec.Children = model.Lazy()
		return rec
	}
	items := make([]model.Record, 0, len(n.Children))
	for _, c := range n.Children {
		items = append(items, t.toRecord(t.nodes[c], opts))
	}
	rec.Children = model.Items(items...)
	return rec
}

func (t *Tree) flatRecord(n *model.Node, opts JSONOptions) model.Record {
	rec := t.baseRecord(n, opts)
	rec.ID = n.ID
	rec.Parent = n.Parent
	if !n.State.Loaded {
		rec.Children = model.Lazy()
	}
	return rec
}

func (t *Tree) baseRecord(n *model.Node, opts JSONOptions) model.Record {
	rec := model.Record{Text: n.Text, Icon: n.Icon}
	if !opts.NoState {
		rec.State = n.State.Flags()
	}
	if !opts.NoData {
		rec.Data = model.CloneData(n.Data)
	}
	if !opts.NoLiAttr {
		rec.LiAttr = maps.Clone(n.ContainerAttr)
	}
	if !opts.NoAAttr {
		rec.AAttr = maps.Clone(n.LabelAttr)
	}
	return rec
}
