package tree

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// fragment is a parsed subtree that has not been merged into a store yet.
// Parsing never reads the store, so it can run on the background parser;
// ids that must be invented are held under temporary keys until merge.
type fragment struct {
	target   string
	flat     bool
	roots    []string
	order    []string // pre-order keys
	nodes    map[string]*model.Node
	invented model.IDSet
	selected []string
	temp     int
}

// parseRequest is the store-independent input of a parse. chain is the
// Parents value a top-level node of the fragment receives.
type parseRequest struct {
	target      string
	chain       []string
	payload     model.Payload
	concurrency int
}

func newFragment(target string) *fragment {
	return &fragment{
		target:   target,
		nodes:    make(map[string]*model.Node),
		invented: model.IDSet{},
	}
}

// tempKey returns a key no payload can contain.
func (f *fragment) tempKey() string {
	f.temp++
	return "\x00" + strconv.Itoa(f.temp)
}

// parsePayload normalizes any payload shape into a fragment.
func parsePayload(ctx context.Context, req parseRequest) (*fragment, error) {
	p := req.payload
	if raw, ok := p.(model.RawPayload); ok {
		recs, err := model.DecodeRecords(ctx, raw, req.concurrency)
		if err != nil {
			return nil, err
		}
		p = model.ClassifyRecords(recs)
	}
	f := newFragment(req.target)
	switch p := p.(type) {
	case nil:
		return f, nil
	case model.NestedPayload:
		for _, rec := range p {
			f.roots = append(f.roots, f.addNested(rec, req.target, req.chain))
		}
	case model.TextOnlyPayload:
		for _, rec := range p.Records() {
			f.roots = append(f.roots, f.addNested(rec, req.target, req.chain))
		}
	case model.FlatPayload:
		if err := f.addFlat(p, req.chain); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unsupported payload %T", ErrMalformed, p)
	}
	return f, nil
}

// newNode builds the node for rec with default state and payload overrides.
func (f *fragment) newNode(key string, rec model.Record, parent string, chain []string) *model.Node {
	state := model.DefaultState()
	state.Apply(rec.State)
	if rec.Children != nil {
		if rec.Children.Lazy {
			state.Loaded = false
		} else if len(rec.Children.Items) > 0 {
			state.Loaded = true
		}
	}
	if state.Selected {
		f.selected = append(f.selected, key)
		state.Selected = false
	}
	orig := rec
	orig.Children = nil
	return &model.Node{
		ID:            key,
		Parent:        parent,
		Parents:       slices.Clone(chain),
		Children:      []string{},
		ChildrenD:     model.IDSet{},
		Text:          rec.Text,
		Icon:          rec.Icon,
		State:         state,
		Data:          model.CloneData(rec.Data),
		ContainerAttr: maps.Clone(rec.LiAttr),
		LabelAttr:     maps.Clone(rec.AAttr),
		Original:      &orig,
	}
}

// addNested adds rec and its subtree and returns its key. Missing or
// repeated ids get a temporary key.
func (f *fragment) addNested(rec model.Record, parent string, chain []string) string {
	key := rec.ID
	if key == "" || key == model.RootID || f.nodes[key] != nil || slices.Contains(chain, key) {
		key = f.tempKey()
		f.invented.Add(key)
	}
	n := f.newNode(key, rec, parent, chain)
	f.nodes[key] = n
	f.order = append(f.order, key)

	if rec.Children != nil && len(rec.Children.Items) > 0 {
		childChain := make([]string, 0, len(chain)+1)
		childChain = append(childChain, key)
		childChain = append(childChain, chain...)
		for _, child := range rec.Children.Items {
			ck := f.addNested(child, key, childChain)
			n.Children = append(n.Children, ck)
			n.ChildrenD.Add(ck)
			n.ChildrenD.AddSet(f.nodes[ck].ChildrenD)
		}
	}
	return key
}

// addFlat groups records by parent in one pass, then builds the tree from
// the target downwards. Forward references resolve because grouping sees
// the whole batch first. An id repeated in the batch, a parent that is
// neither in the batch nor the target, and records unreachable from the
// target all fail the whole parse.
func (f *fragment) addFlat(recs []model.Record, chain []string) error {
	f.flat = true
	byID := make(map[string]int, len(recs))
	kids := make(map[string][]string)
	for i, rec := range recs {
		switch {
		case rec.ID == "":
			return fmt.Errorf("%w: flat record %d has no id", ErrMalformed, i)
		case rec.Parent == "":
			return fmt.Errorf("%w: flat record %q has no parent", ErrMalformed, rec.ID)
		case rec.ID == model.RootID || rec.ID == f.target || slices.Contains(chain, rec.ID):
			return fmt.Errorf("%w: %q", ErrDuplicateID, rec.ID)
		}
		if _, dup := byID[rec.ID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateID, rec.ID)
		}
		byID[rec.ID] = i
		kids[rec.Parent] = append(kids[rec.Parent], rec.ID)
	}
	for _, rec := range recs {
		if _, ok := byID[rec.Parent]; !ok && rec.Parent != f.target {
			return fmt.Errorf("%w: record %q references %q", ErrInvalidParent, rec.ID, rec.Parent)
		}
	}

	var build func(id, parent string, chain []string) *model.Node
	build = func(id, parent string, chain []string) *model.Node {
		rec := recs[byID[id]]
		rec.Children = flatChildren(rec.Children)
		n := f.newNode(id, rec, parent, chain)
		f.nodes[id] = n
		f.order = append(f.order, id)
		if len(kids[id]) == 0 {
			return n
		}
		n.State.Loaded = true
		childChain := make([]string, 0, len(chain)+1)
		childChain = append(childChain, id)
		childChain = append(childChain, chain...)
		for _, cid := range kids[id] {
			cn := build(cid, id, childChain)
			n.Children = append(n.Children, cid)
			n.ChildrenD.Add(cid)
			n.ChildrenD.AddSet(cn.ChildrenD)
		}
		return n
	}
	for _, id := range kids[f.target] {
		build(id, f.target, chain)
		f.roots = append(f.roots, id)
	}
	if len(f.nodes) != len(recs) {
		return fmt.Errorf("%w: %d records are not reachable from %q", ErrInvalidParent, len(recs)-len(f.nodes), f.target)
	}
	return nil
}

// flatChildren keeps only the lazy marker; flat records never nest.
func flatChildren(c *model.ChildList) *model.ChildList {
	if c != nil && c.Lazy {
		return c
	}
	return nil
}

// parseError classifies a parse failure for the error funnel.
func parseError(op, subject string, err error) *Error {
	kind := KindConflict
	if errors.Is(err, ErrMalformed) {
		kind = KindLoad
	}
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	return newError(kind, op, subject, "", -1, err)
}
