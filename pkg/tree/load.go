package tree

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// LoadNode fetches and merges the children of id. A loaded node is unloaded
// first, purging its descendants. A node that is already loading is not
// fetched again; done joins the pending completion instead. done may be nil
// and is called exactly once with whether the node ended loaded.
func (t *Tree) LoadNode(id string, done func(ok bool)) {
	if done == nil {
		done = func(bool) {}
	}
	if t.destroyed {
		done(false)
		return
	}
	n := t.nodes[id]
	if n == nil {
		t.fail(KindLoad, OpLoad, id, "", -1, ErrNotFound)
		done(false)
		return
	}
	if pl := t.pending[id]; pl != nil {
		pl.waiters = append(pl.waiters, done)
		return
	}
	if n.State.Loaded {
		t.unload(n)
	}

	t.loadSeq++
	seq := t.loadSeq
	t.pending[id] = &pendingLoad{seq: seq, waiters: []func(bool){done}}
	n.State.Loading = true
	n.State.Failed = false
	t.markChanged(id, false)

	var once sync.Once
	t.fetch(n, func(p model.Payload, err error) {
		once.Do(func() {
			t.sched.Schedule(func() { t.finishFetch(id, seq, p, err) })
		})
	})
}

// unload purges every descendant of n and resets it to unloaded. Selected
// descendants are evicted and reported with a single changed event.
func (t *Tree) unload(n *model.Node) {
	var deselected []string
	for _, c := range append([]string(nil), n.Children...) {
		_, sel := t.removeSubtree(c)
		deselected = append(deselected, sel...)
	}
	n.Children = []string{}
	n.ChildrenD = model.IDSet{}
	n.State.Loaded = false
	t.markStructural(n.ID)
	if len(deselected) > 0 {
		t.emitChanged(OpLoad, n.ID)
	}
}

func (t *Tree) fetch(n *model.Node, done func(model.Payload, error)) {
	switch {
	case t.opts.Fetcher != nil:
		t.opts.Fetcher.Fetch(t.ctx, n.Clone(), done)
	case n.IsRoot() && t.opts.Data != nil:
		done(t.opts.Data, nil)
	default:
		done(nil, nil)
	}
}

// finishFetch runs on the owner goroutine once the fetcher reports.
func (t *Tree) finishFetch(id string, seq uint64, p model.Payload, err error) {
	if !t.current(id, seq) {
		loadsTotal.WithLabelValues("discarded").Inc()
		t.log.Debug("discarding stale load result", slog.String("node", id))
		return
	}
	if err != nil {
		t.failLoad(id, newError(KindLoad, OpLoad, id, "", -1, fmt.Errorf("%w: %w", ErrLoadFailed, err)))
		return
	}
	n := t.nodes[id]
	if t.useBackground(p) {
		req := parseRequest{
			target:      id,
			chain:       chainFor(n),
			payload:     copyPayload(p),
			concurrency: t.opts.Background.Concurrency,
		}
		ok := t.worker.Submit(req, func(f *fragment, perr error, werr *WorkerError) {
			t.sched.Schedule(func() { t.finishParse(id, seq, req, f, perr, werr) })
		})
		if ok {
			t.inflight++
			return
		}
		backgroundFallbacks.Inc()
		t.log.Warn("warning: background parser unavailable, parsing inline", slog.String("node", id))
	}
	f, perr := parsePayload(t.ctx, parseRequest{
		target:      id,
		chain:       chainFor(n),
		payload:     p,
		concurrency: 1,
	})
	t.commitLoad(id, seq, f, perr)
}

// finishParse applies a background parse result, falling back to an inline
// parse of the same payload when the worker failed.
func (t *Tree) finishParse(id string, seq uint64, req parseRequest, f *fragment, perr error, werr *WorkerError) {
	t.inflight--
	defer t.settle()
	if werr != nil && t.current(id, seq) {
		backgroundFallbacks.Inc()
		t.log.Warn("warning: background parse failed, parsing inline",
			slog.String("node", id), slog.String("error", werr.Error()))
		req.concurrency = 1
		f, perr = parsePayload(t.ctx, req)
	}
	t.commitLoad(id, seq, f, perr)
}

func (t *Tree) useBackground(p model.Payload) bool {
	if t.worker == nil || p == nil || !t.sched.Deferred() {
		return false
	}
	return p.Len() >= t.opts.Background.Threshold
}

// current reports whether the load of id identified by seq is still the
// one waiting for a result.
func (t *Tree) current(id string, seq uint64) bool {
	pl := t.pending[id]
	return pl != nil && pl.seq == seq && t.nodes[id] != nil
}

// commitLoad merges a parsed fragment as the children of id. Nothing is
// written when parsing or merging fails.
func (t *Tree) commitLoad(id string, seq uint64, f *fragment, perr error) {
	if !t.current(id, seq) {
		loadsTotal.WithLabelValues("discarded").Inc()
		return
	}
	if perr != nil {
		t.failLoad(id, parseError(OpLoad, id, perr))
		return
	}
	if err := t.merge(f); err != nil {
		t.failLoad(id, parseError(OpLoad, id, err))
		return
	}
	n := t.nodes[id]
	if len(n.Children) > 0 {
		t.unload(n)
	}
	t.attach(n, 0, f.roots, f.order)
	n.State.Loading = false
	n.State.Loaded = true
	n.State.Failed = false

	pl := t.pending[id]
	delete(t.pending, id)
	if t.reconcileSelection(f) {
		t.emitChanged(OpLoad, id)
	}
	t.markStructural(id)
	loadsTotal.WithLabelValues("loaded").Inc()
	t.log.Debug("node loaded", slog.String("node", id), slog.Int("children", len(f.roots)), slog.Int("nodes", len(f.order)))
	t.emit(Event{Type: EventLoad, Node: id, Status: true})
	for _, w := range pl.waiters {
		w(true)
	}
	t.settle()
}

func (t *Tree) failLoad(id string, err *Error) {
	n := t.nodes[id]
	n.State.Loading = false
	n.State.Loaded = false
	n.State.Failed = true
	pl := t.pending[id]
	delete(t.pending, id)
	t.markChanged(id, false)
	loadsTotal.WithLabelValues("failed").Inc()
	t.report(err)
	t.emit(Event{Type: EventLoad, Node: id, Status: false})
	for _, w := range pl.waiters {
		w(false)
	}
	t.settle()
}

// settle drops selection intents once no load or parse is outstanding.
func (t *Tree) settle() {
	if t.inflight == 0 && len(t.pending) == 0 {
		clear(t.intents)
	}
}

// copyPayload deep-copies p so the background parser never shares memory
// with the caller.
func copyPayload(p model.Payload) model.Payload {
	switch p := p.(type) {
	case model.RawPayload:
		return append(model.RawPayload(nil), p...)
	case model.NestedPayload:
		return model.NestedPayload(cloneRecords(p))
	case model.FlatPayload:
		return model.FlatPayload(cloneRecords(p))
	case model.TextOnlyPayload:
		return append(model.TextOnlyPayload(nil), p...)
	default:
		return p
	}
}

func cloneRecords(recs []model.Record) []model.Record {
	out := make([]model.Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}

// IsLoaded reports whether id's children are loaded.
func (t *Tree) IsLoaded(id string) bool {
	n := t.nodes[id]
	return n != nil && n.State.Loaded
}

// IsLoading reports whether a load of id is outstanding.
func (t *Tree) IsLoading(id string) bool {
	n := t.nodes[id]
	return n != nil && n.State.Loading
}

// IsFailed reports whether the last load of id failed.
func (t *Tree) IsFailed(id string) bool {
	n := t.nodes[id]
	return n != nil && n.State.Failed
}

// LoadNodes loads every listed id that is not loaded yet and calls done
// once when each has ended loaded or failed. Ids not in the store yet are
// retried after each round that made progress, so a list may name
// descendants of other listed ids.
func (t *Tree) LoadNodes(ids []string, done func(ok bool)) {
	if done == nil {
		done = func(bool) {}
	}
	fired := false
	finish := func() {
		if fired {
			return
		}
		fired = true
		ok := true
		for _, id := range ids {
			if !t.IsLoaded(id) {
				ok = false
				break
			}
		}
		done(ok)
	}

	attempted := model.IDSet{}
	var drive func()
	drive = func() {
		if t.destroyed {
			finish()
			return
		}
		var todo []string
		for _, id := range ids {
			n := t.nodes[id]
			if n == nil || n.State.Loaded || attempted.Has(id) {
				continue
			}
			todo = append(todo, id)
		}
		if len(todo) == 0 {
			finish()
			return
		}
		remaining := len(todo)
		progress := false
		for _, id := range todo {
			attempted.Add(id)
			t.LoadNode(id, func(ok bool) {
				progress = progress || ok
				remaining--
				if remaining > 0 {
					return
				}
				if progress {
					drive()
				} else {
					finish()
				}
			})
		}
	}
	drive()
}

// LoadAll loads id and then every unloaded descendant, recursively. Nodes
// that fail are not retried.
func (t *Tree) LoadAll(id string, done func(ok bool)) {
	if done == nil {
		done = func(bool) {}
	}
	if t.nodes[id] == nil {
		done(false)
		return
	}
	allOK := true
	var step func()
	step = func() {
		if t.destroyed {
			done(false)
			return
		}
		var todo []string
		for _, d := range t.preorder(id, true) {
			n := t.nodes[d]
			if n.State.Loaded || n.State.Failed {
				continue
			}
			todo = append(todo, d)
		}
		if len(todo) == 0 {
			done(allOK && !t.IsFailed(id))
			return
		}
		t.LoadNodes(todo, func(ok bool) {
			if !ok {
				allOK = false
			}
			step()
		})
	}
	step()
}
