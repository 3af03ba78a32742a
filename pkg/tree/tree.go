// Package tree implements the node store and view-sync engine behind an
// interactive tree widget: lazy loading, structural mutations with a
// permission gate, selection tracking and incremental render planning.
//
// A Tree is owned by one goroutine. Asynchronous completions (fetch results,
// background parses) re-enter through the configured Scheduler, so callers
// never need locks around tree calls.
package tree

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// Operation names passed to the permission gate and used in errors.
const (
	OpCreate = "create_node"
	OpRename = "rename_node"
	OpDelete = "delete_node"
	OpMove   = "move_node"
	OpCopy   = "copy_node"
	OpLoad   = "load_node"
	OpPaste  = "paste"
)

// DefaultBackgroundThreshold is the record count at which a load payload is
// handed to the background parser.
const DefaultBackgroundThreshold = 1000

// Fetcher supplies the children of a node being loaded. Implementations call
// done exactly once, from any goroutine, with a payload, nil for "no data",
// or an error. Calls after the first are ignored.
type Fetcher interface {
	Fetch(ctx context.Context, node *model.Node, done func(model.Payload, error))
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc func(ctx context.Context, node *model.Node, done func(model.Payload, error))

// Fetch calls f.
func (f FetchFunc) Fetch(ctx context.Context, node *model.Node, done func(model.Payload, error)) {
	f(ctx, node, done)
}

// CheckRequest describes a mutation about to be applied.
type CheckRequest struct {
	Op       string
	Node     *model.Node   // copy of the subject; nil for create
	Record   *model.Record // record being created, for create
	Parent   *model.Node   // copy of the target parent
	Position int
	Origin   string // instance id of the source tree for foreign moves/copies
	Foreign  bool
	Multi    bool // part of a multi-node operation
}

// CheckFunc is the permission gate. Returning false refuses the operation.
type CheckFunc func(CheckRequest) bool

// BackgroundOptions configures off-goroutine parsing of large payloads.
type BackgroundOptions struct {
	Enabled     bool
	Threshold   int // minimum record count; DefaultBackgroundThreshold if 0
	Concurrency int // parallel decode workers for raw payloads; 1 if 0
}

// Options configures a Tree. The zero value is a usable, empty, writable tree
// with an inline scheduler and a headless adapter.
type Options struct {
	// ID identifies the instance; a ULID is generated if empty.
	ID string
	// IDPrefix prefixes invented node ids ("<prefix>_<n>").
	IDPrefix string

	Fetcher Fetcher
	// Data is served for the root when Fetcher is nil.
	Data model.Payload

	Check    CheckFunc
	ReadOnly bool
	Deny     []string // operations always refused

	// SingleSelect keeps at most one node selected.
	SingleSelect bool

	Scheduler  Scheduler
	Adapter    Adapter
	Clipboard  *Clipboard
	Background BackgroundOptions

	Logger  *slog.Logger
	OnEvent func(Event)
	OnError func(*Error)
}

var instanceSeq atomic.Int64

type pendingLoad struct {
	seq     uint64
	waiters []func(bool)
}

// Tree is one widget instance: node store, loader, mutation engine,
// selection tracker and render worklist.
type Tree struct {
	id     string
	prefix string
	opts   Options
	log    *slog.Logger

	sched   Scheduler
	adapter Adapter
	clip    *Clipboard
	worker  *BackgroundParser

	nodes   map[string]*model.Node
	counter int

	selected []string

	pending  map[string]*pendingLoad
	loadSeq  uint64
	inflight int
	intents  map[string]bool

	changed      map[string]bool
	changedOrder []string
	full         bool
	reopen       []string // closed by the last inline flush, opened by the next

	lastErr   *Error
	destroyed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a tree holding only the root. Call LoadNode(model.RootID, ...)
// to populate it.
func New(opts Options) *Tree {
	if opts.ID == "" {
		opts.ID = ulid.Make().String()
	}
	if opts.IDPrefix == "" {
		opts.IDPrefix = fmt.Sprintf("j%d", instanceSeq.Add(1))
	}
	if opts.Scheduler == nil {
		opts.Scheduler = Inline
	}
	if opts.Adapter == nil {
		opts.Adapter = NewHeadlessAdapter()
	}
	if opts.Clipboard == nil {
		opts.Clipboard = NewClipboard()
	}
	if opts.Background.Threshold <= 0 {
		opts.Background.Threshold = DefaultBackgroundThreshold
	}
	if opts.Background.Concurrency <= 0 {
		opts.Background.Concurrency = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "tree"), slog.String("instance", opts.ID))

	ctx, cancel := context.WithCancel(context.Background())
	t := &Tree{
		id:      opts.ID,
		prefix:  opts.IDPrefix,
		opts:    opts,
		log:     logger,
		sched:   opts.Scheduler,
		adapter: opts.Adapter,
		clip:    opts.Clipboard,
		nodes:   map[string]*model.Node{model.RootID: model.NewRoot()},
		pending: make(map[string]*pendingLoad),
		intents: make(map[string]bool),
		changed: make(map[string]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
	if opts.Background.Enabled {
		t.worker = newBackgroundParser(logger)
	}
	return t
}

// ID returns the instance id.
func (t *Tree) ID() string { return t.id }

// Adapter returns the rendering adapter.
func (t *Tree) Adapter() Adapter { return t.adapter }

// Scheduler returns the scheduler continuations run on.
func (t *Tree) Scheduler() Scheduler { return t.sched }

// Clipboard returns the cut/copy buffer this instance uses.
func (t *Tree) Clipboard() *Clipboard { return t.clip }

// Background returns the background parser, or nil when disabled.
func (t *Tree) Background() *BackgroundParser { return t.worker }

// Context is cancelled when the tree is destroyed. Fetchers receive it.
func (t *Tree) Context() context.Context { return t.ctx }

// LastError returns the most recent error reported through the error hook.
func (t *Tree) LastError() *Error { return t.lastErr }

// Get returns a copy of the node, or nil.
func (t *Tree) Get(id string) *model.Node {
	return t.nodes[id].Clone()
}

// Has reports whether id is in the store.
func (t *Tree) Has(id string) bool {
	_, ok := t.nodes[id]
	return ok
}

// Len returns the number of nodes, excluding the root.
func (t *Tree) Len() int {
	return len(t.nodes) - 1
}

// Children returns the ordered child ids of id.
func (t *Tree) Children(id string) []string {
	n := t.nodes[id]
	if n == nil {
		return nil
	}
	return slices.Clone(n.Children)
}

// Text returns the label of id.
func (t *Tree) Text(id string) string {
	if n := t.nodes[id]; n != nil {
		return n.Text
	}
	return ""
}

// Destroy stops the background parser, cancels in-flight fetches and fails
// every pending load. Further calls return ErrDestroyed.
func (t *Tree) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	t.cancel()
	if t.worker != nil {
		t.worker.Stop()
	}
	pending := t.pending
	t.pending = make(map[string]*pendingLoad)
	for id, pl := range pending {
		if n := t.nodes[id]; n != nil {
			n.State.Loading = false
		}
		for _, w := range pl.waiters {
			w(false)
		}
	}
	t.clip.forget(t)
	t.log.Debug("tree destroyed", slog.Int("nodes", t.Len()))
}

// newID invents an id unused by the store and by taken.
func (t *Tree) newID(taken func(string) bool) string {
	for {
		t.counter++
		id := fmt.Sprintf("%s_%d", t.prefix, t.counter)
		if _, ok := t.nodes[id]; ok {
			continue
		}
		if taken != nil && taken(id) {
			continue
		}
		return id
	}
}

// gate runs the read-only switch, the deny list and the permission gate.
func (t *Tree) gate(req CheckRequest) *Error {
	parent := ""
	if req.Parent != nil {
		parent = req.Parent.ID
	}
	subject := ""
	if req.Node != nil {
		subject = req.Node.ID
	}
	if t.opts.ReadOnly {
		return newError(KindPermission, req.Op, subject, parent, req.Position, ErrReadOnly)
	}
	if slices.Contains(t.opts.Deny, req.Op) {
		return newError(KindPermission, req.Op, subject, parent, req.Position, ErrDenied)
	}
	if t.opts.Check != nil && !t.opts.Check(req) {
		return newError(KindPermission, req.Op, subject, parent, req.Position, ErrDenied)
	}
	return nil
}

// report is the single error funnel.
func (t *Tree) report(err *Error) *Error {
	if err == nil {
		return nil
	}
	t.lastErr = err
	errorsTotal.WithLabelValues(err.Kind.String()).Inc()
	mutationsTotal.WithLabelValues(err.Op, "error").Inc()
	t.log.Warn("warning: operation failed",
		slog.String("op", err.Op),
		slog.String("kind", err.Kind.String()),
		slog.String("node", err.Subject),
		slog.String("parent", err.Parent),
		slog.String("error", err.Error()),
	)
	if t.opts.OnError != nil {
		t.opts.OnError(err)
	}
	t.emit(Event{Type: EventError, Node: err.Subject, Parent: err.Parent, Position: err.Position, Err: err})
	return err
}

// fail wraps a sentinel into a reported error.
func (t *Tree) fail(kind Kind, op, subject, parent string, pos int, err error) error {
	return t.report(newError(kind, op, subject, parent, pos, err))
}

func (t *Tree) destroyedErr(op string) error {
	return newError(KindPermission, op, "", "", -1, ErrDestroyed)
}

func (t *Tree) succeeded(op string) {
	mutationsTotal.WithLabelValues(op, "ok").Inc()
}

// String summarizes the tree for logs.
func (t *Tree) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "tree %s: %d nodes, %d selected", t.id, t.Len(), len(t.selected))
	if len(t.pending) > 0 {
		fmt.Fprintf(&sb, ", %d loading", len(t.pending))
	}
	return sb.String()
}

// since is a helper for duration log attributes.
func since(start time.Time) slog.Attr {
	return slog.Duration("took", time.Since(start))
}
