package ui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/arbor/pkg/tree"
)

// BridgeState represents the current state of the scheduler bridge.
type BridgeState int

const (
	// BridgeIdle means no continuation is running.
	BridgeIdle BridgeState = iota
	// BridgeRunning means continuations are being run on the update goroutine.
	BridgeRunning
	// BridgeStopped means the bridge has been stopped.
	BridgeStopped
)

// WorkMsg carries a tree continuation to the update goroutine.
type WorkMsg struct {
	fn func()
}

// Bridge is the tree.Scheduler of the terminal program. Fetch callbacks,
// background parse results and file watcher reloads are queued by other
// goroutines and run inside Model.Update, so every tree is only touched by
// the bubbletea update goroutine.
type Bridge struct {
	loop *tree.Loop

	mu    sync.Mutex
	state BridgeState
	ran   int

	ctx    context.Context
	cancel context.CancelFunc
}

var _ tree.Scheduler = (*Bridge)(nil)

// NewBridge creates an idle bridge.
func NewBridge() *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{loop: tree.NewLoop(), ctx: ctx, cancel: cancel}
}

// Schedule queues fn for the update goroutine.
func (b *Bridge) Schedule(fn func()) { b.loop.Schedule(fn) }

// Deferred always reports true.
func (b *Bridge) Deferred() bool { return true }

// Wait returns a command that blocks until work is queued. Model re-arms
// it after every WorkMsg.
func (b *Bridge) Wait() tea.Cmd {
	return func() tea.Msg {
		fn, err := b.loop.Next(b.ctx)
		if err != nil {
			return nil
		}
		return WorkMsg{fn: fn}
	}
}

// Run executes the delivered continuation and everything it queues. It
// must be called from the update goroutine.
func (b *Bridge) Run(msg WorkMsg) int {
	b.mu.Lock()
	if b.state == BridgeStopped {
		b.mu.Unlock()
		return 0
	}
	b.state = BridgeRunning
	b.mu.Unlock()

	n := 0
	if msg.fn != nil {
		msg.fn()
		n++
	}
	n += b.loop.Drain()

	b.mu.Lock()
	b.ran += n
	if b.state == BridgeRunning {
		b.state = BridgeIdle
	}
	b.mu.Unlock()
	return n
}

// Drain runs queued work without waiting for a WorkMsg.
func (b *Bridge) Drain() int { return b.Run(WorkMsg{}) }

// Stop releases a pending Wait. Queued work is discarded.
// Stop is idempotent.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BridgeStopped
	b.cancel()
}

// State returns the current bridge state.
func (b *Bridge) State() BridgeState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Ran returns how many continuations have run.
func (b *Bridge) Ran() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ran
}
