package tree

import (
	"slices"
	"sync"
)

// ClipMode is the intent recorded in the clipboard.
type ClipMode int

const (
	ClipNone ClipMode = iota
	ClipCut
	ClipCopy
)

func (m ClipMode) String() string {
	switch m {
	case ClipCut:
		return "move_node"
	case ClipCopy:
		return "copy_node"
	default:
		return "none"
	}
}

// Clipboard is the single-slot cut/copy buffer. Trees that share one
// instance can paste each other's nodes.
type Clipboard struct {
	mu     sync.Mutex
	mode   ClipMode
	ids    []string
	origin *Tree
}

// NewClipboard returns an empty clipboard.
func NewClipboard() *Clipboard {
	return &Clipboard{}
}

// Set replaces the buffer.
func (c *Clipboard) Set(mode ClipMode, ids []string, origin *Tree) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	c.ids = slices.Clone(ids)
	c.origin = origin
}

// Get returns the buffered mode, ids and originating tree.
func (c *Clipboard) Get() (ClipMode, []string, *Tree) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode, slices.Clone(c.ids), c.origin
}

// Clear empties the buffer.
func (c *Clipboard) Clear() {
	c.Set(ClipNone, nil, nil)
}

// Empty reports whether nothing is buffered.
func (c *Clipboard) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode == ClipNone || len(c.ids) == 0
}

// forget clears the buffer if it holds nodes of t.
func (c *Clipboard) forget(t *Tree) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.origin == t {
		c.mode, c.ids, c.origin = ClipNone, nil, nil
	}
}

// Cut buffers ids for a later move.
func (t *Tree) Cut(ids ...string) error {
	return t.buffer(ClipCut, EventCut, ids)
}

// Copy buffers ids for a later copy.
func (t *Tree) Copy(ids ...string) error {
	return t.buffer(ClipCopy, EventCopyBuf, ids)
}

func (t *Tree) buffer(mode ClipMode, ev EventType, ids []string) error {
	if t.destroyed {
		return ErrDestroyed
	}
	var valid []string
	for _, id := range ids {
		if n := t.nodes[id]; n != nil && !n.IsRoot() {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return ErrNotFound
	}
	t.clip.Set(mode, valid, t)
	t.emit(Event{Type: ev, IDs: valid})
	return nil
}

// CanPaste reports whether the clipboard holds anything.
func (t *Tree) CanPaste() bool {
	return !t.clip.Empty()
}

// Paste replays the buffered cut or copy under parent at pos. The buffer
// is cleared afterwards whether or not the replay succeeded.
func (t *Tree) Paste(parent string, pos Position) error {
	if t.destroyed {
		return t.destroyedErr(OpPaste)
	}
	mode, ids, origin := t.clip.Get()
	if mode == ClipNone || len(ids) == 0 {
		return t.fail(KindConflict, OpPaste, "", parent, -1, ErrEmptyBuffer)
	}
	defer t.clip.Clear()

	var err error
	switch mode {
	case ClipCut:
		err = t.moveNodes(origin, ids, parent, pos)
	case ClipCopy:
		_, err = t.copyNodes(origin, ids, parent, pos)
	}
	ev := Event{Type: EventPaste, Parent: parent, IDs: ids, Action: mode.String()}
	if origin != nil && origin != t {
		ev.Origin = origin.id
	}
	t.emit(ev)
	return err
}
