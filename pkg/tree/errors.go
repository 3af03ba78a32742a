package tree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// Lookup errors
var (
	// ErrNotFound indicates that a node id is not present in the store.
	ErrNotFound = errors.New("node not found")

	// ErrRootImmutable indicates an operation that would rename, delete or
	// move the synthetic root.
	ErrRootImmutable = errors.New("root node cannot be modified")
)

// Structural errors
var (
	// ErrCycle indicates a move of a node into itself or one of its descendants.
	ErrCycle = errors.New("cannot move a node into its own subtree")

	// ErrInvalidParent indicates a target or flat-form parent that does not exist.
	ErrInvalidParent = errors.New("invalid parent")

	// ErrDuplicateID indicates a flat-form payload that repeats an id or
	// reuses one already present in the store.
	ErrDuplicateID = errors.New("duplicate node id")

	// ErrMalformed indicates a payload that could not be decoded or normalized.
	ErrMalformed = model.ErrMalformedPayload
)

// Permission errors
var (
	// ErrDenied indicates that the permission gate refused the operation.
	ErrDenied = errors.New("operation denied")

	// ErrReadOnly indicates that mutations are disabled for the instance.
	ErrReadOnly = errors.New("tree is read-only")
)

// Load and lifecycle errors
var (
	// ErrLoadFailed indicates that the fetch strategy reported a failure.
	ErrLoadFailed = errors.New("load failed")

	// ErrPending indicates that the operation waits for its target parent to
	// finish loading; it is replayed when the load completes.
	ErrPending = errors.New("deferred until parent is loaded")

	// ErrEmptyBuffer indicates a paste with nothing cut or copied.
	ErrEmptyBuffer = errors.New("clipboard is empty")

	// ErrDestroyed indicates a call on a destroyed instance.
	ErrDestroyed = errors.New("tree destroyed")
)

// Kind classifies a surfaced error.
type Kind int

const (
	// KindLoad covers fetch failures and unparseable payloads.
	KindLoad Kind = iota
	// KindPermission covers permission gate denials and read-only instances.
	KindPermission
	// KindConflict covers cycles, invalid targets and malformed flat payloads.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindLoad:
		return "load"
	case KindPermission:
		return "permission"
	case KindConflict:
		return "conflict"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the structured record reported through the error funnel. It
// carries enough context to reconstruct the attempted operation.
type Error struct {
	Kind     Kind
	Op       string // operation name, e.g. "move_node"
	Subject  string // node id the operation addressed
	Parent   string // target parent id, if any
	Position int    // resolved target index, -1 when not applicable
	Reason   string
	Err      error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Op)
	sb.WriteString(": ")
	sb.WriteString(e.Kind.String())
	if e.Subject != "" {
		fmt.Fprintf(&sb, " node=%s", e.Subject)
	}
	if e.Parent != "" {
		fmt.Fprintf(&sb, " parent=%s", e.Parent)
	}
	if e.Position >= 0 {
		fmt.Fprintf(&sb, " pos=%d", e.Position)
	}
	if e.Reason != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Reason)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op, subject, parent string, pos int, err error) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Parent: parent, Position: pos, Err: err}
}
