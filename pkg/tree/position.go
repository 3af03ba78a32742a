package tree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vanderheijden86/arbor/pkg/model"
)

type posKind int

const (
	posLast posKind = iota
	posFirst
	posBefore
	posAfter
	posIndex
)

// Position addresses an insertion point relative to a parent. The zero
// value means "last".
type Position struct {
	kind  posKind
	index int
}

var (
	First  = Position{kind: posFirst}
	Last   = Position{kind: posLast}
	Before = Position{kind: posBefore}
	After  = Position{kind: posAfter}
)

// At addresses index i among the parent's children. Values past the end
// clamp to last.
func At(i int) Position {
	return Position{kind: posIndex, index: i}
}

// ParsePosition accepts "first", "last", "before", "after" or an index.
func ParsePosition(s string) (Position, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last":
		return Last, nil
	case "first":
		return First, nil
	case "before":
		return Before, nil
	case "after":
		return After, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return Position{}, fmt.Errorf("invalid position %q", s)
	}
	return At(i), nil
}

func (p Position) String() string {
	switch p.kind {
	case posFirst:
		return "first"
	case posBefore:
		return "before"
	case posAfter:
		return "after"
	case posIndex:
		return strconv.Itoa(p.index)
	default:
		return "last"
	}
}

// resolve turns (parent, pos) into the parent that actually receives the
// node and an index in its children. before/after address the parent's
// own slot among its siblings, so they re-target to the grandparent; on
// the root they mean first/last.
func (t *Tree) resolve(parent *model.Node, pos Position) (*model.Node, int) {
	switch pos.kind {
	case posBefore, posAfter:
		if parent.IsRoot() {
			if pos.kind == posBefore {
				return parent, 0
			}
			return parent, len(parent.Children)
		}
		gp := t.nodes[parent.Parent]
		idx := gp.IndexOf(parent.ID)
		if pos.kind == posAfter {
			idx++
		}
		return gp, idx
	case posFirst:
		return parent, 0
	case posIndex:
		return parent, max(0, min(pos.index, len(parent.Children)))
	default:
		return parent, len(parent.Children)
	}
}
