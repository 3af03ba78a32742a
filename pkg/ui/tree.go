// Package ui provides the terminal user interface for arbor.
//
// TreeModel is the terminal rendering adapter: it receives render plans from
// a tree.Tree and keeps the drawn rows; Model is the bubbletea program that
// routes keys to tree operations.
package ui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/tree"
)

// row is one drawn line.
type row struct {
	id     string
	depth  int
	last   bool
	guides []bool // per ancestor level: whether a sibling follows below
}

// TreeModel draws one tree in the terminal. It implements tree.Adapter and
// only knows what the render plans it received describe.
type TreeModel struct {
	tree      *tree.Tree
	theme     Theme
	showIcons bool

	info  map[string]*tree.RenderNode // last render request per drawn node
	kids  map[string][]string         // drawn child ids
	block map[string]bool             // whether the children block is drawn

	rows  []row
	index map[string]int

	cursor string
	offset int // index of the first visible row
	left   int
	width  int
	height int
	plans  int
}

var _ tree.Adapter = (*TreeModel)(nil)

// NewTreeModel creates an adapter with nothing drawn.
func NewTreeModel(theme Theme) *TreeModel {
	return &TreeModel{
		theme:     theme,
		showIcons: true,
		info:      make(map[string]*tree.RenderNode),
		kids:      make(map[string][]string),
		block:     make(map[string]bool),
		index:     make(map[string]int),
	}
}

// NewTree creates a tree drawn by a new TreeModel.
func NewTree(opts tree.Options, theme Theme) (*TreeModel, *tree.Tree) {
	m := NewTreeModel(theme)
	opts.Adapter = m
	m.Attach(tree.New(opts))
	return m, m.tree
}

// Attach binds the model to the tree whose plans it receives.
func (m *TreeModel) Attach(t *tree.Tree) { m.tree = t }

// Tree returns the attached tree.
func (m *TreeModel) Tree() *tree.Tree { return m.tree }

// SetShowIcons toggles the icon column.
func (m *TreeModel) SetShowIcons(v bool) { m.showIcons = v }

// SetSize updates the available dimensions for the tree view.
func (m *TreeModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.ensureVisible()
}

// Sync flushes the tree's pending render work into this view.
func (m *TreeModel) Sync() tree.RenderPlan {
	if m.tree == nil {
		return tree.RenderPlan{}
	}
	return m.tree.Flush()
}

// Regenerate applies a render plan.
func (m *TreeModel) Regenerate(plan tree.RenderPlan) {
	m.plans++
	if plan.Full {
		m.info = make(map[string]*tree.RenderNode)
		m.kids = make(map[string][]string)
		m.block = make(map[string]bool)
		ids := make([]string, 0, len(plan.Nodes))
		for _, rn := range plan.Nodes {
			m.add(rn)
			ids = append(ids, rn.ID)
		}
		m.kids[model.RootID] = ids
		m.block[model.RootID] = true
	} else {
		for _, rn := range plan.Nodes {
			m.add(rn)
		}
	}
	m.rebuildRows()
}

func (m *TreeModel) add(rn *tree.RenderNode) {
	if rn.ReuseChildren {
		kept := m.info[rn.ID]
		m.info[rn.ID] = rn
		if kept == nil {
			m.kids[rn.ID] = nil
		}
		return
	}
	m.drop(rn.ID)
	m.info[rn.ID] = rn
	var ids []string
	for _, c := range rn.Children {
		m.add(c)
		ids = append(ids, c.ID)
	}
	m.kids[rn.ID] = ids
	m.block[rn.ID] = rn.Children != nil
}

// drop forgets everything drawn below id.
func (m *TreeModel) drop(id string) {
	for _, c := range m.kids[id] {
		m.drop(c)
		delete(m.info, c)
		delete(m.kids, c)
		delete(m.block, c)
	}
	m.kids[id] = nil
	m.block[id] = false
}

// rebuildRows flattens the drawn nodes into rows and keeps the cursor on
// the same node, or on the row that took its place.
func (m *TreeModel) rebuildRows() {
	prev, hadPrev := m.index[m.cursor]
	m.rows = m.rows[:0]
	m.index = make(map[string]int, len(m.index))

	var walk func(parent string, depth int, guides []bool)
	walk = func(parent string, depth int, guides []bool) {
		if !m.block[parent] {
			return
		}
		var shown []string
		for _, id := range m.kids[parent] {
			if rn := m.info[id]; rn != nil && !rn.Hidden {
				shown = append(shown, id)
			}
		}
		for i, id := range shown {
			last := i == len(shown)-1
			m.index[id] = len(m.rows)
			m.rows = append(m.rows, row{id: id, depth: depth, last: last, guides: guides})
			// closed nodes keep their children block but do not show it
			if m.info[id].Visual == tree.VisualOpen {
				walk(id, depth+1, append(append([]bool(nil), guides...), !last))
			}
		}
	}
	walk(model.RootID, 0, nil)

	if _, ok := m.index[m.cursor]; !ok {
		switch {
		case len(m.rows) == 0:
			m.cursor = ""
		case hadPrev:
			m.cursor = m.rows[min(prev, len(m.rows)-1)].id
		default:
			m.cursor = m.rows[0].id
		}
	}
	m.ensureVisible()
}

// IsMaterialized reports whether id has been drawn.
func (m *TreeModel) IsMaterialized(id string) bool {
	_, ok := m.info[id]
	return ok
}

// HasChildrenBlock reports whether id's children are drawn.
func (m *TreeModel) HasChildrenBlock(id string) bool { return m.block[id] }

// FocusedID returns the node under the cursor.
func (m *TreeModel) FocusedID() string { return m.cursor }

// Focus moves the cursor to id once it is drawn.
func (m *TreeModel) Focus(id string) {
	m.cursor = id
	m.ensureVisible()
}

// Scroll returns the viewport position.
func (m *TreeModel) Scroll() tree.Scroll { return tree.Scroll{Top: m.offset, Left: m.left} }

// RestoreScroll sets the viewport position.
func (m *TreeModel) RestoreScroll(s tree.Scroll) {
	m.offset = max(0, s.Top)
	m.left = max(0, s.Left)
}

// Plans returns how many render plans were applied.
func (m *TreeModel) Plans() int { return m.plans }

// Rows returns the ids of the drawn rows in display order.
func (m *TreeModel) Rows() []string {
	ids := make([]string, len(m.rows))
	for i, r := range m.rows {
		ids[i] = r.id
	}
	return ids
}

// NodeCount returns the number of drawn rows.
func (m *TreeModel) NodeCount() int { return len(m.rows) }

func (m *TreeModel) cursorIndex() int {
	if i, ok := m.index[m.cursor]; ok {
		return i
	}
	return -1
}

func (m *TreeModel) pageSize() int {
	if m.height <= 0 {
		return 20
	}
	return m.height
}

// ensureVisible scrolls so the cursor row is on screen.
func (m *TreeModel) ensureVisible() {
	i := m.cursorIndex()
	if i < 0 {
		m.offset = min(m.offset, max(0, len(m.rows)-1))
		return
	}
	h := m.pageSize()
	if i < m.offset {
		m.offset = i
	} else if i >= m.offset+h {
		m.offset = i - h + 1
	}
}

func (m *TreeModel) moveTo(i int) {
	if len(m.rows) == 0 {
		return
	}
	i = max(0, min(i, len(m.rows)-1))
	m.cursor = m.rows[i].id
	m.ensureVisible()
}

// MoveDown moves the cursor down one row.
func (m *TreeModel) MoveDown() { m.moveTo(m.cursorIndex() + 1) }

// MoveUp moves the cursor up one row.
func (m *TreeModel) MoveUp() { m.moveTo(m.cursorIndex() - 1) }

// JumpToTop moves the cursor to the first row.
func (m *TreeModel) JumpToTop() { m.moveTo(0) }

// JumpToBottom moves the cursor to the last row.
func (m *TreeModel) JumpToBottom() { m.moveTo(len(m.rows) - 1) }

// PageDown moves the cursor down by half a viewport.
func (m *TreeModel) PageDown() { m.moveTo(m.cursorIndex() + max(1, m.pageSize()/2)) }

// PageUp moves the cursor up by half a viewport.
func (m *TreeModel) PageUp() { m.moveTo(m.cursorIndex() - max(1, m.pageSize()/2)) }

// JumpToParent moves the cursor to the parent of the focused node.
// Top-level nodes stay where they are.
func (m *TreeModel) JumpToParent() {
	n := m.tree.Get(m.cursor)
	if n == nil || n.Parent == model.RootID {
		return
	}
	if _, ok := m.index[n.Parent]; ok {
		m.Focus(n.Parent)
	}
}

// ExpandOrMoveToChild opens a closed node, or moves to the first child of
// an open one.
func (m *TreeModel) ExpandOrMoveToChild() {
	rn := m.info[m.cursor]
	if rn == nil {
		return
	}
	switch rn.Visual {
	case tree.VisualClosed:
		m.tree.OpenNode(rn.ID, nil)
	case tree.VisualOpen:
		if kids := m.kids[rn.ID]; len(kids) > 0 {
			if _, ok := m.index[kids[0]]; ok {
				m.Focus(kids[0])
			}
		}
	}
}

// CollapseOrJumpToParent closes an open node, or jumps to the parent.
func (m *TreeModel) CollapseOrJumpToParent() {
	rn := m.info[m.cursor]
	if rn == nil {
		return
	}
	if rn.Visual == tree.VisualOpen {
		m.tree.CloseNode(rn.ID)
		return
	}
	m.JumpToParent()
}

// View renders the visible rows.
func (m *TreeModel) View() string {
	if len(m.rows) == 0 {
		return m.renderEmptyState()
	}
	end := min(len(m.rows), m.offset+m.pageSize())
	start := min(m.offset, end)
	lines := make([]string, 0, end-start)
	for _, r := range m.rows[start:end] {
		lines = append(lines, m.renderRow(r))
	}
	return strings.Join(lines, "\n")
}

func (m *TreeModel) renderEmptyState() string {
	r := m.theme.Renderer
	title := r.NewStyle().Foreground(m.theme.Primary).Bold(true).Render("Empty tree")
	hint := r.NewStyle().Foreground(m.theme.Muted).Render("Press a to create a node, R to reload.")
	if m.tree != nil && m.tree.IsLoading(model.RootID) {
		hint = r.NewStyle().Foreground(m.theme.Muted).Render("Loading…")
	}
	return title + "\n\n" + hint
}

func (m *TreeModel) renderRow(r row) string {
	rn := m.info[r.id]
	th := m.theme
	var sb strings.Builder

	prefix := buildTreePrefix(r)
	sb.WriteString(th.Renderer.NewStyle().Foreground(th.Muted).Render(prefix))
	sb.WriteString(th.Renderer.NewStyle().Foreground(th.Secondary).Render(indicator(rn)))
	sb.WriteString(" ")
	used := runewidth.StringWidth(prefix) + 2

	if m.showIcons && rn.Icon != "" {
		icon := runewidth.Truncate(rn.Icon, 12, "…")
		sb.WriteString(th.Renderer.NewStyle().Foreground(th.Highlight).Render(icon))
		sb.WriteString(" ")
		used += runewidth.StringWidth(icon) + 1
	}

	label := rn.Text
	if rn.Selected {
		label = "✓ " + label
	}
	if m.width > 0 {
		label = runewidth.Truncate(label, max(4, m.width-used), "…")
	}
	style := th.Base
	switch {
	case rn.Disabled:
		style = th.Disabled
	case rn.Selected:
		style = th.Selected
	case rn.Failed:
		style = th.Renderer.NewStyle().Foreground(th.Error)
	}
	sb.WriteString(style.Render(label))

	line := sb.String()
	if r.id == m.cursor {
		line = th.Cursor.Render(line)
	}
	return line
}

// buildTreePrefix draws the guides and branch for a row. Top-level rows
// have no prefix.
func buildTreePrefix(r row) string {
	if r.depth == 0 {
		return ""
	}
	var sb strings.Builder
	for _, more := range r.guides[1:] {
		if more {
			sb.WriteString("│   ")
		} else {
			sb.WriteString("    ")
		}
	}
	if r.last {
		sb.WriteString("└── ")
	} else {
		sb.WriteString("├── ")
	}
	return sb.String()
}

func indicator(rn *tree.RenderNode) string {
	switch {
	case rn.Loading:
		return "…"
	case rn.Failed:
		return "!"
	case rn.Visual == tree.VisualOpen:
		return "▾"
	case rn.Visual == tree.VisualClosed:
		return "▸"
	default:
		return "•"
	}
}
