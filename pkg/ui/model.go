package ui

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/statestore"
	"github.com/vanderheijden86/arbor/pkg/tree"
)

const (
	SplitViewThreshold = 100
)

type mode int

const (
	modeNormal mode = iota
	modePrompt
	modeConfirm
)

type promptKind int

const (
	promptCreate promptKind = iota
	promptCreateSibling
	promptRename
	promptSearch
)

// Pane is one tree shown in the program.
type Pane struct {
	Name string
	View *TreeModel
	// Reset runs before a manual reload, e.g. to drop a file index.
	Reset func()

	lastErr *tree.Error
}

// Options configures the program model.
type Options struct {
	Panes  []*Pane
	Bridge *Bridge
	Theme  Theme
	// Store receives each pane's state on quit; may be nil.
	Store statestore.Store
	// ConfirmDelete asks before deleting nodes.
	ConfirmDelete bool
	// WriteClipboard copies yanked JSON; clipboard.WriteAll if nil.
	WriteClipboard func(string) error
}

// Model is the bubbletea program: a tab per tree, a detail pane and a
// status line.
type Model struct {
	panes  []*Pane
	active int
	bridge *Bridge
	store  statestore.Store
	theme  Theme
	keys   KeyMap
	help   help.Model
	picker TreePicker

	mode      mode
	prompt    promptKind
	input     textinput.Model
	confirm   *huh.Form
	confirmed *bool
	doomed    []string

	detail     viewport.Model
	showDetail bool
	renderer   *glamour.TermRenderer
	rendererW  int

	matches  []tree.SearchResult
	matchIdx int

	status    string
	statusErr bool
	showHelp  bool

	confirmDelete  bool
	writeClipboard func(string) error

	width, height int
	ready         bool
	quitting      bool
}

// NewModel creates the program model. Panes must already be attached to
// trees scheduled on opts.Bridge.
func NewModel(opts Options) Model {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 40

	write := opts.WriteClipboard
	if write == nil {
		write = clipboard.WriteAll
	}
	bridge := opts.Bridge
	if bridge == nil {
		bridge = NewBridge()
	}
	return Model{
		panes:          opts.Panes,
		bridge:         bridge,
		store:          opts.Store,
		theme:          opts.Theme,
		keys:           DefaultKeyMap(),
		help:           help.New(),
		picker:         NewTreePicker(opts.Theme),
		input:          ti,
		confirmDelete:  opts.ConfirmDelete,
		writeClipboard: write,
	}
}

// Init starts waiting for scheduled tree work.
func (m Model) Init() tea.Cmd {
	return m.bridge.Wait()
}

// Pane returns the active pane.
func (m Model) Pane() *Pane {
	if len(m.panes) == 0 {
		return nil
	}
	return m.panes[m.active]
}

// Status returns the status line text.
func (m Model) Status() string { return m.status }

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case WorkMsg:
		m.bridge.Run(msg)
		cmds = append(cmds, m.bridge.Wait())

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()

	case tea.KeyMsg:
		var cmd tea.Cmd
		switch m.mode {
		case modePrompt:
			m, cmd = m.updatePrompt(msg)
		case modeConfirm:
			m, cmd = m.updateConfirm(msg)
		default:
			m, cmd = m.updateNormal(msg)
		}
		cmds = append(cmds, cmd)

	default:
		if m.mode == modeConfirm && m.confirm != nil {
			var cmd tea.Cmd
			m, cmd = m.forwardConfirm(msg)
			cmds = append(cmds, cmd)
		}
	}

	m.sync()
	return m, tea.Batch(cmds...)
}

// sync flushes every tree into its view and surfaces new tree errors.
func (m *Model) sync() {
	for _, p := range m.panes {
		p.View.Sync()
		if err := p.View.Tree().LastError(); err != nil && err != p.lastErr {
			p.lastErr = err
			m.setError(err)
		}
	}
	if m.showDetail {
		m.updateDetail()
	}
}

func (m *Model) setStatus(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.statusErr = false
}

func (m *Model) setError(err error) {
	if err == nil {
		return
	}
	m.status = err.Error()
	m.statusErr = true
}

func (m Model) updateNormal(msg tea.KeyMsg) (Model, tea.Cmd) {
	p := m.Pane()
	if p == nil {
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m, nil
	}
	// a full-screen detail pane takes the scroll keys
	if m.showDetail && m.width <= SplitViewThreshold &&
		!key.Matches(msg, m.keys.Details, m.keys.Quit) {
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}

	v := p.View
	t := v.Tree()
	focused := v.FocusedID()

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.saveState()
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		m.layout()
	case key.Matches(msg, m.keys.NextTree):
		if len(m.panes) > 1 {
			m.switchTo((m.active + 1) % len(m.panes))
		}
	case len(m.panes) > 1 && len(msg.Runes) == 1 && msg.Runes[0] >= '1' && msg.Runes[0] <= '9':
		if i := int(msg.Runes[0] - '1'); i < len(m.panes) {
			m.switchTo(i)
		}

	case key.Matches(msg, m.keys.Down):
		v.MoveDown()
	case key.Matches(msg, m.keys.Up):
		v.MoveUp()
	case key.Matches(msg, m.keys.Top):
		v.JumpToTop()
	case key.Matches(msg, m.keys.Bottom):
		v.JumpToBottom()
	case key.Matches(msg, m.keys.PageDown):
		v.PageDown()
	case key.Matches(msg, m.keys.PageUp):
		v.PageUp()
	case key.Matches(msg, m.keys.Expand):
		v.ExpandOrMoveToChild()
	case key.Matches(msg, m.keys.Collapse):
		v.CollapseOrJumpToParent()
	case key.Matches(msg, m.keys.OpenAll):
		t.OpenAll(model.RootID, nil)
	case key.Matches(msg, m.keys.CloseAll):
		t.CloseAll(model.RootID)

	case key.Matches(msg, m.keys.Select):
		if focused == "" {
			break
		}
		if t.IsSelected(focused) {
			m.setError(t.DeselectNode(focused))
		} else {
			m.setError(t.SelectNode(focused))
		}
	case key.Matches(msg, m.keys.SelectAll):
		t.SelectAll()
	case key.Matches(msg, m.keys.DeselectAll):
		t.DeselectAll()
		m.matches = nil

	case key.Matches(msg, m.keys.Create):
		return m.openPrompt(promptCreate, "New child: ", "")
	case key.Matches(msg, m.keys.CreateSibling):
		return m.openPrompt(promptCreateSibling, "New sibling: ", "")
	case key.Matches(msg, m.keys.Rename):
		if focused != "" {
			return m.openPrompt(promptRename, "Rename: ", t.Text(focused))
		}
	case key.Matches(msg, m.keys.Search):
		return m.openPrompt(promptSearch, "/", "")
	case key.Matches(msg, m.keys.NextMatch):
		m.nextMatch()

	case key.Matches(msg, m.keys.Delete):
		ids := m.targets()
		if len(ids) == 0 {
			break
		}
		if !m.confirmDelete {
			m.deleteNodes(ids)
			break
		}
		return m.openConfirm(ids)

	case key.Matches(msg, m.keys.MoveUp):
		m.shift(-1)
	case key.Matches(msg, m.keys.MoveDown):
		m.shift(1)

	case key.Matches(msg, m.keys.Cut):
		if ids := m.targets(); len(ids) > 0 && m.report(t.Cut(ids...)) {
			m.setStatus("cut %d node(s)", len(ids))
		}
	case key.Matches(msg, m.keys.Copy):
		if ids := m.targets(); len(ids) > 0 && m.report(t.Copy(ids...)) {
			m.setStatus("copied %d node(s)", len(ids))
		}
	case key.Matches(msg, m.keys.Paste):
		parent := focused
		if parent == "" {
			parent = model.RootID
		}
		if m.report(t.Paste(parent, tree.Last)) {
			t.OpenNode(parent, nil)
			m.setStatus("pasted into %s", t.Text(parent))
		}
	case key.Matches(msg, m.keys.PasteAfter):
		if focused != "" && m.report(t.Paste(focused, tree.After)) {
			m.setStatus("pasted after %s", t.Text(focused))
		}

	case key.Matches(msg, m.keys.Yank):
		m.yank(focused)
	case key.Matches(msg, m.keys.Refresh):
		if p.Reset != nil {
			p.Reset()
		}
		t.Refresh(nil)
		m.setStatus("reloading %s", p.Name)
	case key.Matches(msg, m.keys.Details):
		m.showDetail = !m.showDetail
		m.layout()
	}
	return m, nil
}

func (m *Model) switchTo(i int) {
	m.active = i
	m.matches = nil
	m.setStatus("tree %s", m.Pane().Name)
	m.layout()
}

// report shows err and reports whether the operation succeeded.
func (m *Model) report(err error) bool {
	if err != nil {
		m.setError(err)
		return false
	}
	return true
}

// targets returns the selection when the focused node is part of it, or
// just the focused node.
func (m *Model) targets() []string {
	v := m.Pane().View
	t := v.Tree()
	focused := v.FocusedID()
	if focused == "" {
		return nil
	}
	if t.IsSelected(focused) {
		return t.TopSelected()
	}
	return []string{focused}
}

// shift moves the focused node one slot among its siblings.
func (m *Model) shift(delta int) {
	v := m.Pane().View
	t := v.Tree()
	n := t.Get(v.FocusedID())
	if n == nil {
		return
	}
	siblings := t.Children(n.Parent)
	i := -1
	for j, s := range siblings {
		if s == n.ID {
			i = j
		}
	}
	j := i + delta
	if i < 0 || j < 0 || j >= len(siblings) {
		return
	}
	pos := tree.Before
	if delta > 0 {
		pos = tree.After
	}
	if m.report(t.MoveNode([]string{n.ID}, siblings[j], pos)) {
		v.Focus(n.ID)
	}
}

func (m *Model) deleteNodes(ids []string) {
	t := m.Pane().View.Tree()
	if m.report(t.DeleteNode(ids...)) {
		m.setStatus("deleted %d node(s)", len(ids))
	}
}

func (m *Model) yank(id string) {
	if id == "" {
		return
	}
	data, err := m.Pane().View.Tree().MarshalJSON(id, tree.JSONOptions{})
	if err != nil {
		m.setError(err)
		return
	}
	if err := m.writeClipboard(string(data)); err != nil {
		m.setError(fmt.Errorf("clipboard: %w", err))
		return
	}
	m.setStatus("copied %s as JSON", id)
}

func (m *Model) nextMatch() {
	if len(m.matches) == 0 {
		return
	}
	m.matchIdx = (m.matchIdx + 1) % len(m.matches)
	m.reveal(m.matches[m.matchIdx].ID)
}

func (m *Model) reveal(id string) {
	v := m.Pane().View
	v.Tree().OpenTo(id)
	v.Focus(id)
	m.setStatus("match %d/%d", m.matchIdx+1, len(m.matches))
}

func (m Model) openPrompt(kind promptKind, label, value string) (Model, tea.Cmd) {
	m.mode = modePrompt
	m.prompt = kind
	m.input.Prompt = label
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m Model) updatePrompt(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeNormal
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		m.mode = modeNormal
		m.input.Blur()
		m.submitPrompt(strings.TrimSpace(m.input.Value()))
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) submitPrompt(value string) {
	v := m.Pane().View
	t := v.Tree()
	focused := v.FocusedID()

	switch m.prompt {
	case promptSearch:
		m.matches = t.Search(value)
		m.matchIdx = 0
		if len(m.matches) == 0 {
			m.setStatus("no match for %q", value)
			return
		}
		m.reveal(m.matches[0].ID)

	case promptRename:
		if value != "" && m.report(t.RenameNode(focused, value)) {
			m.setStatus("renamed %s", focused)
		}

	case promptCreate, promptCreateSibling:
		if value == "" {
			return
		}
		parent, pos := focused, tree.Last
		switch {
		case focused == "":
			parent = model.RootID
		case m.prompt == promptCreateSibling:
			pos = tree.After
		}
		id, err := t.CreateNode(parent, model.Record{Text: value}, pos)
		if !m.report(err) {
			return
		}
		if m.prompt == promptCreate && parent != model.RootID {
			t.OpenNode(parent, nil)
		}
		v.Focus(id)
		m.setStatus("created %s", id)
	}
}

func (m Model) openConfirm(ids []string) (Model, tea.Cmd) {
	t := m.Pane().View.Tree()
	title := fmt.Sprintf("Delete %q and its children?", t.Text(ids[0]))
	if len(ids) > 1 {
		title = fmt.Sprintf("Delete %d nodes and their children?", len(ids))
	}
	confirmed := new(bool)
	m.confirmed = confirmed
	m.doomed = ids
	m.confirm = huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Affirmative("Delete").
			Negative("Cancel").
			Value(confirmed),
	)).WithShowHelp(false)
	m.mode = modeConfirm
	return m, m.confirm.Init()
}

func (m Model) updateConfirm(msg tea.KeyMsg) (Model, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		m.closeConfirm()
		m.setStatus("delete cancelled")
		return m, nil
	}
	return m.forwardConfirm(msg)
}

func (m Model) forwardConfirm(msg tea.Msg) (Model, tea.Cmd) {
	form, cmd := m.confirm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.confirm = f
	}
	switch m.confirm.State {
	case huh.StateCompleted:
		if *m.confirmed {
			m.deleteNodes(m.doomed)
		} else {
			m.setStatus("delete cancelled")
		}
		m.closeConfirm()
		return m, nil
	case huh.StateAborted:
		m.closeConfirm()
		return m, nil
	}
	return m, cmd
}

func (m *Model) closeConfirm() {
	m.mode = modeNormal
	m.confirm = nil
	m.confirmed = nil
	m.doomed = nil
}

// saveState persists every pane's snapshot under its name.
func (m *Model) saveState() {
	if m.store == nil {
		return
	}
	var errs []error
	for _, p := range m.panes {
		if err := statestore.Capture(m.store, p.Name, p.View.Tree()); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		log.Printf("warning: saving tree state: %v", err)
	}
}

// layout sizes the tree and detail panes.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	body := m.bodyHeight()
	treeW := m.width
	if m.showDetail && m.width > SplitViewThreshold {
		treeW = int(float64(m.width) * 0.5)
		m.detail = viewport.New(m.width-treeW-4, body-2)
	} else if m.showDetail {
		m.detail = viewport.New(m.width, body)
	}
	for _, p := range m.panes {
		p.View.SetSize(treeW, body)
	}
	m.help.Width = m.width
	if m.showDetail {
		m.updateDetail()
	}
}

func (m *Model) bodyHeight() int {
	h := m.height - 1 // status line
	if len(m.panes) > 1 {
		m.picker.SetSize(m.width)
		m.picker.Refresh(m.panes, m.active)
		h -= m.picker.Height()
	}
	h -= lipgloss.Height(m.help.View(m.keys))
	return max(1, h)
}

func (m *Model) updateDetail() {
	p := m.Pane()
	if p == nil {
		return
	}
	md := NodeMarkdown(p.View.Tree(), p.View.FocusedID())
	if m.renderer == nil || m.rendererW != m.detail.Width {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(max(20, m.detail.Width)),
		)
		if err != nil {
			m.detail.SetContent(md)
			return
		}
		m.renderer = r
		m.rendererW = m.detail.Width
	}
	rendered, err := m.renderer.Render(md)
	if err != nil {
		m.detail.SetContent(fmt.Sprintf("Error rendering markdown: %v", err))
		return
	}
	m.detail.SetContent(rendered)
}

// View renders the program.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}
	var parts []string
	if len(m.panes) > 1 {
		parts = append(parts, m.renderTabs())
	}
	parts = append(parts, m.renderBody(), m.renderStatus(), m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderTabs() string {
	m.picker.SetSize(m.width)
	m.picker.Refresh(m.panes, m.active)
	return m.picker.View()
}

func (m Model) renderBody() string {
	p := m.Pane()
	if p == nil {
		return "No trees configured."
	}
	treeView := p.View.View()
	if m.mode == modeConfirm && m.confirm != nil {
		return lipgloss.JoinVertical(lipgloss.Left, treeView, m.theme.Focused.Render(m.confirm.View()))
	}
	if !m.showDetail {
		return treeView
	}
	if m.width <= SplitViewThreshold {
		return m.detail.View()
	}
	left := m.theme.Focused.Width(m.width/2 - 2).Render(treeView)
	right := m.theme.Panel.Width(m.detail.Width + 2).Render(m.detail.View())
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (m Model) renderStatus() string {
	if m.mode == modePrompt {
		return m.input.View()
	}
	text := m.status
	if text == "" {
		if p := m.Pane(); p != nil {
			t := p.View.Tree()
			text = fmt.Sprintf("%s · %d nodes · %d selected", p.Name, t.Len(), len(t.Selected()))
			if t.CanPaste() {
				text += " · clipboard full"
			}
		}
	}
	if m.width > 0 {
		text = wordwrap.String(text, m.width)
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[:i] + "…"
		}
	}
	style := m.theme.Renderer.NewStyle().Foreground(m.theme.Subtext)
	if m.statusErr {
		style = m.theme.Renderer.NewStyle().Foreground(m.theme.Error).Bold(true)
	}
	return style.Render(text)
}
