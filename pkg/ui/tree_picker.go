package ui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// pickerEntry holds display data for one tree chip.
type pickerEntry struct {
	Num      int // 1-9 quick switch key, 0 if none
	Name     string
	Nodes    int
	Selected int
	Active   bool
}

// TreePicker is the k9s-style header listing the open trees. Trees are
// switched with number keys 1-9 or tab.
type TreePicker struct {
	entries []pickerEntry
	width   int
	theme   Theme
}

// NewTreePicker creates an empty picker.
func NewTreePicker(theme Theme) TreePicker {
	return TreePicker{theme: theme}
}

// SetSize updates the picker width.
func (p *TreePicker) SetSize(w int) { p.width = w }

// Refresh rebuilds the chips from the panes.
func (p *TreePicker) Refresh(panes []*Pane, active int) {
	p.entries = p.entries[:0]
	for i, pane := range panes {
		t := pane.View.Tree()
		e := pickerEntry{
			Name:     pane.Name,
			Nodes:    t.Len(),
			Selected: len(t.Selected()),
			Active:   i == active,
		}
		if i < 9 {
			e.Num = i + 1
		}
		p.entries = append(p.entries, e)
	}
}

// View renders the chip lines and the title bar.
func (p *TreePicker) View() string {
	w := p.width
	if w == 0 {
		w = 80
	}
	lines := p.renderChips(w)
	lines = append(lines, p.renderTitleBar(w))
	return strings.Join(lines, "\n")
}

// Height returns the number of terminal lines the picker uses.
func (p *TreePicker) Height() int {
	w := p.width
	if w == 0 {
		w = 80
	}
	return len(p.renderChips(w)) + 1
}

func (p *TreePicker) renderTitleBar(w int) string {
	t := p.theme
	label := "trees"
	for _, e := range p.entries {
		if e.Active {
			label = fmt.Sprintf("trees(%s)", e.Name)
		}
	}
	count := fmt.Sprintf("[%d]", len(p.entries))
	title := t.Renderer.NewStyle().Foreground(t.Primary).Bold(true).Render(label) +
		t.Renderer.NewStyle().Foreground(t.Highlight).Render(count)

	titleLen := runewidth.StringWidth(label) + len(count)
	leftPad := max(1, (w-titleLen-4)/2)
	rightPad := max(1, w-titleLen-4-leftPad)
	sep := t.Renderer.NewStyle().Foreground(t.Muted)
	return sep.Render(strings.Repeat("─", leftPad)) + " " + title + " " + sep.Render(strings.Repeat("─", rightPad))
}

// renderChips flows chips horizontally, wrapping at the terminal width.
func (p *TreePicker) renderChips(w int) []string {
	const indent = 2
	var lines []string
	var line strings.Builder
	lineLen := 0

	for _, e := range p.entries {
		text := chipText(e)
		n := runewidth.StringWidth(text)
		if lineLen > indent && lineLen+n+2 > w {
			lines = append(lines, line.String())
			line.Reset()
			lineLen = 0
		}
		if lineLen == 0 {
			line.WriteString(strings.Repeat(" ", indent))
			lineLen = indent
		} else {
			line.WriteString("  ")
			lineLen += 2
		}
		line.WriteString(p.renderChip(e, text))
		lineLen += n
	}
	if lineLen > 0 {
		lines = append(lines, line.String())
	}
	return lines
}

// chipText is "N name(nodes/selected)".
func chipText(e pickerEntry) string {
	num := " "
	if e.Num > 0 {
		num = fmt.Sprintf("%d", e.Num)
	}
	return fmt.Sprintf("%s %s(%d/%d)", num, e.Name, e.Nodes, e.Selected)
}

func (p *TreePicker) renderChip(e pickerEntry, text string) string {
	t := p.theme
	if e.Active {
		return t.Renderer.NewStyle().Foreground(t.Primary).Bold(true).Render(text)
	}
	return t.Renderer.NewStyle().Foreground(t.Subtext).Render(text)
}
