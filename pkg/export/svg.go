package export

import (
	"fmt"
	"io"
	"os"

	svg "github.com/ajstarks/svgo/float"

	"github.com/vanderheijden86/arbor/pkg/tree"
)

// Layout of the drawn outlines, in pixels.
const (
	rowHeight   = 22
	indentWidth = 18
	marginX     = 12
	marginY     = 12
	charWidth   = 7 // basicfont 7x13 advance
	minWidth    = 240
)

func canvasSize(rows []Row, title string) (w, h int) {
	w = minWidth
	for _, r := range rows {
		if rw := 2*marginX + r.Depth*indentWidth + 20 + len([]rune(r.Text))*charWidth; rw > w {
			w = rw
		}
	}
	if tw := 2*marginX + len([]rune(title))*charWidth; tw > w {
		w = tw
	}
	h = 2*marginY + (len(rows)+1)*rowHeight
	return w, h
}

// rowY returns the baseline of row i; row -1 is the title line.
func rowY(i int) int {
	return marginY + (i+2)*rowHeight - 7
}

// marker is the ASCII expander drawn before a label. The PNG font only
// covers ASCII so both renderings share it.
func marker(r Row) string {
	switch r.Visual {
	case tree.VisualOpen:
		return "-"
	case tree.VisualClosed:
		return "+"
	default:
		return "."
	}
}

func titleOf(t *tree.Tree, opts Options) string {
	if opts.Title != "" {
		return opts.Title
	}
	return t.ID()
}

// WriteSVG draws the outline as an SVG document.
func WriteSVG(w io.Writer, t *tree.Tree, opts Options) error {
	if t == nil {
		return fmt.Errorf("no tree to export")
	}
	title := titleOf(t, opts)
	rows := Outline(t, opts)
	width, height := canvasSize(rows, title)

	canvas := svg.New(w)
	canvas.Start(float64(width), float64(height))
	canvas.Title(title)
	canvas.Rect(0, 0, float64(width), float64(height), "fill:#ffffff")
	canvas.Text(marginX, float64(rowY(-1)), title, "font-family:monospace;font-size:14px;font-weight:bold;fill:#222222")

	canvas.Gstyle("font-family:monospace;font-size:12px")
	for i, r := range rows {
		x := float64(marginX + r.Depth*indentWidth)
		y := float64(rowY(i))
		if r.Selected {
			canvas.Rect(x+12, y-14, float64(len([]rune(r.Text))*charWidth+8), rowHeight-4, "fill:#cce5ff")
		}
		if r.Depth > 0 {
			// elbow from the parent's column
			px := x - indentWidth + 4
			canvas.Line(px, y-rowHeight+4, px, y-4, "stroke:#bbbbbb")
			canvas.Line(px, y-4, x+2, y-4, "stroke:#bbbbbb")
		}
		canvas.Text(x, y, marker(r), "fill:#666666")
		style := "fill:#222222"
		if r.Disabled {
			style = "fill:#aaaaaa;text-decoration:line-through"
		}
		canvas.Text(x+16, y, r.Text, style)
	}
	canvas.Gend()
	canvas.End()
	return nil
}

// SaveSVG writes the SVG outline to filename.
func SaveSVG(t *tree.Tree, opts Options, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filename, err)
	}
	if err := WriteSVG(f, t, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
