package export

import (
	"fmt"
	"io"
	"os"

	"git.sr.ht/~sbinet/gg"

	"github.com/vanderheijden86/arbor/pkg/tree"
)

// renderPNG draws the outline with gg's built-in 7x13 face.
func renderPNG(t *tree.Tree, opts Options) (*gg.Context, error) {
	if t == nil {
		return nil, fmt.Errorf("no tree to export")
	}
	title := titleOf(t, opts)
	rows := Outline(t, opts)
	width, height := canvasSize(rows, title)

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB255(0x22, 0x22, 0x22)
	dc.DrawString(title, marginX, float64(rowY(-1)))

	dc.SetLineWidth(1)
	for i, r := range rows {
		x := float64(marginX + r.Depth*indentWidth)
		y := float64(rowY(i))
		if r.Selected {
			dc.SetRGB255(0xcc, 0xe5, 0xff)
			dc.DrawRectangle(x+12, y-14, float64(len([]rune(r.Text))*charWidth+8), rowHeight-4)
			dc.Fill()
		}
		if r.Depth > 0 {
			px := x - indentWidth + 4
			dc.SetRGB255(0xbb, 0xbb, 0xbb)
			dc.DrawLine(px, y-rowHeight+4, px, y-4)
			dc.DrawLine(px, y-4, x+2, y-4)
			dc.Stroke()
		}
		dc.SetRGB255(0x66, 0x66, 0x66)
		dc.DrawString(marker(r), x, y)
		if r.Disabled {
			dc.SetRGB255(0xaa, 0xaa, 0xaa)
		} else {
			dc.SetRGB255(0x22, 0x22, 0x22)
		}
		dc.DrawString(r.Text, x+16, y)
	}
	return dc, nil
}

// WritePNG encodes the outline image to w.
func WritePNG(w io.Writer, t *tree.Tree, opts Options) error {
	dc, err := renderPNG(t, opts)
	if err != nil {
		return err
	}
	return dc.EncodePNG(w)
}

// SavePNG writes the outline image to filename.
func SavePNG(t *tree.Tree, opts Options, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filename, err)
	}
	if err := WritePNG(f, t, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
