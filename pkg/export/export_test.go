package export

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/tree"
)

func sampleTree(t *testing.T) *tree.Tree {
	t.Helper()
	tr := tree.New(tree.Options{
		ID: "docs",
		Data: model.NestedPayload{
			{ID: "a", Text: "Guides", State: map[string]bool{model.FlagOpened: true}, Children: model.Items(
				model.Record{ID: "a1", Text: "Install *quickly*", State: map[string]bool{model.FlagSelected: true}},
				model.Record{ID: "a2", Text: "Old", State: map[string]bool{model.FlagDisabled: true}},
			)},
			{ID: "b", Text: "Reference", Children: model.Items(model.Record{ID: "b1", Text: "API"})},
			{ID: "h", Text: "Secret", State: map[string]bool{model.FlagHidden: true}},
		},
	})
	tr.LoadNode(model.RootID, nil)
	t.Cleanup(tr.Destroy)
	return tr
}

func ids(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestOutline(t *testing.T) {
	tr := sampleTree(t)

	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"visible", Options{}, "a,a1,a2,b"},
		{"expanded", Options{Expanded: true}, "a,a1,a2,b,b1"},
		{"hidden", Options{Hidden: true}, "a,a1,a2,b,h"},
		{"subtree", Options{Root: "a"}, "a1,a2"},
		{"missing root", Options{Root: "zz"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(ids(Outline(tr, tt.opts)), ",")
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	rows := Outline(tr, Options{})
	if rows[1].Depth != 1 || !rows[1].Selected {
		t.Errorf("expected a1 selected at depth 1, got %+v", rows[1])
	}
	if !rows[2].Last || rows[1].Last {
		t.Errorf("expected only a2 to be last under a")
	}
	if rows[3].Visual != tree.VisualClosed {
		t.Errorf("expected b closed, got %v", rows[3].Visual)
	}
}

func TestGenerateMarkdown(t *testing.T) {
	tr := sampleTree(t)
	md, err := GenerateMarkdown(tr, Options{Title: "Docs"})
	if err != nil {
		t.Fatalf("GenerateMarkdown failed: %v", err)
	}
	for _, want := range []string{
		"# Docs\n",
		"- **Nodes**: 4\n",
		"- **Selected**: 1\n",
		"- **Collapsed**: 1\n",
		"- [ ] Guides `a`\n",
		"  - [x] Install \\*quickly\\* `a1`\n",
		"  - [ ] ~~Old~~ `a2`\n",
		"- [ ] Reference `b` …\n",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("expected markdown to contain %q\n%s", want, md)
		}
	}
	if strings.Contains(md, "Secret") {
		t.Error("hidden node should not be exported")
	}
}

func TestGenerateMarkdown_Empty(t *testing.T) {
	tr := tree.New(tree.Options{ID: "empty", Data: model.NestedPayload{}})
	defer tr.Destroy()
	tr.LoadNode(model.RootID, nil)

	md, err := GenerateMarkdown(tr, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(md, "# empty\n") || !strings.Contains(md, "_Empty tree._") {
		t.Errorf("unexpected markdown for empty tree:\n%s", md)
	}
	if _, err := GenerateMarkdown(nil, Options{}); err == nil {
		t.Error("expected error for nil tree")
	}
}

func TestWriteSVG(t *testing.T) {
	tr := sampleTree(t)
	var buf bytes.Buffer
	if err := WriteSVG(&buf, tr, Options{Title: "Docs <v1>"}); err != nil {
		t.Fatalf("WriteSVG failed: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "<?xml") || !strings.HasSuffix(strings.TrimSpace(out), "</svg>") {
		t.Errorf("expected a complete svg document, got:\n%s", out)
	}
	if !strings.Contains(out, "<title>Docs &lt;v1&gt;</title>") {
		t.Error("expected escaped title")
	}
	if !strings.Contains(out, ">Install *quickly*</text>") {
		t.Error("expected label text")
	}
	if strings.Count(out, "fill:#cce5ff") != 1 {
		t.Error("expected one selection highlight")
	}
	if !strings.Contains(out, "line-through") {
		t.Error("expected disabled node styling")
	}
}

func TestWritePNG(t *testing.T) {
	tr := sampleTree(t)
	var buf bytes.Buffer
	if err := WritePNG(&buf, tr, Options{}); err != nil {
		t.Fatalf("WritePNG failed: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("output is not a png: %v", err)
	}
	b := img.Bounds()
	if b.Dx() < minWidth {
		t.Errorf("expected width >= %d, got %d", minWidth, b.Dx())
	}
	if want := 2*marginY + 5*rowHeight; b.Dy() != want {
		t.Errorf("expected height %d, got %d", want, b.Dy())
	}
}

func TestSaveFiles(t *testing.T) {
	tr := sampleTree(t)
	dir := t.TempDir()
	saves := map[string]func(string) error{
		"tree.md":  func(p string) error { return SaveMarkdownToFile(tr, Options{}, p) },
		"tree.svg": func(p string) error { return SaveSVG(tr, Options{}, p) },
		"tree.png": func(p string) error { return SavePNG(tr, Options{}, p) },
	}
	for name, save := range saves {
		path := filepath.Join(dir, name)
		if err := save(path); err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if info, err := os.Stat(path); err != nil || info.Size() == 0 {
			t.Errorf("%s: expected non-empty file", name)
		}
	}
	if err := SaveSVG(tr, Options{}, filepath.Join(dir, "missing", "x.svg")); err == nil {
		t.Error("expected error for missing directory")
	}
}
