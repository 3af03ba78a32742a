package export

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vanderheijden86/arbor/pkg/tree"
)

// GenerateMarkdown creates a markdown outline of the tree. Selected nodes
// are checked task items; closed nodes with children are marked with a
// trailing ellipsis.
func GenerateMarkdown(t *tree.Tree, opts Options) (string, error) {
	if t == nil {
		return "", fmt.Errorf("no tree to export")
	}
	title := opts.Title
	if title == "" {
		title = t.ID()
	}
	rows := Outline(t, opts)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", time.Now().Format(time.RFC1123)))

	s := summarize(rows)
	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Nodes**: %d\n", s.total))
	sb.WriteString(fmt.Sprintf("- **Selected**: %d\n", s.selected))
	sb.WriteString(fmt.Sprintf("- **Disabled**: %d\n", s.disabled))
	sb.WriteString(fmt.Sprintf("- **Collapsed**: %d\n\n", s.closed))

	sb.WriteString("## Outline\n\n")
	if len(rows) == 0 {
		sb.WriteString("_Empty tree._\n")
		return sb.String(), nil
	}
	for _, r := range rows {
		sb.WriteString(strings.Repeat("  ", r.Depth))
		if r.Selected {
			sb.WriteString("- [x] ")
		} else {
			sb.WriteString("- [ ] ")
		}
		label := escapeMarkdown(r.Text)
		if r.Disabled {
			label = "~~" + label + "~~"
		}
		sb.WriteString(label)
		sb.WriteString(fmt.Sprintf(" `%s`", r.ID))
		if r.Visual == tree.VisualClosed {
			sb.WriteString(" …")
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// SaveMarkdownToFile writes the outline to filename.
func SaveMarkdownToFile(t *tree.Tree, opts Options, filename string) error {
	content, err := GenerateMarkdown(t, opts)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, []byte(content), 0644)
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"~", `\~`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(strings.Join(strings.Fields(s), " "))
}
