package ui

import (
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/tree"
)

// NodeMarkdown describes one node for the detail pane.
func NodeMarkdown(t *tree.Tree, id string) string {
	n := t.Get(id)
	if n == nil || n.IsRoot() {
		return "_Nothing focused._\n"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", n.Text))
	if path := t.Path(id, " › "); path != n.Text {
		sb.WriteString(fmt.Sprintf("%s\n\n", path))
	}

	sb.WriteString("| ID | Children | State |\n|---|---|---|\n")
	sb.WriteString(fmt.Sprintf("| `%s` | %s | %s |\n\n", n.ID, childCount(t, n), stateFlags(n.State)))

	if n.Icon != "" {
		sb.WriteString(fmt.Sprintf("**Icon:** `%s`\n\n", n.Icon))
	}
	writeAttrs(&sb, "Item attributes", n.ContainerAttr)
	writeAttrs(&sb, "Label attributes", n.LabelAttr)

	if n.Data != nil {
		data, err := json.MarshalIndent(n.Data, "", "  ")
		if err != nil {
			data = []byte(fmt.Sprintf("%v", n.Data))
		}
		sb.WriteString("### Data\n```json\n")
		sb.Write(data)
		sb.WriteString("\n```\n")
	}
	return sb.String()
}

func childCount(t *tree.Tree, n *model.Node) string {
	switch {
	case t.IsLoading(n.ID):
		return "loading"
	case t.IsFailed(n.ID):
		return "failed"
	case !n.State.Loaded:
		return "not loaded"
	default:
		return fmt.Sprintf("%d", len(n.Children))
	}
}

func stateFlags(s model.State) string {
	var flags []string
	for _, f := range []struct {
		on   bool
		name string
	}{
		{s.Opened, model.FlagOpened},
		{s.Selected, model.FlagSelected},
		{s.Disabled, model.FlagDisabled},
		{s.Hidden, model.FlagHidden},
	} {
		if f.on {
			flags = append(flags, f.name)
		}
	}
	for k, v := range s.Ext {
		if v {
			flags = append(flags, k)
		}
	}
	if len(flags) == 0 {
		return "-"
	}
	sort.Strings(flags)
	return strings.Join(flags, ", ")
}

func writeAttrs(sb *strings.Builder, title string, attrs map[string]string) {
	if len(attrs) == 0 {
		return
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sb.WriteString(fmt.Sprintf("### %s\n", title))
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("- `%s`: %s\n", k, attrs[k]))
	}
	sb.WriteString("\n")
}
