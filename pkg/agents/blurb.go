// Package agents maintains the arbor section of AGENTS.md-style files so
// coding agents use the non-interactive robot flags instead of the TUI.
package agents

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// BlurbVersion is the current version of the agent instructions blurb.
// Increment this when making breaking changes to the blurb format.
const BlurbVersion = 1

// BlurbStartMarker marks the beginning of injected agent instructions.
const BlurbStartMarker = "<!-- arbor-agent-instructions-v1 -->"

// BlurbEndMarker marks the end of injected agent instructions.
const BlurbEndMarker = "<!-- end-arbor-agent-instructions -->"

// AgentBlurb contains the instructions appended to AGENTS.md files.
const AgentBlurb = BlurbStartMarker + `

---

## Arbor Tree Integration

This project keeps a hierarchical outline that [arbor](https://github.com/vanderheijden86/arbor)
can browse and edit. Configuration lives in ` + "`" + `.arbor/config.yaml` + "`" + `.

### Commands for agents

` + "```" + `bash
# Launches the TUI - avoid in automated sessions
arbor

arbor --robot-json            # whole tree as nested JSON
arbor --robot-json --flat     # one {id, parent, text} record per node
arbor --robot-state           # saved open/selected state
arbor --robot-check           # load everything and verify integrity
arbor --export-md tree.md     # Markdown outline (add --expand for closed levels)
arbor --tree NAME ...         # pick a tree when several are configured
` + "```" + `

### Notes

- Robot output is stable JSON on stdout; diagnostics go to stderr.
- ` + "`" + `--robot-check` + "`" + ` exits with status 1 when the tree is inconsistent.
- Saved state is per tree and per user; ` + "`" + `.arbor/` + "`" + ` is git-ignored.

` + BlurbEndMarker

// SupportedAgentFiles lists the filenames that can contain agent instructions.
var SupportedAgentFiles = []string{
	"AGENTS.md",
	"CLAUDE.md",
	"agents.md",
	"claude.md",
}

var blurbVersionRegex = regexp.MustCompile(`<!-- arbor-agent-instructions-v(\d+) -->`)

// ContainsBlurb checks if the content already contains an arbor blurb of
// any version.
func ContainsBlurb(content string) bool {
	return strings.Contains(content, "<!-- arbor-agent-instructions-v")
}

// GetBlurbVersion extracts the version number from existing blurb content.
func GetBlurbVersion(content string) int {
	matches := blurbVersionRegex.FindStringSubmatch(content)
	if len(matches) < 2 {
		return 0
	}
	v, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0
	}
	return v
}

// NeedsUpdate checks if the content has an older version of the blurb.
func NeedsUpdate(content string) bool {
	return ContainsBlurb(content) && GetBlurbVersion(content) < BlurbVersion
}

// AppendBlurb appends the agent blurb to the given content.
func AppendBlurb(content string) string {
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if content != "" {
		content += "\n"
	}
	return content + AgentBlurb + "\n"
}

// RemoveBlurb removes an existing blurb from the content.
func RemoveBlurb(content string) string {
	startIdx := strings.Index(content, "<!-- arbor-agent-instructions-v")
	if startIdx == -1 {
		return content
	}
	endIdx := strings.Index(content[startIdx:], BlurbEndMarker)
	if endIdx == -1 {
		return content
	}
	endIdx += startIdx + len(BlurbEndMarker)
	for endIdx < len(content) && (content[endIdx] == '\n' || content[endIdx] == '\r') {
		endIdx++
	}
	for startIdx > 0 && (content[startIdx-1] == '\n' || content[startIdx-1] == '\r') {
		startIdx--
	}
	if startIdx > 0 && endIdx < len(content) {
		return content[:startIdx] + "\n\n" + content[endIdx:]
	}
	if startIdx > 0 {
		return content[:startIdx] + "\n"
	}
	return content[endIdx:]
}

// UpdateBlurb replaces an existing blurb with the current version.
func UpdateBlurb(content string) string {
	return AppendBlurb(RemoveBlurb(content))
}

// FindAgentFile returns the first supported agent file in dir, or "".
func FindAgentFile(dir string) string {
	for _, name := range SupportedAgentFiles {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// Result describes what EnsureBlurb did.
type Result struct {
	Path    string `json:"path"`
	Action  string `json:"action"` // created, appended, updated or unchanged
	Version int    `json:"version"`
}

// EnsureBlurb adds or refreshes the blurb in dir's agent file, creating
// AGENTS.md when none exists.
func EnsureBlurb(dir string) (Result, error) {
	path := FindAgentFile(dir)
	res := Result{Path: path, Version: BlurbVersion}
	var content string
	switch path {
	case "":
		res.Path = filepath.Join(dir, SupportedAgentFiles[0])
		res.Action = "created"
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return res, fmt.Errorf("read %s: %w", path, err)
		}
		content = string(data)
		switch {
		case NeedsUpdate(content):
			res.Action = "updated"
		case ContainsBlurb(content):
			res.Action = "unchanged"
			return res, nil
		default:
			res.Action = "appended"
		}
	}
	if err := os.WriteFile(res.Path, []byte(UpdateBlurb(content)), 0o644); err != nil {
		return res, fmt.Errorf("write %s: %w", res.Path, err)
	}
	return res, nil
}
