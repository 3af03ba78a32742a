package agents

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestContainsBlurb(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected bool
	}{
		{"empty content", "", false},
		{"no blurb", "# My AGENTS.md\n\nSome other content.", false},
		{"has blurb v1", "# My AGENTS.md\n\n<!-- arbor-agent-instructions-v1 -->\nx\n<!-- end-arbor-agent-instructions -->", true},
		{"has blurb v2 (future)", "<!-- arbor-agent-instructions-v2 -->\nx\n<!-- end-arbor-agent-instructions -->", true},
		{"other tool's blurb", "<!-- bv-agent-instructions-v1 -->", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContainsBlurb(tt.content); got != tt.expected {
				t.Errorf("ContainsBlurb() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetBlurbVersion(t *testing.T) {
	tests := []struct {
		content  string
		expected int
	}{
		{"# My AGENTS.md", 0},
		{"<!-- arbor-agent-instructions-v1 -->", 1},
		{"<!-- arbor-agent-instructions-v2 -->", 2},
		{"<!-- arbor-agent-instructions-v10 -->", 10},
	}
	for _, tt := range tests {
		if got := GetBlurbVersion(tt.content); got != tt.expected {
			t.Errorf("GetBlurbVersion(%q) = %d, want %d", tt.content, got, tt.expected)
		}
	}
}

func TestNeedsUpdate(t *testing.T) {
	if NeedsUpdate("# No blurb") {
		t.Error("content without a blurb needs no update")
	}
	if NeedsUpdate(AgentBlurb) {
		t.Error("current blurb needs no update")
	}
	if !NeedsUpdate("<!-- arbor-agent-instructions-v0 -->\nold\n" + BlurbEndMarker) {
		t.Error("expected older blurb to need an update")
	}
}

func TestAppendBlurb(t *testing.T) {
	result := AppendBlurb("# My AGENTS.md\n\nSome existing content.")

	if !strings.Contains(result, BlurbStartMarker) || !strings.Contains(result, BlurbEndMarker) {
		t.Error("AppendBlurb() result missing markers")
	}
	if !strings.Contains(result, "--robot-json") {
		t.Error("AppendBlurb() result missing robot commands")
	}
	if strings.Index(result, "Some existing content.") >= strings.Index(result, BlurbStartMarker) {
		t.Error("AppendBlurb() should place blurb after original content")
	}
	if got := AppendBlurb(""); !strings.HasPrefix(got, BlurbStartMarker) {
		t.Errorf("expected blurb alone for empty content, got %q", got[:20])
	}
}

func TestRemoveBlurb(t *testing.T) {
	withBlurb := "# My AGENTS.md\n\nSome content.\n\n" + AgentBlurb + "\n"
	if got, want := RemoveBlurb(withBlurb), "# My AGENTS.md\n\nSome content.\n"; got != want {
		t.Errorf("RemoveBlurb() = %q, want %q", got, want)
	}

	middle := "# Top\n\n" + AgentBlurb + "\n\n## After\n"
	if got, want := RemoveBlurb(middle), "# Top\n\n## After\n"; got != want {
		t.Errorf("RemoveBlurb() = %q, want %q", got, want)
	}

	content := "# My AGENTS.md\n\nNo blurb here."
	if got := RemoveBlurb(content); got != content {
		t.Errorf("RemoveBlurb() modified content without blurb: got %q", got)
	}
}

func TestUpdateBlurb(t *testing.T) {
	old := "# My AGENTS.md\n\n<!-- arbor-agent-instructions-v0 -->\nOld blurb content\n" + BlurbEndMarker + "\n"
	result := UpdateBlurb(old)

	if count := strings.Count(result, BlurbStartMarker); count != 1 {
		t.Errorf("UpdateBlurb() resulted in %d blurbs, want 1", count)
	}
	if strings.Contains(result, "Old blurb content") {
		t.Error("UpdateBlurb() kept the old blurb")
	}
	if !strings.HasPrefix(result, "# My AGENTS.md") {
		t.Error("UpdateBlurb() did not preserve original header")
	}
}

func TestAgentBlurbContent(t *testing.T) {
	for _, flag := range []string{"--robot-json", "--flat", "--robot-state", "--robot-check", "--export-md", "--tree"} {
		if !strings.Contains(AgentBlurb, flag) {
			t.Errorf("AgentBlurb missing %s", flag)
		}
	}
	if !strings.HasPrefix(AgentBlurb, BlurbStartMarker) {
		t.Error("AgentBlurb should start with BlurbStartMarker")
	}
	if !strings.HasSuffix(strings.TrimSpace(AgentBlurb), BlurbEndMarker) {
		t.Error("AgentBlurb should end with BlurbEndMarker")
	}
}

func TestEnsureBlurb(t *testing.T) {
	dir := t.TempDir()

	res, err := EnsureBlurb(dir)
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != "created" || res.Path != filepath.Join(dir, "AGENTS.md") {
		t.Errorf("unexpected result %+v", res)
	}

	res, err = EnsureBlurb(dir)
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != "unchanged" {
		t.Errorf("expected unchanged on second run, got %q", res.Action)
	}

	other := t.TempDir()
	claude := filepath.Join(other, "CLAUDE.md")
	if err := os.WriteFile(claude, []byte("# Notes\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err = EnsureBlurb(other)
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != "appended" || res.Path != claude {
		t.Errorf("expected blurb appended to CLAUDE.md, got %+v", res)
	}
	data, _ := os.ReadFile(claude)
	if !strings.HasPrefix(string(data), "# Notes\n\n"+BlurbStartMarker) {
		t.Errorf("unexpected content %q", data)
	}
}
