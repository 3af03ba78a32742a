package model

import (
	"context"
	"errors"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

func TestNode_Depth(t *testing.T) {
	tests := []struct {
		name    string
		parents []string
		want    int
	}{
		{"Root", nil, 0},
		{"TopLevel", []string{RootID}, 0},
		{"Nested", []string{"1", RootID}, 1},
		{"Deep", []string{"3", "2", "1", RootID}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Node{Parents: tt.parents}
			if got := n.Depth(); got != tt.want {
				t.Errorf("Node.Depth() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNode_CloneIsDeep(t *testing.T) {
	orig := &Node{
		ID:            "1",
		Parent:        RootID,
		Parents:       []string{RootID},
		Children:      []string{"2"},
		ChildrenD:     NewIDSet("2", "3"),
		Text:          "A",
		State:         State{Loaded: true, Ext: map[string]bool{"checked": true}},
		Data:          map[string]any{"tags": []any{"x"}},
		ContainerAttr: map[string]string{"class": "row"},
		Original:      &Record{Text: "A", State: map[string]bool{"opened": true}},
	}
	c := orig.Clone()

	c.Children[0] = "changed"
	c.ChildrenD.Add("9")
	c.State.Ext["checked"] = false
	c.Data.(map[string]any)["tags"].([]any)[0] = "y"
	c.ContainerAttr["class"] = "other"
	c.Original.State["opened"] = false

	if orig.Children[0] != "2" {
		t.Errorf("expected children untouched, got %v", orig.Children)
	}
	if orig.ChildrenD.Has("9") {
		t.Error("expected children_d untouched")
	}
	if !orig.State.Ext["checked"] {
		t.Error("expected ext state untouched")
	}
	if got := orig.Data.(map[string]any)["tags"].([]any)[0]; got != "x" {
		t.Errorf("expected data untouched, got %v", got)
	}
	if orig.ContainerAttr["class"] != "row" {
		t.Error("expected attributes untouched")
	}
	if !orig.Original.State["opened"] {
		t.Error("expected original record untouched")
	}
}

func TestIDSet(t *testing.T) {
	s := NewIDSet("b", "a")
	s.Add("c")
	s.Remove("b")
	if got := s.Sorted(); strings.Join(got, ",") != "a,c" {
		t.Errorf("expected [a c], got %v", got)
	}
	other := NewIDSet("c", "d")
	s.AddSet(other)
	if s.Len() != 3 {
		t.Errorf("expected 3 members, got %d", s.Len())
	}
	s.RemoveSet(other)
	if !s.Equal(NewIDSet("a")) {
		t.Errorf("expected {a}, got %v", s.Sorted())
	}
	var empty IDSet
	if empty.Has("x") || empty.Len() != 0 {
		t.Error("nil set should behave as empty")
	}
	if c := empty.Clone(); c == nil {
		t.Error("Clone of nil set should not be nil")
	}
}

func TestState_ApplyAndFlags(t *testing.T) {
	s := DefaultState()
	s.Apply(map[string]bool{
		"opened":  true,
		"loading": true,
		"failed":  true,
		"checked": true,
	})
	if !s.Loaded || !s.Opened {
		t.Errorf("expected loaded and opened, got %+v", s)
	}
	if s.Loading || s.Failed {
		t.Error("transient flags must not be applied from payloads")
	}
	flags := s.Flags()
	if !flags["checked"] {
		t.Error("expected extension flag to round-trip")
	}
	if _, ok := flags["hidden"]; ok {
		t.Error("hidden should be omitted when false")
	}
	if _, ok := flags["loading"]; ok {
		t.Error("loading is not persistent")
	}
}

func TestState_JSON(t *testing.T) {
	in := State{Loaded: true, Selected: true, Hidden: true}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out State
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Loaded != in.Loaded || out.Selected != in.Selected || out.Hidden != in.Hidden || out.Opened {
		t.Errorf("expected %+v, got %+v", in, out)
	}
}

func TestRecord_UnmarshalShapes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		text     string
		textOnly bool
		lazy     bool
		children int
	}{
		{"String", `"Plain"`, "Plain", true, false, 0},
		{"Object", `{"text":"Obj"}`, "Obj", false, false, 0},
		{"LazyChildren", `{"text":"L","children":true}`, "L", false, true, 0},
		{"FalseChildren", `{"text":"F","children":false}`, "F", false, false, 0},
		{"NestedChildren", `{"text":"N","children":["a",{"text":"b"}]}`, "N", false, false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Record
			if err := json.Unmarshal([]byte(tt.input), &r); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if r.Text != tt.text {
				t.Errorf("expected text %q, got %q", tt.text, r.Text)
			}
			if r.TextOnly() != tt.textOnly {
				t.Errorf("expected TextOnly %v, got %v", tt.textOnly, r.TextOnly())
			}
			lazy := r.Children != nil && r.Children.Lazy
			if lazy != tt.lazy {
				t.Errorf("expected lazy %v, got %v", tt.lazy, lazy)
			}
			n := 0
			if r.Children != nil {
				n = len(r.Children.Items)
			}
			if n != tt.children {
				t.Errorf("expected %d children, got %d", tt.children, n)
			}
		})
	}
}

func TestChildList_Marshal(t *testing.T) {
	b, err := json.Marshal(Record{Text: "x", Children: Lazy()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"children":true`) {
		t.Errorf("expected lazy marker, got %s", b)
	}
	b, err = json.Marshal(Record{Text: "x", Children: Items()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"children":[]`) {
		t.Errorf("expected empty array, got %s", b)
	}
}

func TestClassifyRecords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  PayloadKind
	}{
		{"Flat", `[{"id":"1","parent":"#","text":"A"},{"id":"2","parent":"1","text":"B"}]`, KindFlat},
		{"Nested", `[{"text":"A","children":[{"text":"B"}]}]`, KindNested},
		{"NestedWithIDs", `[{"id":"1","text":"A"}]`, KindNested},
		{"TextOnly", `["a","b"]`, KindTextOnly},
		{"Mixed", `["a",{"text":"b"}]`, KindNested},
		{"Empty", `[]`, KindNested},
		{"SingleObject", `{"text":"solo"}`, KindNested},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodePayload([]byte(tt.input))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if p.Kind() != tt.want {
				t.Errorf("expected %v, got %v", tt.want, p.Kind())
			}
		})
	}
}

func TestDecodePayload_Malformed(t *testing.T) {
	for _, input := range []string{``, `42`, `[{"text":}]`, `[{"children":7}]`} {
		if _, err := DecodePayload([]byte(input)); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("input %q: expected ErrMalformedPayload, got %v", input, err)
		}
	}
}

func TestDecodeRecords_ParallelKeepsOrder(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("[")
	const n = 2000
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"id":"n`)
		sb.WriteString(itoa(i))
		sb.WriteString(`","parent":"#","text":"t"}`)
	}
	sb.WriteString("]")

	recs, err := DecodeRecords(context.Background(), []byte(sb.String()), 4)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != n {
		t.Fatalf("expected %d records, got %d", n, len(recs))
	}
	for i, r := range recs {
		if r.ID != "n"+itoa(i) {
			t.Fatalf("record %d out of order: %s", i, r.ID)
		}
	}
	if got := RawPayload(sb.String()).Len(); got != n {
		t.Errorf("expected RawPayload.Len() = %d, got %d", n, got)
	}
}

func TestRawPayload_Len(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{`[]`, 0},
		{`[ ]`, 0},
		{`["a,b"]`, 1},
		{`[{"text":"x,y","children":[1,2]},"z"]`, 2},
		{`{"text":"solo"}`, 1},
	}
	for _, tt := range tests {
		if got := RawPayload(tt.input).Len(); got != tt.want {
			t.Errorf("RawPayload(%s).Len() = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	pos := len(b)
	for i > 0 {
		pos--
		b[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(b[pos:])
}
