package model

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
)

// Record is one externally supplied node description. In the nested form
// Children carries the subtree; in the flat form Parent links records.
type Record struct {
	ID        string            `json:"id,omitempty"`
	Parent    string            `json:"parent,omitempty"`
	Text      string            `json:"text"`
	Icon      string            `json:"icon,omitempty"`
	State     map[string]bool   `json:"state,omitempty"`
	Data      any               `json:"data,omitempty"`
	LiAttr    map[string]string `json:"li_attr,omitempty"`
	AAttr     map[string]string `json:"a_attr,omitempty"`
	Children  *ChildList        `json:"children,omitempty"`
	textValue bool
}

// recordFields avoids recursion into Record.UnmarshalJSON.
type recordFields struct {
	ID       string            `json:"id,omitempty"`
	Parent   string            `json:"parent,omitempty"`
	Text     string            `json:"text"`
	Icon     string            `json:"icon,omitempty"`
	State    map[string]bool   `json:"state,omitempty"`
	Data     any               `json:"data,omitempty"`
	LiAttr   map[string]string `json:"li_attr,omitempty"`
	AAttr    map[string]string `json:"a_attr,omitempty"`
	Children *ChildList        `json:"children,omitempty"`
}

// UnmarshalJSON accepts either an object or a bare string (text only).
func (r *Record) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var text string
		if err := json.Unmarshal(b, &text); err != nil {
			return err
		}
		*r = Record{Text: text, textValue: true}
		return nil
	}
	var f recordFields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*r = Record{
		ID:       f.ID,
		Parent:   f.Parent,
		Text:     f.Text,
		Icon:     f.Icon,
		State:    f.State,
		Data:     f.Data,
		LiAttr:   f.LiAttr,
		AAttr:    f.AAttr,
		Children: f.Children,
	}
	return nil
}

// MarshalJSON writes the object form.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordFields{
		ID:       r.ID,
		Parent:   r.Parent,
		Text:     r.Text,
		Icon:     r.Icon,
		State:    r.State,
		Data:     r.Data,
		LiAttr:   r.LiAttr,
		AAttr:    r.AAttr,
		Children: r.Children,
	})
}

// TextOnly reports whether the record was decoded from a bare string.
func (r Record) TextOnly() bool {
	return r.textValue
}

// HasChildren reports whether the record declares children, loaded or lazy.
func (r Record) HasChildren() bool {
	return r.Children != nil && (r.Children.Lazy || len(r.Children.Items) > 0)
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	c := r
	if r.State != nil {
		c.State = make(map[string]bool, len(r.State))
		for k, v := range r.State {
			c.State[k] = v
		}
	}
	c.Data = CloneData(r.Data)
	c.LiAttr = cloneAttr(r.LiAttr)
	c.AAttr = cloneAttr(r.AAttr)
	if r.Children != nil {
		cl := ChildList{Lazy: r.Children.Lazy}
		if r.Children.Items != nil {
			cl.Items = make([]Record, len(r.Children.Items))
			for i, child := range r.Children.Items {
				cl.Items[i] = child.Clone()
			}
		}
		c.Children = &cl
	}
	return c
}

// ChildList is the value of a record's "children" key: either an array of
// records or the literal true, meaning "has children that are not loaded".
type ChildList struct {
	Items []Record
	Lazy  bool
}

// Items wraps records as a loaded child list.
func Items(recs ...Record) *ChildList {
	if recs == nil {
		recs = []Record{}
	}
	return &ChildList{Items: recs}
}

// Lazy returns the "children: true" marker.
func Lazy() *ChildList {
	return &ChildList{Lazy: true}
}

// MarshalJSON writes true for lazy lists and an array otherwise.
func (c ChildList) MarshalJSON() ([]byte, error) {
	if c.Lazy {
		return []byte("true"), nil
	}
	if c.Items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.Items)
}

// UnmarshalJSON accepts an array, true, false or null.
func (c *ChildList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("true")):
		*c = ChildList{Lazy: true}
		return nil
	case bytes.Equal(b, []byte("false")), bytes.Equal(b, []byte("null")):
		*c = ChildList{}
		return nil
	}
	var items []Record
	if err := json.Unmarshal(b, &items); err != nil {
		return fmt.Errorf("children: %w", err)
	}
	*c = ChildList{Items: items}
	return nil
}
