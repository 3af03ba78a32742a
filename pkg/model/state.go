package model

import (
	"sort"

	json "github.com/goccy/go-json"
)

// State flag names as they appear in payloads and serialized output.
const (
	FlagLoaded   = "loaded"
	FlagLoading  = "loading"
	FlagFailed   = "failed"
	FlagOpened   = "opened"
	FlagSelected = "selected"
	FlagDisabled = "disabled"
	FlagHidden   = "hidden"
)

// State holds the per-node flags. Ext carries flags contributed by widget
// extensions (e.g. "checked") and round-trips through JSON unchanged.
type State struct {
	Loaded   bool
	Loading  bool
	Failed   bool
	Opened   bool
	Selected bool
	Disabled bool
	Hidden   bool
	Ext      map[string]bool
}

// DefaultState is the state a parsed node starts from before payload
// overrides are applied.
func DefaultState() State {
	return State{Loaded: true}
}

// Clone returns a copy that does not share the Ext map.
func (s State) Clone() State {
	c := s
	if s.Ext != nil {
		c.Ext = make(map[string]bool, len(s.Ext))
		for k, v := range s.Ext {
			c.Ext[k] = v
		}
	}
	return c
}

// Apply overrides flags from a payload state map. Transient flags
// (loading, failed) are engine-owned and ignored.
func (s *State) Apply(flags map[string]bool) {
	for k, v := range flags {
		switch k {
		case FlagLoaded:
			s.Loaded = v
		case FlagOpened:
			s.Opened = v
		case FlagSelected:
			s.Selected = v
		case FlagDisabled:
			s.Disabled = v
		case FlagHidden:
			s.Hidden = v
		case FlagLoading, FlagFailed:
		default:
			if s.Ext == nil {
				s.Ext = make(map[string]bool)
			}
			s.Ext[k] = v
		}
	}
}

// Flags returns the persistent flags as a map, the inverse of Apply.
// Hidden is only emitted when set, matching how payloads usually omit it.
func (s State) Flags() map[string]bool {
	m := map[string]bool{
		FlagLoaded:   s.Loaded,
		FlagOpened:   s.Opened,
		FlagSelected: s.Selected,
		FlagDisabled: s.Disabled,
	}
	if s.Hidden {
		m[FlagHidden] = true
	}
	for k, v := range s.Ext {
		m[k] = v
	}
	return m
}

// MarshalJSON writes the persistent flags with stable key order.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Flags())
}

// UnmarshalJSON reads a flag map on top of the current value.
func (s *State) UnmarshalJSON(b []byte) error {
	var flags map[string]bool
	if err := json.Unmarshal(b, &flags); err != nil {
		return err
	}
	s.Apply(flags)
	return nil
}

// ExtNames returns the extension flag names in sorted order.
func (s State) ExtNames() []string {
	names := make([]string, 0, len(s.Ext))
	for k := range s.Ext {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
