// Package config loads the project configuration (.arbor/config.yaml) and
// turns it into tree options and fetch strategies.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/arbor/pkg/loader"
	"github.com/vanderheijden86/arbor/pkg/statestore"
	"github.com/vanderheijden86/arbor/pkg/tree"
)

// FileName is the config file inside the project's .arbor directory.
const FileName = "config.yaml"

// Source kinds.
const (
	KindFile   = "file"
	KindSQLite = "sqlite"
	KindHTML   = "html"
)

// Config represents a project configuration file.
type Config struct {
	// Name is the display name; also the key of the default tree.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Source is where the default tree's nodes come from.
	Source SourceConfig `yaml:"source" json:"source"`

	// Trees lists several trees shown side by side and sharing one
	// clipboard. When empty, a single tree is built from Source.
	Trees []TreeConfig `yaml:"trees,omitempty" json:"trees,omitempty"`

	Background  BackgroundConfig  `yaml:"background,omitempty" json:"background,omitempty"`
	Permissions PermissionsConfig `yaml:"permissions,omitempty" json:"permissions,omitempty"`
	State       StateConfig       `yaml:"state,omitempty" json:"state,omitempty"`
	UI          UIConfig          `yaml:"ui,omitempty" json:"ui,omitempty"`

	// root is the project directory relative paths resolve against.
	root string
}

// SourceConfig selects a fetch strategy.
type SourceConfig struct {
	// Kind is file, sqlite or html.
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`
	// Path is relative to the project root unless absolute.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// Table is the sqlite table (default: nodes).
	Table string `yaml:"table,omitempty" json:"table,omitempty"`
	// Watch reloads the tree when a file source changes.
	Watch bool `yaml:"watch,omitempty" json:"watch,omitempty"`
	// Lazy serves a file one level at a time.
	Lazy bool `yaml:"lazy,omitempty" json:"lazy,omitempty"`
	// Async fetches off the UI goroutine.
	Async bool `yaml:"async,omitempty" json:"async,omitempty"`
}

// TreeConfig is one entry of Trees.
type TreeConfig struct {
	Name string `yaml:"name" json:"name"`
	// Prefix is used for invented node ids (default: name).
	Prefix  string       `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Source  SourceConfig `yaml:"source" json:"source"`
	Enabled *bool        `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// IsEnabled returns whether the tree is enabled (default: true).
func (t *TreeConfig) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// GetPrefix returns the effective id prefix.
func (t *TreeConfig) GetPrefix() string {
	if t.Prefix != "" {
		return t.Prefix
	}
	return strings.ToLower(t.Name)
}

// BackgroundConfig controls the background parser.
type BackgroundConfig struct {
	Enabled           *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Threshold         int   `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	DecodeConcurrency int   `yaml:"decode_concurrency,omitempty" json:"decode_concurrency,omitempty"`
}

// PermissionsConfig restricts mutations.
type PermissionsConfig struct {
	ReadOnly bool     `yaml:"read_only,omitempty" json:"read_only,omitempty"`
	Deny     []string `yaml:"deny,omitempty" json:"deny,omitempty"`
}

// StateConfig controls snapshot persistence.
type StateConfig struct {
	// Backend is json or bolt.
	Backend string        `yaml:"backend,omitempty" json:"backend,omitempty"`
	Path    string        `yaml:"path,omitempty" json:"path,omitempty"`
	TTL     time.Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`
	// Disabled turns persistence off.
	Disabled bool `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// UIConfig holds terminal preferences.
type UIConfig struct {
	ShowIcons *bool `yaml:"show_icons,omitempty" json:"show_icons,omitempty"`
	// Multiple allows more than one selected node (default: true).
	Multiple *bool `yaml:"multiple,omitempty" json:"multiple,omitempty"`
}

var mutationOps = []string{
	tree.OpCreate, tree.OpRename, tree.OpDelete, tree.OpMove, tree.OpCopy, tree.OpPaste,
}

// Default returns the configuration used when no file exists: a single
// tree read from tree.json in the project root.
func Default() Config {
	c := Config{Name: "main", Source: SourceConfig{Kind: KindFile, Path: "tree.json"}}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "main"
	}
	if c.Source.Kind == "" && c.Source.Path != "" {
		c.Source.Kind = kindFromPath(c.Source.Path)
	}
	for i := range c.Trees {
		if c.Trees[i].Source.Kind == "" && c.Trees[i].Source.Path != "" {
			c.Trees[i].Source.Kind = kindFromPath(c.Trees[i].Source.Path)
		}
	}
	if c.Background.Threshold == 0 {
		c.Background.Threshold = tree.DefaultBackgroundThreshold
	}
	if c.Background.DecodeConcurrency == 0 {
		c.Background.DecodeConcurrency = 4
	}
	if c.State.Backend == "" {
		c.State.Backend = statestore.BackendJSON
	}
	if c.State.Path == "" {
		name := statestore.DefaultFileName
		if c.State.Backend == statestore.BackendBolt {
			name = "state.db"
		}
		c.State.Path = filepath.Join(loader.StateDir, name)
	}
}

func kindFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return KindSQLite
	case ".html", ".htm":
		return KindHTML
	default:
		return KindFile
	}
}

// UseSource replaces the configured trees with a single tree read from
// path. The kind is guessed from the extension.
func (c *Config) UseSource(path string) {
	c.Trees = nil
	c.Source = SourceConfig{Kind: kindFromPath(path), Path: path}
}

// UseStateFile stores snapshots in path; a .db file selects the bolt
// backend.
func (c *Config) UseStateFile(path string) {
	c.State.Disabled = false
	c.State.Path = path
	c.State.Backend = statestore.BackendJSON
	if kindFromPath(path) == KindSQLite {
		c.State.Backend = statestore.BackendBolt
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.Trees) == 0 {
		if err := c.Source.validate("source"); err != nil {
			return err
		}
	}
	names := make(map[string]bool)
	prefixes := make(map[string]bool)
	for i, t := range c.Trees {
		if t.Name == "" {
			return fmt.Errorf("trees[%d]: name is required", i)
		}
		if names[t.Name] {
			return fmt.Errorf("trees[%d]: duplicate name %q", i, t.Name)
		}
		names[t.Name] = true
		if p := t.GetPrefix(); prefixes[p] {
			return fmt.Errorf("trees[%d]: duplicate prefix %q", i, p)
		}
		prefixes[t.GetPrefix()] = true
		if err := t.Source.validate(fmt.Sprintf("trees[%d].source", i)); err != nil {
			return err
		}
	}
	for _, op := range c.Permissions.Deny {
		if !slices.Contains(mutationOps, op) {
			return fmt.Errorf("permissions.deny: unknown operation %q", op)
		}
	}
	if c.Background.Threshold < 0 || c.Background.DecodeConcurrency < 0 {
		return fmt.Errorf("background: threshold and decode_concurrency must not be negative")
	}
	switch c.State.Backend {
	case statestore.BackendJSON, statestore.BackendBolt:
	default:
		return fmt.Errorf("state.backend: unknown backend %q", c.State.Backend)
	}
	if c.State.TTL < 0 {
		return fmt.Errorf("state.ttl must not be negative")
	}
	return nil
}

func (s SourceConfig) validate(field string) error {
	if s.Path == "" {
		return fmt.Errorf("%s: path is required", field)
	}
	switch s.Kind {
	case KindFile, KindSQLite, KindHTML:
	default:
		return fmt.Errorf("%s: unknown kind %q", field, s.Kind)
	}
	if s.Watch && s.Kind != KindFile {
		return fmt.Errorf("%s: watch is only supported for file sources", field)
	}
	return nil
}

// LoadConfig loads a configuration file. Relative paths resolve against
// the directory containing .arbor (or the file's own directory when it is
// not inside one).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	dir := filepath.Dir(path)
	if filepath.Base(dir) == loader.StateDir {
		dir = filepath.Dir(dir)
	}
	cfg.root = dir
	return &cfg, nil
}

// SetRoot sets the directory relative paths resolve against.
func (c *Config) SetRoot(dir string) { c.root = dir }

// Root returns the project directory.
func (c *Config) Root() string { return c.root }

// Resolve makes path absolute against the project root.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.root == "" {
		return path
	}
	return filepath.Join(c.root, path)
}

// TreeList returns the enabled trees; a configuration without a trees
// section yields one tree named after the project.
func (c *Config) TreeList() []TreeConfig {
	if len(c.Trees) == 0 {
		return []TreeConfig{{Name: c.Name, Prefix: "n", Source: c.Source}}
	}
	var out []TreeConfig
	for _, t := range c.Trees {
		if t.IsEnabled() {
			out = append(out, t)
		}
	}
	return out
}

// TreeOptions converts the configuration into tree options for one tree.
// Fetcher, scheduler, adapter and clipboard are left to the caller.
func (c *Config) TreeOptions(t TreeConfig) tree.Options {
	bg := c.Background.Enabled == nil || *c.Background.Enabled
	return tree.Options{
		ID:       t.Name,
		IDPrefix: t.GetPrefix(),
		ReadOnly: c.Permissions.ReadOnly,
		Deny:     slices.Clone(c.Permissions.Deny),
		Background: tree.BackgroundOptions{
			Enabled:     bg,
			Threshold:   c.Background.Threshold,
			Concurrency: c.Background.DecodeConcurrency,
		},
		SingleSelect: c.UI.Multiple != nil && !*c.UI.Multiple,
	}
}

// ShowIcons reports whether the UI draws node icons (default: true).
func (c *Config) ShowIcons() bool {
	return c.UI.ShowIcons == nil || *c.UI.ShowIcons
}

// Source is an opened fetch strategy.
type Source struct {
	Fetcher tree.Fetcher
	// File is set for file sources so callers can watch them.
	File  *loader.File
	Watch bool

	closer io.Closer
}

// Close releases the underlying database, if any.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// OpenSource builds the fetch strategy for a source.
func (c *Config) OpenSource(sc SourceConfig) (*Source, error) {
	path := c.Resolve(sc.Path)
	src := &Source{Watch: sc.Watch}
	switch sc.Kind {
	case KindFile:
		src.File = loader.NewFile(path, sc.Lazy)
		src.Fetcher = src.File
	case KindSQLite:
		db, err := loader.OpenSQL(path, sc.Table)
		if err != nil {
			return nil, err
		}
		src.Fetcher, src.closer = db, db
	case KindHTML:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		static, err := loader.HTML(string(data))
		if err != nil {
			return nil, err
		}
		src.Fetcher = static
	default:
		return nil, fmt.Errorf("unknown source kind %q", sc.Kind)
	}
	if sc.Async {
		src.Fetcher = loader.Async(src.Fetcher)
	}
	return src, nil
}

// OpenStateStore opens the configured snapshot store, or returns nil when
// persistence is disabled.
func (c *Config) OpenStateStore() (statestore.Store, error) {
	if c.State.Disabled {
		return nil, nil
	}
	return statestore.Open(c.State.Backend, c.Resolve(c.State.Path), c.State.TTL)
}
