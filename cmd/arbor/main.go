package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/vanderheijden86/arbor/pkg/agents"
	"github.com/vanderheijden86/arbor/pkg/config"
	"github.com/vanderheijden86/arbor/pkg/export"
	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/statestore"
	"github.com/vanderheijden86/arbor/pkg/tree"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// loadTimeout bounds non-interactive loads.
const loadTimeout = 2 * time.Minute

func main() {
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	configPath := flag.String("config", "", "Use this config file instead of discovering .arbor/config.yaml")
	sourcePath := flag.String("source", "", "Read a single tree from this file (JSON, JSONL, SQLite .db or HTML)")
	stateFile := flag.String("state-file", "", "Persist open/selected state in this file (.db selects bbolt)")
	noState := flag.Bool("no-state", false, "Do not read or write saved state")
	treeName := flag.String("tree", "", "Tree to use with robot, export and serve flags (default: first)")
	robotJSON := flag.Bool("robot-json", false, "Output the whole tree as JSON")
	flat := flag.Bool("flat", false, "Use the flat {id, parent} format (with --robot-json)")
	robotState := flag.Bool("robot-state", false, "Output the saved state snapshot as JSON")
	robotCheck := flag.Bool("robot-check", false, "Load the whole tree and verify its integrity (exit 1 on failure)")
	exportMD := flag.String("export-md", "", "Export the tree outline to a Markdown file")
	exportSVG := flag.String("export-svg", "", "Export the tree outline to an SVG file")
	exportPNG := flag.String("export-png", "", "Export the tree outline to a PNG file")
	expand := flag.Bool("expand", false, "Load and export every level, not only open nodes")
	serve := flag.String("serve", "", "Serve a live SVG preview and /metrics on this address (e.g. :8080)")
	scan := flag.String("scan", "", "List arbor projects below this directory as JSON")
	agentsAdd := flag.Bool("agents-add", false, "Add or refresh arbor instructions in AGENTS.md")
	debug := flag.Bool("debug", false, "Write debug logs to .arbor/debug.log")
	flag.Parse()

	if *help {
		fmt.Println("Usage: arbor [options]")
		fmt.Println("\nBrowse and edit a hierarchical outline in the terminal.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("arbor %s\n", version)
		os.Exit(0)
	}

	if *scan != "" {
		projects := config.ScanProjects(*scan, 3)
		if projects == nil {
			projects = []config.Project{}
		}
		writeJSON(projects)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath, *sourcePath, *stateFile, *noState)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *agentsAdd {
		res, err := agents.EnsureBlurb(cfg.Root())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error updating agent file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s: %s\n", res.Path, res.Action)
		os.Exit(0)
	}

	store, err := cfg.OpenStateStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: saved state unavailable: %v\n", err)
		store = nil
	}
	// os.Exit skips deferred calls
	exit := func(code int) {
		if store != nil {
			store.Close()
		}
		os.Exit(code)
	}

	if *robotState {
		exit(runRobotState(cfg, store, *treeName))
	}

	headless := *robotJSON || *robotCheck || *exportMD != "" || *exportSVG != "" || *exportPNG != ""
	if headless {
		if !*debug {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
		}
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		full := *robotJSON || *robotCheck || *expand
		h, err := openHeadless(ctx, cfg, store, *treeName, full)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exit(1)
		}
		code := runHeadless(h, headlessFlags{
			robotJSON:  *robotJSON,
			flat:       *flat,
			robotCheck: *robotCheck,
			exportMD:   *exportMD,
			exportSVG:  *exportSVG,
			exportPNG:  *exportPNG,
			expand:     *expand,
		})
		h.Close()
		exit(code)
	}

	if *serve != "" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := runServe(ctx, cfg, store, *treeName, *serve, *expand); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exit(1)
		}
		exit(0)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "arbor: stdout is not a terminal; use --robot-json or --export-md for non-interactive output")
		exit(1)
	}
	if err := runTUI(cfg, store, *debug); err != nil {
		fmt.Printf("Error running arbor: %v\n", err)
		exit(1)
	}
	exit(0)
}

// loadConfig discovers or loads the configuration and applies flag
// overrides.
func loadConfig(path, source, stateFile string, noState bool) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadConfig(path)
	} else {
		cfg, err = config.Discover("")
	}
	if err != nil {
		return nil, err
	}
	if source != "" {
		abs, err := filepath.Abs(source)
		if err != nil {
			return nil, err
		}
		cfg.UseSource(abs)
	}
	if stateFile != "" {
		abs, err := filepath.Abs(stateFile)
		if err != nil {
			return nil, err
		}
		cfg.UseStateFile(abs)
	}
	if noState {
		cfg.State.Disabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// pickTree returns the named tree, or the first one when name is empty.
func pickTree(cfg *config.Config, name string) (config.TreeConfig, error) {
	trees := cfg.TreeList()
	if len(trees) == 0 {
		return config.TreeConfig{}, fmt.Errorf("no enabled trees configured")
	}
	if name == "" {
		return trees[0], nil
	}
	var names []string
	for _, t := range trees {
		if strings.EqualFold(t.Name, name) {
			return t, nil
		}
		names = append(names, t.Name)
	}
	return config.TreeConfig{}, fmt.Errorf("unknown tree %q (available: %s)", name, strings.Join(names, ", "))
}

func runRobotState(cfg *config.Config, store statestore.Store, name string) int {
	tc, err := pickTree(cfg, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	output := struct {
		Tree  string         `json:"tree"`
		Found bool           `json:"found"`
		State *tree.Snapshot `json:"state,omitempty"`
	}{Tree: tc.Name}
	if store != nil {
		snap, ok, err := store.Load(tc.Name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading state: %v\n", err)
			return 1
		}
		if ok {
			output.Found = true
			output.State = &snap
		}
	}
	writeJSON(output)
	return 0
}

type headlessFlags struct {
	robotJSON  bool
	flat       bool
	robotCheck bool
	exportMD   string
	exportSVG  string
	exportPNG  string
	expand     bool
}

func runHeadless(h *headlessTree, f headlessFlags) int {
	t := h.tree
	if f.robotCheck {
		output := struct {
			Tree  string `json:"tree"`
			Nodes int    `json:"nodes"`
			OK    bool   `json:"ok"`
			Error string `json:"error,omitempty"`
		}{Tree: h.name, Nodes: t.Len(), OK: true}
		if err := t.Check(); err != nil {
			output.OK = false
			output.Error = err.Error()
		}
		writeJSON(output)
		if !output.OK {
			return 1
		}
		return 0
	}

	if f.robotJSON {
		recs, err := t.GetJSON(model.RootID, tree.JSONOptions{Flat: f.flat})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error serializing tree: %v\n", err)
			return 1
		}
		writeJSON(recs)
		return 0
	}

	opts := export.Options{Title: h.name, Expanded: f.expand}
	exports := []struct {
		path string
		save func(*tree.Tree, export.Options, string) error
	}{
		{f.exportMD, export.SaveMarkdownToFile},
		{f.exportSVG, export.SaveSVG},
		{f.exportPNG, export.SavePNG},
	}
	for _, e := range exports {
		if e.path == "" {
			continue
		}
		fmt.Printf("Exporting to %s...\n", e.path)
		if err := e.save(t, opts, e.path); err != nil {
			fmt.Printf("Error exporting: %v\n", err)
			return 1
		}
	}
	fmt.Println("Done!")
	return 0
}

func writeJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
		os.Exit(1)
	}
}
