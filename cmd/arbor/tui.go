package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/arbor/pkg/config"
	"github.com/vanderheijden86/arbor/pkg/loader"
	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/statestore"
	"github.com/vanderheijden86/arbor/pkg/tree"
	"github.com/vanderheijden86/arbor/pkg/ui"
)

// watchDebounce coalesces bursts of writes to a watched source file.
const watchDebounce = 200 * time.Millisecond

// runTUI opens every enabled tree in its own pane and runs the program.
// All panes share one clipboard and are scheduled on one bridge.
func runTUI(cfg *config.Config, store statestore.Store, debug bool) error {
	logFile, err := setupTUILogging(cfg.Root(), debug)
	if err != nil {
		return err
	}
	defer logFile.Close()

	if store != nil {
		if err := loader.EnsureIgnored(cfg.Root(), loader.StateDir); err != nil {
			slog.Warn("warning: updating .gitignore", slog.Any("error", err))
		}
	}

	trees := cfg.TreeList()
	if len(trees) == 0 {
		return fmt.Errorf("no enabled trees configured")
	}

	bridge := ui.NewBridge()
	defer bridge.Stop()
	clip := tree.NewClipboard()
	theme := ui.DefaultTheme(lipgloss.DefaultRenderer())

	var panes []*ui.Pane
	for _, tc := range trees {
		src, err := cfg.OpenSource(tc.Source)
		if err != nil {
			return fmt.Errorf("opening %s: %w", tc.Name, err)
		}
		defer src.Close()

		opts := cfg.TreeOptions(tc)
		opts.Fetcher = src.Fetcher
		opts.Scheduler = bridge
		opts.Clipboard = clip
		view, t := ui.NewTree(opts, theme)
		defer t.Destroy()
		view.SetShowIcons(cfg.ShowIcons())

		pane := &ui.Pane{Name: tc.Name, View: view}
		if src.File != nil {
			pane.Reset = src.File.Reset
			if src.Watch {
				w, err := loader.Watch(t, src.File, watchDebounce)
				if err != nil {
					slog.Warn("warning: watching source", slog.String("tree", tc.Name), slog.Any("error", err))
				} else {
					defer w.Stop()
				}
			}
		}
		panes = append(panes, pane)

		name := tc.Name
		t.LoadNode(model.RootID, func(ok bool) {
			if !ok {
				slog.Warn("root load failed", slog.String("tree", name), slog.Any("error", t.LastError()))
				return
			}
			restoreState(store, name, t, func() {})
		})
	}

	m := ui.NewModel(ui.Options{
		Panes:         panes,
		Bridge:        bridge,
		Theme:         theme,
		Store:         store,
		ConfirmDelete: true,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = p.Run()
	return err
}

// setupTUILogging keeps log output off the screen. With debug set it goes
// to the state directory's debug.log at debug level; otherwise it is
// discarded.
func setupTUILogging(root string, debug bool) (io.Closer, error) {
	if !debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return io.NopCloser(nil), nil
	}
	dir := filepath.Join(root, loader.StateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := tea.LogToFile(filepath.Join(dir, "debug.log"), "arbor")
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return f, nil
}
