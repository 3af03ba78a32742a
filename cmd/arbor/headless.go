package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vanderheijden86/arbor/pkg/config"
	"github.com/vanderheijden86/arbor/pkg/export"
	"github.com/vanderheijden86/arbor/pkg/loader"
	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/statestore"
	"github.com/vanderheijden86/arbor/pkg/tree"
)

// headlessTree is a tree owned by the calling goroutine through a private
// loop, used by the robot, export and serve modes.
type headlessTree struct {
	name string
	tree *tree.Tree
	loop *tree.Loop
	src  *config.Source
}

// Close destroys the tree and releases its source.
func (h *headlessTree) Close() {
	h.tree.Destroy()
	if err := h.src.Close(); err != nil {
		slog.Warn("warning: closing source", slog.String("tree", h.name), slog.Any("error", err))
	}
}

// openHeadless builds the named tree, loads the root, replays saved state
// and, with full set, loads every level. It returns once all of that has
// landed or ctx ends.
func openHeadless(ctx context.Context, cfg *config.Config, store statestore.Store, name string, full bool) (*headlessTree, error) {
	tc, err := pickTree(cfg, name)
	if err != nil {
		return nil, err
	}
	src, err := cfg.OpenSource(tc.Source)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", tc.Name, err)
	}
	opts := cfg.TreeOptions(tc)
	opts.Fetcher = src.Fetcher
	loop := tree.NewLoop()
	opts.Scheduler = loop
	h := &headlessTree{name: tc.Name, tree: tree.New(opts), loop: loop, src: src}
	t := h.tree

	finished, ok := false, false
	finish := func(res bool) { finished, ok = true, res }
	t.LoadNode(model.RootID, func(loaded bool) {
		if !loaded {
			finish(false)
			return
		}
		restoreState(store, tc.Name, t, func() {
			if full {
				t.LoadAll(model.RootID, finish)
				return
			}
			finish(true)
		})
	})
	if err := loop.RunUntil(ctx, func() bool { return finished }); err != nil {
		h.Close()
		return nil, fmt.Errorf("loading %s: %w", tc.Name, err)
	}
	if !ok {
		err := loadError(t)
		h.Close()
		return nil, fmt.Errorf("loading %s: %w", tc.Name, err)
	}
	return h, nil
}

// restoreState replays the saved snapshot for key and then calls next.
// A missing store or snapshot goes straight to next.
func restoreState(store statestore.Store, key string, t *tree.Tree, next func()) {
	if store == nil {
		next()
		return
	}
	if err := statestore.Restore(store, key, t, func(bool) { next() }); err != nil {
		slog.Warn("warning: restoring tree state", slog.String("tree", key), slog.Any("error", err))
	}
}

func loadError(t *tree.Tree) error {
	if err := t.LastError(); err != nil {
		return err
	}
	return tree.ErrLoadFailed
}

// runServe serves a live SVG preview of one tree, plus the tree metrics on
// /metrics, until ctx ends. File sources with watch enabled refresh the
// preview when they change.
func runServe(ctx context.Context, cfg *config.Config, store statestore.Store, name, addr string, expand bool) error {
	h, err := openHeadless(ctx, cfg, store, name, expand)
	if err != nil {
		return err
	}
	defer h.Close()

	preview := export.NewPreview(export.Options{Title: h.name, Expanded: expand})
	defer preview.Stop()
	if err := preview.Update(h.tree); err != nil {
		return err
	}

	if h.src.File != nil && h.src.Watch {
		w, err := loader.Watch(h.tree, h.src.File, 200*time.Millisecond)
		if err != nil {
			return err
		}
		defer w.Stop()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", preview.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("preview server stopped", slog.Any("error", err))
		}
	}()
	fmt.Printf("Serving %s on http://%s/\n", h.name, ln.Addr())

	// the tree is only touched here; the server reads the cached rendering
	for {
		fn, err := h.loop.Next(ctx)
		if err != nil {
			break
		}
		fn()
		h.loop.Drain()
		if err := preview.Update(h.tree); err != nil {
			slog.Warn("warning: rendering preview", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
