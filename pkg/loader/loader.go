// Package loader provides fetch strategies for the tree engine: static
// payloads, plain functions, JSON and JSONL files, SQLite tables and inline
// HTML markup. A Watcher refreshes a tree when its source file changes.
package loader

import (
	"context"

	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/tree"
)

// Static serves fixed payloads: Root for the root node, Children[id] for
// any other node. Nodes without an entry load with no children.
type Static struct {
	Root     model.Payload
	Children map[string]model.Payload
}

// Fetch implements tree.Fetcher.
func (s *Static) Fetch(_ context.Context, node *model.Node, done func(model.Payload, error)) {
	if node.IsRoot() {
		done(s.Root, nil)
		return
	}
	done(s.Children[node.ID], nil)
}

// Func adapts a synchronous function to tree.Fetcher.
type Func func(ctx context.Context, node *model.Node) (model.Payload, error)

// Fetch implements tree.Fetcher.
func (f Func) Fetch(ctx context.Context, node *model.Node, done func(model.Payload, error)) {
	p, err := f(ctx, node)
	done(p, err)
}

// Async runs f on its own goroutine. The tree must use a deferred
// scheduler (tree.Loop or the TUI bridge) so completions come back to the
// owner goroutine.
func Async(f tree.Fetcher) tree.Fetcher {
	return tree.FetchFunc(func(ctx context.Context, node *model.Node, done func(model.Payload, error)) {
		go func() {
			if err := ctx.Err(); err != nil {
				done(nil, err)
				return
			}
			f.Fetch(ctx, node, done)
		}()
	})
}
