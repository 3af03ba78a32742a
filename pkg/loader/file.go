package loader

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// maxLineBytes bounds a single JSONL record.
const maxLineBytes = 10 * 1024 * 1024

// File serves nodes from a JSON array or JSONL file. Files ending in
// .jsonl or .ndjson are read line by line; anything else is a JSON array
// or a single object.
//
// In whole-file mode the root receives the entire file and other nodes load
// empty. In lazy mode the file is indexed by parent and each node receives
// only its direct children; children that have children of their own are
// sent with the lazy marker.
type File struct {
	Path   string
	Lazy   bool
	Logger *slog.Logger

	mu    sync.Mutex
	index map[string][]model.Record
	kids  map[string]bool
}

// NewFile creates a file source.
func NewFile(path string, lazy bool) *File {
	return &File{Path: path, Lazy: lazy}
}

func (f *File) log() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// Fetch implements tree.Fetcher.
func (f *File) Fetch(ctx context.Context, node *model.Node, done func(model.Payload, error)) {
	if f.Lazy {
		done(f.children(ctx, node.ID))
		return
	}
	if !node.IsRoot() {
		done(nil, nil)
		return
	}
	done(f.whole(ctx))
}

// Reset drops the lazy index so the next fetch rereads the file.
func (f *File) Reset() {
	f.mu.Lock()
	f.index, f.kids = nil, nil
	f.mu.Unlock()
}

func (f *File) jsonl() bool {
	ext := strings.ToLower(filepath.Ext(f.Path))
	return ext == ".jsonl" || ext == ".ndjson"
}

// whole returns the file as one payload. JSON arrays stay undecoded so a
// large file can be decoded by the background parser.
func (f *File) whole(ctx context.Context) (model.Payload, error) {
	if !f.jsonl() {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Path, err)
		}
		return model.RawPayload(data), nil
	}
	recs, err := f.readLines(ctx)
	if err != nil {
		return nil, err
	}
	return model.ClassifyRecords(recs), nil
}

func (f *File) records(ctx context.Context) ([]model.Record, error) {
	if f.jsonl() {
		return f.readLines(ctx)
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	return model.DecodeRecords(ctx, data, 1)
}

// readLines decodes one record per line. Malformed lines are skipped with a
// warning so one bad record does not hide the rest of the file.
func (f *File) readLines(ctx context.Context) ([]model.Record, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer file.Close()

	var recs []model.Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec model.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			f.log().Warn("warning: skipping malformed line",
				slog.String("path", f.Path), slog.Int("line", lineNum), slog.String("error", err.Error()))
			continue
		}
		recs = append(recs, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	if recs == nil {
		recs = []model.Record{}
	}
	return recs, nil
}

func (f *File) children(ctx context.Context, id string) (model.Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index == nil {
		recs, err := f.records(ctx)
		if err != nil {
			return nil, err
		}
		if err := f.build(recs); err != nil {
			return nil, err
		}
	}
	src := f.index[id]
	out := make(model.NestedPayload, len(src))
	for i, rec := range src {
		rec = rec.Clone()
		rec.Parent = ""
		rec.Children = nil
		if f.kids[rec.ID] {
			rec.Children = model.Lazy()
		}
		out[i] = rec
	}
	return out, nil
}

// build indexes records by parent. Nested records are flattened; every
// record needs an id so it can be fetched later.
func (f *File) build(recs []model.Record) error {
	index := make(map[string][]model.Record)
	kids := make(map[string]bool)
	var walk func(rec model.Record, parent string) error
	walk = func(rec model.Record, parent string) error {
		if rec.ID == "" {
			return fmt.Errorf("%w: lazy source %s has a record without id", model.ErrMalformedPayload, f.Path)
		}
		if rec.Parent != "" {
			parent = rec.Parent
		}
		index[parent] = append(index[parent], rec)
		kids[parent] = true
		if rec.Children == nil {
			return nil
		}
		if rec.Children.Lazy {
			kids[rec.ID] = true
		}
		for _, c := range rec.Children.Items {
			if err := walk(c, rec.ID); err != nil {
				return err
			}
		}
		return nil
	}
	for _, rec := range recs {
		if err := walk(rec, model.RootID); err != nil {
			return err
		}
	}
	f.index, f.kids = index, kids
	return nil
}
