package loader

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// DefaultTable is the table SQLSource reads when none is configured.
const DefaultTable = "nodes"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLSource fetches one level at a time from a SQLite table shaped
//
//	nodes(id TEXT PRIMARY KEY, parent TEXT, position INTEGER, text TEXT, icon TEXT, data TEXT)
//
// Top-level rows use "#" as parent. data holds JSON.
type SQLSource struct {
	db    *sql.DB
	table string
	owned bool
}

// OpenSQL opens (or creates) the database at path and ensures the table
// exists.
func OpenSQL(path, table string) (*SQLSource, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	src, err := NewSQLSource(db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	src.owned = true
	if err := src.CreateTable(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return src, nil
}

// NewSQLSource wraps an open database. The caller keeps ownership of db.
func NewSQLSource(db *sql.DB, table string) (*SQLSource, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SQLSource{db: db, table: table}, nil
}

// Close closes the database if OpenSQL opened it.
func (s *SQLSource) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// CreateTable creates the node table and its parent index if missing.
func (s *SQLSource) CreateTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id TEXT PRIMARY KEY,
		parent TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		text TEXT NOT NULL DEFAULT '',
		icon TEXT,
		data TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_parent ON %[1]s(parent, position);
	`, s.table))
	return err
}

// Insert stores recs under parent, recursing into nested children. Records
// need ids.
func (s *SQLSource) Insert(ctx context.Context, parent string, recs ...model.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, parent, position, text, icon, data) VALUES (?, ?, ?, ?, ?, ?)`, s.table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	var insert func(parent string, recs []model.Record) error
	insert = func(parent string, recs []model.Record) error {
		for i, rec := range recs {
			if rec.ID == "" {
				return fmt.Errorf("%w: record %d under %q has no id", model.ErrMalformedPayload, i, parent)
			}
			var icon, data sql.NullString
			if rec.Icon != "" {
				icon = sql.NullString{String: rec.Icon, Valid: true}
			}
			if rec.Data != nil {
				b, err := json.Marshal(rec.Data)
				if err != nil {
					return fmt.Errorf("encode data of %q: %w", rec.ID, err)
				}
				data = sql.NullString{String: string(b), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, rec.ID, parent, i, rec.Text, icon, data); err != nil {
				return fmt.Errorf("insert %q: %w", rec.ID, err)
			}
			if rec.Children != nil {
				if err := insert(rec.ID, rec.Children.Items); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := insert(parent, recs); err != nil {
		return err
	}
	return tx.Commit()
}

// Fetch implements tree.Fetcher. Each row becomes a record; rows that have
// children of their own carry the lazy marker.
func (s *SQLSource) Fetch(ctx context.Context, node *model.Node, done func(model.Payload, error)) {
	done(s.Children(ctx, node.ID))
}

// Children returns the direct children of id in position order.
func (s *SQLSource) Children(ctx context.Context, id string) (model.NestedPayload, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT n.id, n.text, n.icon, n.data,
			EXISTS (SELECT 1 FROM %[1]s c WHERE c.parent = n.id)
		FROM %[1]s n
		WHERE n.parent = ?
		ORDER BY n.position, n.id
	`, s.table), id)
	if err != nil {
		return nil, fmt.Errorf("query children of %q: %w", id, err)
	}
	defer rows.Close()

	out := model.NestedPayload{}
	for rows.Next() {
		var (
			rec        model.Record
			icon, data sql.NullString
			hasKids    bool
		)
		if err := rows.Scan(&rec.ID, &rec.Text, &icon, &data, &hasKids); err != nil {
			return nil, err
		}
		rec.Icon = icon.String
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &rec.Data); err != nil {
				return nil, fmt.Errorf("%w: data of %q: %v", model.ErrMalformedPayload, rec.ID, err)
			}
		}
		if hasKids {
			rec.Children = model.Lazy()
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
