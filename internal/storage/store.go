// Package storage persists documents in SQLite, one JSON body per row.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clubfin/internal/docstore"

	_ "modernc.org/sqlite"
)

const dsnPragmas = "?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)"

// conn is satisfied by both *sql.DB and *sql.Tx.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements docstore.Store. It holds a single connection, so
// calls on the store itself from inside RunInTx would block; use the Tx.
type SQLiteStore struct {
	db *sql.DB
	ops
}

var _ docstore.Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite document store ready", "path", dbPath)
	return &SQLiteStore{db: db, ops: ops{c: db}}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Merge runs in its own transaction because it reads before writing.
func (s *SQLiteStore) Merge(ctx context.Context, collection, id string, patch []byte) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return tx.Merge(ctx, collection, id, patch)
	})
}

func (s *SQLiteStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, ops{c: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) BatchWrite(ctx context.Context, batch []docstore.Op) error {
	err := s.RunInTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		for i, op := range batch {
			if err := docstore.Apply(ctx, tx, op); err != nil {
				return fmt.Errorf("batch op %d (%s %s/%s): %w", i, op.Kind, op.Collection, op.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Batch write applied", "ops", len(batch))
	return nil
}

// ops implements docstore.Tx on top of a connection or transaction.
type ops struct {
	c conn
}

func (o ops) Get(ctx context.Context, collection, id string) ([]byte, error) {
	var body string
	err := o.c.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return []byte(body), nil
}

func (o ops) Query(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	var (
		where = []string{"collection = ?"}
		args  = []any{collection}
	)
	for _, f := range filters {
		if v, ok := sqlScalar(f.Value); ok {
			where = append(where, "json_extract(body, ?) = ?")
			args = append(args, "$."+f.Field, v)
		}
	}

	rows, err := o.c.QueryContext(ctx,
		`SELECT id, body FROM documents WHERE `+strings.Join(where, " AND ")+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var out []docstore.Document
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		// json_extract loses the JSON type, so the Go matcher has the last word.
		ok, err := docstore.Matches([]byte(body), filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, docstore.Document{ID: id, Data: []byte(body)})
		}
	}
	return out, rows.Err()
}

func (o ops) Set(ctx context.Context, collection, id string, data []byte) error {
	if err := docstore.CheckObject(data); err != nil {
		return err
	}
	_, err := o.c.ExecContext(ctx, `
		INSERT INTO documents (collection, id, body, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		collection, id, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (o ops) Merge(ctx context.Context, collection, id string, patch []byte) error {
	base, err := o.Get(ctx, collection, id)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return err
	}
	merged, err := docstore.MergeJSON(base, patch)
	if err != nil {
		return err
	}
	return o.Set(ctx, collection, id, merged)
}

func (o ops) Delete(ctx context.Context, collection, id string) error {
	if _, err := o.c.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// sqlScalar converts a filter value to something json_extract can be
// compared with directly.
func sqlScalar(v any) (any, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case int:
		return int64(x), true
	case int64:
		return x, true
	}
	return nil, false
}
