// Package sqlitestore persists push store documents in a local SQLite file.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/ahmetcoskunkizilkaya/fellowship/internal/store"
	_ "modernc.org/sqlite"
)

type Backend struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. The special path
// ":memory:" yields a private in-memory database.
func Open(path string) (*Backend, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	b := &Backend{db: db}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return b, nil
}

func (b *Backend) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL,
			key TEXT NOT NULL,
			order_ms INTEGER NOT NULL DEFAULT 0,
			data TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(path, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_path_order ON documents(path, order_ms, seq)`,
	}

	for _, m := range migrations {
		if _, err := b.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, path, key string) (store.Document, bool, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT seq, order_ms, data FROM documents WHERE path = ? AND key = ?`, path, key)

	doc := store.Document{Path: path, Key: key}
	var data string
	err := row.Scan(&doc.Seq, &doc.Order, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, false, nil
	}
	if err != nil {
		return store.Document{}, false, err
	}
	if err := json.Unmarshal([]byte(data), &doc.Fields); err != nil {
		return store.Document{}, false, fmt.Errorf("unmarshal %s/%s: %w", path, key, err)
	}
	return doc, true, nil
}

func (b *Backend) Put(ctx context.Context, doc store.Document) error {
	data, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	_, err = b.db.ExecContext(ctx,
		`INSERT INTO documents (path, key, order_ms, data) VALUES (?, ?, ?, ?)
		ON CONFLICT(path, key) DO UPDATE SET
			order_ms = excluded.order_ms,
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP`,
		doc.Path, doc.Key, doc.Order, string(data))
	return err
}

func (b *Backend) Remove(ctx context.Context, path, key string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM documents WHERE path = ? AND key = ?`, path, key)
	return err
}

func (b *Backend) LastN(ctx context.Context, path string, n int) ([]store.Document, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT key, seq, order_ms, data FROM documents
		WHERE path = ?
		ORDER BY order_ms DESC, seq DESC
		LIMIT ?`, path, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		doc := store.Document{Path: path}
		var data string
		if err := rows.Scan(&doc.Key, &doc.Seq, &doc.Order, &data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &doc.Fields); err != nil {
			return nil, fmt.Errorf("unmarshal %s/%s: %w", path, doc.Key, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(docs)
	return docs, nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}
