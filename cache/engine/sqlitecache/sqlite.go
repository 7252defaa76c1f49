package sqlitecache

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/Arthur1/offline-cache/cache"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS namespaces (
	name       TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	namespace TEXT NOT NULL,
	key       TEXT NOT NULL,
	response  BLOB NOT NULL,
	stored_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, key)
);`

// Store keeps responses in a single SQLite file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ cache.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitecache: open %s: %w", path, err)
	}
	// a single connection serializes writers and keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitecache: create schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Open(ctx context.Context, namespace string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO namespaces (name, created_at) VALUES (?, ?)`,
		namespace, s.now().UnixNano())
	return err
}

func (s *Store) Match(ctx context.Context, namespace, key string, req *http.Request) (*http.Response, bool, error) {
	var resb []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT response FROM entries WHERE namespace = ? AND key = ?`,
		namespace, key).Scan(&resb)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(resb)), req)
	if err != nil {
		return nil, false, err
	}
	return res, true, nil
}

func (s *Store) Put(ctx context.Context, namespace, key string, res *http.Response) error {
	resb, err := httputil.DumpResponse(res, true)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.now().UnixNano()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO namespaces (name, created_at) VALUES (?, ?)`,
		namespace, now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entries (namespace, key, response, stored_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE SET response = excluded.response, stored_at = excluded.stored_at`,
		namespace, key, resb, now); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Delete(ctx context.Context, namespace string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE namespace = ?`, namespace); err != nil {
		return false, err
	}
	r, err := tx.ExecContext(ctx, `DELETE FROM namespaces WHERE name = ?`, namespace)
	if err != nil {
		return false, err
	}
	n, err := r.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, tx.Commit()
}

func (s *Store) Namespaces(ctx context.Context) ([]string, error) {
	return s.strings(ctx, `SELECT name FROM namespaces ORDER BY name`)
}

func (s *Store) Keys(ctx context.Context, namespace string) ([]string, error) {
	return s.strings(ctx, `SELECT key FROM entries WHERE namespace = ? ORDER BY key`, namespace)
}

func (s *Store) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
