package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mamadbah2/greenconsole/internal/offline"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_namespaces (
	name TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS cache_entries (
	namespace TEXT NOT NULL,
	cache_key TEXT NOT NULL,
	url TEXT NOT NULL,
	status INTEGER NOT NULL,
	status_text TEXT NOT NULL,
	header_json BLOB NOT NULL,
	body BLOB NOT NULL,
	stored_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, cache_key)
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_key ON cache_entries (cache_key);
`

// Store keeps cache namespaces in a SQLite database so they survive restarts.
type Store struct {
	sqlDB *sql.DB
}

var _ offline.Storage = (*Store)(nil)

// Open opens and migrates a cache database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Open(ctx context.Context, name string) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO cache_namespaces (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("open namespace %s: %w", name, err)
	}
	return nil
}

func (s *Store) Names(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT name FROM cache_namespaces ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan namespace: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE namespace = ?`, name); err != nil {
		return false, fmt.Errorf("delete entries of %s: %w", name, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM cache_namespaces WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete namespace %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete: %w", err)
	}

	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Put upserts an entry, opening the namespace when needed.
func (s *Store) Put(ctx context.Context, name string, entry offline.Entry) error {
	if entry.Response == nil {
		return fmt.Errorf("put %s: entry has no response", entry.Key)
	}
	if err := s.Open(ctx, name); err != nil {
		return err
	}

	headerJSON, err := json.Marshal(entry.Response.Header)
	if err != nil {
		return fmt.Errorf("encode headers: %w", err)
	}
	body := entry.Response.Body
	if body == nil {
		body = []byte{}
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO cache_entries (namespace, cache_key, url, status, status_text, header_json, body, stored_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(namespace, cache_key) DO UPDATE SET
			url = excluded.url,
			status = excluded.status,
			status_text = excluded.status_text,
			header_json = excluded.header_json,
			body = excluded.body,
			stored_at = excluded.stored_at`,
		name, entry.Key, entry.URL, entry.Response.Status, entry.Response.StatusText,
		headerJSON, body, entry.StoredAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

const entryColumns = `e.cache_key, e.url, e.status, e.status_text, e.header_json, e.body, e.stored_at`

func (s *Store) Get(ctx context.Context, name, key string) (offline.Entry, bool, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM cache_entries e WHERE e.namespace = ? AND e.cache_key = ?`, name, key)
	return scanOne(row)
}

func (s *Store) Match(ctx context.Context, key string) (offline.Entry, bool, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+entryColumns+`
		 FROM cache_entries e JOIN cache_namespaces n ON n.name = e.namespace
		 WHERE e.cache_key = ?
		 ORDER BY n.rowid
		 LIMIT 1`, key)
	return scanOne(row)
}

func (s *Store) Entries(ctx context.Context, name string) ([]offline.Entry, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM cache_entries e WHERE e.namespace = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []offline.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) Remove(ctx context.Context, name, key string) error {
	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE namespace = ? AND cache_key = ?`, name, key); err != nil {
		return fmt.Errorf("remove cache entry: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (offline.Entry, bool, error) {
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return offline.Entry{}, false, nil
		}
		return offline.Entry{}, false, err
	}
	return entry, true, nil
}

func scanEntry(row scanner) (offline.Entry, error) {
	var (
		entry      offline.Entry
		resp       offline.Response
		headerJSON []byte
		storedAt   int64
	)
	if err := row.Scan(&entry.Key, &entry.URL, &resp.Status, &resp.StatusText, &headerJSON, &resp.Body, &storedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return offline.Entry{}, err
		}
		return offline.Entry{}, fmt.Errorf("scan cache entry: %w", err)
	}

	resp.Header = http.Header{}
	if err := json.Unmarshal(headerJSON, &resp.Header); err != nil {
		return offline.Entry{}, fmt.Errorf("decode headers: %w", err)
	}
	entry.Response = &resp
	entry.StoredAt = time.UnixMilli(storedAt)
	return entry, nil
}
