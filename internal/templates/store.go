// internal/templates/store.go
package templates

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// Store persists the template task list as a whole. Load reports present=false
// when nothing was ever saved.
type Store interface {
	Load(ctx context.Context) (names []string, present bool, err error)
	Save(ctx context.Context, names []string) error
}

// SQLiteStore keeps the list in a local sqlite file, one JSON row per key.
type SQLiteStore struct {
	db  *sql.DB
	key string
}

// DefaultKey is the row key the list is stored under.
const DefaultKey = "template_tasks"

// OpenSQLite opens (creating if needed) the sqlite file at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open template db %s: %w", path, err)
	}
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create template table: %w", err)
	}
	return &SQLiteStore{db: db, key: DefaultKey}, nil
}

// Close releases the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) ([]string, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, s.key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load template list: %w", err)
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, false, fmt.Errorf("decode template list: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, names []string) error {
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("encode template list: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		s.key, string(data))
	if err != nil {
		return fmt.Errorf("save template list: %w", err)
	}
	return nil
}

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	names   []string
	present bool
	Err     error
}

func (m *MemoryStore) Load(context.Context) ([]string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, false, m.Err
	}
	return append([]string(nil), m.names...), m.present, nil
}

func (m *MemoryStore) Save(_ context.Context, names []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.names = append([]string{}, names...)
	m.present = true
	return nil
}
