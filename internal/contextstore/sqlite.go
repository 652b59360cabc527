package contextstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLite persists session contexts as JSON rows, one per session. It exists
// so research sessions survive process restarts; the schema is deliberately
// a key-value table rather than a relational model of the context.
type SQLite struct {
	db *sqlx.DB
	mu sync.Mutex
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	context    TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

func NewSQLite(path string) (*SQLite, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Get(id string) (SessionContext, bool, error) {
	var blob string
	err := s.db.Get(&blob, `SELECT context FROM sessions WHERE session_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionContext{}, false, nil
	}
	if err != nil {
		return SessionContext{}, false, err
	}
	var ctx SessionContext
	if err := json.Unmarshal([]byte(blob), &ctx); err != nil {
		return SessionContext{}, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	return ctx, true, nil
}

func (s *SQLite) Put(id string, sc SessionContext) error {
	blob, err := json.Marshal(sc)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions (session_id, context, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET context = excluded.context, updated_at = excluded.updated_at`,
		id, string(blob), time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Update serializes all writers; per-session locking buys nothing against a
// single SQLite file.
func (s *SQLite) Update(id string, fn func(*SessionContext)) (SessionContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok, err := s.Get(id)
	if err != nil {
		return SessionContext{}, err
	}
	if !ok {
		ctx = NewSessionContext()
	}
	fn(&ctx)
	if err := s.Put(id, ctx); err != nil {
		return SessionContext{}, err
	}
	return ctx, nil
}
