// Package sqlitestore persists the authsdk session in a local SQLite file so
// a login survives restarts of the host program.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aussiebroadwan/consign/pkg/authsdk"
	"github.com/aussiebroadwan/consign/pkg/slogx"

	_ "modernc.org/sqlite"
)

const (
	keyToken = "token"
	keyUser  = "user"
)

// Store is an authsdk.SessionStore backed by SQLite. Reads are served from
// an in-memory copy so Get never touches the disk; writes go to the
// database first and are serialized.
type Store struct {
	db  *sql.DB
	mem *authsdk.MemoryStore

	// mu serializes writers so the database and the cached copy change
	// together.
	mu sync.Mutex
}

var _ authsdk.SessionStore = (*Store)(nil)

// Open opens (creating if needed) the database at dsn, applies migrations
// and loads any saved session. A saved session missing either half, or whose
// token can't be read, is deleted rather than loaded.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := applyMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: migrate: %w", err)
	}

	s := &Store{db: db, mem: authsdk.NewMemoryStore()}
	if err := s.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Get() (authsdk.Session, bool) {
	return s.mem.Get()
}

// Set writes the token and user in one transaction, then publishes them.
func (s *Store) Set(sess authsdk.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}

	user, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("sqlitestore: encode user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.withTx(context.Background(), func(tx *sql.Tx) error {
		const upsert = `
			INSERT INTO session_values (key, value, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

		if _, err := tx.Exec(upsert, keyToken, sess.Token); err != nil {
			return err
		}
		_, err := tx.Exec(upsert, keyUser, string(user))
		return err
	})
	if err != nil {
		return fmt.Errorf("sqlitestore: save session: %w", err)
	}

	return s.mem.Set(sess)
}

func (s *Store) Clear() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared, _ := s.mem.Clear()
	return cleared, s.deleteAll(context.Background())
}

// ClearToken removes the session only if it still carries token. The cached
// copy is dropped even if the delete fails, so the session ends for this
// process either way; the error is still returned.
func (s *Store) ClearToken(token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared, _ := s.mem.ClearToken(token)
	if !cleared {
		return false, nil
	}
	return true, s.deleteAll(context.Background())
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM session_values`)
	if err != nil {
		return fmt.Errorf("sqlitestore: load session: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string, 2)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("sqlitestore: load session: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlitestore: load session: %w", err)
	}

	if len(values) == 0 {
		return nil
	}

	sess, err := decodeSession(values)
	if err != nil {
		slogx.FromContext(ctx).Warn("discarding saved session", "err", err)
		return s.deleteAll(ctx)
	}

	return s.mem.Set(sess)
}

func decodeSession(values map[string]string) (authsdk.Session, error) {
	token, hasToken := values[keyToken]
	raw, hasUser := values[keyUser]
	if !hasToken || !hasUser {
		return authsdk.Session{}, authsdk.ErrIncompleteSession
	}

	var user authsdk.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return authsdk.Session{}, fmt.Errorf("decode user: %w", err)
	}

	return authsdk.NewSession(token, user)
}

func (s *Store) deleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_values`); err != nil {
		return fmt.Errorf("sqlitestore: clear session: %w", err)
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
