// Package store persists users, chat sessions, and per-session
// conversation context in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Turn is one completed exchange. Turns are appended, never mutated in
// place; slice order is chronological.
type Turn struct {
	UserQuery     string `json:"user_query"`
	AgentResponse string `json:"agent_response"`
	ToolResponse  string `json:"tool_response"`
}

// SessionInfo is session metadata without its context payload.
type SessionInfo struct {
	ID          string    `json:"_id"`
	UserID      string    `json:"user_id"`
	SessionName string    `json:"session_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ErrSessionNotFound reports an operation against an unknown session.
var ErrSessionNotFound = errors.New("session not found")

// Store is the SQLite-backed session store. Writes to one session row are
// serialized with per-session locks; the read-modify-write cycle above
// this layer is not coordinated, so concurrent exchanges on one session
// follow last-writer-wins.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger

	locksMu    sync.Mutex
	writeLocks map[string]*sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS chat_sessions (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	session_name TEXT NOT NULL,
	context      TEXT NOT NULL DEFAULT '[]',
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_sessions_user ON chat_sessions(user_id);
`

// Open opens (creating if needed) the store at the given path.
func Open(dbPath string, logger zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("Session store opened")

	return &Store{
		db:         db,
		logger:     logger,
		writeLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) getWriteLock(sessionID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	if lock, exists := s.writeLocks[sessionID]; exists {
		return lock
	}
	lock := &sync.Mutex{}
	s.writeLocks[sessionID] = lock
	return lock
}

// CreateUser creates a user or returns the existing id for the name.
func (s *Store) CreateUser(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("user name cannot be empty")
	}

	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	id = uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)`,
		id, name, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info().Str("user_id", id).Msg("User created")
	return id, nil
}

// GetUserByName returns the user id for a name, or empty when unknown.
func (s *Store) GetUserByName(ctx context.Context, name string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	return id, nil
}

// CreateSession creates a new session with an empty context. A blank name
// gets a timestamped default.
func (s *Store) CreateSession(ctx context.Context, userID, sessionName string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id cannot be empty")
	}
	if sessionName == "" {
		sessionName = "Chat " + time.Now().UTC().Format("01/02 15:04")
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, session_name, context, created_at, updated_at)
		 VALUES (?, ?, ?, '[]', ?, ?)`,
		id, userID, sessionName, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info().Str("session_id", id).Str("user_id", userID).Msg("Session created")
	return id, nil
}

// ListSessions returns the user's sessions, most recently updated first.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, session_name, created_at, updated_at
		 FROM chat_sessions WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionInfo{}
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.ID, &info.UserID, &info.SessionName, &info.CreatedAt, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, info)
	}
	return sessions, rows.Err()
}

// RenameSession updates a session's display name.
func (s *Store) RenameSession(ctx context.Context, sessionID, newName string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET session_name = ?, updated_at = ? WHERE id = ?`,
		newName, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to rename session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteSession removes a session and its context.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// GetContext returns the session's ordered conversation turns. An unknown
// session or empty context yields an empty slice, not an error.
func (s *Store) GetContext(ctx context.Context, sessionID string) ([]Turn, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT context FROM chat_sessions WHERE id = ?`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []Turn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session context: %w", err)
	}
	if raw == "" {
		return []Turn{}, nil
	}

	var turns []Turn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		return nil, fmt.Errorf("failed to decode session context: %w", err)
	}
	if turns == nil {
		turns = []Turn{}
	}
	return turns, nil
}

// PutContext replaces the session's full turn sequence. Sessions unknown
// to the store are created so a get-then-put round-trip always holds.
func (s *Store) PutContext(ctx context.Context, sessionID string, turns []Turn) error {
	if sessionID == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if turns == nil {
		turns = []Turn{}
	}

	data, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("failed to encode session context: %w", err)
	}

	lock := s.getWriteLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, session_name, context, created_at, updated_at)
		 VALUES (?, '', ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET context = excluded.context, updated_at = excluded.updated_at`,
		sessionID, "Chat "+now.Format("01/02 15:04"), string(data), now, now)
	if err != nil {
		return fmt.Errorf("failed to write session context: %w", err)
	}

	s.logger.Debug().Str("session_id", sessionID).Int("turns", len(turns)).Msg("Session context updated")
	return nil
}

// PurgeIdleSessions deletes sessions not updated within the retention
// window and returns how many were removed.
func (s *Store) PurgeIdleSessions(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge idle sessions: %w", err)
	}
	return res.RowsAffected()
}
