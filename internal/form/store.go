package form

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Store holds one Session per conversation and persists every mutation
// to SQLite so sessions survive restarts. The in-memory map is the
// authoritative copy; the database is written through on each Mutate.
//
// All access is serialized by a single mutex. The event bridge already
// dispatches one event at a time per conversation; the lock covers the
// remaining cross-conversation callers (commands, startup).
type Store struct {
	db     *sql.DB
	schema *Schema
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates a session store on an open database handle. The
// schema is created automatically on first use.
func NewStore(db *sql.DB, schema *Schema, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		db:       db,
		schema:   schema,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS form_sessions (
		conversation_id TEXT PRIMARY KEY,
		state           TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns a deep copy of the conversation's session, creating one
// with schema defaults if none exists yet.
func (s *Store) Get(conversation string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(conversation).clone()
}

// Mutate applies fn to the conversation's session under the store lock,
// persists the result, and returns a deep copy of the new state.
func (s *Store) Mutate(conversation string, fn func(*Session)) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getLocked(conversation)
	fn(sess)
	s.persistLocked(sess)
	return sess.clone()
}

// Reset restores a conversation's field values to schema defaults and
// returns the cleared session. Idempotent: resetting a cleared session
// persists the same state again.
func (s *Store) Reset(conversation string) *Session {
	return s.Mutate(conversation, func(sess *Session) {
		sess.resetValues(s.schema)
	})
}

// getLocked returns the live session, loading it from the database or
// creating a default one. Must be called with s.mu held.
func (s *Store) getLocked(conversation string) *Session {
	if sess, ok := s.sessions[conversation]; ok {
		return sess
	}

	sess, err := s.loadLocked(conversation)
	if err != nil {
		s.logger.Warn("session load failed, starting fresh",
			"conversation_id", conversation,
			"error", err,
		)
		sess = nil
	}
	if sess == nil {
		sess = newSession(s.schema, conversation)
		s.persistLocked(sess)
	}
	s.sessions[conversation] = sess
	return sess
}

// loadLocked reads a persisted session. Returns (nil, nil) when the
// conversation has no stored row.
func (s *Store) loadLocked(conversation string) (*Session, error) {
	var state string
	err := s.db.QueryRow(
		`SELECT state FROM form_sessions WHERE conversation_id = ?`,
		conversation,
	).Scan(&state)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", conversation, err)
	}

	sess := newSession(s.schema, conversation)
	if err := json.Unmarshal([]byte(state), sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", conversation, err)
	}
	// A restart loses any in-flight sub-conversation; the prompt message
	// is gone, so resume idle rather than stuck InField.
	sess.ActiveField = ""
	sess.PromptMessage = 0
	return sess, nil
}

// persistLocked writes the session through to SQLite. A write failure
// is logged, not returned: the in-memory state stays authoritative and
// the next mutation retries the write.
func (s *Store) persistLocked(sess *Session) {
	state, err := json.Marshal(sess)
	if err != nil {
		s.logger.Error("session encode failed",
			"conversation_id", sess.Conversation,
			"error", err,
		)
		return
	}
	_, err = s.db.Exec(
		`INSERT INTO form_sessions (conversation_id, state, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(conversation_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		sess.Conversation, string(state), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		s.logger.Error("session persist failed",
			"conversation_id", sess.Conversation,
			"error", err,
		)
	}
}
