package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/querygenie/querygenie/internal/api"
)

const createLocalSQL = `
CREATE TABLE IF NOT EXISTS auth_user (
    slot    INTEGER PRIMARY KEY CHECK (slot = 1),
    payload TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
    id         INTEGER NOT NULL,
    user_id    INTEGER NOT NULL,
    title      TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    messages   TEXT NOT NULL DEFAULT '[]',
    PRIMARY KEY (id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, updated_at);
`

// LocalStore is the persistent client-side mirror: the authenticated user
// plus a per-user copy of the session list. Every read and write is scoped
// by user id so accounts sharing one data dir never see each other's data.
type LocalStore struct {
	db *sql.DB
}

// DefaultDBPath returns dataDir/querygenie.db.
func DefaultDBPath(dataDir string) string {
	return filepath.Join(dataDir, "querygenie.db")
}

// OpenLocal opens (or creates) the mirror database at dbPath.
func OpenLocal(dbPath string) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(createLocalSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &LocalStore{db: db}, nil
}

// SaveUser records the authenticated user. Switching to a different user
// wipes the previous user's mirrored sessions first.
func (l *LocalStore) SaveUser(u api.User) error {
	if prev, ok, err := l.User(); err == nil && ok && prev.ID != u.ID {
		if _, err := l.db.Exec("DELETE FROM sessions WHERE user_id = ?", prev.ID); err != nil {
			return fmt.Errorf("clear previous user sessions: %w", err)
		}
	}

	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = l.db.Exec(`INSERT OR REPLACE INTO auth_user (slot, payload) VALUES (1, ?)`, string(payload))
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// User returns the stored authenticated user, if any.
func (l *LocalStore) User() (api.User, bool, error) {
	var payload string
	err := l.db.QueryRow("SELECT payload FROM auth_user WHERE slot = 1").Scan(&payload)
	if err == sql.ErrNoRows {
		return api.User{}, false, nil
	}
	if err != nil {
		return api.User{}, false, fmt.Errorf("load user: %w", err)
	}
	var u api.User
	if err := json.Unmarshal([]byte(payload), &u); err != nil {
		return api.User{}, false, fmt.Errorf("decode user: %w", err)
	}
	return u, true, nil
}

// ClearUser removes the stored user and that user's mirrored sessions.
// Called on logout.
func (l *LocalStore) ClearUser() error {
	u, ok, err := l.User()
	if err != nil {
		return err
	}
	if ok {
		if _, err := l.db.Exec("DELETE FROM sessions WHERE user_id = ?", u.ID); err != nil {
			return fmt.Errorf("clear sessions: %w", err)
		}
	}
	if _, err := l.db.Exec("DELETE FROM auth_user"); err != nil {
		return fmt.Errorf("clear user: %w", err)
	}
	return nil
}

// ReplaceAll swaps the entire mirrored list for userID.
func (l *LocalStore) ReplaceAll(userID int, sessions []*Session) error {
	tx, err := l.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM sessions WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clear mirror: %w", err)
	}
	for _, s := range sessions {
		if err := putTx(tx, s); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Put upserts one session row.
func (l *LocalStore) Put(s *Session) error {
	tx, err := l.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := putTx(tx, s); err != nil {
		return err
	}
	return tx.Commit()
}

func putTx(tx *sql.Tx, s *Session) error {
	msgJSON, err := json.Marshal(s.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	_, err = tx.Exec(`
		INSERT OR REPLACE INTO sessions (id, user_id, title, created_at, updated_at, messages)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.UserID,
		s.Title,
		s.CreatedAt.Format(time.RFC3339Nano),
		s.UpdatedAt.Format(time.RFC3339Nano),
		string(msgJSON),
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// Remove deletes one mirrored session row.
func (l *LocalStore) Remove(id int64, userID int) error {
	_, err := l.db.Exec("DELETE FROM sessions WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// ListForUser returns the mirrored sessions for userID, most recent first.
func (l *LocalStore) ListForUser(userID int) ([]*Session, error) {
	rows, err := l.db.Query(`
		SELECT id, user_id, title, created_at, updated_at, messages
		FROM sessions WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		var s Session
		var createdAt, updatedAt, msgJSON string
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &createdAt, &updatedAt, &msgJSON); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		s.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		if err := json.Unmarshal([]byte(msgJSON), &s.Messages); err != nil {
			return nil, fmt.Errorf("unmarshal messages: %w", err)
		}
		s.Remote = true
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (l *LocalStore) Close() error {
	return l.db.Close()
}
