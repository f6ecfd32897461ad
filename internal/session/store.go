package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/querygenie/querygenie/internal/api"
	"github.com/querygenie/querygenie/internal/logger"
)

// Store keeps the in-memory session list for one authenticated user in sync
// with the remote store and mirrors it into the local database. The list is
// ordered by recency of last save, most recent first. A Store is created
// after login and torn down on logout; it is never shared across users.
type Store struct {
	client *api.Client
	local  *LocalStore // nil disables mirroring
	userID int

	mu       sync.Mutex
	sessions []*Session
}

// NewStore builds a reconciliation store scoped to userID.
func NewStore(client *api.Client, local *LocalStore, userID int) *Store {
	return &Store{client: client, local: local, userID: userID}
}

// UserID returns the owner this store is scoped to.
func (st *Store) UserID() int { return st.userID }

// Load fetches every session for the user and replaces the local list.
// Malformed entries (zero id, wrong owner, undecodable messages) are dropped
// individually instead of failing the whole load. A remote "not found" means
// no sessions yet and yields an empty list.
func (st *Store) Load(ctx context.Context) ([]*Session, error) {
	remote, err := st.client.ListSessions(ctx, st.userID)
	if err != nil {
		return nil, err
	}

	sessions := make([]*Session, 0, len(remote))
	for _, r := range remote {
		s, ok := fromRemote(r, st.userID)
		if !ok {
			logger.L.Warn("dropping malformed session entry", "id", r.ID, "owner", r.UserID)
			continue
		}
		sessions = append(sessions, s)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})

	st.mu.Lock()
	st.sessions = sessions
	st.mu.Unlock()

	st.mirrorReplace(sessions)
	return st.Sessions(), nil
}

// LoadCached returns the mirrored copy without touching the network. Used
// when the server is unreachable; server state supersedes it on the next
// successful Load.
func (st *Store) LoadCached() ([]*Session, error) {
	if st.local == nil {
		return nil, nil
	}
	sessions, err := st.local.ListForUser(st.userID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	st.sessions = sessions
	st.mu.Unlock()
	return st.Sessions(), nil
}

// Save persists s: a create on first save, a full-replacement update after.
func (st *Store) Save(ctx context.Context, s *Session) error {
	if s.Remote {
		return st.Update(ctx, s)
	}
	return st.Create(ctx, s)
}

// Create sends a new session to the remote store, adopts the server-assigned
// id and prepends the session to the list.
func (st *Store) Create(ctx context.Context, s *Session) error {
	payload, err := st.payload(s)
	if err != nil {
		return err
	}
	remote, err := st.client.CreateSession(ctx, payload)
	if err != nil {
		return err
	}

	st.mu.Lock()
	s.ID = remote.ID
	s.Remote = true
	if ts, ok := parseTimestamp(remote.Timestamp); ok {
		s.UpdatedAt = ts
	} else {
		s.UpdatedAt = time.Now()
	}
	st.sessions = append([]*Session{s}, st.sessions...)
	st.mu.Unlock()

	st.mirrorPut(s)
	return nil
}

// Update persists a full message-list replacement for s. Only the matching
// entry changes; the creation timestamp is preserved and the last-modified
// value moves only when the server returns one.
func (st *Store) Update(ctx context.Context, s *Session) error {
	payload, err := st.payload(s)
	if err != nil {
		return err
	}
	remote, err := st.client.UpdateSession(ctx, s.ID, payload)
	if err != nil {
		return err
	}

	st.mu.Lock()
	if ts, ok := parseTimestamp(remote.Timestamp); ok {
		s.UpdatedAt = ts
	}
	for i, existing := range st.sessions {
		if existing.ID == s.ID {
			// Most-recent-first: a saved session moves to the front.
			st.sessions = append(st.sessions[:i], st.sessions[i+1:]...)
			break
		}
	}
	st.sessions = append([]*Session{s}, st.sessions...)
	st.mu.Unlock()

	st.mirrorPut(s)
	return nil
}

// Rename changes the title and persists the session unchanged otherwise.
func (st *Store) Rename(ctx context.Context, id int64, title string) error {
	s := st.Get(id)
	if s == nil {
		return fmt.Errorf("session %d: %w", id, api.ErrNotFound)
	}
	st.mu.Lock()
	old := s.Title
	s.Title = title
	st.mu.Unlock()
	if err := st.Update(ctx, s); err != nil {
		st.mu.Lock()
		s.Title = old
		st.mu.Unlock()
		return err
	}
	return nil
}

// Delete removes the session remotely, then locally. The local removal is
// applied only on success or confirmed absence (404); a 403 or an
// inconclusive failure (network, 5xx) keeps the entry and surfaces the error
// so the user can retry.
func (st *Store) Delete(ctx context.Context, id int64) error {
	err := st.client.DeleteSession(ctx, id, st.userID)
	if err != nil && !errors.Is(err, api.ErrNotFound) {
		return err
	}

	st.mu.Lock()
	for i, s := range st.sessions {
		if s.ID == id {
			st.sessions = append(st.sessions[:i], st.sessions[i+1:]...)
			break
		}
	}
	st.mu.Unlock()

	if st.local != nil {
		if merr := st.local.Remove(id, st.userID); merr != nil {
			logger.L.Warn("mirror remove failed", "id", id, "error", merr)
		}
	}
	return nil
}

// DeleteLocal drops an unsaved session from the list without contacting the
// server. No-op for server-known sessions.
func (st *Store) DeleteLocal(id int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for i, s := range st.sessions {
		if s.ID == id && !s.Remote {
			st.sessions = append(st.sessions[:i], st.sessions[i+1:]...)
			return
		}
	}
}

// Add inserts a fresh, not-yet-saved session at the front of the list.
func (st *Store) Add(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions = append([]*Session{s}, st.sessions...)
}

// Summary is a value snapshot of one session for list display. It shares no
// memory with the live session, so callers may hold and read it while saves
// and renames proceed on other goroutines.
type Summary struct {
	ID        int64
	Title     string
	UpdatedAt time.Time
}

// Summaries returns value snapshots of the list, most recent first.
func (st *Store) Summaries() []Summary {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]Summary, len(st.sessions))
	for i, s := range st.sessions {
		out[i] = Summary{ID: s.ID, Title: s.Title, UpdatedAt: s.UpdatedAt}
	}
	return out
}

// Sessions returns a snapshot of the list, most recent first.
func (st *Store) Sessions() []*Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]*Session, len(st.sessions))
	copy(out, st.sessions)
	return out
}

// Get returns the session with the given id, or nil.
func (st *Store) Get(id int64) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, s := range st.sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (st *Store) payload(s *Session) (api.SessionPayload, error) {
	msgs := s.Messages
	if msgs == nil {
		msgs = []Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return api.SessionPayload{}, fmt.Errorf("marshal messages: %w", err)
	}
	return api.SessionPayload{
		UserID:   st.userID,
		Title:    s.Title,
		Messages: data,
	}, nil
}

func (st *Store) mirrorReplace(sessions []*Session) {
	if st.local == nil {
		return
	}
	if err := st.local.ReplaceAll(st.userID, sessions); err != nil {
		logger.L.Warn("mirror replace failed", "error", err)
	}
}

func (st *Store) mirrorPut(s *Session) {
	if st.local == nil {
		return
	}
	if err := st.local.Put(s); err != nil {
		logger.L.Warn("mirror put failed", "id", s.ID, "error", err)
	}
}

// fromRemote validates and converts one server entry. Entries with a zero id
// or a mismatched owner are rejected. Some server builds omit user_id from
// the list response (the query is already owner-scoped); absence is fine,
// a different owner is not.
func fromRemote(r api.RemoteSession, userID int) (*Session, bool) {
	if r.ID == 0 || (r.UserID != 0 && r.UserID != userID) {
		return nil, false
	}
	var msgs []Message
	if len(r.Messages) > 0 {
		if err := json.Unmarshal(r.Messages, &msgs); err != nil {
			return nil, false
		}
	}
	s := &Session{
		ID:       r.ID,
		UserID:   userID,
		Title:    r.Title,
		Messages: msgs,
		Remote:   true,
	}
	if ts, ok := parseTimestamp(r.Timestamp); ok {
		s.CreatedAt = ts
		s.UpdatedAt = ts
	}
	return s, true
}

func parseTimestamp(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999-07:00"} {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
