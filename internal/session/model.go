// Package session holds the chat-session data model and keeps the locally
// held session list reconciled with the remote store, scoped to one
// authenticated user. A SQLite mirror stands in for browser local storage.
package session

import (
	"strings"
	"sync/atomic"
	"time"
)

// MessageType classifies who (or what) produced a message.
type MessageType string

const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
	MessageError     MessageType = "error"
)

// Message is one entry of a conversation transcript. Messages are immutable
// once displayed; editing replaces the message and truncates everything
// after it.
type Message struct {
	ID        int64       `json:"id"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	Role      string      `json:"role"`
	Timestamp time.Time   `json:"timestamp"`
}

// Role tags as the server's history format names them.
const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// messageSeq is seeded from the clock once per process so ids stay unique
// across restarts within one transcript.
var messageSeq atomic.Int64

func init() {
	messageSeq.Store(time.Now().UnixMilli())
}

// NewMessage builds a message with a unique id.
func NewMessage(t MessageType, content string) Message {
	return Message{
		ID:        messageSeq.Add(1),
		Content:   content,
		Type:      t,
		Role:      roleFor(t),
		Timestamp: time.Now(),
	}
}

func roleFor(t MessageType) string {
	if t == MessageUser {
		return RoleHuman
	}
	return RoleAI
}

// Session is a persisted, titled conversation owned by one user. Until the
// first successful save the ID is a provisional local value (epoch millis);
// Create adopts the server-assigned id and flips Remote.
type Session struct {
	ID        int64     `json:"id"`
	UserID    int       `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`

	// Remote is true once the server has assigned the id.
	Remote bool `json:"-"`
}

// New creates an unsaved session with a provisional local id.
func New(userID int) *Session {
	now := time.Now()
	return &Session{
		ID:        now.UnixMilli(),
		UserID:    userID,
		Title:     "New Chat",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds a message to the end of the transcript.
func (s *Session) Append(m Message) {
	s.Messages = append(s.Messages, m)
}

// LastUserMessage returns the most recent user-typed message, if any.
func (s *Session) LastUserMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Type == MessageUser {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// TruncateBefore drops the message with the given id and everything after
// it. Returns false when the id is not in the transcript.
func (s *Session) TruncateBefore(messageID int64) bool {
	for i, m := range s.Messages {
		if m.ID == messageID {
			s.Messages = s.Messages[:i]
			return true
		}
	}
	return false
}

const maxTitleLen = 48

// DeriveTitle produces a session title from the first question.
func DeriveTitle(question string) string {
	q := strings.TrimSpace(question)
	if q == "" {
		return "New Chat"
	}
	runes := []rune(q)
	if len(runes) <= maxTitleLen {
		return q
	}
	return strings.TrimSpace(string(runes[:maxTitleLen])) + "..."
}
