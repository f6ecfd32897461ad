package api

import "encoding/json"

// ConnectionConfig carries database connection parameters for /api/connect.
// It is transient request state only; nothing here is persisted.
type ConnectionConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// HistoryEntry is one element of the chat_history array sent to /api/chat.
// Role is either "human" or "ai".
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// User is the authenticated user object returned by /api/login.
type User struct {
	ID        int    `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Gender    string `json:"gender"`
}

// SignupRequest is the /api/signup request body. OTP is the code previously
// delivered via /api/send-otp.
type SignupRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Password  string `json:"password"`
	OTP       string `json:"otp"`
	Gender    string `json:"gender"`
	Username  string `json:"username"`
}

// RemoteSession is a chat session as the server represents it. Messages stay
// raw JSON here; the session package owns the message schema.
type RemoteSession struct {
	ID        int64           `json:"id"`
	UserID    int             `json:"user_id"`
	Title     string          `json:"title"`
	Timestamp string          `json:"timestamp"`
	Messages  json.RawMessage `json:"messages"`
}

// SessionPayload is the request body for creating or updating a session.
type SessionPayload struct {
	UserID   int             `json:"user_id"`
	Title    string          `json:"title"`
	Messages json.RawMessage `json:"messages"`
}
