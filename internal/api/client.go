// Package api is a thin typed client for the Query Genie HTTP API. Every
// method is a single request/response round trip: no retries, no caching,
// no client-side timeouts. Errors come back typed so callers can tell a
// structured server error from a plain status or an unreachable server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client talks to one Query Genie server.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying http.Client (used by tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address this client points at.
func (c *Client) BaseURL() string { return c.baseURL }

// do issues one JSON request and decodes a 2xx response into out (when out is
// non-nil). Non-2xx responses become *ServerError or *StatusError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// decodeError turns a non-2xx body into the richest error type it supports.
// The server emits two shapes: the structured {code, message, suggestion}
// triple, and FastAPI's plain {"detail": "..."}.
func decodeError(status int, data []byte) error {
	var structured struct {
		Error      string `json:"error"`
		Code       string `json:"code"`
		Message    string `json:"message"`
		Suggestion string `json:"suggestion"`
	}
	if err := json.Unmarshal(data, &structured); err == nil && structured.Code != "" {
		msg := structured.Message
		if msg == "" {
			msg = structured.Error
		}
		return &ServerError{
			Status:     status,
			Code:       structured.Code,
			Message:    msg,
			Suggestion: structured.Suggestion,
		}
	}

	var plain struct {
		Detail string `json:"detail"`
	}
	_ = json.Unmarshal(data, &plain)
	return &StatusError{Status: status, Detail: plain.Detail}
}

// Connect asks the server to open the database described by cfg.
func (c *Client) Connect(ctx context.Context, cfg ConnectionConfig) error {
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	return c.do(ctx, http.MethodPost, "/api/connect", cfg, &resp)
}

// Disconnect drops the server-side database connection.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/disconnect", nil, nil)
}

// Chat sends one question plus the prior transcript and returns the raw
// assistant response text (the embedded SQL+JSON grammar, parsed elsewhere).
func (c *Client) Chat(ctx context.Context, question string, history []HistoryEntry) (string, error) {
	if history == nil {
		history = []HistoryEntry{}
	}
	req := struct {
		Question    string         `json:"question"`
		ChatHistory []HistoryEntry `json:"chat_history"`
	}{Question: question, ChatHistory: history}

	var resp struct {
		Success  bool   `json:"success"`
		Response string `json:"response"`
		Error    string `json:"error"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/chat", req, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "chat request failed"
		}
		return "", fmt.Errorf("%s", msg)
	}
	return resp.Response, nil
}

// ConfirmOutcome is the server's answer to a confirm-sql request.
type ConfirmOutcome struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ConfirmSQL resolves a pending confirmation_required payload: approve or
// cancel the destructive statement the server is holding.
func (c *Client) ConfirmSQL(ctx context.Context, userID int, sql string, confirm bool) (ConfirmOutcome, error) {
	req := struct {
		UserID  int    `json:"user_id"`
		Confirm bool   `json:"confirm"`
		SQL     string `json:"sql"`
	}{UserID: userID, Confirm: confirm, SQL: sql}

	var out ConfirmOutcome
	err := c.do(ctx, http.MethodPost, "/api/confirm-sql", req, &out)
	return out, err
}

// ListSessions fetches all sessions owned by userID. A 404 from the server
// means "no sessions yet" and yields an empty list, not an error.
func (c *Client) ListSessions(ctx context.Context, userID int) ([]RemoteSession, error) {
	var sessions []RemoteSession
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/chat-sessions?user_id=%d", userID), nil, &sessions)
	if err != nil {
		var ste *StatusError
		if errors.As(err, &ste) && ste.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return sessions, nil
}

// CreateSession stores a new session and returns it with the server-assigned id.
func (c *Client) CreateSession(ctx context.Context, p SessionPayload) (RemoteSession, error) {
	var out RemoteSession
	err := c.do(ctx, http.MethodPost, "/api/chat-sessions", p, &out)
	return out, err
}

// UpdateSession replaces the title and full message list of session id.
func (c *Client) UpdateSession(ctx context.Context, id int64, p SessionPayload) (RemoteSession, error) {
	var out RemoteSession
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/chat-sessions/%d", id), p, &out)
	return out, err
}

// DeleteSession removes session id. 404 maps to ErrNotFound and 403 to
// ErrForbidden so the reconciliation layer can treat them differently.
func (c *Client) DeleteSession(ctx context.Context, id int64, userID int) error {
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/chat-sessions/%d?user_id=%d", id, userID), nil, nil)
	if err == nil {
		return nil
	}
	var ste *StatusError
	if errors.As(err, &ste) {
		switch ste.Status {
		case http.StatusNotFound:
			return fmt.Errorf("session %d: %w", id, ErrNotFound)
		case http.StatusForbidden:
			return fmt.Errorf("session %d: %w", id, ErrForbidden)
		}
	}
	return err
}

// SendOTP requests a signup verification code for email.
func (c *Client) SendOTP(ctx context.Context, email string) (string, error) {
	req := struct {
		Email string `json:"email"`
	}{Email: email}

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/send-otp", req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Signup registers a new user; the OTP must match the one sent to the email.
func (c *Client) Signup(ctx context.Context, req SignupRequest) error {
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	return c.do(ctx, http.MethodPost, "/api/signup", req, &resp)
}

// Login authenticates by email or username and returns the user object.
func (c *Client) Login(ctx context.Context, identifier, password string) (User, error) {
	req := struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}{Identifier: identifier, Password: password}

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		User    User   `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/login", req, &resp); err != nil {
		return User{}, err
	}
	return resp.User, nil
}
