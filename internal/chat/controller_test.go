package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/querygenie/querygenie/internal/api"
	"github.com/querygenie/querygenie/internal/session"
	"github.com/querygenie/querygenie/internal/transcript"
)

// fakeBackend fakes the chat and chat-sessions endpoints.
type fakeBackend struct {
	mu           sync.Mutex
	chatCalls    atomic.Int64
	confirmCalls atomic.Int64
	nextID       int64

	// respond produces the raw assistant text for a question.
	respond func(question string) string
	// chatStatus, when non-zero, makes /api/chat fail with that status.
	chatStatus int
	// block, when non-nil, stalls /api/chat until it is closed.
	block chan struct{}
	// blockConfirm, when non-nil, stalls /api/confirm-sql until it is closed.
	blockConfirm chan struct{}

	lastHistory []api.HistoryEntry
}

func newFakeBackend(t *testing.T) (*fakeBackend, *api.Client) {
	t.Helper()
	f := &fakeBackend{
		nextID: 500,
		respond: func(q string) string {
			return "SQL: `SELECT 1`\nOutput: {\"type\":\"status\",\"message\":\"OK\",\"affected_rows\":1}"
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(srv.Close)
	return f, api.New(srv.URL)
}

func (f *fakeBackend) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/chat":
		f.chatCalls.Add(1)
		if f.block != nil {
			<-f.block
		}
		var req struct {
			Question    string             `json:"question"`
			ChatHistory []api.HistoryEntry `json:"chat_history"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.lastHistory = req.ChatHistory
		status := f.chatStatus
		respond := f.respond
		f.mu.Unlock()
		if status != 0 {
			http.Error(w, `{"detail":"Unexpected error"}`, status)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "response": respond(req.Question)})

	case r.URL.Path == "/api/chat-sessions" && r.Method == http.MethodPost:
		var p api.SessionPayload
		json.NewDecoder(r.Body).Decode(&p)
		f.mu.Lock()
		f.nextID++
		id := f.nextID
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{
			"id": id, "user_id": p.UserID, "title": p.Title,
			"messages":  json.RawMessage(p.Messages),
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})

	case strings.HasPrefix(r.URL.Path, "/api/chat-sessions/") && r.Method == http.MethodPut:
		var p api.SessionPayload
		json.NewDecoder(r.Body).Decode(&p)
		json.NewEncoder(w).Encode(map[string]any{
			"id": 0, "user_id": p.UserID, "title": p.Title,
			"messages":  json.RawMessage(p.Messages),
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})

	case r.URL.Path == "/api/confirm-sql":
		f.confirmCalls.Add(1)
		if f.blockConfirm != nil {
			<-f.blockConfirm
		}
		var req struct {
			Confirm bool   `json:"confirm"`
			SQL     string `json:"sql"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Confirm {
			json.NewEncoder(w).Encode(map[string]any{"type": "status", "message": "SQL executed successfully."})
		} else {
			json.NewEncoder(w).Encode(map[string]any{"type": "status", "message": "SQL execution cancelled by user"})
		}

	default:
		http.NotFound(w, r)
	}
}

func newTestController(t *testing.T) (*fakeBackend, *Controller) {
	t.Helper()
	f, client := newFakeBackend(t)
	store := session.NewStore(client, nil, 1)
	c := NewController(client, store)
	c.SetConnected(true)
	return f, c
}

func TestSendAppendsOneUserAndOneTerminalMessage(t *testing.T) {
	_, c := newTestController(t)

	turn, err := c.Send(context.Background(), "  how many users?  ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if turn.User.Content != "how many users?" {
		t.Errorf("user content = %q, want trimmed input", turn.User.Content)
	}

	conv := c.Active()
	if conv == nil {
		t.Fatal("no active conversation after send")
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("transcript has %d messages, want 2", len(conv.Messages))
	}
	if conv.Messages[0].Type != session.MessageUser {
		t.Errorf("first message type = %v", conv.Messages[0].Type)
	}
	if conv.Messages[1].Type != session.MessageAssistant {
		t.Errorf("terminal message type = %v", conv.Messages[1].Type)
	}

	status, ok := turn.Result.Payload.(transcript.StatusResult)
	if !ok {
		t.Fatalf("Result.Payload = %T", turn.Result.Payload)
	}
	if status.Summary() != "OK (1 row)" {
		t.Errorf("Summary = %q", status.Summary())
	}
}

func TestSendEmptyIsRejectedLocally(t *testing.T) {
	f, c := newTestController(t)

	if _, err := c.Send(context.Background(), "   "); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("err = %v, want ErrEmptyQuestion", err)
	}
	if c.Active() != nil {
		t.Error("empty send opened a conversation")
	}
	if f.chatCalls.Load() != 0 {
		t.Error("empty send reached the server")
	}
}

func TestSendWithoutConnectionShortCircuits(t *testing.T) {
	f, c := newTestController(t)
	c.SetConnected(false)

	turn, err := c.Send(context.Background(), "list tables")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if turn.Reply.Type != session.MessageError {
		t.Errorf("reply type = %v, want error message", turn.Reply.Type)
	}
	if f.chatCalls.Load() != 0 {
		t.Error("disconnected send contacted the chat endpoint")
	}
	// Still exactly one user + one terminal message.
	if n := len(c.Active().Messages); n != 2 {
		t.Errorf("transcript length = %d, want 2", n)
	}
}

func TestSendServerErrorAppendsErrorMessage(t *testing.T) {
	f, c := newTestController(t)
	f.chatStatus = http.StatusInternalServerError

	turn, err := c.Send(context.Background(), "boom")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if turn.Reply.Type != session.MessageError {
		t.Errorf("reply type = %v, want error", turn.Reply.Type)
	}
	if !c.Busy() {
		// busy must have settled back to idle
	} else {
		t.Error("controller stuck busy after failed turn")
	}
}

func TestSendWhileBusyIsRefused(t *testing.T) {
	f, c := newTestController(t)
	f.block = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Send(context.Background(), "slow question")
	}()

	// Wait for the first call to reach the server.
	for f.chatCalls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	if _, err := c.Send(context.Background(), "second question"); !errors.Is(err, ErrBusy) {
		t.Errorf("err = %v, want ErrBusy", err)
	}

	close(f.block)
	<-done
}

func TestStaleReplyIsDiscarded(t *testing.T) {
	f, c := newTestController(t)
	f.block = make(chan struct{})

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), "slow question")
		errCh <- err
	}()
	for f.chatCalls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	first := c.Active()

	// User navigates away while the reply is in flight.
	c.NewConversation()
	close(f.block)

	if err := <-errCh; !errors.Is(err, ErrStaleReply) {
		t.Errorf("err = %v, want ErrStaleReply", err)
	}
	// The reply must not have landed anywhere, but the abandoned turn still
	// gets closed out: one user message plus one terminal error message.
	if n := len(first.Messages); n != 2 {
		t.Fatalf("abandoned transcript = %d messages, want 2", n)
	}
	if first.Messages[0].Type != session.MessageUser {
		t.Errorf("first message type = %v", first.Messages[0].Type)
	}
	if first.Messages[1].Type != session.MessageError {
		t.Errorf("terminal message type = %v, want error", first.Messages[1].Type)
	}
	if c.Active() != nil && len(c.Active().Messages) != 0 {
		t.Error("stale reply applied to the new conversation")
	}
	if c.Busy() {
		t.Error("controller stuck busy after discarding a stale reply")
	}
}

func TestTranscriptIsASnapshot(t *testing.T) {
	f, c := newTestController(t)

	if _, err := c.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got := c.Transcript()
	if len(got) != 2 {
		t.Fatalf("Transcript = %d messages, want 2", len(got))
	}
	got[0].Content = "mutated"
	if c.Transcript()[0].Content != "hello" {
		t.Error("Transcript shares memory with the live conversation")
	}

	// Reading the transcript must be safe while a turn is appending to it.
	f.block = make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Send(context.Background(), "slow question")
	}()
	for i := 0; i < 200; i++ {
		if n := len(c.Transcript()); n < 2 {
			t.Fatalf("transcript shrank to %d messages mid-turn", n)
		}
	}
	close(f.block)
	<-done
	if n := len(c.Transcript()); n != 4 {
		t.Errorf("transcript = %d messages after two turns, want 4", n)
	}
}

func TestSendWhileConfirmInFlightIsRefused(t *testing.T) {
	f, c := newTestController(t)
	f.respond = func(q string) string {
		return "SQL: `DROP TABLE users`\nOutput: " +
			`{"type":"confirmation_required","sql":"DROP TABLE users",` +
			`"table":{"columns":["Action"],"data":[["DROP"]]},"warnings":[]}`
	}
	if _, err := c.Send(context.Background(), "drop the users table"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if c.Pending() == nil {
		t.Fatal("no pending confirmation")
	}

	f.blockConfirm = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := c.Confirm(context.Background(), true)
		done <- err
	}()
	for f.confirmCalls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	// The confirmation round trip occupies the turn slot.
	if _, err := c.Send(context.Background(), "another question"); !errors.Is(err, ErrBusy) {
		t.Errorf("send during confirm: err = %v, want ErrBusy", err)
	}

	close(f.blockConfirm)
	if err := <-done; err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if c.Busy() {
		t.Error("controller stuck busy after confirm")
	}
	if _, err := c.Send(context.Background(), "another question"); err != nil {
		t.Errorf("send after confirm: %v", err)
	}
}

func TestHistoryExcludesErrorMessagesAndUsesTwoRoles(t *testing.T) {
	f, c := newTestController(t)

	// Build history: a failed turn, then a good one.
	f.chatStatus = http.StatusInternalServerError
	if _, err := c.Send(context.Background(), "first"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	f.chatStatus = 0
	if _, err := c.Send(context.Background(), "second"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	f.mu.Lock()
	history := f.lastHistory
	f.mu.Unlock()
	// The second request's context: the first user message only; its error
	// reply is a local artifact.
	if len(history) != 1 {
		t.Fatalf("history = %+v, want 1 entry", history)
	}
	if history[0].Role != api.RoleHuman || history[0].Content != "first" {
		t.Errorf("history[0] = %+v", history[0])
	}
}

func TestSuccessfulTurnSavesSession(t *testing.T) {
	_, c := newTestController(t)

	turn, err := c.Send(context.Background(), "save me")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if turn.SaveErr != nil {
		t.Fatalf("SaveErr = %v", turn.SaveErr)
	}

	conv := c.Active()
	if !conv.Remote {
		t.Error("first turn did not create the session remotely")
	}
	if conv.ID <= 500 {
		t.Errorf("ID = %d, want server-assigned", conv.ID)
	}
	if conv.Title != "save me" {
		t.Errorf("Title = %q, want derived from first question", conv.Title)
	}
}

func TestEditRewritesHistoryAndGetsFreshReply(t *testing.T) {
	f, c := newTestController(t)

	if _, err := c.Send(context.Background(), "question one"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := c.Send(context.Background(), "question two"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	conv := c.Active()
	if len(conv.Messages) != 4 {
		t.Fatalf("transcript = %d messages", len(conv.Messages))
	}
	firstUser := conv.Messages[0]
	lastUser, _ := conv.LastUserMessage()

	// Editing anything but the most recent user message is refused.
	if _, err := c.Edit(context.Background(), firstUser.ID, "rewrite"); !errors.Is(err, ErrNotEditable) {
		t.Errorf("edit of older message: err = %v, want ErrNotEditable", err)
	}

	f.respond = func(q string) string {
		return "SQL: `SELECT 2`\nOutput: {\"type\":\"status\",\"message\":\"fresh\",\"affected_rows\":0}"
	}
	turn, err := c.Edit(context.Background(), lastUser.ID, "question two revised")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}

	// Transcript = [q1, a1, q2', a2'] and the reply is brand new.
	if len(conv.Messages) != 4 {
		t.Fatalf("transcript after edit = %d messages", len(conv.Messages))
	}
	if conv.Messages[2].Content != "question two revised" {
		t.Errorf("edited message = %q", conv.Messages[2].Content)
	}
	if conv.Messages[2].ID == lastUser.ID {
		t.Error("edit reused the old message instead of replacing it")
	}
	status := turn.Result.Payload.(transcript.StatusResult)
	if status.Message != "fresh" {
		t.Errorf("reply = %q, want a brand-new answer", status.Message)
	}
}

func TestConfirmationFlow(t *testing.T) {
	f, c := newTestController(t)
	f.respond = func(q string) string {
		return "SQL: `DELETE FROM users`\nOutput: " +
			`{"type":"confirmation_required","sql":"DELETE FROM users",` +
			`"table":{"columns":["Action","Table","Condition","Impact"],"data":[["DELETE","USERS","-","Removes/modifies record(s) permanently"]]},` +
			`"warnings":["DELETE"]}`
	}

	if _, err := c.Send(context.Background(), "delete all users"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	pending := c.Pending()
	if pending == nil || pending.SQL != "DELETE FROM users" {
		t.Fatalf("Pending = %+v", pending)
	}

	turn, err := c.Confirm(context.Background(), true)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if turn.Reply.Type != session.MessageAssistant {
		t.Errorf("confirm reply type = %v", turn.Reply.Type)
	}
	if c.Pending() != nil {
		t.Error("pending confirmation not cleared")
	}

	if _, err := c.Confirm(context.Background(), true); !errors.Is(err, ErrNoConfirmation) {
		t.Errorf("second confirm: err = %v, want ErrNoConfirmation", err)
	}
}

func TestClearActiveIf(t *testing.T) {
	_, c := newTestController(t)
	if _, err := c.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	id := c.Active().ID

	if !c.ClearActiveIf(id) {
		t.Error("ClearActiveIf returned false for the active id")
	}
	if c.Active() != nil {
		t.Error("active pointer survived ClearActiveIf")
	}
	if c.ClearActiveIf(id) {
		t.Error("ClearActiveIf matched after the pointer was cleared")
	}
}
