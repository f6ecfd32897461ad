// Package chat drives one conversation at a time: it owns the turn state
// machine, the optimistic transcript updates and the save-after-turn logic.
//
// Within a conversation turns are strictly sequential. While a reply is in
// flight the controller refuses further submissions; the UI mirrors this by
// disabling input. Replies are tagged with a request token so that an answer
// arriving after the user has switched conversations is discarded instead of
// being applied to the wrong transcript.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"

	"github.com/querygenie/querygenie/internal/api"
	"github.com/querygenie/querygenie/internal/logger"
	"github.com/querygenie/querygenie/internal/session"
	"github.com/querygenie/querygenie/internal/transcript"
)

// Turn states.
var (
	stateIdle     stateless.State = "Idle"
	stateAwaiting stateless.State = "AwaitingReply"
)

// Turn triggers.
var (
	triggerSend stateless.Trigger = "Send"
	triggerDone stateless.Trigger = "Done"
)

var (
	// ErrBusy means a prior send is still awaiting its reply.
	ErrBusy = errors.New("a reply is still pending")
	// ErrEmptyQuestion rejects blank input before any network call.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrStaleReply marks a reply that arrived for a conversation the user
	// has already left; the result was discarded.
	ErrStaleReply = errors.New("reply discarded: conversation no longer active")
	// ErrNotEditable means the message is not the most recent user message.
	ErrNotEditable = errors.New("only the most recent question can be edited")
	// ErrNoConfirmation means there is no destructive statement pending.
	ErrNoConfirmation = errors.New("nothing awaiting confirmation")
)

const notConnectedMsg = "Not connected to a database. Open the connection form and connect first."

const staleReplyMsg = "This conversation was left before the reply arrived, so the reply was discarded."

// Turn is the outcome of one send or edit: the optimistic user message plus
// exactly one terminal message (assistant or error). SaveErr reports a
// session-persistence failure; it never rolls the transcript back.
type Turn struct {
	User    session.Message
	Reply   session.Message
	Result  transcript.Result
	SaveErr error
}

// Controller owns the active conversation for one authenticated user.
type Controller struct {
	client *api.Client
	store  *session.Store

	mu        sync.Mutex
	fsm       *stateless.StateMachine
	active    *session.Session
	connected bool
	token     string
	pending   *transcript.ConfirmationResult
}

// NewController wires a controller to the API client and session store.
func NewController(client *api.Client, store *session.Store) *Controller {
	fsm := stateless.NewStateMachine(stateIdle)
	fsm.Configure(stateIdle).Permit(triggerSend, stateAwaiting)
	fsm.Configure(stateAwaiting).Permit(triggerDone, stateIdle)

	return &Controller{
		client: client,
		store:  store,
		fsm:    fsm,
	}
}

// SetConnected records whether the server currently holds a database
// connection. When false, Send short-circuits locally.
func (c *Controller) SetConnected(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = v
}

// Connected reports the last known database connection state.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Busy reports whether a turn is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fsm.MustState() == stateAwaiting
}

// Active returns the current conversation, or nil when none is open.
func (c *Controller) Active() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Transcript returns a copy of the active conversation's messages, or nil
// when none is open. Renderers must use this instead of reaching into the
// live session: turns append from command goroutines while the UI draws.
func (c *Controller) Transcript() []session.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil
	}
	out := make([]session.Message, len(c.active.Messages))
	copy(out, c.active.Messages)
	return out
}

// Pending returns the confirmation the user still has to answer, if any.
func (c *Controller) Pending() *transcript.ConfirmationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// SwitchTo makes the session with the given id the active conversation.
// Any in-flight reply for the previous conversation becomes stale.
func (c *Controller) SwitchTo(id int64) (*session.Session, error) {
	s := c.store.Get(id)
	if s == nil {
		return nil, fmt.Errorf("session %d: %w", id, api.ErrNotFound)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = s
	c.token = ""
	c.pending = nil
	return s, nil
}

// NewConversation clears the active pointer; the next Send opens a fresh
// session.
func (c *Controller) NewConversation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = nil
	c.token = ""
	c.pending = nil
}

// ClearActiveIf drops the active pointer when it references id. Used after
// deleting the active session.
func (c *Controller) ClearActiveIf(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil && c.active.ID == id {
		c.active = nil
		c.token = ""
		c.pending = nil
		return true
	}
	return false
}

// Send submits one question. It appends the user message optimistically,
// calls the chat endpoint with the prior transcript as context and appends
// exactly one terminal message. The session is saved after a successful
// reply (create on the first turn, update after).
func (c *Controller) Send(ctx context.Context, text string) (*Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuestion
	}

	c.mu.Lock()
	if ok, _ := c.fsm.CanFire(triggerSend); !ok {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	_ = c.fsm.Fire(triggerSend)

	if c.active == nil {
		c.active = session.New(c.store.UserID())
		c.active.Title = session.DeriveTitle(text)
		c.store.Add(c.active)
	}
	conv := c.active
	userMsg := session.NewMessage(session.MessageUser, text)
	conv.Append(userMsg)

	history := historyFor(conv.Messages[:len(conv.Messages)-1])
	connected := c.connected
	token := uuid.NewString()
	c.token = token
	c.mu.Unlock()

	turn := &Turn{User: userMsg}

	if !connected {
		// Local precondition check: no server round trip at all.
		reply := session.NewMessage(session.MessageError, notConnectedMsg)
		c.finishTurn(conv, token, reply, turn)
		return turn, nil
	}

	raw, err := c.client.Chat(ctx, text, history)

	c.mu.Lock()
	stale := c.active != conv || c.token != token
	c.mu.Unlock()
	if stale {
		// Close out the abandoned turn so the orphaned user message still
		// gets its terminal message.
		c.mu.Lock()
		conv.Append(session.NewMessage(session.MessageError, staleReplyMsg))
		c.mu.Unlock()
		c.settle()
		logger.L.Debug("discarding stale reply", "session", conv.ID)
		return nil, ErrStaleReply
	}

	if err != nil {
		reply := session.NewMessage(session.MessageError, chatErrorText(err))
		c.finishTurn(conv, token, reply, turn)
		return turn, nil
	}

	reply := session.NewMessage(session.MessageAssistant, raw)
	turn.Result = transcript.Parse(raw)
	c.finishTurn(conv, token, reply, turn)

	if conf, ok := turn.Result.Payload.(transcript.ConfirmationResult); ok {
		c.mu.Lock()
		c.pending = &conf
		c.mu.Unlock()
	}

	turn.SaveErr = c.store.Save(ctx, conv)
	if turn.SaveErr != nil {
		logger.L.Warn("session save failed", "session", conv.ID, "error", turn.SaveErr)
	}
	return turn, nil
}

// Edit rewrites history from the most recent user message: the transcript is
// truncated to just before it and the new content is replayed as a fresh
// send, producing a brand-new reply. There is no undo.
func (c *Controller) Edit(ctx context.Context, messageID int64, newContent string) (*Turn, error) {
	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		return nil, ErrEmptyQuestion
	}

	c.mu.Lock()
	if ok, _ := c.fsm.CanFire(triggerSend); !ok {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if c.active == nil {
		c.mu.Unlock()
		return nil, ErrNotEditable
	}
	last, ok := c.active.LastUserMessage()
	if !ok || last.ID != messageID {
		c.mu.Unlock()
		return nil, ErrNotEditable
	}
	c.active.TruncateBefore(messageID)
	c.mu.Unlock()

	return c.Send(ctx, newContent)
}

// Confirm answers a pending confirmation_required payload. Approve executes
// the held statement server-side; decline cancels it. Either way the outcome
// lands in the transcript and the session is saved. The round trip occupies
// the same turn slot as Send, so a send during it is refused with ErrBusy.
func (c *Controller) Confirm(ctx context.Context, approve bool) (*Turn, error) {
	c.mu.Lock()
	if c.pending == nil || c.active == nil {
		c.mu.Unlock()
		return nil, ErrNoConfirmation
	}
	if ok, _ := c.fsm.CanFire(triggerSend); !ok {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	_ = c.fsm.Fire(triggerSend)
	pending := *c.pending
	c.pending = nil
	conv := c.active
	c.mu.Unlock()

	outcome, err := c.client.ConfirmSQL(ctx, c.store.UserID(), pending.SQL, approve)

	turn := &Turn{}
	var reply session.Message
	if err != nil {
		reply = session.NewMessage(session.MessageError, chatErrorText(err))
	} else if outcome.Type == "error" {
		reply = session.NewMessage(session.MessageError, outcome.Message)
	} else {
		reply = session.NewMessage(session.MessageAssistant, outcome.Message)
		turn.Result = transcript.Result{
			Payload: transcript.StatusResult{Message: outcome.Message},
			Raw:     outcome.Message,
		}
	}

	c.mu.Lock()
	conv.Append(reply)
	c.mu.Unlock()
	turn.Reply = reply
	c.settle()

	if err == nil {
		turn.SaveErr = c.store.Save(ctx, conv)
	}
	return turn, nil
}

// finishTurn appends the terminal message and returns the FSM to idle.
func (c *Controller) finishTurn(conv *session.Session, token string, reply session.Message, turn *Turn) {
	c.mu.Lock()
	conv.Append(reply)
	if c.token == token {
		c.token = ""
	}
	c.mu.Unlock()
	turn.Reply = reply
	c.settle()
}

func (c *Controller) settle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok, _ := c.fsm.CanFire(triggerDone); ok {
		_ = c.fsm.Fire(triggerDone)
	}
}

// historyFor maps the transcript to the server's two-role history format.
// Error messages are local display artifacts and stay out of the context.
func historyFor(messages []session.Message) []api.HistoryEntry {
	history := make([]api.HistoryEntry, 0, len(messages))
	for _, m := range messages {
		switch m.Type {
		case session.MessageUser:
			history = append(history, api.HistoryEntry{Role: api.RoleHuman, Content: m.Content})
		case session.MessageAssistant:
			history = append(history, api.HistoryEntry{Role: api.RoleAI, Content: m.Content})
		}
	}
	return history
}

func chatErrorText(err error) string {
	if api.IsUnreachable(err) {
		return "Could not reach the Query Genie server. Check that the backend is running."
	}
	var se *api.ServerError
	if errors.As(err, &se) {
		return se.Message
	}
	var ste *api.StatusError
	if errors.As(err, &ste) && ste.Detail != "" {
		return ste.Detail
	}
	return err.Error()
}
