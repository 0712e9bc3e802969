// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/jeranaias/atlas-tui/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrUnknownMessage is returned for events targeting no known message.
	ErrUnknownMessage = errors.New("event targets unknown message")

	// ErrResponseEnded is returned for events arriving after the response
	// was finished, stopped or failed.
	ErrResponseEnded = errors.New("response already ended")

	// ErrDuplicateTool is returned when a tool call id starts twice.
	ErrDuplicateTool = errors.New("duplicate tool call start")

	// ErrOrphanResult is returned for a result with no calling invocation.
	ErrOrphanResult = errors.New("tool result without matching call")
)

// =============================================================================
// STORE
// =============================================================================

// Store owns the ordered message sequence. It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	messages []*model.Message
	byID     map[string]*model.Message

	// inflight is the id reserved by BeginResponse; the assistant message is
	// created on its first event.
	inflight string
	pending  bool
	ended    map[string]bool

	listeners    map[int]func(Change)
	nextListener int

	logger *slog.Logger
}

// New returns an empty store. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		byID:      make(map[string]*model.Message),
		ended:     make(map[string]bool),
		listeners: make(map[int]func(Change)),
		logger:    logger,
	}
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// =============================================================================
// APPENDING MESSAGES
// =============================================================================

// AppendUser appends a final user message and returns its id.
func (s *Store) AppendUser(content string, attachments []model.Attachment) string {
	return s.appendFinal(model.NewUserMessage(content, attachments))
}

// AppendSystem appends a final system notice and returns its id. System
// messages are shown but never sent to the backend.
func (s *Store) AppendSystem(content string) string {
	return s.appendFinal(model.NewSystemMessage(content))
}

func (s *Store) appendFinal(msg *model.Message) string {
	s.mu.Lock()
	s.appendLocked(msg)
	s.mu.Unlock()

	s.notify(Change{Kind: MessageAppended, MessageID: msg.ID, Role: msg.Role})
	return msg.ID
}

func (s *Store) appendLocked(msg *model.Message) {
	s.messages = append(s.messages, msg)
	s.byID[msg.ID] = msg
}

// BeginResponse reserves the id of the next assistant message and marks a
// response as pending. A response already pending is returned unchanged.
func (s *Store) BeginResponse() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending {
		return s.inflight
	}
	s.inflight = model.NewID()
	s.pending = true
	return s.inflight
}

// =============================================================================
// EVENT APPLICATION
// =============================================================================

// Apply applies one streamed event. Rejected events are logged and
// returned as errors; callers may ignore them.
func (s *Store) Apply(ev model.Event) error {
	var changes []Change
	err := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		id := ev.Target()
		if s.ended[id] {
			s.logger.Debug("event after response ended", "message_id", id)
			return ErrResponseEnded
		}

		msg := s.byID[id]
		if msg == nil {
			if !s.pending || id != s.inflight {
				s.logger.Warn("event for unknown message", "message_id", id)
				return ErrUnknownMessage
			}
			msg = model.NewAssistantMessage(id)
			s.appendLocked(msg)
			changes = append(changes, Change{Kind: MessageAppended, MessageID: id, Role: msg.Role})
		}

		change, err := s.applyLocked(msg, ev)
		if err != nil {
			return err
		}
		changes = append(changes, change)
		return nil
	}()

	for _, c := range changes {
		s.notify(c)
	}
	return err
}

func (s *Store) applyLocked(msg *model.Message, ev model.Event) (Change, error) {
	change := Change{MessageID: msg.ID, Role: msg.Role}

	switch e := ev.(type) {
	case model.TextDelta:
		if err := msg.AppendContent(e.Chunk); err != nil {
			s.logger.Debug("delta for final message", "message_id", msg.ID)
			return change, ErrResponseEnded
		}
		change.Kind = ContentAppended

	case model.ToolCallStarted:
		if !msg.StartTool(e.ToolID, e.Name, e.Args) {
			s.logger.Warn("duplicate tool start ignored", "message_id", msg.ID, "tool_id", e.ToolID)
			return change, ErrDuplicateTool
		}
		change.Kind = ToolUpdated

	case model.ToolCallResult:
		if !msg.ResolveTool(e.ToolID, e.Result) {
			s.logger.Warn("orphan tool result ignored", "message_id", msg.ID, "tool_id", e.ToolID)
			return change, ErrOrphanResult
		}
		change.Kind = ToolUpdated

	case model.AttachmentsAttached:
		if err := msg.SetAttachments(e.Attachments); err != nil {
			s.logger.Warn("attachments already set", "message_id", msg.ID)
			return change, err
		}
		change.Kind = AttachmentsSet

	default:
		s.logger.Warn("unsupported event ignored", "message_id", msg.ID)
		return change, ErrUnknownMessage
	}
	return change, nil
}

// =============================================================================
// ENDING A RESPONSE
// =============================================================================

// Finish ends the pending response normally.
func (s *Store) Finish() bool {
	return s.end(EndFinished, nil)
}

// Stop halts event application to the in-flight message. Content already
// applied is kept and becomes final.
func (s *Store) Stop() bool {
	return s.end(EndStopped, nil)
}

// Fail ends the pending response with err.
func (s *Store) Fail(err error) bool {
	return s.end(EndFailed, err)
}

func (s *Store) end(reason EndReason, err error) bool {
	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		return false
	}
	id := s.inflight
	if msg := s.byID[id]; msg != nil {
		msg.Finalize()
	}
	s.ended[id] = true
	s.pending = false
	s.inflight = ""
	s.mu.Unlock()

	s.logger.Debug("response ended", "message_id", id, "reason", string(reason))
	s.notify(Change{Kind: ResponseEnded, MessageID: id, Role: model.RoleAssistant, Reason: reason, Err: err})
	return true
}

// Reset clears the conversation. A pending response is stopped first;
// events for its id are then rejected as unknown.
func (s *Store) Reset() {
	s.Stop()

	s.mu.Lock()
	s.messages = nil
	s.byID = make(map[string]*model.Message)
	s.ended = make(map[string]bool)
	s.mu.Unlock()

	s.notify(Change{Kind: Cleared})
}

// =============================================================================
// QUERIES
// =============================================================================

// IsGenerating reports whether a response is pending and either the last
// message is from the user or the in-flight assistant message is still
// receiving deltas.
func (s *Store) IsGenerating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		return false
	}
	if n := len(s.messages); n > 0 && s.messages[n-1].Role == model.RoleUser {
		return true
	}
	msg := s.byID[s.inflight]
	return msg != nil && msg.IsStreaming()
}

// InFlightID returns the id reserved for the pending response, if any.
func (s *Store) InFlightID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight, s.pending
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Get returns a snapshot of the message with id.
func (s *Store) Get(id string) (model.MessageView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.byID[id]
	if !ok {
		return model.MessageView{}, false
	}
	return msg.View(), true
}

// Messages returns snapshots of every message in order.
func (s *Store) Messages() []model.MessageView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.MessageView, len(s.messages))
	for i, msg := range s.messages {
		out[i] = msg.View()
	}
	return out
}

// History returns the conversation as sent to the backend: user and
// assistant messages only, skipping empty assistant turns.
func (s *Store) History() []model.MessageView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.MessageView, 0, len(s.messages))
	for _, msg := range s.messages {
		switch msg.Role {
		case model.RoleUser:
			out = append(out, msg.View())
		case model.RoleAssistant:
			if !msg.IsEmpty() {
				out = append(out, msg.View())
			}
		}
	}
	return out
}

func (s *Store) notify(c Change) {
	s.mu.Lock()
	fns := make([]func(Change), 0, len(s.listeners))
	for i := 0; i < s.nextListener; i++ {
		if fn, ok := s.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
