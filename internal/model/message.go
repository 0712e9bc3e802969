// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Atlas"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrMessageFinal is returned when content is appended to a message whose
	// stream has ended.
	ErrMessageFinal = errors.New("message is final")

	// ErrAttachmentsSet is returned when attachments are set a second time.
	ErrAttachmentsSet = errors.New("attachments already set")
)

// =============================================================================
// ATTACHMENT TYPE
// =============================================================================

// Attachment is an uploaded file referenced by a message.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	URL         string `json:"url"`
}

// =============================================================================
// TOOL INVOCATION TYPE
// =============================================================================

// ToolState is the lifecycle state of a tool invocation.
type ToolState string

const (
	ToolCalling ToolState = "calling"
	ToolResult  ToolState = "result"
)

// ToolInvocation tracks one backend tool call. It moves from calling to
// result exactly once.
type ToolInvocation struct {
	ToolID string          `json:"toolCallId"`
	Name   string          `json:"toolName"`
	State  ToolState       `json:"state"`
	Args   json.RawMessage `json:"args,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Done reports whether the invocation reached its terminal state.
func (t ToolInvocation) Done() bool {
	return t.State == ToolResult
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// Content is an append-only accumulator while the message is streaming and
// immutable afterwards. Message is not safe for concurrent use; the store
// serializes access.
type Message struct {
	ID        string
	Role      Role
	CreatedAt time.Time

	// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
	content   strings.Builder
	streaming bool

	attachments    []Attachment
	attachmentsSet bool

	tools []*ToolInvocation
}

// NewID returns a fresh message identifier.
func NewID() string {
	return "msg_" + uuid.NewString()
}

// NewUserMessage creates a final user message with its attachments.
func NewUserMessage(content string, attachments []Attachment) *Message {
	msg := &Message{
		ID:        NewID(),
		Role:      RoleUser,
		CreatedAt: time.Now(),
	}
	msg.content.WriteString(content)
	if attachments != nil {
		_ = msg.SetAttachments(attachments)
	}
	return msg
}

// NewAssistantMessage creates a streaming assistant message with the given id.
func NewAssistantMessage(id string) *Message {
	if id == "" {
		id = NewID()
	}
	return &Message{
		ID:        id,
		Role:      RoleAssistant,
		CreatedAt: time.Now(),
		streaming: true,
	}
}

// NewSystemMessage creates a final system message.
func NewSystemMessage(content string) *Message {
	msg := &Message{
		ID:        NewID(),
		Role:      RoleSystem,
		CreatedAt: time.Now(),
	}
	msg.content.WriteString(content)
	return msg
}

// =============================================================================
// CONTENT
// =============================================================================

// Content returns the accumulated text.
func (m *Message) Content() string {
	return m.content.String()
}

// Len returns the content length in bytes.
func (m *Message) Len() int {
	return m.content.Len()
}

// IsStreaming reports whether the message still accepts deltas.
func (m *Message) IsStreaming() bool {
	return m.streaming
}

// AppendContent appends a streamed chunk.
func (m *Message) AppendContent(chunk string) error {
	if !m.streaming {
		return ErrMessageFinal
	}
	m.content.WriteString(chunk)
	return nil
}

// Finalize ends streaming. Content is kept as-is.
func (m *Message) Finalize() {
	m.streaming = false
}

// IsEmpty returns true if the message has no content, attachments or tools.
func (m *Message) IsEmpty() bool {
	return m.content.Len() == 0 && len(m.attachments) == 0 && len(m.tools) == 0
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

// Attachments returns a copy of the message attachments.
func (m *Message) Attachments() []Attachment {
	if len(m.attachments) == 0 {
		return nil
	}
	out := make([]Attachment, len(m.attachments))
	copy(out, m.attachments)
	return out
}

// SetAttachments records the attachments. It succeeds only once.
func (m *Message) SetAttachments(attachments []Attachment) error {
	if m.attachmentsSet {
		return ErrAttachmentsSet
	}
	m.attachments = append([]Attachment(nil), attachments...)
	m.attachmentsSet = true
	return nil
}

// =============================================================================
// TOOL INVOCATIONS
// =============================================================================

// ToolInvocations returns a snapshot of the message's tool invocations.
func (m *Message) ToolInvocations() []ToolInvocation {
	if len(m.tools) == 0 {
		return nil
	}
	out := make([]ToolInvocation, len(m.tools))
	for i, t := range m.tools {
		out[i] = *t
	}
	return out
}

// StartTool appends a calling invocation. It returns false when an
// invocation with the same id already exists.
func (m *Message) StartTool(toolID, name string, args json.RawMessage) bool {
	if m.findTool(toolID) != nil {
		return false
	}
	m.tools = append(m.tools, &ToolInvocation{
		ToolID: toolID,
		Name:   name,
		State:  ToolCalling,
		Args:   args,
	})
	return true
}

// ResolveTool moves the matching calling invocation to its result. It
// returns false when no calling invocation has that id.
func (m *Message) ResolveTool(toolID string, result json.RawMessage) bool {
	t := m.findTool(toolID)
	if t == nil || t.State != ToolCalling {
		return false
	}
	t.State = ToolResult
	t.Result = result
	return true
}

// PendingTools returns the number of invocations still calling.
func (m *Message) PendingTools() int {
	n := 0
	for _, t := range m.tools {
		if t.State == ToolCalling {
			n++
		}
	}
	return n
}

func (m *Message) findTool(toolID string) *ToolInvocation {
	for _, t := range m.tools {
		if t.ToolID == toolID {
			return t
		}
	}
	return nil
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	content := m.Content()
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// MessageView is an immutable copy of a message for rendering and export.
type MessageView struct {
	ID              string
	Role            Role
	CreatedAt       time.Time
	Content         string
	Streaming       bool
	Attachments     []Attachment
	ToolInvocations []ToolInvocation
}

// View returns a snapshot of the message.
func (m *Message) View() MessageView {
	return MessageView{
		ID:              m.ID,
		Role:            m.Role,
		CreatedAt:       m.CreatedAt,
		Content:         m.Content(),
		Streaming:       m.streaming,
		Attachments:     m.Attachments(),
		ToolInvocations: m.ToolInvocations(),
	}
}
