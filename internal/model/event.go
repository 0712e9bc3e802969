// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "encoding/json"

// =============================================================================
// STREAM EVENTS
// =============================================================================

// Event is a single update decoded from the chat stream and applied to the
// store in arrival order.
type Event interface {
	// Target returns the id of the message the event applies to.
	Target() string
}

// TextDelta appends Chunk to the message content.
type TextDelta struct {
	MessageID string
	Chunk     string
}

// ToolCallStarted records that the backend began a tool call.
type ToolCallStarted struct {
	MessageID string
	ToolID    string
	Name      string
	Args      json.RawMessage
}

// ToolCallResult carries the result of a previously started tool call.
type ToolCallResult struct {
	MessageID string
	ToolID    string
	Result    json.RawMessage
}

// AttachmentsAttached sets a message's attachments.
type AttachmentsAttached struct {
	MessageID   string
	Attachments []Attachment
}

func (e TextDelta) Target() string           { return e.MessageID }
func (e ToolCallStarted) Target() string     { return e.MessageID }
func (e ToolCallResult) Target() string      { return e.MessageID }
func (e AttachmentsAttached) Target() string { return e.MessageID }
