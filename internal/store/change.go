// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import "github.com/jeranaias/atlas-tui/internal/model"

// ChangeKind identifies what a Change did.
type ChangeKind int

const (
	MessageAppended ChangeKind = iota
	ContentAppended
	ToolUpdated
	AttachmentsSet
	ResponseEnded
	Cleared
)

func (k ChangeKind) String() string {
	switch k {
	case MessageAppended:
		return "message_appended"
	case ContentAppended:
		return "content_appended"
	case ToolUpdated:
		return "tool_updated"
	case AttachmentsSet:
		return "attachments_set"
	case ResponseEnded:
		return "response_ended"
	case Cleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// EndReason says why a response ended.
type EndReason string

const (
	EndFinished EndReason = "finished"
	EndStopped  EndReason = "stopped"
	EndFailed   EndReason = "failed"
)

// Change is delivered to subscribers after every store mutation.
type Change struct {
	Kind      ChangeKind
	MessageID string
	Role      model.Role

	// Set on ResponseEnded.
	Reason EndReason
	Err    error
}

// UserAuthored reports whether the change appended a user message.
func (c Change) UserAuthored() bool {
	return c.Kind == MessageAppended && c.Role == model.RoleUser
}
