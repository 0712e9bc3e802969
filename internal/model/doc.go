// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types shared by the stream client, the
// message store and the renderer.
//
// # Key Types
//
//   - Message: role, append-only content, attachments and tool invocations
//   - Attachment: an uploaded file (name, content type, URL)
//   - ToolInvocation: a backend tool call moving calling -> result once
//   - Event: TextDelta, ToolCallStarted, ToolCallResult, AttachmentsAttached
//
// # Usage
//
//	msg := model.NewAssistantMessage("")
//	_ = msg.AppendContent("Hello")
//	msg.StartTool("t1", "coding_agent", nil)
//	msg.ResolveTool("t1", json.RawMessage(`{"ok":true}`))
//	msg.Finalize()
package model
