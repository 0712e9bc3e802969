// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the ordered conversation and applies streamed events
// to it.
//
// Events are applied strictly in arrival order. Text deltas only ever grow a
// message; tool invocations move from calling to result exactly once.
// Protocol desync (duplicate tool starts, orphan results, events for unknown
// or ended messages) is logged and ignored, never fatal.
//
// # Lifecycle
//
//	id := s.AppendUser("plot sales", attachments)
//	respID := s.BeginResponse()
//	s.Apply(model.TextDelta{MessageID: respID, Chunk: "Sure"})
//	s.Finish()               // or s.Stop(), s.Fail(err)
//
// Listeners registered with Subscribe are called synchronously after each
// change, outside the store lock.
package store
