// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package scroll decides when the message view should follow new content.
//
// The controller is stateless beyond its collaborators: on every content
// change it measures how far the view is from the bottom and, when the user
// is already near the bottom, schedules a scroll to the end sentinel on the
// next frame. A user scrolled further back is left alone. A newly appended
// user message always scrolls.
//
// Measurements are in whatever unit the container reports; the terminal
// viewport reports lines.
package scroll
