// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the full-screen chat view of the atlas TUI.

# Key Components

## Model (model.go)

The Model is the Bubble Tea model. It owns the input, the ChatViewport and
the scroll.Controller, and reads conversation state from a store.Store.

## Update Loop (update.go)

Stream events arrive one per message and are applied to the store in
order. Store changes mark the view dirty and notify the scroll controller,
which measures before the view re-renders. On each frame tick a dirty view
is re-rendered and the pending follow, if any, runs.

## Streaming and Uploads (stream.go)

A submission first uploads pending attachments (concurrently, with the
fingerprint cache) and only then appends the user message and starts the
stream. Esc cancels the stream and stops the in-flight message.

## Commands (commands.go)

Slash commands: /attach, /detach, /clear, /cache, /help.
*/
package chat
