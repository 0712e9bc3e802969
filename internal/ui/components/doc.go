// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the rendering pieces of the atlas chat TUI.

# Core Components

MessageRenderer (message.go) turns message snapshots into terminal text:
raw model output goes through content.Normalize and content.Extract, prose
segments are rendered with glamour (markdown.go) and code segments with
chroma (codeblock.go). Tool invocations show a spinner while calling and
pretty-printed JSON once resolved. Final messages are cached per width.

ChatViewport (viewport.go) wraps the bubbles viewport. It implements
scroll.Container and scroll.Sentinel so a scroll.Controller decides when
new content is followed.

ToastManager (toast.go) holds transient notifications. notices.go adds the
thinking line, the coding agent banner and the suggested prompts.

# Usage

	theme := styles.NewTheme("auto", "monokai")
	r := components.NewMessageRenderer(theme, 80)
	vp := components.NewChatViewport(theme)
	vp.SetSize(80, 24)
	vp.SetContent(r.Transcript(store.Messages(), store.IsGenerating(), ""))
*/
package components
