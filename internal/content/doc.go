// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package content turns raw streamed assistant text into render-ready
// segments.
//
// Rendering is two pure steps run on every frame:
//
//   - Normalize repairs the text (escaped newlines, color codes, glued
//     headings, broken tables, TeX delimiters) through the ordered Stages
//     pipeline. It is idempotent and never touches fenced code.
//   - Extract splits normalized text into prose and code segments. A fence
//     that has not been closed yet stays prose, so partial streams are safe.
//
// # Usage
//
//	for _, seg := range content.Extract(content.Normalize(msg.Content())) {
//		if seg.IsCode() {
//			renderCode(seg.Language, seg.Source, seg.DisplayOutput())
//			continue
//		}
//		renderMarkdown(seg.Text)
//	}
package content
