// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Markdown renders prose segments with glamour. The renderer is rebuilt
// lazily when the width changes.
type Markdown struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
	broken   bool
}

// NewMarkdown returns a renderer for a glamour standard style.
func NewMarkdown(style string, width int) *Markdown {
	return &Markdown{style: style, width: width}
}

// SetWidth changes the wrap width.
func (m *Markdown) SetWidth(width int) {
	if width == m.width {
		return
	}
	m.width = width
	m.renderer = nil
	m.broken = false
}

// Width returns the wrap width.
func (m *Markdown) Width() int {
	return m.width
}

// Render renders text. If glamour cannot build a renderer or fails on the
// input, the text is returned as-is.
func (m *Markdown) Render(text string) string {
	r := m.ensure()
	if r == nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

func (m *Markdown) ensure() *glamour.TermRenderer {
	if m.renderer != nil || m.broken {
		return m.renderer
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithWordWrap(max(m.width, minCodeWidth)),
	)
	if err != nil {
		m.broken = true
		return nil
	}
	m.renderer = r
	return r
}
