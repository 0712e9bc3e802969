// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/atlas-tui/internal/model"
	"github.com/jeranaias/atlas-tui/internal/ui/components"
)

// View renders the chat screen.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Starting atlas..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderFooter(),
	)
}

func (m *Model) renderHeader() string {
	status := "ready"
	switch {
	case m.uploading:
		status = "uploading"
	case m.store.IsGenerating():
		status = "responding"
	}
	left := m.theme.Header.Render("Atlas")
	right := m.theme.Help.Render(status)
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right
}

func (m *Model) renderFooter() string {
	var parts []string
	if toasts := m.toasts.Toasts(); len(toasts) > 0 {
		parts = append(parts, components.RenderToasts(m.theme, toasts, m.width))
	}
	if len(m.pending) > 0 {
		atts := make([]model.Attachment, len(m.pending))
		for i, f := range m.pending {
			atts[i] = model.Attachment{Name: f.Name, ContentType: f.Type}
		}
		parts = append(parts, components.RenderAttachmentChips(m.theme, atts, m.width))
	}
	parts = append(parts, m.theme.Input.Render(m.input.View()))
	parts = append(parts, m.renderHelp())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) renderHelp() string {
	bindings := m.keys.ShortHelp()
	items := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		items = append(items, h.Key+" "+h.Desc)
	}
	return m.theme.Help.MaxWidth(m.width).Render(strings.Join(items, " | "))
}
