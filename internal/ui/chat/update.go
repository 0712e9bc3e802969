// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/atlas-tui/internal/ui/components"
	"github.com/jeranaias/atlas-tui/internal/ui/styles"
)

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		m.viewport.Update(msg)
		return m, nil

	case frameTickMsg:
		m.frame()
		return m, frameTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.store.IsGenerating() {
			m.dirty = true
		}
		return m, cmd

	case streamEventMsg:
		// Rejected events are logged by the store.
		_ = m.store.Apply(msg.event)
		return m, waitForStream(msg.ch)

	case streamDoneMsg:
		m.handleStreamDone(msg)
		return m, nil

	case uploadDoneMsg:
		return m, m.handleUploadDone(msg)

	case ConfigReloadedMsg:
		m.applyConfig(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// frame re-renders a dirty view, then runs the follow scheduled for this
// frame so it sees the new content height.
func (m *Model) frame() {
	m.toasts.Tick()
	if !m.ready {
		return
	}
	// Toasts and the attachment tray change the chrome height.
	m.layout()
	if m.dirty {
		m.viewport.SetContent(m.transcript())
		m.dirty = false
	}
	m.frames.Flush()
}

func (m *Model) transcript() string {
	views := m.store.Messages()
	if len(views) == 0 {
		return components.RenderSuggestions(m.theme, m.contentWidth(), m.suggestion)
	}
	return m.renderer.Transcript(views, m.store.IsGenerating(), m.spinner.View())
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.input.SetWidth(max(width-2, 10))
	m.renderer.SetWidth(m.contentWidth())
	m.layout()
	m.ready = true
	m.dirty = true
}

// layout sizes the viewport to whatever the chrome leaves.
func (m *Model) layout() {
	chrome := lipgloss.Height(m.renderHeader()) + lipgloss.Height(m.renderFooter())
	m.viewport.SetSize(m.width, max(m.height-chrome, 3))
}

func (m *Model) applyConfig(msg ConfigReloadedMsg) {
	if msg.Config == nil {
		return
	}
	ui := msg.Config.UI
	m.theme = styles.NewTheme(ui.MarkdownStyle, ui.CodeTheme)
	m.wordWrap = ui.WordWrap
	m.renderer = components.NewMessageRenderer(m.theme, m.contentWidth())
	if ui.FollowThreshold != m.threshold {
		m.threshold = ui.FollowThreshold
		m.attachFollow()
	}
	m.dirty = true
	m.logger.Info("ui settings reloaded", "follow_threshold", m.threshold, "markdown_style", m.theme.MarkdownStyle)
}

// =============================================================================
// KEYS
// =============================================================================

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Stop):
		m.stop()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m, m.submit()

	case key.Matches(msg, m.keys.Newline):
		m.input.InsertString("\n")
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.PageUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.PageDown()
		return m, nil

	case key.Matches(msg, m.keys.Up) && !m.multiline():
		m.viewport.ScrollUp(1)
		return m, nil

	case key.Matches(msg, m.keys.Down) && !m.multiline():
		m.viewport.ScrollDown(1)
		return m, nil

	case key.Matches(msg, m.keys.Suggest) && m.store.Len() == 0:
		m.suggestion = (m.suggestion + 1) % len(components.Suggestions)
		m.input.SetValue(components.Suggestions[m.suggestion].Action)
		m.dirty = true
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) multiline() bool {
	return strings.Contains(m.input.Value(), "\n")
}

// submit sends the input, runs a slash command, or starts the uploads the
// message depends on.
func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m.runCommand(text)
	}
	if m.store.IsGenerating() || m.uploading {
		m.toasts.Error(waitNotice)
		return nil
	}
	m.suggestion = -1

	if len(m.pending) > 0 {
		m.uploading = true
		m.toasts.Status("Uploading " + plural(len(m.pending), "file") + "...")
		return uploadFiles(m.ctx, m.uploader, m.Pending(), text)
	}
	m.input.Reset()
	return m.send(text, nil)
}
