// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/atlas-tui/internal/ui/styles"
)

// wheelLines is how far one mouse wheel notch scrolls.
const wheelLines = 3

// =============================================================================
// CHAT VIEWPORT COMPONENT - Scrollable chat area with indicators
// =============================================================================

// ChatViewport is the scrollable message area. It is the scroll container
// (line units) and its bottom edge is the sentinel, so a scroll.Controller
// can drive it directly.
//
// One line is always reserved below the content for the "more below"
// indicator so the layout does not jump while scrolling.
type ChatViewport struct {
	viewport viewport.Model
	width    int
	height   int
	theme    *styles.Theme
}

// NewChatViewport creates a new ChatViewport.
func NewChatViewport(theme *styles.Theme) *ChatViewport {
	vp := viewport.New(80, 19)
	vp.Style = lipgloss.NewStyle()
	return &ChatViewport{viewport: vp, width: 80, height: 20, theme: theme}
}

// SetSize updates the viewport dimensions.
func (cv *ChatViewport) SetSize(width, height int) {
	cv.width = width
	cv.height = height
	cv.viewport.Width = width
	cv.viewport.Height = max(height-1, 1)
}

// SetContent replaces the rendered content. The scroll offset is kept;
// following the end is the controller's decision.
func (cv *ChatViewport) SetContent(s string) {
	cv.viewport.SetContent(s)
}

// ==========================================================================
// SCROLL CONTAINER
// ==========================================================================

// ScrollHeight is the total number of content lines.
func (cv *ChatViewport) ScrollHeight() int { return cv.viewport.TotalLineCount() }

// ClientHeight is the number of visible lines.
func (cv *ChatViewport) ClientHeight() int { return cv.viewport.Height }

// ScrollTop is the first visible line.
func (cv *ChatViewport) ScrollTop() int { return cv.viewport.YOffset }

// ScrollIntoView brings the end of the content into view.
func (cv *ChatViewport) ScrollIntoView() { cv.viewport.GotoBottom() }

// ==========================================================================
// USER SCROLLING
// ==========================================================================

// ScrollUp scrolls up by n lines.
func (cv *ChatViewport) ScrollUp(n int) { cv.viewport.LineUp(n) }

// ScrollDown scrolls down by n lines.
func (cv *ChatViewport) ScrollDown(n int) { cv.viewport.LineDown(n) }

// PageUp scrolls up by one page.
func (cv *ChatViewport) PageUp() { cv.viewport.ViewUp() }

// PageDown scrolls down by one page.
func (cv *ChatViewport) PageDown() { cv.viewport.ViewDown() }

// ScrollToTop scrolls to the first line.
func (cv *ChatViewport) ScrollToTop() { cv.viewport.GotoTop() }

// AtTop returns true if the viewport is at the top.
func (cv *ChatViewport) AtTop() bool { return cv.viewport.AtTop() }

// AtBottom returns true if the viewport is at the bottom.
func (cv *ChatViewport) AtBottom() bool { return cv.viewport.AtBottom() }

// Update handles mouse wheel scrolling. Keys are routed by the chat model
// because they are shared with the input.
func (cv *ChatViewport) Update(msg tea.Msg) (*ChatViewport, tea.Cmd) {
	if m, ok := msg.(tea.MouseMsg); ok {
		switch m.Type {
		case tea.MouseWheelUp:
			cv.ScrollUp(wheelLines)
		case tea.MouseWheelDown:
			cv.ScrollDown(wheelLines)
		}
	}
	return cv, nil
}

// View renders the viewport followed by the indicator line.
func (cv *ChatViewport) View() string {
	return cv.viewport.View() + "\n" + cv.renderBottomIndicator()
}

// ==========================================================================
// SCROLL INDICATORS
// ==========================================================================

// renderBottomIndicator renders the "more below" indicator with the scroll
// position, or a blank line at the bottom.
func (cv *ChatViewport) renderBottomIndicator() string {
	style := cv.theme.Indicator.Width(cv.width).Align(lipgloss.Center)
	if cv.AtBottom() {
		return style.Render("")
	}
	below := cv.ScrollHeight() - cv.ClientHeight() - cv.ScrollTop()
	return style.Render(fmt.Sprintf("v %d more lines below (PgDn) v", below))
}
