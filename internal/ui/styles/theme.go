// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components for the application.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// MarkdownStyle is the glamour standard style for prose: dark, light
	// or notty.
	MarkdownStyle string

	// CodeTheme is the chroma style for code blocks.
	CodeTheme string

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	SystemText     lipgloss.Style
	Timestamp      lipgloss.Style

	// ==========================================================================
	// CONTENT STYLES
	// ==========================================================================

	CodeBlock    lipgloss.Style
	CodeBadge    lipgloss.Style
	LineNumber   lipgloss.Style
	OutputBlock  lipgloss.Style
	OutputHeader lipgloss.Style

	ToolCalling lipgloss.Style
	ToolDone    lipgloss.Style
	ToolResult  lipgloss.Style

	AttachmentChip lipgloss.Style

	// ==========================================================================
	// CHROME
	// ==========================================================================

	Header        lipgloss.Style
	Notice        lipgloss.Style
	Thinking      lipgloss.Style
	Toast         lipgloss.Style
	ToastError    lipgloss.Style
	Suggestion    lipgloss.Style
	SuggestionKey lipgloss.Style
	Help          lipgloss.Style
	Indicator     lipgloss.Style
	Input         lipgloss.Style
}

// NewTheme detects the terminal and builds the styles. markdownStyle
// "auto" (or empty) follows the terminal background.
func NewTheme(markdownStyle, codeTheme string) *Theme {
	profile := termenv.ColorProfile()
	isDark := true
	if markdownStyle == "" || markdownStyle == "auto" {
		isDark = termenv.HasDarkBackground()
	}
	return newTheme(profile, isDark, markdownStyle, codeTheme)
}

// NewPlainTheme builds a theme without probing the terminal. Used for line
// mode on non-terminals and in tests.
func NewPlainTheme() *Theme {
	return newTheme(termenv.Ascii, true, "notty", "")
}

func newTheme(profile termenv.Profile, isDark bool, markdownStyle, codeTheme string) *Theme {
	t := &Theme{
		IsDark:        isDark,
		ColorProfile:  profile,
		MarkdownStyle: resolveMarkdownStyle(markdownStyle, isDark),
		CodeTheme:     codeTheme,
	}
	if t.CodeTheme == "" {
		t.CodeTheme = "monokai"
	}
	t.initStyles()
	return t
}

func resolveMarkdownStyle(style string, isDark bool) string {
	switch style {
	case "dark", "light", "notty", "dracula", "pink", "tokyo-night", "ascii":
		return style
	}
	if isDark {
		return "dark"
	}
	return "light"
}

func (t *Theme) initStyles() {
	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.SystemLabel = lipgloss.NewStyle().Bold(true).Foreground(Amber)
	t.SystemText = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)
	t.Timestamp = lipgloss.NewStyle().Foreground(TextMuted)

	t.CodeBlock = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.CodeBadge = lipgloss.NewStyle().
		Foreground(TextMuted).
		Background(OverlayDim).
		Padding(0, 1).
		Bold(true)
	t.LineNumber = lipgloss.NewStyle().
		Foreground(TextMuted).
		Width(4).
		Align(lipgloss.Right).
		MarginRight(1)
	t.OutputBlock = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderTop(false).
		BorderRight(false).
		BorderBottom(false).
		BorderForeground(Emerald).
		PaddingLeft(1)
	t.OutputHeader = lipgloss.NewStyle().Foreground(Emerald).Bold(true)

	t.ToolCalling = lipgloss.NewStyle().Foreground(Amber)
	t.ToolDone = lipgloss.NewStyle().Foreground(Emerald)
	t.ToolResult = lipgloss.NewStyle().Foreground(TextSecondary)

	t.AttachmentChip = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(SurfaceDim).
		Padding(0, 1).
		MarginRight(1)

	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		Padding(0, 1)
	t.Notice = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Amber).
		Bold(true).
		Padding(0, 1)
	t.Thinking = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
	t.Toast = lipgloss.NewStyle().
		Foreground(TextPrimary).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Cyan).
		Padding(0, 1)
	t.ToastError = t.Toast.BorderForeground(Rose).Foreground(Rose)
	t.Suggestion = lipgloss.NewStyle().
		Foreground(TextSecondary).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.SuggestionKey = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.Help = lipgloss.NewStyle().Foreground(TextMuted)
	t.Indicator = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
	t.Input = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple)
}

// RoleLabel returns the label style for a role name.
func (t *Theme) RoleLabel(role string) lipgloss.Style {
	switch role {
	case "user":
		return t.UserLabel
	case "assistant":
		return t.AssistantLabel
	default:
		return t.SystemLabel
	}
}
