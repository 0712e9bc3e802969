// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/atlas-tui/internal/content"
	"github.com/jeranaias/atlas-tui/internal/ui/styles"
)

// minCodeWidth keeps very narrow terminals from collapsing code blocks.
const minCodeWidth = 20

// =============================================================================
// CODE BLOCK RENDERER
// =============================================================================

// CodeBlock renders one code segment: a language badge, highlighted source
// with line numbers and, for executed code, an output panel.
type CodeBlock struct {
	Segment  content.Segment
	MaxWidth int
	theme    *styles.Theme
}

// NewCodeBlock creates a code block for seg.
func NewCodeBlock(seg content.Segment, theme *styles.Theme, maxWidth int) CodeBlock {
	return CodeBlock{Segment: seg, MaxWidth: maxWidth, theme: theme}
}

// Render renders the code block with styling.
func (c CodeBlock) Render() string {
	t := c.theme
	code := strings.TrimRight(c.Segment.Source, "\n")
	highlighted := Highlight(code, c.Segment.Language, t.CodeTheme, t.ColorProfile)

	lines := strings.Split(highlighted, "\n")
	numbered := make([]string, len(lines))
	for i, line := range lines {
		numbered[i] = t.LineNumber.Render(strconv.Itoa(i+1)) + line
	}

	var b strings.Builder
	if c.Segment.Language != "" {
		b.WriteString(t.CodeBadge.Render(c.Segment.Language))
		b.WriteString("\n")
	}
	b.WriteString(strings.Join(numbered, "\n"))

	width := max(c.MaxWidth, minCodeWidth)
	block := t.CodeBlock.MaxWidth(width).Render(b.String())
	if !c.Segment.HasOutput {
		return block
	}
	return lipgloss.JoinVertical(lipgloss.Left, block, c.renderOutput(width))
}

func (c CodeBlock) renderOutput(width int) string {
	t := c.theme
	out := strings.TrimRight(c.Segment.DisplayOutput(), "\n")
	if strings.TrimSpace(out) == "" {
		out = t.Help.Render("(no output)")
	}
	return t.OutputBlock.MaxWidth(width).Render(t.OutputHeader.Render("Output") + "\n" + out)
}

// =============================================================================
// SYNTAX HIGHLIGHTING (Chroma-based)
// =============================================================================

// Highlight applies chroma highlighting for the given terminal profile. The
// Ascii profile gets the code back untouched.
func Highlight(code, language, style string, profile termenv.Profile) string {
	if profile == termenv.Ascii {
		return code
	}

	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	s := chromaStyles.Get(style)
	if s == nil {
		s = chromaStyles.Fallback
	}

	formatter := formatters.Get(formatterFor(profile))
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, s, iterator); err != nil {
		return code
	}
	// The terminal formatters end with a reset and, sometimes, a newline.
	return strings.TrimSuffix(buf.String(), "\n")
}

func formatterFor(profile termenv.Profile) string {
	switch profile {
	case termenv.TrueColor:
		return "terminal16m"
	case termenv.ANSI:
		return "terminal16"
	default:
		return "terminal256"
	}
}
