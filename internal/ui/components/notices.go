// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/atlas-tui/internal/model"
	"github.com/jeranaias/atlas-tui/internal/ui/styles"
)

// callNoticePhrase marks assistant messages that announce a coding agent run.
const callNoticePhrase = "calling coding agent"

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript renders the whole conversation plus the transient notices: a
// "Calling Coding Agent..." banner under the last user message while the
// agent runs, and a thinking line while the reply has not started.
func (r *MessageRenderer) Transcript(views []model.MessageView, generating bool, frame string) string {
	if len(views) == 0 {
		return ""
	}
	notice := -1
	if generating && hasCallNotice(views) {
		notice = lastUserIndex(views)
	}

	parts := make([]string, 0, len(views)+2)
	for i, v := range views {
		block := r.Render(v, frame)
		if i == notice {
			block += "\n" + r.theme.Notice.Render("Calling Coding Agent...")
		}
		parts = append(parts, block)
	}
	if generating && views[len(views)-1].Role == model.RoleUser {
		parts = append(parts, RenderThinking(r.theme, frame))
	}
	return strings.Join(parts, "\n\n")
}

// RenderThinking renders the assistant placeholder shown before the first
// delta arrives.
func RenderThinking(theme *styles.Theme, frame string) string {
	label := theme.AssistantLabel.Render(model.RoleAssistant.DisplayName())
	return label + "\n" + theme.Thinking.Render(strings.TrimSpace(frame+" Thinking..."))
}

func hasCallNotice(views []model.MessageView) bool {
	for _, v := range views {
		if v.Role == model.RoleAssistant && strings.Contains(strings.ToLower(v.Content), callNoticePhrase) {
			return true
		}
	}
	return false
}

func lastUserIndex(views []model.MessageView) int {
	for i := len(views) - 1; i >= 0; i-- {
		if views[i].Role == model.RoleUser {
			return i
		}
	}
	return -1
}

// =============================================================================
// SUGGESTED ACTIONS
// =============================================================================

// Suggestion is a canned prompt offered on an empty conversation.
type Suggestion struct {
	Title  string
	Action string
}

// Suggestions are offered until the first message is sent.
var Suggestions = []Suggestion{
	{
		Title:  "How does the Atlas Analyst Agent work?",
		Action: "How does the Atlas Analyst Agent work?",
	},
	{
		Title:  "How is code executed in Atlas? Is it safe?",
		Action: "Explain how code runs in Atlas and how safety is handled.",
	},
}

// RenderSuggestions renders the suggestion cards. selected is highlighted;
// pass -1 for none.
func RenderSuggestions(theme *styles.Theme, width, selected int) string {
	cards := make([]string, 0, len(Suggestions))
	for i, s := range Suggestions {
		marker := "  "
		if i == selected {
			marker = theme.SuggestionKey.Render("> ")
		}
		cards = append(cards, theme.Suggestion.MaxWidth(max(width, minCodeWidth)).Render(marker+s.Title))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...) + "\n" +
		theme.Help.Render("Tab cycles suggestions. Enter sends.")
}
