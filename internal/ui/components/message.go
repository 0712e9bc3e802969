// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/atlas-tui/internal/content"
	"github.com/jeranaias/atlas-tui/internal/model"
	"github.com/jeranaias/atlas-tui/internal/ui/styles"
	"github.com/jeranaias/atlas-tui/internal/util"
)

// DefaultToolName labels tool calls the backend left unnamed.
const DefaultToolName = "coding_agent"

// maxChipName is the column budget for one attachment name.
const maxChipName = 28

// =============================================================================
// MESSAGE RENDERER
// =============================================================================

// MessageRenderer turns message snapshots into terminal text. Final
// messages are cached; streaming ones are rendered on every call.
type MessageRenderer struct {
	theme    *styles.Theme
	markdown *Markdown
	width    int
	cache    map[string]string
}

// NewMessageRenderer creates a renderer for the given width.
func NewMessageRenderer(theme *styles.Theme, width int) *MessageRenderer {
	return &MessageRenderer{
		theme:    theme,
		markdown: NewMarkdown(theme.MarkdownStyle, width),
		width:    width,
		cache:    make(map[string]string),
	}
}

// SetWidth changes the render width and drops cached output.
func (r *MessageRenderer) SetWidth(width int) {
	if width == r.width {
		return
	}
	r.width = width
	r.markdown.SetWidth(width)
	clear(r.cache)
}

// Forget drops all cached output.
func (r *MessageRenderer) Forget() {
	clear(r.cache)
}

// Render renders one message. frame is the spinner frame shown next to tool
// calls still in progress.
func (r *MessageRenderer) Render(v model.MessageView, frame string) string {
	cacheable := !v.Streaming && !hasPendingTool(v.ToolInvocations)
	key := cacheKey(v)
	if cacheable {
		if out, ok := r.cache[key]; ok {
			return out
		}
	}

	parts := []string{r.header(v)}
	if len(v.Attachments) > 0 {
		parts = append(parts, RenderAttachmentChips(r.theme, v.Attachments, r.width))
	}
	if v.Content != "" {
		if v.Role == model.RoleSystem {
			parts = append(parts, r.theme.SystemText.Width(r.width).Render(v.Content))
		} else {
			parts = append(parts, r.RenderContent(v.Content))
		}
	}
	for _, tool := range v.ToolInvocations {
		parts = append(parts, r.renderTool(tool, frame))
	}

	out := lipgloss.JoinVertical(lipgloss.Left, parts...)
	if cacheable {
		r.cache[key] = out
	}
	return out
}

// RenderContent normalizes raw model output and renders its prose and code
// segments in order.
func (r *MessageRenderer) RenderContent(raw string) string {
	segs := content.Extract(content.Normalize(raw))
	out := make([]string, 0, len(segs))
	for _, seg := range segs {
		if seg.IsCode() {
			out = append(out, NewCodeBlock(seg, r.theme, r.width).Render())
			continue
		}
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		out = append(out, r.markdown.Render(seg.Text))
	}
	return strings.Join(out, "\n")
}

func (r *MessageRenderer) header(v model.MessageView) string {
	label := r.theme.RoleLabel(v.Role.String()).Render(v.Role.DisplayName())
	if v.CreatedAt.IsZero() {
		return label
	}
	return label + " " + r.theme.Timestamp.Render(formatTime(v.CreatedAt))
}

func (r *MessageRenderer) renderTool(tool model.ToolInvocation, frame string) string {
	name := ToolLabel(tool.Name)
	if !tool.Done() {
		return r.theme.ToolCalling.Render(strings.TrimSpace(frame + " Calling " + name + "..."))
	}
	head := r.theme.ToolDone.Render("✓ " + name)
	if len(tool.Result) == 0 {
		return head
	}
	body := r.theme.ToolResult.MaxWidth(max(r.width, minCodeWidth)).Render(PrettyJSON(tool.Result))
	return head + "\n" + body
}

// =============================================================================
// HELPERS
// =============================================================================

// ToolLabel returns the display name of a tool.
func ToolLabel(name string) string {
	if strings.TrimSpace(name) == "" {
		return DefaultToolName
	}
	return name
}

// PrettyJSON indents a JSON value. Invalid JSON is returned as-is.
func PrettyJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// RenderAttachmentChips lays out attachments as chips, wrapping to width.
func RenderAttachmentChips(theme *styles.Theme, atts []model.Attachment, width int) string {
	var lines []string
	var line string
	for _, a := range atts {
		chip := theme.AttachmentChip.Render(util.TruncateWidth(a.Name, maxChipName))
		if line != "" && lipgloss.Width(line)+lipgloss.Width(chip) > width {
			lines = append(lines, line)
			line = ""
		}
		line += chip
	}
	if line != "" {
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func hasPendingTool(tools []model.ToolInvocation) bool {
	for _, t := range tools {
		if !t.Done() {
			return true
		}
	}
	return false
}

func cacheKey(v model.MessageView) string {
	return v.ID + ":" + strconv.Itoa(len(v.Content)) + ":" + strconv.Itoa(len(v.ToolInvocations)) + ":" + strconv.Itoa(len(v.Attachments))
}

// formatTime formats a time as "3:04 PM".
func formatTime(t time.Time) string {
	return t.Format("3:04 PM")
}
