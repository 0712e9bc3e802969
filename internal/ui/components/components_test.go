// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/atlas-tui/internal/content"
	"github.com/jeranaias/atlas-tui/internal/model"
	"github.com/jeranaias/atlas-tui/internal/scroll"
	"github.com/jeranaias/atlas-tui/internal/ui/styles"
)

func TestHighlight_AsciiProfileLeavesCodeAlone(t *testing.T) {
	code := "x = 1\nprint(x)"
	assert.Equal(t, code, Highlight(code, "python", "monokai", termenv.Ascii))
}

func TestHighlight_ColorProfileAddsEscapes(t *testing.T) {
	out := Highlight("package main", "go", "monokai", termenv.ANSI256)
	assert.Contains(t, out, "\x1b[")
	assert.Contains(t, out, "main")
}

func TestCodeBlock_RendersSourceAndOutput(t *testing.T) {
	theme := styles.NewPlainTheme()
	seg := content.CodeWithOutput("python-exec", "print('hi')", "hi\n![plot](data:image/png;base64,AAAA)")

	out := NewCodeBlock(seg, theme, 80).Render()

	assert.Contains(t, out, "python-exec")
	assert.Contains(t, out, "print('hi')")
	assert.Contains(t, out, "Output")
	assert.Contains(t, out, content.ImagePlaceholder)
	assert.NotContains(t, out, "base64")
}

func TestCodeBlock_EmptyOutput(t *testing.T) {
	theme := styles.NewPlainTheme()
	out := NewCodeBlock(content.CodeWithOutput("python-exec", "x = 1", ""), theme, 80).Render()
	assert.Contains(t, out, "(no output)")
}

func TestCodeBlock_NoOutputPanelForPlainCode(t *testing.T) {
	theme := styles.NewPlainTheme()
	out := NewCodeBlock(content.Code("go", "fmt.Println(1)"), theme, 80).Render()
	assert.NotContains(t, out, "Output")
}

func TestMessageRenderer_ContentSegments(t *testing.T) {
	r := NewMessageRenderer(styles.NewPlainTheme(), 80)
	out := r.RenderContent("Here is code:\n\n```go\nfmt.Println(1)\n```\n\nDone.")

	assert.Contains(t, out, "Here is code")
	assert.Contains(t, out, "fmt.Println(1)")
	assert.Contains(t, out, "Done.")
	assert.Less(t, strings.Index(out, "Here is code"), strings.Index(out, "fmt.Println(1)"))
	assert.Less(t, strings.Index(out, "fmt.Println(1)"), strings.Index(out, "Done."))
}

func TestMessageRenderer_BlankProseBetweenFencesSkipped(t *testing.T) {
	theme := styles.NewPlainTheme()
	r := NewMessageRenderer(theme, 80)
	out := r.RenderContent("```go\nx := 1\n```\n\n```go\ny := 2\n```")

	want := NewCodeBlock(content.Code("go", "x := 1"), theme, 80).Render() + "\n" +
		NewCodeBlock(content.Code("go", "y := 2"), theme, 80).Render()
	assert.Equal(t, want, out)
}

func TestMessageRenderer_Tools(t *testing.T) {
	r := NewMessageRenderer(styles.NewPlainTheme(), 80)
	v := model.MessageView{
		ID:   "m1",
		Role: model.RoleAssistant,
		ToolInvocations: []model.ToolInvocation{
			{ToolID: "t1", State: model.ToolCalling},
			{ToolID: "t2", Name: "search", State: model.ToolResult, Result: json.RawMessage(`{"ok":true}`)},
		},
	}

	out := r.Render(v, "*")
	assert.Contains(t, out, "* Calling coding_agent...")
	assert.Contains(t, out, "search")
	assert.Contains(t, out, `"ok": true`)
}

func TestMessageRenderer_CachesFinalMessages(t *testing.T) {
	r := NewMessageRenderer(styles.NewPlainTheme(), 80)
	v := model.MessageView{ID: "m1", Role: model.RoleAssistant, Content: "hello"}

	first := r.Render(v, "")
	require.Len(t, r.cache, 1)
	assert.Equal(t, first, r.Render(v, ""))

	v.Streaming = true
	v.Content = "hello again"
	r.Render(v, "")
	assert.Len(t, r.cache, 1, "streaming messages are not cached")

	r.SetWidth(60)
	assert.Empty(t, r.cache)
}

func TestMessageRenderer_SystemAndAttachments(t *testing.T) {
	r := NewMessageRenderer(styles.NewPlainTheme(), 80)
	out := r.Render(model.MessageView{
		ID:          "u1",
		Role:        model.RoleUser,
		Content:     "see file",
		Attachments: []model.Attachment{{Name: "report.pdf", ContentType: "application/pdf", URL: "http://x/report.pdf"}},
	}, "")
	assert.Contains(t, out, "You")
	assert.Contains(t, out, "report.pdf")

	out = r.Render(model.MessageView{ID: "s1", Role: model.RoleSystem, Content: "cache cleared"}, "")
	assert.Contains(t, out, "System")
	assert.Contains(t, out, "cache cleared")
}

func TestRenderAttachmentChips_TruncatesLongNames(t *testing.T) {
	out := RenderAttachmentChips(styles.NewPlainTheme(), []model.Attachment{
		{Name: strings.Repeat("a", 60) + ".csv"},
	}, 80)
	assert.Contains(t, out, "...")
	assert.NotContains(t, out, ".csv")
}

func TestPrettyJSON(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", PrettyJSON(json.RawMessage(`{"a":1}`)))
	assert.Equal(t, "not json", PrettyJSON(json.RawMessage("not json")))
}

func TestToolLabel(t *testing.T) {
	assert.Equal(t, DefaultToolName, ToolLabel(""))
	assert.Equal(t, "search", ToolLabel("search"))
}

func TestTranscript_Notices(t *testing.T) {
	r := NewMessageRenderer(styles.NewPlainTheme(), 80)
	user := model.MessageView{ID: "u1", Role: model.RoleUser, Content: "analyze"}

	out := r.Transcript([]model.MessageView{user}, true, "")
	assert.Contains(t, out, "Thinking...")

	out = r.Transcript([]model.MessageView{user}, false, "")
	assert.NotContains(t, out, "Thinking...")

	agent := model.MessageView{ID: "a1", Role: model.RoleAssistant, Content: "Calling Coding Agent now", Streaming: true}
	out = r.Transcript([]model.MessageView{user, agent}, true, "")
	assert.Contains(t, out, "Calling Coding Agent...")
	assert.NotContains(t, out, "Thinking...")

	out = r.Transcript([]model.MessageView{user, agent}, false, "")
	assert.NotContains(t, out, "Calling Coding Agent...")

	assert.Empty(t, r.Transcript(nil, true, ""))
}

func TestRenderSuggestions(t *testing.T) {
	out := RenderSuggestions(styles.NewPlainTheme(), 80, 1)
	for _, s := range Suggestions {
		assert.Contains(t, out, s.Title)
	}
	assert.Contains(t, out, "> "+Suggestions[1].Title)
}

func TestToastManager_Expiry(t *testing.T) {
	now := time.Unix(1000, 0)
	m := NewToastManager(func() time.Time { return now })

	m.Status("saved")
	m.Error("failed")
	require.Len(t, m.Toasts(), 2)

	now = now.Add(DefaultToastDuration)
	assert.True(t, m.Tick())
	toasts := m.Toasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, "failed", toasts[0].Message)

	now = now.Add(ErrorToastDuration)
	assert.False(t, m.Tick())
}

func TestToastManager_CapsStack(t *testing.T) {
	m := NewToastManager(nil)
	for _, msg := range []string{"a", "b", "c", "d"} {
		m.Status(msg)
	}
	toasts := m.Toasts()
	require.Len(t, toasts, maxToasts)
	assert.Equal(t, "b", toasts[0].Message)

	out := RenderToasts(styles.NewPlainTheme(), toasts, 80)
	assert.Contains(t, out, "d")

	m.Clear()
	assert.Empty(t, m.Toasts())
}

func lines(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = "line"
	}
	return strings.Join(out, "\n")
}

func TestChatViewport_ScrollContainer(t *testing.T) {
	vp := NewChatViewport(styles.NewPlainTheme())
	vp.SetSize(40, 6)
	vp.SetContent(lines(20))

	assert.Equal(t, 20, vp.ScrollHeight())
	assert.Equal(t, 5, vp.ClientHeight())
	assert.Equal(t, 0, vp.ScrollTop())
	assert.True(t, vp.AtTop())

	vp.ScrollIntoView()
	assert.Equal(t, 15, vp.ScrollTop())
	assert.True(t, vp.AtBottom())

	vp.ScrollUp(4)
	assert.Equal(t, 11, vp.ScrollTop())
	assert.Contains(t, vp.View(), "4 more lines below")
}

func TestChatViewport_DrivenByController(t *testing.T) {
	vp := NewChatViewport(styles.NewPlainTheme())
	vp.SetSize(40, 6)
	vp.SetContent(lines(20))
	vp.ScrollIntoView()

	c := scroll.New(vp, vp, scroll.WithThreshold(2))

	c.Mutate(func() { vp.SetContent(lines(30)) })
	assert.Equal(t, 25, vp.ScrollTop(), "near bottom follows")

	vp.ScrollUp(10)
	c.Mutate(func() { vp.SetContent(lines(40)) })
	assert.Equal(t, 15, vp.ScrollTop(), "scrolled away stays put")

	c.ForceFollow()
	assert.Equal(t, 35, vp.ScrollTop())
}
