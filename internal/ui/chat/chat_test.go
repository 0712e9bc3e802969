// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/atlas-tui/internal/chatstream"
	"github.com/jeranaias/atlas-tui/internal/config"
	"github.com/jeranaias/atlas-tui/internal/filecache"
	"github.com/jeranaias/atlas-tui/internal/logging"
	"github.com/jeranaias/atlas-tui/internal/model"
	"github.com/jeranaias/atlas-tui/internal/store"
	"github.com/jeranaias/atlas-tui/internal/ui/styles"
	"github.com/jeranaias/atlas-tui/internal/upload"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeStreamer struct {
	mu     sync.Mutex
	reqs   []chatstream.Request
	ids    []string
	chunks []string
	err    error
	block  bool
}

func (f *fakeStreamer) Stream(ctx context.Context, req chatstream.Request, id string, emit func(model.Event)) error {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.ids = append(f.ids, id)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	for _, c := range f.chunks {
		emit(model.TextDelta{MessageID: id, Chunk: c})
	}
	return f.err
}

func (f *fakeStreamer) lastRequest(t *testing.T) chatstream.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.reqs)
	return f.reqs[len(f.reqs)-1]
}

type fakeUploader struct {
	files []upload.File
	err   error
}

func (f *fakeUploader) UploadAll(ctx context.Context, files []upload.File) ([]model.Attachment, error) {
	f.files = files
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.Attachment, len(files))
	for i, file := range files {
		out[i] = model.Attachment{Name: file.Name, ContentType: file.Type, URL: "http://blob/" + file.Name}
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func newTestModel(t *testing.T, s Streamer, u Uploader) *Model {
	t.Helper()
	m := New(Options{
		Store:           store.New(logging.Discard()),
		Streamer:        s,
		Uploader:        u,
		Cache:           filecache.New(filecache.NewMemoryStorage()),
		Theme:           styles.NewPlainTheme(),
		FollowThreshold: 2,
		Logger:          logging.Discard(),
	})
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return m
}

// drain runs cmd and feeds every resulting message back into the model
// until no command is left.
func drain(m *Model, cmd tea.Cmd) {
	for i := 0; cmd != nil && i < 100; i++ {
		_, cmd = m.Update(cmd())
	}
}

func typeAndSubmit(m *Model, text string) tea.Cmd {
	m.input.SetValue(text)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func toastMessages(m *Model) []string {
	var out []string
	for _, t := range m.toasts.Toasts() {
		out = append(out, t.Message)
	}
	return out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// =============================================================================
// STREAMING
// =============================================================================

func TestSubmit_StreamsAndFinishes(t *testing.T) {
	fs := &fakeStreamer{chunks: []string{"Hello", " world"}}
	m := newTestModel(t, fs, nil)

	drain(m, typeAndSubmit(m, "hi there"))

	msgs := m.store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi there", msgs[0].Content)
	assert.Equal(t, "Hello world", msgs[1].Content)
	assert.False(t, msgs[1].Streaming)
	assert.False(t, m.store.IsGenerating())
	assert.Empty(t, m.input.Value())

	req := fs.lastRequest(t)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "hi there", req.Messages[0].Content)
	assert.Nil(t, req.Data)
	assert.Equal(t, msgs[1].ID, fs.ids[0])
}

func TestSubmit_WhileGeneratingShowsNotice(t *testing.T) {
	fs := &fakeStreamer{block: true}
	m := newTestModel(t, fs, nil)

	cmd := typeAndSubmit(m, "first")
	require.True(t, m.store.IsGenerating())

	assert.Nil(t, typeAndSubmit(m, "second"))
	assert.Contains(t, toastMessages(m), waitNotice)
	assert.Equal(t, "second", m.input.Value(), "input is kept")
	assert.Equal(t, 1, m.store.Len())

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.store.IsGenerating())
	drain(m, cmd)
	assert.False(t, m.store.IsGenerating())
}

func TestStop_KeepsPartialContent(t *testing.T) {
	fs := &fakeStreamer{chunks: []string{"partial"}}
	m := newTestModel(t, fs, nil)

	cmd := typeAndSubmit(m, "go")
	// Apply the first event only, then stop.
	_, next := m.Update(cmd())
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	drain(m, next)

	msgs := m.store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "partial", msgs[1].Content)
	assert.False(t, msgs[1].Streaming)
	assert.False(t, m.store.IsGenerating())
}

func TestStream_RateLimited(t *testing.T) {
	fs := &fakeStreamer{err: &chatstream.RateLimitError{}}
	m := newTestModel(t, fs, nil)

	drain(m, typeAndSubmit(m, "hello"))

	assert.Contains(t, toastMessages(m), rateLimitNotice)
	assert.False(t, m.store.IsGenerating())
}

func TestStream_OtherErrorsShowReason(t *testing.T) {
	fs := &fakeStreamer{err: errors.New("backend exploded")}
	m := newTestModel(t, fs, nil)

	drain(m, typeAndSubmit(m, "hello"))

	assert.Contains(t, toastMessages(m), "Backend exploded")
	assert.False(t, m.store.IsGenerating())
}

// =============================================================================
// UPLOADS
// =============================================================================

func TestSubmit_UploadsBeforeSending(t *testing.T) {
	fs := &fakeStreamer{chunks: []string{"ok"}}
	fu := &fakeUploader{}
	m := newTestModel(t, fs, fu)

	path := writeFile(t, "data.csv", "a,b\n1,2\n")
	drain(m, typeAndSubmit(m, "/attach "+path))
	require.Len(t, m.Pending(), 1)

	drain(m, typeAndSubmit(m, "summarize"))

	require.Len(t, fu.files, 1)
	assert.Equal(t, "data.csv", fu.files[0].Name)
	assert.Empty(t, m.Pending())

	msgs := m.store.Messages()
	require.Len(t, msgs, 2)
	require.Len(t, msgs[0].Attachments, 1)
	assert.Equal(t, "http://blob/data.csv", msgs[0].Attachments[0].URL)

	req := fs.lastRequest(t)
	require.Contains(t, req.Data, "attachments")
	assert.Len(t, req.Data["attachments"], 1)
}

func TestSubmit_UploadFailureAbandonsMessage(t *testing.T) {
	fs := &fakeStreamer{}
	fu := &fakeUploader{err: errors.New("upload failed: data.csv: boom")}
	m := newTestModel(t, fs, fu)

	drain(m, typeAndSubmit(m, "/attach "+writeFile(t, "data.csv", "x")))
	drain(m, typeAndSubmit(m, "summarize"))

	assert.Equal(t, 0, m.store.Len())
	assert.Contains(t, toastMessages(m), "Upload failed: data.csv: boom")
	assert.Equal(t, "summarize", m.input.Value())
	assert.Len(t, m.Pending(), 1, "files stay queued for a retry")
}

func TestAttach_RejectsUnsupportedFiles(t *testing.T) {
	m := newTestModel(t, &fakeStreamer{}, &fakeUploader{})

	path := writeFile(t, "tool.exe", "MZ")
	drain(m, typeAndSubmit(m, "/attach "+path))

	assert.Empty(t, m.Pending())
	require.NotEmpty(t, toastMessages(m))
	assert.Contains(t, toastMessages(m)[0], "Unsupported file type")
}

func TestAttach_DeduplicatesAndDetach(t *testing.T) {
	m := newTestModel(t, &fakeStreamer{}, &fakeUploader{})
	path := writeFile(t, "notes.txt", "hello")

	drain(m, typeAndSubmit(m, "/attach "+path))
	drain(m, typeAndSubmit(m, "/attach "+path))
	assert.Len(t, m.Pending(), 1)

	drain(m, typeAndSubmit(m, "/detach"))
	assert.Empty(t, m.Pending())
}

func TestAttach_WithoutUploader(t *testing.T) {
	m := newTestModel(t, &fakeStreamer{}, nil)
	drain(m, typeAndSubmit(m, "/attach whatever.csv"))
	assert.Contains(t, toastMessages(m), "Uploads are not configured.")
}

// =============================================================================
// COMMANDS
// =============================================================================

func TestCommands(t *testing.T) {
	m := newTestModel(t, &fakeStreamer{chunks: []string{"x"}}, nil)

	drain(m, typeAndSubmit(m, "/help"))
	drain(m, typeAndSubmit(m, "/cache"))
	msgs := m.store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, HelpText, msgs[0].Content)
	assert.Equal(t, "Upload cache: 0 files, 0 B", msgs[1].Content)

	drain(m, typeAndSubmit(m, "/clear"))
	assert.Equal(t, 0, m.store.Len())

	drain(m, typeAndSubmit(m, "/bogus"))
	assert.Contains(t, toastMessages(m), "Unknown command: /bogus. Type /help for a list.")
}

func TestSystemMessagesAreNotSent(t *testing.T) {
	fs := &fakeStreamer{chunks: []string{"x"}}
	m := newTestModel(t, fs, nil)

	drain(m, typeAndSubmit(m, "/help"))
	drain(m, typeAndSubmit(m, "question"))

	req := fs.lastRequest(t)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, model.RoleUser, req.Messages[0].Role)
}

func TestSuggestionFillsInput(t *testing.T) {
	m := newTestModel(t, &fakeStreamer{}, nil)

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "How does the Atlas Analyst Agent work?", m.input.Value())

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "Explain how code runs in Atlas and how safety is handled.", m.input.Value())
}

// =============================================================================
// SCROLLING
// =============================================================================

func TestFollow_StickinessAcrossFrames(t *testing.T) {
	m := newTestModel(t, &fakeStreamer{block: true}, nil)
	tick := frameTickMsg(time.Now())

	for range 4 {
		m.store.AppendSystem(HelpText)
		m.Update(tick)
	}
	require.Greater(t, m.viewport.ScrollHeight(), m.viewport.ClientHeight())
	assert.True(t, m.viewport.AtBottom(), "follows while at the bottom")

	m.viewport.ScrollUp(10)
	top := m.viewport.ScrollTop()
	m.store.AppendSystem(HelpText)
	m.Update(tick)
	assert.Equal(t, top, m.viewport.ScrollTop(), "stays put when scrolled away")

	cmd := typeAndSubmit(m, "question")
	m.Update(tick)
	assert.True(t, m.viewport.AtBottom(), "a user message always follows")

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	drain(m, cmd)
}

func TestConfigReload_UpdatesThreshold(t *testing.T) {
	m := newTestModel(t, &fakeStreamer{}, nil)
	cfg := config.Default()
	cfg.UI.FollowThreshold = 9
	cfg.UI.MarkdownStyle = "notty"

	m.Update(ConfigReloadedMsg{Config: cfg})

	assert.Equal(t, 9, m.follow.Threshold())
	assert.Equal(t, "notty", m.theme.MarkdownStyle)
}

func TestView_RendersChrome(t *testing.T) {
	m := newTestModel(t, &fakeStreamer{}, nil)
	m.Update(frameTickMsg(time.Now()))

	view := m.View()
	assert.Contains(t, view, "Atlas")
	assert.Contains(t, view, "How does the Atlas Analyst Agent work?")
	assert.Contains(t, view, "enter send")
}
