// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/atlas-tui/internal/chatstream"
	"github.com/jeranaias/atlas-tui/internal/config"
	"github.com/jeranaias/atlas-tui/internal/model"
	"github.com/jeranaias/atlas-tui/internal/upload"
)

// User-facing notices.
const (
	waitNotice      = "Please wait for the model to finish its response!"
	rateLimitNotice = "You are sending too many messages. Please try again later."
)

// =============================================================================
// MESSAGES
// =============================================================================

// frameTickMsg drives rendering and scheduled follows.
type frameTickMsg time.Time

// streamEventMsg carries one decoded stream event.
type streamEventMsg struct {
	event model.Event
	ch    <-chan tea.Msg
}

// streamDoneMsg ends a stream. err is nil on a clean finish.
type streamDoneMsg struct {
	id  string
	err error
}

// uploadDoneMsg reports a finished upload batch for the message text.
type uploadDoneMsg struct {
	text        string
	attachments []model.Attachment
	err         error
}

// ConfigReloadedMsg applies hot-reloaded UI settings.
type ConfigReloadedMsg struct {
	Config *config.Config
}

// =============================================================================
// COMMAND CREATORS
// =============================================================================

func frameTick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameTickMsg(t)
	})
}

// waitForStream reads the next message from a stream channel.
func waitForStream(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// startStream runs the chat turn in a goroutine. Events are handed over one
// at a time so every delta goes through the update loop; the done message
// is always the last one sent.
func startStream(ctx context.Context, s Streamer, req chatstream.Request, id string) tea.Cmd {
	ch := make(chan tea.Msg, 16)
	go func() {
		err := s.Stream(ctx, req, id, func(ev model.Event) {
			select {
			case ch <- streamEventMsg{event: ev, ch: ch}:
			case <-ctx.Done():
			}
		})
		ch <- streamDoneMsg{id: id, err: err}
	}()
	return waitForStream(ch)
}

// uploadFiles uploads the pending files for a submission.
func uploadFiles(ctx context.Context, u Uploader, files []upload.File, text string) tea.Cmd {
	return func() tea.Msg {
		atts, err := u.UploadAll(ctx, files)
		return uploadDoneMsg{text: text, attachments: atts, err: err}
	}
}

// =============================================================================
// SUBMISSION
// =============================================================================

// send appends the user message, reserves the response and starts the
// stream.
func (m *Model) send(text string, atts []model.Attachment) tea.Cmd {
	m.store.AppendUser(text, atts)
	id := m.store.BeginResponse()

	req := chatstream.Request{Messages: m.store.History()}
	if len(atts) > 0 {
		req.Data = map[string]any{"attachments": atts}
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.streamID = id
	m.cancelStream = cancel
	m.logger.Debug("stream started", "message_id", id, "attachments", len(atts))
	return startStream(ctx, m.streamer, req, id)
}

// stop cancels the running stream and freezes the in-flight message.
func (m *Model) stop() {
	if m.cancelStream != nil {
		m.cancelStream()
		m.cancelStream = nil
	}
	if m.store.Stop() {
		m.logger.Debug("stream stopped", "message_id", m.streamID)
	}
}

func (m *Model) handleStreamDone(msg streamDoneMsg) {
	if msg.id != m.streamID {
		return
	}
	if m.cancelStream != nil {
		m.cancelStream()
		m.cancelStream = nil
	}

	switch {
	case msg.err == nil:
		m.store.Finish()
	case errors.Is(msg.err, context.Canceled):
		m.store.Stop()
	case errors.Is(msg.err, chatstream.ErrRateLimited):
		m.store.Fail(msg.err)
		m.toasts.Error(rateLimitNotice)
	default:
		m.logger.Warn("stream failed", "message_id", msg.id, "error", msg.err)
		m.store.Fail(msg.err)
		m.toasts.Error(sentence(msg.err.Error()))
	}
}

func (m *Model) handleUploadDone(msg uploadDoneMsg) tea.Cmd {
	m.uploading = false
	if msg.err != nil {
		if !errors.Is(msg.err, context.Canceled) {
			m.logger.Warn("upload failed", "error", msg.err)
			m.toasts.Error(sentence(msg.err.Error()))
		}
		return nil
	}
	m.pending = nil
	m.input.Reset()
	return m.send(msg.text, msg.attachments)
}
