// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/atlas-tui/internal/chatstream"
	"github.com/jeranaias/atlas-tui/internal/filecache"
	"github.com/jeranaias/atlas-tui/internal/model"
	"github.com/jeranaias/atlas-tui/internal/scroll"
	"github.com/jeranaias/atlas-tui/internal/store"
	"github.com/jeranaias/atlas-tui/internal/ui/components"
	"github.com/jeranaias/atlas-tui/internal/ui/styles"
	"github.com/jeranaias/atlas-tui/internal/upload"
)

// frameInterval is the render cadence while content changes.
const frameInterval = 50 * time.Millisecond

// inputHeight is the number of visible input rows.
const inputHeight = 3

// =============================================================================
// COLLABORATORS
// =============================================================================

// Streamer sends one chat turn and emits its events in arrival order.
type Streamer interface {
	Stream(ctx context.Context, req chatstream.Request, messageID string, emit func(model.Event)) error
}

// Uploader uploads a batch of files, returning attachments in input order.
type Uploader interface {
	UploadAll(ctx context.Context, files []upload.File) ([]model.Attachment, error)
}

// Options configures a Model.
type Options struct {
	Store    *store.Store
	Streamer Streamer

	// Uploader may be nil; /attach then reports that uploads are off.
	Uploader Uploader

	// Cache backs /cache. It may be nil.
	Cache *filecache.Cache

	Theme *styles.Theme

	// FollowThreshold is the near-bottom distance in lines.
	FollowThreshold int

	// WordWrap caps the rendered message width. Zero means the full width.
	WordWrap int

	Logger *slog.Logger

	// Now is the clock for toasts. Nil uses time.Now.
	Now func() time.Time
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the chat screen.
type Model struct {
	store     *store.Store
	streamer  Streamer
	uploader  Uploader
	inspector *filecache.Inspector
	theme     *styles.Theme
	logger    *slog.Logger
	keys      KeyMap

	viewport *components.ChatViewport
	renderer *components.MessageRenderer
	toasts   *components.ToastManager
	input    textarea.Model
	spinner  spinner.Model

	frames       *scroll.FrameScheduler
	follow       *scroll.Controller
	detachFollow func()
	detachDirty  func()
	threshold    int
	wordWrap     int

	ctx    context.Context
	cancel context.CancelFunc

	// streamID is the response the current stream goroutine feeds.
	streamID     string
	cancelStream context.CancelFunc

	pending    []upload.File
	uploading  bool
	suggestion int

	dirty    bool
	width    int
	height   int
	ready    bool
	quitting bool
}

// New creates the chat model.
func New(opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme("auto", "")
	}

	ta := textarea.New()
	ta.Placeholder = "Send a message..."
	ta.ShowLineNumbers = false
	ta.Prompt = "> "
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = theme.Thinking

	ctx, cancel := context.WithCancel(context.Background())

	m := &Model{
		store:      opts.Store,
		streamer:   opts.Streamer,
		uploader:   opts.Uploader,
		theme:      theme,
		logger:     logger,
		keys:       DefaultKeyMap(),
		viewport:   components.NewChatViewport(theme),
		renderer:   components.NewMessageRenderer(theme, 80),
		toasts:     components.NewToastManager(opts.Now),
		input:      ta,
		spinner:    sp,
		frames:     &scroll.FrameScheduler{},
		threshold:  opts.FollowThreshold,
		wordWrap:   opts.WordWrap,
		ctx:        ctx,
		cancel:     cancel,
		suggestion: -1,
		dirty:      true,
	}
	if opts.Cache != nil {
		m.inspector = filecache.NewInspector(opts.Cache)
	}
	m.detachDirty = m.store.Subscribe(func(store.Change) { m.dirty = true })
	m.attachFollow()
	return m
}

// attachFollow (re)creates the scroll controller with the current threshold.
func (m *Model) attachFollow() {
	if m.detachFollow != nil {
		m.detachFollow()
	}
	m.follow = scroll.New(m.viewport, m.viewport,
		scroll.WithThreshold(m.threshold),
		scroll.WithScheduler(m.frames),
	)
	m.detachFollow = m.follow.Attach(m.store)
}

// Init starts the frame loop and the spinner.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, frameTick())
}

// Close cancels any running stream or upload and drops subscriptions.
func (m *Model) Close() {
	m.cancel()
	m.detachFollow()
	m.detachDirty()
}

// Pending returns the files queued for the next message.
func (m *Model) Pending() []upload.File {
	return append([]upload.File(nil), m.pending...)
}

// contentWidth is the width messages are rendered at.
func (m *Model) contentWidth() int {
	w := m.width - 2
	if m.wordWrap > 0 && w > m.wordWrap {
		w = m.wordWrap
	}
	return max(w, 20)
}
