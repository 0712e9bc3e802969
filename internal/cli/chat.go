// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-mode chat for terminals without full-screen support and for
// piped use.

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/atlas-tui/internal/chatstream"
	"github.com/jeranaias/atlas-tui/internal/config"
	"github.com/jeranaias/atlas-tui/internal/model"
	"github.com/jeranaias/atlas-tui/internal/store"
	"github.com/jeranaias/atlas-tui/internal/ui/chat"
	"github.com/jeranaias/atlas-tui/internal/ui/components"
	"github.com/jeranaias/atlas-tui/internal/ui/styles"
	"github.com/jeranaias/atlas-tui/internal/upload"
)

const (
	chatPrompt      = "you> "
	chatHelp        = "Commands: :attach <path>... queue files, :detach drop them, :clear reset, :quit exit.\nCtrl+C stops a response."
	rateLimitNotice = "You are sending too many messages. Please try again later."
)

func newChatCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat in line mode",
		Long:  "Chat in line mode with input history. Replies are printed once complete.\nInput may also be piped, one message per line.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
}

func runChat(ctx context.Context, opts *globalOptions, out io.Writer) error {
	rt, err := opts.setup(nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	interactive := IsTTY()
	theme := styles.NewPlainTheme()
	if IsStdoutTTY() {
		theme = styles.NewTheme(rt.cfg.UI.MarkdownStyle, rt.cfg.UI.CodeTheme)
	}
	width := TerminalWidth()
	if ww := rt.cfg.UI.WordWrap; ww > 0 && width > ww {
		width = ww
	}

	cache := rt.openCache()
	c := &lineChat{
		store:     store.New(rt.logger),
		streamer:  rt.newStreamer(),
		uploader:  rt.newUploader(cache),
		renderer:  components.NewMessageRenderer(theme, width),
		out:       out,
		progress:  interactive,
		logger:    rt.logger,
		interrupt: notifyInterrupt,
	}

	var in prompter
	if interactive {
		h := openHistory(rt.logger)
		defer h.Close()
		in = h
		fmt.Fprintln(out, "Atlas chat. Type :help for commands, :quit to exit.")
	} else {
		in = newScanPrompter(os.Stdin)
	}
	return c.run(ctx, in)
}

func notifyInterrupt(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt)
}

// =============================================================================
// INPUT
// =============================================================================

// prompter reads one line of input. io.EOF ends the session.
type prompter interface {
	Prompt(prompt string) (string, error)
}

// history is a liner prompt whose history persists in the config directory.
type history struct {
	line   *liner.State
	path   string
	logger *slog.Logger
}

func openHistory(logger *slog.Logger) *history {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	h := &history{line: line, path: filepath.Join(dir, "chat_history"), logger: logger}
	if f, err := os.Open(h.path); err == nil {
		if _, err := line.ReadHistory(f); err != nil {
			logger.Debug("history not loaded", "path", h.path, "error", err)
		}
		f.Close()
	}
	return h
}

// Prompt implements prompter. Non-blank lines are added to the history.
func (h *history) Prompt(prompt string) (string, error) {
	input, err := h.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		h.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history and restores the terminal.
func (h *history) Close() {
	defer h.line.Close()
	if err := os.MkdirAll(filepath.Dir(h.path), 0o700); err != nil {
		return
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		h.logger.Debug("history not saved", "path", h.path, "error", err)
		return
	}
	defer f.Close()
	if _, err := h.line.WriteHistory(f); err != nil {
		h.logger.Debug("history not saved", "path", h.path, "error", err)
	}
}

// scanPrompter reads lines from a non-terminal reader.
type scanPrompter struct {
	sc *bufio.Scanner
}

func newScanPrompter(r io.Reader) *scanPrompter {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &scanPrompter{sc: sc}
}

// Prompt implements prompter. The prompt is not echoed.
func (p *scanPrompter) Prompt(string) (string, error) {
	if !p.sc.Scan() {
		if err := p.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return p.sc.Text(), nil
}

// =============================================================================
// SESSION
// =============================================================================

// lineChat runs a conversation one turn at a time.
type lineChat struct {
	store    *store.Store
	streamer chat.Streamer
	uploader chat.Uploader
	renderer *components.MessageRenderer
	out      io.Writer
	logger   *slog.Logger

	// progress prints tool calls while a reply streams.
	progress bool

	// interrupt derives the context a turn runs under.
	interrupt func(context.Context) (context.Context, context.CancelFunc)

	pending []upload.File
}

func (c *lineChat) run(ctx context.Context, in prompter) error {
	for {
		line, err := in.Prompt(chatPrompt)
		switch {
		case errors.Is(err, liner.ErrPromptAborted):
			fmt.Fprintln(c.out, "(type :quit to exit)")
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}
		if c.handle(ctx, line) {
			return nil
		}
	}
}

// handle processes one input line and reports whether the session is over.
func (c *lineChat) handle(ctx context.Context, line string) bool {
	text := strings.TrimSpace(line)
	if text == "" {
		return false
	}
	if strings.HasPrefix(text, ":") {
		return c.command(text)
	}

	turnCtx, stop := c.interrupt(ctx)
	defer stop()
	c.turn(turnCtx, text)
	return false
}

func (c *lineChat) command(line string) bool {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case ":quit", ":q", ":exit":
		return true
	case ":attach":
		c.attach(fields[1:])
	case ":detach":
		fmt.Fprintf(c.out, "Removed %s.\n", plural(len(c.pending), "file"))
		c.pending = nil
	case ":clear":
		c.store.Reset()
		c.renderer.Forget()
		fmt.Fprintln(c.out, "Conversation cleared.")
	case ":help":
		fmt.Fprintln(c.out, chatHelp)
	default:
		fmt.Fprintf(c.out, "Unknown command: %s. Type :help for a list.\n", fields[0])
	}
	return false
}

func (c *lineChat) attach(paths []string) {
	if c.uploader == nil {
		fmt.Fprintln(c.out, "Uploads are not configured.")
		return
	}
	if len(paths) == 0 {
		fmt.Fprintln(c.out, "Usage: :attach <path>...")
		return
	}

	var files []upload.File
	for _, p := range paths {
		f, err := upload.FromPath(p)
		if err != nil {
			fmt.Fprintf(c.out, "Cannot attach: %v\n", err)
			continue
		}
		files = append(files, f)
	}
	accepted, rejected := upload.Partition(files)
	for _, r := range rejected {
		fmt.Fprintln(c.out, r.Error())
	}
	for _, f := range accepted {
		if !slices.ContainsFunc(c.pending, func(p upload.File) bool { return p.Path == f.Path }) {
			c.pending = append(c.pending, f)
		}
	}
	if len(accepted) > 0 {
		fmt.Fprintf(c.out, "Attached %s. They are sent with your next message.\n", plural(len(accepted), "file"))
	}
}

// turn uploads queued files, sends text and prints the reply. A failed
// upload abandons the message and keeps the files queued.
func (c *lineChat) turn(ctx context.Context, text string) {
	var atts []model.Attachment
	if len(c.pending) > 0 {
		fmt.Fprintf(c.out, "Uploading %s...\n", plural(len(c.pending), "file"))
		uploaded, err := c.uploader.UploadAll(ctx, c.pending)
		if err != nil {
			c.logger.Warn("upload failed", "error", err)
			fmt.Fprintf(c.out, "Not sent: %v\n", err)
			return
		}
		atts = uploaded
		c.pending = nil
	}

	c.store.AppendUser(text, atts)
	id := c.store.BeginResponse()
	req := chatstream.Request{Messages: c.store.History()}
	if len(atts) > 0 {
		req.Data = map[string]any{"attachments": atts}
	}

	err := c.streamer.Stream(ctx, req, id, c.emit)
	switch {
	case err == nil:
		c.store.Finish()
	case errors.Is(err, context.Canceled):
		c.store.Stop()
	case errors.Is(err, chatstream.ErrRateLimited):
		c.store.Fail(err)
	default:
		c.logger.Warn("stream failed", "message_id", id, "error", err)
		c.store.Fail(err)
	}

	if v, ok := c.store.Get(id); ok && (v.Content != "" || len(v.ToolInvocations) > 0) {
		fmt.Fprintln(c.out, c.renderer.Render(v, ""))
	}
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(c.out, "(stopped)")
	case errors.Is(err, chatstream.ErrRateLimited):
		fmt.Fprintln(c.out, rateLimitNotice)
	default:
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
}

// emit applies a stream event and reports tool calls as they start.
func (c *lineChat) emit(ev model.Event) {
	if err := c.store.Apply(ev); err != nil {
		return
	}
	if call, ok := ev.(model.ToolCallStarted); ok && c.progress {
		fmt.Fprintf(c.out, "Calling %s...\n", components.ToolLabel(call.Name))
	}
}
