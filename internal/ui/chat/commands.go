// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/atlas-tui/internal/upload"
	"github.com/jeranaias/atlas-tui/internal/util"
)

// HelpText lists the slash commands and keys.
const HelpText = `Commands:
  /attach <path>...  queue PDF, CSV, Excel or text files for the next message
  /detach            drop queued files
  /clear             stop any response and clear the conversation
  /cache             show upload cache statistics
  /help              show this help

Keys: Enter send, Alt+Enter newline, Esc stop, PgUp/PgDn scroll, Ctrl+C quit`

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// runCommand executes a slash command line.
func (m *Model) runCommand(line string) tea.Cmd {
	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "/attach":
		m.attach(args)
	case "/detach":
		n := len(m.pending)
		m.pending = nil
		m.toasts.Status("Removed " + plural(n, "file") + ".")
	case "/clear":
		m.stop()
		m.store.Reset()
		m.renderer.Forget()
		m.suggestion = -1
	case "/cache":
		m.store.AppendSystem(m.cacheSummary())
	case "/help":
		m.store.AppendSystem(HelpText)
	default:
		m.toasts.Error("Unknown command: " + fields[0] + ". Type /help for a list.")
	}
	m.dirty = true
	return nil
}

// attach validates paths and queues the accepted files. Each rejected file
// gets its own notice.
func (m *Model) attach(paths []string) {
	if m.uploader == nil {
		m.toasts.Error("Uploads are not configured.")
		return
	}
	if len(paths) == 0 {
		m.toasts.Error("Usage: /attach <path>...")
		return
	}

	var files []upload.File
	for _, p := range paths {
		f, err := upload.FromPath(p)
		if err != nil {
			m.toasts.Error(sentence(err.Error()))
			continue
		}
		files = append(files, f)
	}

	accepted, rejected := upload.Partition(files)
	for _, r := range rejected {
		m.toasts.Error(r.Error())
	}
	for _, f := range accepted {
		if slices.ContainsFunc(m.pending, func(p upload.File) bool { return p.Path == f.Path }) {
			continue
		}
		m.pending = append(m.pending, f)
	}
	if len(accepted) > 0 {
		m.toasts.Status("Attached " + plural(len(accepted), "file") + ".")
	}
}

func (m *Model) cacheSummary() string {
	if m.inspector == nil {
		return "Upload cache is disabled."
	}
	stats := m.inspector.Stats()
	summary := fmt.Sprintf("Upload cache: %s, %s", plural(stats.TotalFiles, "file"), util.FormatBytes(stats.TotalSize))
	if stats.ExpiredFiles > 0 {
		summary += fmt.Sprintf(" (%d expired)", stats.ExpiredFiles)
	}
	return summary
}

// =============================================================================
// HELPERS
// =============================================================================

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}

// sentence upper-cases the first letter of an error message for display.
func sentence(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
