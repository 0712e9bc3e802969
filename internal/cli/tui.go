// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/atlas-tui/internal/config"
	"github.com/jeranaias/atlas-tui/internal/store"
	"github.com/jeranaias/atlas-tui/internal/ui/chat"
	"github.com/jeranaias/atlas-tui/internal/ui/styles"
)

// runTUI starts the full-screen chat and hot-reloads UI settings while it
// runs.
func runTUI(ctx context.Context, opts *globalOptions) error {
	if !IsTTY() || !IsStdoutTTY() {
		return &TTYRequiredError{Operation: "start the full-screen chat", Hint: "use `atlas chat` for line mode"}
	}

	rt, err := opts.setup(nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	cache := rt.openCache()
	ui := rt.cfg.UI
	m := chat.New(chat.Options{
		Store:           store.New(rt.logger),
		Streamer:        rt.newStreamer(),
		Uploader:        rt.newUploader(cache),
		Cache:           cache,
		Theme:           styles.NewTheme(ui.MarkdownStyle, ui.CodeTheme),
		FollowThreshold: ui.FollowThreshold,
		WordWrap:        ui.WordWrap,
		Logger:          rt.logger,
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	err = config.Watch(watchCtx, rt.cfgPath, func(cfg *config.Config, err error) {
		if err != nil {
			rt.logger.Warn("config reload failed", "path", rt.cfgPath, "error", err)
			return
		}
		p.Send(chat.ConfigReloadedMsg{Config: cfg})
	})
	if err != nil {
		rt.logger.Warn("config hot reload disabled", "error", err)
	}

	rt.logger.Info("tui started", "version", Version, "endpoint", rt.cfg.Chat.Endpoint)
	_, err = p.Run()
	return err
}
