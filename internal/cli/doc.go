// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli wires the atlas commands.
//
// Commands:
//
//	atlas                 full-screen chat (Bubble Tea)
//	atlas chat            line-mode chat with history
//	atlas cache stats     upload cache summary
//	atlas cache list      cached uploads, newest first
//	atlas cache clear     drop every cached upload
//	atlas serve           local development blob server
//	atlas version         build information
//
// Every command accepts --config and --log-level. Configuration is loaded
// from .env files, the TOML config file and ATLAS_* environment variables,
// in that order of increasing precedence.
package cli
