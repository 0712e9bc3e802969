// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the atlas TUI.
//
// Colors are lipgloss AdaptiveColors. Theme bundles the styles used by the
// components and records which glamour and chroma styles render prose and
// code.
package styles
