// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across atlas packages.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync and rename
//   - ReadFileIfExists: read a file, treating absence as empty
//
// Display Helpers:
//   - TruncateWidth, PadWidth: column-aware truncation and padding
//   - FormatBytes, FormatAge: human-readable sizes and ages
package util
