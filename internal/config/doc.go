// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for atlas.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (ATLAS_*), including those from .env files
//   - ~/.atlas/config.toml (ATLAS_HOME overrides the directory)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Hot reload of UI settings:
//
//	_ = config.Watch(ctx, path, func(cfg *config.Config, err error) { ... })
package config
