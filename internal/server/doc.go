// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the local development blob server.
//
// It stands in for hosted blob storage so uploads can be exercised end to
// end on one machine.
//
// # Endpoints
//
//   - POST /api/blob/upload  - grant a signed upload token (415 for disallowed types)
//   - PUT  /api/blob/put     - store bytes with "Authorization: Bearer <token>"
//   - POST /api/upload       - multipart upload, field "file"
//   - GET  /blob/{id}/{name} - serve a stored blob
//   - GET  /health           - health check
//
// # Middleware
//
//   - Panic recovery
//   - Request logging (one slog line per request)
//   - nosniff headers
//   - Per-client token-bucket rate limiting, 429 "Too many requests"
//
// # Usage
//
//	store, _ := blobstore.Open(dataDir)
//	srv := server.New(server.Config{Addr: ":8790", Secret: secret}, store, logger)
//	err := srv.ListenAndServe(ctx)
package server
