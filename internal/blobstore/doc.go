// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package blobstore keeps uploaded files for the local development server.
//
// Bytes live as one file per blob under <dir>/objects; metadata lives in a
// SQLite index (<dir>/blobs.db, pure Go driver). Blob ids are random UUIDs
// so public URLs are unguessable.
package blobstore
