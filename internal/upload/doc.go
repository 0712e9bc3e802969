// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package upload validates local files and uploads them as chat attachments.
//
// Validation happens per file before any network traffic: only PDF, CSV,
// Excel and plain-text files are accepted, PDFs up to 50MB and everything
// else up to 10MB. Invalid files are reported individually and the rest
// proceed.
//
// Two backends are provided:
//
//   - BlobBackend: the signed-upload protocol. A token is requested for the
//     pathname and content type (the server rejects disallowed types before
//     any bytes move), then the bytes are PUT with that token.
//   - LocalBackend: a single multipart POST to a development server.
//
// Uploader runs one batch concurrently, consulting the fingerprint cache
// before each upload and recording the URL after. The batch fails as a
// whole if any file fails.
package upload
