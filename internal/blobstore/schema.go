// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package blobstore

// SchemaVersion tracks the index schema for future migrations.
const SchemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS blobs (
    id TEXT PRIMARY KEY,
    pathname TEXT NOT NULL,
    content_type TEXT NOT NULL,
    size INTEGER NOT NULL,
    created_at INTEGER NOT NULL -- unix milliseconds
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS idx_blobs_created_at ON blobs(created_at);
`

const initMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
`
