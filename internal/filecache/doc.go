// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package filecache remembers where previously uploaded files ended up so the
// same file is not uploaded twice.
//
// Entries are keyed by a fingerprint of the file's metadata (name, size and
// MIME type), never its bytes. Entries older than the retention window
// (seven days by default) are treated as absent and purged lazily on the
// next read or write that touches the cache.
//
// The cache never fails its caller: storage errors are logged at debug level
// and behave like an empty cache.
//
// # Usage
//
//	cache := filecache.New(filecache.NewFileStorage(path))
//	key := filecache.Key{Name: "q3.csv", Size: 2048, Type: "text/csv"}
//	if entry, ok := cache.Get(key); ok {
//		return entry.URL
//	}
//	url := upload(file)
//	cache.Put(key, url)
package filecache
