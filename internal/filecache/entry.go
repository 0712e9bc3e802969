// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package filecache

import (
	"strconv"
	"time"
)

// Key is the file metadata a fingerprint is computed from.
type Key struct {
	Name string
	Size int64
	Type string
}

// Fingerprint returns the deterministic cache key "name_size_type".
//
// Two different files with identical name, size and type share a
// fingerprint; the cache accepts that collision.
func (k Key) Fingerprint() string {
	return k.Name + "_" + strconv.FormatInt(k.Size, 10) + "_" + k.Type
}

// Entry is one persisted cache record.
type Entry struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Type      string `json:"type"`
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// Key returns the metadata the entry was recorded under.
func (e Entry) Key() Key {
	return Key{Name: e.Name, Size: e.Size, Type: e.Type}
}

// CreatedAt returns the time the entry was written.
func (e Entry) CreatedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Age returns how old the entry is at now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt())
}

func (e Entry) expired(now time.Time, retention time.Duration) bool {
	return e.Age(now) > retention
}
