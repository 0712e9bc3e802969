// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package filecache

import (
	"sort"
	"time"
)

// Stats summarizes the cache contents.
type Stats struct {
	TotalFiles   int
	TotalSize    int64
	ExpiredFiles int
	Files        []FileInfo
}

// FileInfo describes one cached file for display.
type FileInfo struct {
	Fingerprint string
	Name        string
	Size        int64
	Age         time.Duration
	URL         string
	Expired     bool
}

// Inspector exposes read-only views of a cache plus Clear.
type Inspector struct {
	cache *Cache
}

// NewInspector returns an inspector over cache.
func NewInspector(cache *Cache) *Inspector {
	return &Inspector{cache: cache}
}

// Stats reports totals over every stored entry. Expired entries that have
// not been swept yet are counted in TotalFiles and ExpiredFiles.
func (i *Inspector) Stats() Stats {
	files := i.Entries()
	stats := Stats{TotalFiles: len(files), Files: files}
	for _, f := range files {
		stats.TotalSize += f.Size
		if f.Expired {
			stats.ExpiredFiles++
		}
	}
	return stats
}

// Entries lists stored entries, newest first.
func (i *Inspector) Entries() []FileInfo {
	entries, now := i.cache.snapshot()
	files := make([]FileInfo, 0, len(entries))
	for fp, e := range entries {
		files = append(files, FileInfo{
			Fingerprint: fp,
			Name:        e.Name,
			Size:        e.Size,
			Age:         e.Age(now),
			URL:         e.URL,
			Expired:     e.expired(now, i.cache.retention),
		})
	}
	sort.Slice(files, func(a, b int) bool {
		if files[a].Age != files[b].Age {
			return files[a].Age < files[b].Age
		}
		return files[a].Fingerprint < files[b].Fingerprint
	})
	return files
}

// Clear removes every entry.
func (i *Inspector) Clear() {
	i.cache.Clear()
}
