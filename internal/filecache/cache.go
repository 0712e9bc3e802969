// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package filecache

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultRetention is how long an uploaded file's URL stays reusable.
const DefaultRetention = 7 * 24 * time.Hour

// Cache maps file fingerprints to previously uploaded URLs.
//
// Each operation is serialized, but a get/upload/put sequence is not atomic:
// two identical files uploaded concurrently may both miss and both upload.
// The last Put wins.
type Cache struct {
	mu        sync.Mutex
	storage   Storage
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithRetention overrides the retention window. Non-positive values are
// ignored.
func WithRetention(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.retention = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger used for swallowed storage errors.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a cache over storage.
func New(storage Storage, opts ...Option) *Cache {
	c := &Cache{
		storage:   storage,
		retention: DefaultRetention,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Retention returns the configured retention window.
func (c *Cache) Retention() time.Duration {
	return c.retention
}

// Get returns the live entry for key. Expired entries are misses and are
// purged along with any other expired entries.
func (c *Cache) Get(key Key) (Entry, bool) {
	return c.Lookup(key.Fingerprint())
}

// Lookup is Get by precomputed fingerprint.
func (c *Cache) Lookup(fingerprint string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.load()
	entry, ok := entries[fingerprint]
	if !ok {
		return Entry{}, false
	}

	now := c.now()
	if entry.expired(now, c.retention) {
		c.sweepLocked(entries, now)
		return Entry{}, false
	}
	return entry, true
}

// Put records url for key, overwriting any existing entry.
func (c *Cache) Put(key Key, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.load()
	now := c.now()
	for fp, e := range entries {
		if e.expired(now, c.retention) {
			delete(entries, fp)
		}
	}
	entries[key.Fingerprint()] = Entry{
		Name:      key.Name,
		Size:      key.Size,
		Type:      key.Type,
		URL:       url,
		Timestamp: now.UnixMilli(),
	}
	c.save(entries)
}

// Sweep removes every expired entry and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.load(), c.now())
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.storage.Remove(); err != nil {
		c.logger.Debug("upload cache clear failed", "error", err)
	}
}

// snapshot returns all stored entries, expired ones included, and the
// current time.
func (c *Cache) snapshot() (map[string]Entry, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(), c.now()
}

func (c *Cache) sweepLocked(entries map[string]Entry, now time.Time) int {
	removed := 0
	for fp, e := range entries {
		if e.expired(now, c.retention) {
			delete(entries, fp)
			removed++
		}
	}
	if removed > 0 {
		c.save(entries)
	}
	return removed
}

// load never fails; unreadable storage is an empty cache.
func (c *Cache) load() map[string]Entry {
	entries, err := c.storage.Load()
	if err != nil {
		c.logger.Debug("upload cache load failed", "error", err)
		return make(map[string]Entry)
	}
	if entries == nil {
		entries = make(map[string]Entry)
	}
	return entries
}

func (c *Cache) save(entries map[string]Entry) {
	if err := c.storage.Save(entries); err != nil {
		c.logger.Debug("upload cache save failed", "error", err)
	}
}
