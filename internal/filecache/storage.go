// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package filecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/jeranaias/atlas-tui/internal/util"
)

// FileName is the default cache file name under the config directory.
const FileName = "upload_cache.json"

// Storage persists the whole fingerprint map.
type Storage interface {
	Load() (map[string]Entry, error)
	Save(entries map[string]Entry) error
	Remove() error
}

// =============================================================================
// FILE STORAGE
// =============================================================================

// FileStorage keeps the cache as a single JSON object on disk.
type FileStorage struct {
	path string
}

// NewFileStorage returns storage backed by the JSON file at path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Path returns the backing file path.
func (s *FileStorage) Path() string {
	return s.path
}

// Load reads the cache file. A missing file is an empty cache.
func (s *FileStorage) Load() (map[string]Entry, error) {
	data, err := util.ReadFileIfExists(s.path)
	if err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	entries := make(map[string]Entry)
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse cache file: %w", err)
	}
	return entries, nil
}

// Save writes the cache file atomically.
func (s *FileStorage) Save(entries map[string]Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := util.AtomicWriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	return nil
}

// Remove deletes the cache file.
func (s *FileStorage) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}

// =============================================================================
// MEMORY STORAGE
// =============================================================================

// MemoryStorage keeps the cache in process memory. Useful in tests and when
// no config directory is available.
type MemoryStorage struct {
	mu      sync.Mutex
	entries map[string]Entry

	// Fail forces every operation to return this error when set.
	Fail error
}

// NewMemoryStorage returns an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string]Entry)}
}

func (s *MemoryStorage) Load() (map[string]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	out := make(map[string]Entry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStorage) Save(entries map[string]Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	s.entries = make(map[string]Entry, len(entries))
	for k, v := range entries {
		s.entries[k] = v
	}
	return nil
}

func (s *MemoryStorage) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	s.entries = make(map[string]Entry)
	return nil
}
