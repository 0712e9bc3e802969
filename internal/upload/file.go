// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/jeranaias/atlas-tui/internal/filecache"
)

// File is a local file picked for upload.
type File struct {
	Name string // base name shown to the user and the backend
	Size int64
	Type string // declared MIME type, parameters stripped
	Path string
}

// Key returns the fingerprint cache key for f.
func (f File) Key() filecache.Key {
	return filecache.Key{Name: f.Name, Size: f.Size, Type: f.Type}
}

// Ext returns the lower-case extension including the dot.
func (f File) Ext() string {
	return strings.ToLower(filepath.Ext(f.Name))
}

// Open opens the file's bytes.
func (f File) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}

// FromPath stats path and determines its declared type: the extension's
// type when the extension is one we know, otherwise the sniffed content
// type.
func FromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}

	f := File{
		Name: filepath.Base(path),
		Size: info.Size(),
		Path: path,
	}
	if t, ok := typeByExtension[f.Ext()]; ok {
		f.Type = t
		return f, nil
	}

	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return File{}, fmt.Errorf("detect type of %s: %w", path, err)
	}
	f.Type = baseMediaType(detected.String())
	return f, nil
}

// baseMediaType strips parameters: "text/plain; charset=utf-8" -> "text/plain".
func baseMediaType(v string) string {
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mt
}
