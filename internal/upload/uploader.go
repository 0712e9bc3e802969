// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/atlas-tui/internal/filecache"
	"github.com/jeranaias/atlas-tui/internal/model"
)

// Uploader runs a batch of uploads through a Backend with the fingerprint
// cache in front of it.
type Uploader struct {
	backend Backend
	cache   *filecache.Cache
	logger  *slog.Logger
}

// NewUploader creates an uploader. cache may be nil to disable dedup.
func NewUploader(backend Backend, cache *filecache.Cache, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{backend: backend, cache: cache, logger: logger}
}

// UploadAll uploads files concurrently and returns their attachments in
// input order. Any failure fails the whole batch; uploads that already
// succeeded stay cached.
func (u *Uploader) UploadAll(ctx context.Context, files []File) ([]model.Attachment, error) {
	out := make([]model.Attachment, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			att, err := u.uploadOne(gctx, f)
			if err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
			out[i] = att
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	return out, nil
}

func (u *Uploader) uploadOne(ctx context.Context, f File) (model.Attachment, error) {
	key := f.Key()
	if u.cache != nil {
		if e, ok := u.cache.Get(key); ok {
			u.logger.Debug("upload cache hit", "file", f.Name, "url", e.URL)
			return model.Attachment{Name: e.Name, ContentType: e.Type, URL: e.URL}, nil
		}
	}

	att, err := u.backend.Upload(ctx, f)
	if err != nil {
		return model.Attachment{}, err
	}
	u.logger.Debug("uploaded", "file", f.Name, "url", att.URL)

	if u.cache != nil {
		u.cache.Put(key, att.URL)
	}
	return att, nil
}
