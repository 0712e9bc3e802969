// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package blobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBlobNotFound is returned when no blob has the requested id.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrTooLarge is returned when a body exceeds the size passed to Put.
	ErrTooLarge = errors.New("blob exceeds size limit")

	// ErrInvalidPathname is returned for pathnames that clean to nothing.
	ErrInvalidPathname = errors.New("invalid pathname")
)

// =============================================================================
// BLOB TYPE
// =============================================================================

// Blob is the metadata of one stored file.
type Blob struct {
	ID          string
	Pathname    string
	ContentType string
	Size        int64
	CreatedAt   time.Time
}

// =============================================================================
// STORE
// =============================================================================

// Store is a directory of blobs indexed in SQLite. Safe for concurrent use.
type Store struct {
	db  *sql.DB
	dir string
	now func() time.Time
}

// Open opens (creating if needed) the store rooted at dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "objects"), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "blobs.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(initMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	return &Store{db: db, dir: dir, now: time.Now}, nil
}

// Close closes the index.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) objectPath(id string) string {
	return filepath.Join(s.dir, "objects", id)
}

// CleanPathname reduces a client-supplied pathname to a safe display name:
// NFC-normalized, directory components dropped, control characters removed.
func CleanPathname(p string) string {
	p = norm.NFC.String(p)
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Base(p)
	p = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, p)
	p = strings.TrimSpace(p)
	if p == "." || p == "/" || p == ".." {
		return ""
	}
	return p
}

// Put stores r under a fresh id. maxSize <= 0 disables the size check.
func (s *Store) Put(ctx context.Context, pathname, contentType string, r io.Reader, maxSize int64) (Blob, error) {
	name := CleanPathname(pathname)
	if name == "" {
		return Blob{}, ErrInvalidPathname
	}

	tmp, err := os.CreateTemp(filepath.Join(s.dir, "objects"), ".upload-*")
	if err != nil {
		return Blob{}, fmt.Errorf("create temp object: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	src := r
	if maxSize > 0 {
		src = io.LimitReader(r, maxSize+1)
	}
	n, err := io.Copy(tmp, src)
	if err != nil {
		return Blob{}, fmt.Errorf("write object: %w", err)
	}
	if maxSize > 0 && n > maxSize {
		return Blob{}, ErrTooLarge
	}
	if err := tmp.Sync(); err != nil {
		return Blob{}, fmt.Errorf("sync object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Blob{}, fmt.Errorf("close object: %w", err)
	}

	blob := Blob{
		ID:          uuid.NewString(),
		Pathname:    name,
		ContentType: contentType,
		Size:        n,
		CreatedAt:   s.now().UTC().Truncate(time.Millisecond),
	}
	if err := os.Rename(tmpName, s.objectPath(blob.ID)); err != nil {
		return Blob{}, fmt.Errorf("commit object: %w", err)
	}
	committed = true

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO blobs (id, pathname, content_type, size, created_at) VALUES (?, ?, ?, ?, ?)`,
		blob.ID, blob.Pathname, blob.ContentType, blob.Size, blob.CreatedAt.UnixMilli())
	if err != nil {
		os.Remove(s.objectPath(blob.ID))
		return Blob{}, fmt.Errorf("index blob: %w", err)
	}
	return blob, nil
}

// Get returns a blob's metadata.
func (s *Store) Get(ctx context.Context, id string) (Blob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, pathname, content_type, size, created_at FROM blobs WHERE id = ?`, id)
	blob, err := scanBlob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Blob{}, ErrBlobNotFound
	}
	return blob, err
}

// OpenBlob returns the blob's metadata and a reader over its bytes.
func (s *Store) OpenBlob(ctx context.Context, id string) (Blob, *os.File, error) {
	blob, err := s.Get(ctx, id)
	if err != nil {
		return Blob{}, nil, err
	}
	f, err := os.Open(s.objectPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return Blob{}, nil, ErrBlobNotFound
	}
	if err != nil {
		return Blob{}, nil, err
	}
	return blob, f, nil
}

// List returns all blobs, newest first.
func (s *Store) List(ctx context.Context) ([]Blob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pathname, content_type, size, created_at FROM blobs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Blob
	for rows.Next() {
		blob, err := scanBlob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, blob)
	}
	return out, rows.Err()
}

// Delete removes a blob and its bytes.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBlobNotFound
	}
	if err := os.Remove(s.objectPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBlob(sc scanner) (Blob, error) {
	var (
		b       Blob
		created int64
	)
	if err := sc.Scan(&b.ID, &b.Pathname, &b.ContentType, &b.Size, &created); err != nil {
		return Blob{}, err
	}
	b.CreatedAt = time.UnixMilli(created).UTC()
	return b, nil
}
