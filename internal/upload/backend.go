// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/atlas-tui/internal/model"
)

// Backend moves one file's bytes to remote storage and returns its public
// attachment.
type Backend interface {
	Upload(ctx context.Context, f File) (model.Attachment, error)
}

// ErrTypeRejected is returned when the server refuses the content type.
var ErrTypeRejected = errors.New("content type rejected by server")

// StatusError is a non-success response from an upload endpoint.
type StatusError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Is matches ErrTypeRejected for 415 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrTypeRejected && e.StatusCode == http.StatusUnsupportedMediaType
}

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 4 * 1024

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}

func defaultHTTPClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 5 * time.Minute}
}

// UniqueName appends a millisecond timestamp to the base name so repeated
// uploads of the same file never collide: "report.pdf" -> "report_1700000000000.pdf".
func UniqueName(name string, now time.Time) string {
	stamp := strconv.FormatInt(now.UnixMilli(), 10)
	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 || dot == len(name)-1 {
		return name + "_" + stamp
	}
	return name[:dot] + "_" + stamp + name[dot:]
}

// =============================================================================
// SIGNED BLOB UPLOAD
// =============================================================================

// TokenRequest asks the blob server for permission to upload one file.
type TokenRequest struct {
	Pathname    string `json:"pathname"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// TokenResponse grants a single upload.
type TokenResponse struct {
	Token     string `json:"token"`
	UploadURL string `json:"uploadUrl"`
}

// PutResponse describes the stored blob.
type PutResponse struct {
	URL         string `json:"url"`
	Pathname    string `json:"pathname,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// BlobBackend implements the two-step signed upload.
type BlobBackend struct {
	tokenURL   string
	httpClient *http.Client
	now        func() time.Time
}

// NewBlobBackend creates a backend that requests tokens from tokenURL.
// A nil client gets a default with a generous timeout.
func NewBlobBackend(tokenURL string, client *http.Client) *BlobBackend {
	return &BlobBackend{
		tokenURL:   tokenURL,
		httpClient: defaultHTTPClient(client),
		now:        time.Now,
	}
}

// Upload implements Backend.
func (b *BlobBackend) Upload(ctx context.Context, f File) (model.Attachment, error) {
	grant, err := b.requestToken(ctx, TokenRequest{
		Pathname:    UniqueName(f.Name, b.now()),
		ContentType: f.Type,
		Size:        f.Size,
	})
	if err != nil {
		return model.Attachment{}, fmt.Errorf("request token: %w", err)
	}

	url, err := b.put(ctx, grant, f)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("put blob: %w", err)
	}
	return model.Attachment{Name: f.Name, ContentType: f.Type, URL: url}, nil
}

func (b *BlobBackend) requestToken(ctx context.Context, tr TokenRequest) (TokenResponse, error) {
	body, err := json.Marshal(tr)
	if err != nil {
		return TokenResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.tokenURL, bytes.NewReader(body))
	if err != nil {
		return TokenResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return TokenResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return TokenResponse{}, statusError(resp)
	}

	var grant TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return TokenResponse{}, fmt.Errorf("decode token response: %w", err)
	}
	if grant.Token == "" || grant.UploadURL == "" {
		return TokenResponse{}, errors.New("token response missing token or uploadUrl")
	}
	return grant, nil
}

func (b *BlobBackend) put(ctx context.Context, grant TokenResponse, f File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, grant.UploadURL, rc)
	if err != nil {
		return "", err
	}
	req.ContentLength = f.Size
	req.Header.Set("Content-Type", f.Type)
	req.Header.Set("Authorization", "Bearer "+grant.Token)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", statusError(resp)
	}

	var out PutResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode put response: %w", err)
	}
	if out.URL == "" {
		return "", errors.New("put response missing url")
	}
	return out.URL, nil
}

// =============================================================================
// LOCAL DEV UPLOAD
// =============================================================================

// LocalBackend posts each file as multipart form field "file".
type LocalBackend struct {
	url        string
	httpClient *http.Client
}

// NewLocalBackend creates a backend posting to url.
func NewLocalBackend(url string, client *http.Client) *LocalBackend {
	return &LocalBackend{url: url, httpClient: defaultHTTPClient(client)}
}

// Upload implements Backend. The server's name and type are returned as-is.
func (b *LocalBackend) Upload(ctx context.Context, f File) (model.Attachment, error) {
	rc, err := f.Open()
	if err != nil {
		return model.Attachment{}, err
	}

	// PERFORMANCE: stream the multipart body through a pipe so large PDFs are
	// never held in memory.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer rc.Close()
		pw.CloseWithError(writeFormFile(mw, f, rc))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, pr)
	if err != nil {
		pr.CloseWithError(err)
		return model.Attachment{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := b.httpClient.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return model.Attachment{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return model.Attachment{}, statusError(resp)
	}

	var out struct {
		Name string `json:"name"`
		Type string `json:"type"`
		URL  string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.Attachment{}, fmt.Errorf("decode upload response: %w", err)
	}
	if out.URL == "" {
		return model.Attachment{}, errors.New("upload response missing url")
	}
	return model.Attachment{Name: out.Name, ContentType: out.Type, URL: out.URL}, nil
}

func writeFormFile(mw *multipart.Writer, f File, r io.Reader) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
	h.Set("Content-Type", f.Type)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	return mw.Close()
}
