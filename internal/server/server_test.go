// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/atlas-tui/internal/blobstore"
	"github.com/jeranaias/atlas-tui/internal/upload"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg Config) (*httptest.Server, *blobstore.Store) {
	t.Helper()
	store, err := blobstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := New(cfg, store, quietLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func tempFile(t *testing.T, name, content string) upload.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	f, err := upload.FromPath(path)
	require.NoError(t, err)
	return f
}

func fetch(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func postToken(t *testing.T, base string, tr upload.TokenRequest) *http.Response {
	t.Helper()
	body, _ := json.Marshal(tr)
	resp, err := http.Post(base+"/api/blob/upload", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

// =============================================================================
// SIGNED UPLOAD
// =============================================================================

func TestSignedUpload_RoundTrip(t *testing.T) {
	ts, _ := newTestServer(t, Config{Secret: "s3cret"})
	f := tempFile(t, "data.csv", "a,b\n1,2\n")

	att, err := upload.NewBlobBackend(ts.URL+"/api/blob/upload", ts.Client()).Upload(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, "data.csv", att.Name)
	assert.Equal(t, "text/csv", att.ContentType)
	assert.True(t, strings.HasPrefix(att.URL, ts.URL+"/blob/"), att.URL)

	status, body := fetch(t, att.URL)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a,b\n1,2\n", body)
}

func TestToken_RejectsDisallowedTypeBeforeBytes(t *testing.T) {
	ts, store := newTestServer(t, Config{Secret: "s3cret"})

	resp := postToken(t, ts.URL, upload.TokenRequest{Pathname: "x.png", ContentType: "image/png", Size: 10})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Error, "Upload failed")

	blobs, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, blobs)
}

func TestToken_OversizedRejected(t *testing.T) {
	ts, _ := newTestServer(t, Config{Secret: "s3cret"})
	resp := postToken(t, ts.URL, upload.TokenRequest{Pathname: "a.csv", ContentType: "text/csv", Size: upload.MaxFileSize + 1})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestToken_NoSecretIsServerError(t *testing.T) {
	ts, _ := newTestServer(t, Config{})
	resp := postToken(t, ts.URL, upload.TokenRequest{Pathname: "a.csv", ContentType: "text/csv", Size: 1})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestPut_TokenIsSingleUse(t *testing.T) {
	ts, _ := newTestServer(t, Config{Secret: "s3cret"})

	resp := postToken(t, ts.URL, upload.TokenRequest{Pathname: "a.txt", ContentType: "text/plain", Size: 2})
	var grant upload.TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&grant))
	resp.Body.Close()

	put := func() int {
		req, _ := http.NewRequest(http.MethodPut, grant.UploadURL, strings.NewReader("hi"))
		req.Header.Set("Content-Type", "text/plain")
		req.Header.Set("Authorization", "Bearer "+grant.Token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusOK, put())
	assert.Equal(t, http.StatusUnauthorized, put())
}

func TestPut_ContentTypeMustMatchGrant(t *testing.T) {
	ts, _ := newTestServer(t, Config{Secret: "s3cret"})

	resp := postToken(t, ts.URL, upload.TokenRequest{Pathname: "a.txt", ContentType: "text/plain", Size: 2})
	var grant upload.TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&grant))
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodPut, grant.UploadURL, strings.NewReader("hi"))
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Authorization", "Bearer "+grant.Token)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestPut_ForgedToken(t *testing.T) {
	ts, _ := newTestServer(t, Config{Secret: "s3cret"})
	other, err := NewSigner("other", 0)
	require.NoError(t, err)
	token, _, err := other.Issue("a.txt", "text/plain", 2)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/blob/put", strings.NewReader("hi"))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

// =============================================================================
// MULTIPART UPLOAD
// =============================================================================

func TestMultipart_RoundTrip(t *testing.T) {
	ts, _ := newTestServer(t, Config{})
	f := tempFile(t, "notes.txt", "hello")

	att, err := upload.NewLocalBackend(ts.URL+"/api/upload", ts.Client()).Upload(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", att.Name)
	assert.Equal(t, "text/plain", att.ContentType)

	status, body := fetch(t, att.URL)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hello", body)
}

func TestMultipart_UnsupportedType(t *testing.T) {
	ts, _ := newTestServer(t, Config{})
	f := tempFile(t, "image.png", "\x89PNG\r\n\x1a\n")

	_, err := upload.NewLocalBackend(ts.URL+"/api/upload", ts.Client()).Upload(context.Background(), f)
	var se *upload.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnsupportedMediaType, se.StatusCode)
	assert.Contains(t, se.Message, "Unsupported file type")
}

func TestGet_UnknownBlob(t *testing.T) {
	ts, _ := newTestServer(t, Config{})
	status, _ := fetch(t, ts.URL+"/blob/nope/file.txt")
	assert.Equal(t, http.StatusNotFound, status)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestRateLimit_Answers429(t *testing.T) {
	ts, _ := newTestServer(t, Config{RateLimit: 0.001, Burst: 2})

	for i := 0; i < 2; i++ {
		status, _ := fetch(t, ts.URL+"/health")
		assert.Equal(t, http.StatusOK, status)
	}
	status, body := fetch(t, ts.URL+"/health")
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, body, "Too many requests")
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(quietLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(mw("a"), mw("b"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

// =============================================================================
// TOKENS
// =============================================================================

func TestSigner_Expiry(t *testing.T) {
	s, err := NewSigner("k", time.Minute)
	require.NoError(t, err)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	token, grant, err := s.Issue("a.csv", "text/csv", 3)
	require.NoError(t, err)
	assert.Equal(t, "a.csv", grant.Pathname)

	now = now.Add(2 * time.Minute)
	_, err = s.Redeem(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSigner_Tampered(t *testing.T) {
	s, err := NewSigner("k", 0)
	require.NoError(t, err)
	token, _, err := s.Issue("a.csv", "text/csv", 3)
	require.NoError(t, err)

	_, err = s.Redeem("x" + token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
	_, err = s.Redeem("no-dot")
	assert.ErrorIs(t, err, ErrInvalidToken)

	g, err := s.Redeem(token)
	require.NoError(t, err)
	assert.Equal(t, int64(3), g.Size)
}

func TestNewSigner_RequiresSecret(t *testing.T) {
	_, err := NewSigner("", 0)
	assert.Error(t, err)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	store, err := blobstore.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(Config{}, store, quietLogger()).Serve(ctx, ln) }()

	status, _ := fetch(t, "http://"+ln.Addr().String()+"/health")
	assert.Equal(t, http.StatusOK, status)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
