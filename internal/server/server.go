// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeranaias/atlas-tui/internal/blobstore"
	"github.com/jeranaias/atlas-tui/internal/upload"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = "127.0.0.1:8790"

	// MaxTokenRequestSize caps the JSON body of a token request.
	MaxTokenRequestSize = 64 * 1024

	// multipartOverhead is slack for form boundaries and headers.
	multipartOverhead = 1 * 1024 * 1024
)

// ============================================================================
// SERVER
// ============================================================================

// Config configures the dev blob server.
type Config struct {
	Addr string

	// PublicURL prefixes returned blob URLs. Empty means derive it from the
	// request's Host.
	PublicURL string

	// Secret keys upload tokens. Empty disables the signed flow (token
	// requests answer 500).
	Secret   string
	TokenTTL time.Duration

	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64
	Burst     int
}

// Server serves the signed-upload endpoints, the multipart dev upload and
// the stored blobs.
type Server struct {
	cfg     Config
	store   *blobstore.Store
	signer  *Signer
	logger  *slog.Logger
	limiter *RateLimiter
	mux     *http.ServeMux
	handler http.Handler
}

// New wires the routes and middleware around store.
func New(cfg Config, store *blobstore.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")

	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	if signer, err := NewSigner(cfg.Secret, cfg.TokenTTL); err == nil {
		s.signer = signer
	} else {
		logger.Warn("signed uploads disabled", "error", err)
	}

	s.setupRoutes()

	middleware := []func(http.Handler) http.Handler{
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		SecurityHeadersMiddleware(),
	}
	if cfg.RateLimit > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimit, cfg.Burst)
		middleware = append(middleware, RateLimitMiddleware(s.limiter, logger))
	}
	s.handler = Chain(middleware...)(s.mux)
	return s
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("POST /api/blob/upload", s.handleToken)
	s.mux.HandleFunc("PUT /api/blob/put", s.handlePut)
	s.mux.HandleFunc("POST /api/upload", s.handleMultipart)
	s.mux.HandleFunc("GET /blob/{id}/{name}", s.handleGet)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// handleToken grants a single upload. Disallowed types are refused here so
// no bytes are ever sent for them.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if s.signer == nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Upload token secret not configured"})
		return
	}

	var req upload.TokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxTokenRequestSize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Upload failed: invalid request body"})
		return
	}

	contentType := strings.ToLower(req.ContentType)
	if !upload.IsAllowedType(contentType) {
		writeJSON(w, http.StatusUnsupportedMediaType, errorBody{
			Error: fmt.Sprintf("Upload failed: content type %q is not allowed", req.ContentType),
		})
		return
	}

	pathname := blobstore.CleanPathname(req.Pathname)
	if pathname == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Upload failed: invalid pathname"})
		return
	}

	f := upload.File{Name: pathname, Type: contentType, Size: req.Size}
	if err := upload.Validate(f); err != nil || req.Size < 0 {
		msg := "Upload failed: invalid size"
		if err != nil {
			msg = "Upload failed: " + err.Error()
		}
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: msg})
		return
	}

	token, _, err := s.signer.Issue(pathname, contentType, req.Size)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Upload failed: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, upload.TokenResponse{
		Token:     token,
		UploadURL: s.baseURL(r) + "/api/blob/put",
	})
}

// handlePut stores the bytes authorized by a bearer token.
func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	if s.signer == nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Upload token secret not configured"})
		return
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing upload token"})
		return
	}
	grant, err := s.signer.Redeem(strings.TrimSpace(token))
	if err != nil {
		s.logger.Warn("upload token rejected", "error", err)
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
		return
	}

	if ct := mediaType(r.Header.Get("Content-Type")); ct != grant.ContentType {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error: fmt.Sprintf("content type %q does not match token", ct),
		})
		return
	}
	if r.ContentLength > grant.Size {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "body exceeds granted size"})
		return
	}

	blob, err := s.store.Put(r.Context(), grant.Pathname, grant.ContentType, r.Body, grant.Size)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, upload.PutResponse{
		URL:         s.blobURL(r, blob),
		Pathname:    blob.Pathname,
		ContentType: blob.ContentType,
	})
}

// handleMultipart accepts form field "file" in one request.
func (s *Server) handleMultipart(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxPDFSize+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Upload failed: expected multipart form"})
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Upload failed: missing file field"})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Upload failed: " + err.Error()})
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		f := upload.File{
			Name: blobstore.CleanPathname(part.FileName()),
			Type: mediaType(part.Header.Get("Content-Type")),
		}
		if f.Name == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Upload failed: invalid file name"})
			return
		}
		if err := upload.Validate(f); err != nil {
			writeJSON(w, http.StatusUnsupportedMediaType, errorBody{Error: err.Error()})
			return
		}

		blob, err := s.store.Put(r.Context(), f.Name, f.Type, part, upload.MaxSize(f))
		if err != nil {
			if errors.Is(err, blobstore.ErrTooLarge) {
				verr := &upload.ValidationError{Name: f.Name, Reason: upload.ReasonTooLarge, Max: upload.MaxSize(f)}
				writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: verr.Error()})
				return
			}
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"name": blob.Pathname,
			"type": blob.ContentType,
			"url":  s.blobURL(r, blob),
		})
		return
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	blob, f, err := s.store.OpenBlob(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, blobstore.ErrBlobNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "blob not found"})
			return
		}
		s.writeStoreError(w, err)
		return
	}
	defer f.Close()

	if r.PathValue("name") != blob.Pathname {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "blob not found"})
		return
	}
	w.Header().Set("Content-Type", blob.ContentType)
	http.ServeContent(w, r, blob.Pathname, blob.CreatedAt, f)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"signed_uploads": s.signer != nil,
	})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("blob server listening", "addr", ln.Addr().String(), "data_dir", s.store.Dir())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("blob server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, blobstore.ErrTooLarge), errors.As(err, &maxErr):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "Upload failed: body too large"})
	case errors.Is(err, blobstore.ErrInvalidPathname):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Upload failed: invalid pathname"})
	default:
		s.logger.Error("blob store failure", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Upload failed: " + err.Error()})
	}
}

func (s *Server) baseURL(r *http.Request) string {
	if s.cfg.PublicURL != "" {
		return s.cfg.PublicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (s *Server) blobURL(r *http.Request, b blobstore.Blob) string {
	return s.baseURL(r) + "/blob/" + b.ID + "/" + url.PathEscape(b.Pathname)
}

func mediaType(v string) string {
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mt
}
