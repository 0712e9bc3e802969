// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// ErrInvalidToken is returned for upload tokens that are malformed, forged,
// expired or already used.
var ErrInvalidToken = errors.New("invalid upload token")

// DefaultTokenTTL bounds how long a granted upload stays valid.
const DefaultTokenTTL = 5 * time.Minute

// Grant is what an upload token authorizes: one PUT of one file.
type Grant struct {
	Nonce       string `json:"n"`
	Pathname    string `json:"p"`
	ContentType string `json:"t"`
	Size        int64  `json:"s"`
	ExpiresAt   int64  `json:"e"` // unix seconds
}

// Signer issues and verifies HMAC-signed upload tokens. Each token is
// accepted once.
type Signer struct {
	key []byte
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	used map[string]int64 // nonce -> expiry
}

// NewSigner derives the signing key from secret.
func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("upload token secret not configured")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("atlas blob upload token v1"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive token key: %w", err)
	}
	return &Signer{key: key, ttl: ttl, now: time.Now, used: make(map[string]int64)}, nil
}

// Issue returns a token for a single upload of pathname.
func (s *Signer) Issue(pathname, contentType string, size int64) (string, Grant, error) {
	g := Grant{
		Nonce:       uuid.NewString(),
		Pathname:    pathname,
		ContentType: contentType,
		Size:        size,
		ExpiresAt:   s.now().Add(s.ttl).Unix(),
	}
	payload, err := json.Marshal(g)
	if err != nil {
		return "", Grant{}, err
	}
	enc := base64.RawURLEncoding
	body := enc.EncodeToString(payload)
	return body + "." + enc.EncodeToString(s.mac(body)), g, nil
}

// Redeem verifies token and marks it used.
func (s *Signer) Redeem(token string) (Grant, error) {
	body, sig, ok := strings.Cut(token, ".")
	if !ok {
		return Grant{}, fmt.Errorf("%w: malformed", ErrInvalidToken)
	}
	enc := base64.RawURLEncoding
	gotSig, err := enc.DecodeString(sig)
	if err != nil || !hmac.Equal(gotSig, s.mac(body)) {
		return Grant{}, fmt.Errorf("%w: bad signature", ErrInvalidToken)
	}
	payload, err := enc.DecodeString(body)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: malformed", ErrInvalidToken)
	}
	var g Grant
	if err := json.Unmarshal(payload, &g); err != nil {
		return Grant{}, fmt.Errorf("%w: malformed", ErrInvalidToken)
	}

	now := s.now().Unix()
	if now > g.ExpiresAt {
		return Grant{}, fmt.Errorf("%w: expired", ErrInvalidToken)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for nonce, exp := range s.used {
		if now > exp {
			delete(s.used, nonce)
		}
	}
	if _, dup := s.used[g.Nonce]; dup {
		return Grant{}, fmt.Errorf("%w: already used", ErrInvalidToken)
	}
	s.used[g.Nonce] = g.ExpiresAt
	return g, nil
}

func (s *Signer) mac(body string) []byte {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(body))
	return h.Sum(nil)
}
