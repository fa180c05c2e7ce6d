// Package oauthstate signs and verifies the OAuth "state" parameter that carries the
// link target through the provider round trip.
//
// A token is "<payload>.<signature>" where payload is the base64url (unpadded) JSON
// encoding of a LinkRequest and signature is the base64url HMAC-SHA256 of the encoded
// payload. The payload is not secret; the MAC only prevents forgery and substitution.
package oauthstate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const separator = "."

// strict rejects non-canonical encodings so that no two signature strings decode to the same MAC.
var strict = base64.RawURLEncoding.Strict()

var (
	// ErrInvalid is returned for every token that must not be trusted.
	ErrInvalid = errors.New("invalid state")
	// ErrExpired is returned when a well-signed token is outside its validity window.
	ErrExpired = errors.New("state expired")
	// ErrNoSecret is returned by NewSigner when no signing key is configured.
	ErrNoSecret = errors.New("state signing secret is empty")
)

// clockSkew tolerates small differences between instances that issue and verify states.
const clockSkew = time.Minute

// LinkRequest binds a target entity to one OAuth round trip.
type LinkRequest struct {
	TargetEntityID string    `json:"t"`
	InitiatedBy    string    `json:"u,omitempty"`
	Nonce          string    `json:"n"`
	IssuedAt       time.Time `json:"iat"`
}

// Signer is safe for concurrent use; it holds no mutable state.
type Signer struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewSigner returns a Signer keyed with secret. A zero maxAge disables the age check.
func NewSigner(secret string, maxAge time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &Signer{secret: []byte(secret), maxAge: maxAge, now: time.Now}, nil
}

// WithClock returns a copy of s that reads time from now.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	cp := *s
	cp.now = now
	return &cp
}

// Sign serializes req and returns the compact signed token.
func (s *Signer) Sign(req LinkRequest) (string, error) {
	if strings.TrimSpace(req.TargetEntityID) == "" {
		return "", fmt.Errorf("%w: target entity id is required", ErrInvalid)
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode state payload: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + separator + base64.RawURLEncoding.EncodeToString(s.mac(payload)), nil
}

// Verify checks the token signature and returns the embedded LinkRequest.
// Any malformed, forged or stale token yields an error wrapping ErrInvalid or ErrExpired.
func (s *Signer) Verify(token string) (*LinkRequest, error) {
	if strings.Count(token, separator) != 1 {
		return nil, fmt.Errorf("%w: malformed token", ErrInvalid)
	}
	payload, sig, _ := strings.Cut(token, separator)
	if payload == "" || sig == "" {
		return nil, fmt.Errorf("%w: malformed token", ErrInvalid)
	}

	gotMAC, err := strict.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("%w: bad signature encoding", ErrInvalid)
	}
	if !hmac.Equal(gotMAC, s.mac(payload)) {
		return nil, fmt.Errorf("%w: signature mismatch", ErrInvalid)
	}

	raw, err := strict.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: bad payload encoding", ErrInvalid)
	}
	var req LinkRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("%w: bad payload", ErrInvalid)
	}
	if strings.TrimSpace(req.TargetEntityID) == "" {
		return nil, fmt.Errorf("%w: missing target entity id", ErrInvalid)
	}
	if req.Nonce == "" || req.IssuedAt.IsZero() {
		return nil, fmt.Errorf("%w: missing nonce or issue time", ErrInvalid)
	}

	if s.maxAge > 0 {
		now := s.now()
		if req.IssuedAt.After(now.Add(clockSkew)) {
			return nil, fmt.Errorf("%w: issued in the future", ErrExpired)
		}
		if now.Sub(req.IssuedAt) > s.maxAge {
			return nil, fmt.Errorf("%w: issued %s ago", ErrExpired, now.Sub(req.IssuedAt).Truncate(time.Second))
		}
	}
	return &req, nil
}

func (s *Signer) mac(payload string) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(payload))
	return h.Sum(nil)
}
