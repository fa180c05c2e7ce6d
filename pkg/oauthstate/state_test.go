package oauthstate

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner("test-secret", 10*time.Minute)
	require.NoError(t, err)
	return s.WithClock(func() time.Time { return fixedNow })
}

func newRequest(target string) LinkRequest {
	return LinkRequest{TargetEntityID: target, InitiatedBy: "user-1", Nonce: "nonce-1", IssuedAt: fixedNow}
}

func TestNewSigner_RequiresSecret(t *testing.T) {
	_, err := NewSigner("", time.Minute)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestSignVerify_RoundTrip(t *testing.T) {
	s := newTestSigner(t)

	for _, id := range []string{"c1", "5f0b7d2e-9a51-4c1b-8d0e-3b1a2f6c7d88", "client with spaces", "ключ", "a.b.c"} {
		token, err := s.Sign(newRequest(id))
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(token, "."), "token must contain exactly one separator")

		got, err := s.Verify(token)
		require.NoError(t, err, id)
		assert.Equal(t, id, got.TargetEntityID)
		assert.Equal(t, "user-1", got.InitiatedBy)
		assert.Equal(t, "nonce-1", got.Nonce)
		assert.True(t, fixedNow.Equal(got.IssuedAt))
	}
}

func TestSign_RejectsEmptyTarget(t *testing.T) {
	s := newTestSigner(t)
	_, err := s.Sign(newRequest("  "))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestVerify_RejectsEverySingleCharacterFlip(t *testing.T) {
	s := newTestSigner(t)
	token, err := s.Sign(newRequest("c1"))
	require.NoError(t, err)

	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	for i := range token {
		if token[i] == '.' {
			continue
		}
		for _, r := range []byte(alphabet) {
			if r == token[i] {
				continue
			}
			tampered := token[:i] + string(r) + token[i+1:]
			_, err := s.Verify(tampered)
			require.Errorf(t, err, "flip at %d to %q must be rejected", i, r)
			assert.True(t, errors.Is(err, ErrInvalid), "flip at %d: %v", i, err)
		}
	}
}

func TestVerify_SeparatorRobustness(t *testing.T) {
	s := newTestSigner(t)
	token, err := s.Sign(newRequest("c1"))
	require.NoError(t, err)
	payload, sig, _ := strings.Cut(token, ".")

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"no separator", payload + sig},
		{"two separators", payload + "." + sig + "."},
		{"leading separator", "." + payload + "." + sig},
		{"only separator", "."},
		{"empty payload", "." + sig},
		{"empty signature", payload + "."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestVerify_RejectsTokenSignedWithOtherSecret(t *testing.T) {
	other, err := NewSigner("other-secret", 10*time.Minute)
	require.NoError(t, err)
	token, err := other.Sign(newRequest("c1"))
	require.NoError(t, err)

	_, err = newTestSigner(t).Verify(token)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestVerify_RejectsSignedPayloadWithoutTarget(t *testing.T) {
	s := newTestSigner(t)
	// Correctly signed, structurally invalid payloads.
	for _, body := range []string{`{}`, `{"t":""}`, `[]`, `not json`, `{"t":"c1"}`} {
		payload := strictEncode(body)
		token := payload + "." + strictEncode(string(s.mac(payload)))

		_, err := s.Verify(token)
		assert.ErrorIs(t, err, ErrInvalid, body)
	}
}

func TestVerify_Expiry(t *testing.T) {
	s := newTestSigner(t)

	stale := newRequest("c1")
	stale.IssuedAt = fixedNow.Add(-11 * time.Minute)
	token, err := s.Sign(stale)
	require.NoError(t, err)
	_, err = s.Verify(token)
	assert.ErrorIs(t, err, ErrExpired)

	future := newRequest("c1")
	future.IssuedAt = fixedNow.Add(5 * time.Minute)
	token, err = s.Sign(future)
	require.NoError(t, err)
	_, err = s.Verify(token)
	assert.ErrorIs(t, err, ErrExpired)

	fresh := newRequest("c1")
	fresh.IssuedAt = fixedNow.Add(-9 * time.Minute)
	token, err = s.Sign(fresh)
	require.NoError(t, err)
	_, err = s.Verify(token)
	assert.NoError(t, err)
}

func strictEncode(s string) string {
	return strict.EncodeToString([]byte(s))
}
