package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidToken covers every way a session token can fail verification:
// malformed, tampered, or expired.
var ErrInvalidToken = errors.New("invalid session token")

// DefaultSessionTTL matches a one-week login session.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Sessions mints and verifies stateless session tokens. A token is
// base64url(userID|expiryUnix|hmac) signed with HMAC-SHA256; no server-side
// session state is kept.
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

// NewSessions creates a session signer with the given secret and TTL.
// A non-positive ttl falls back to DefaultSessionTTL.
func NewSessions(secret string, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{secret: []byte(secret), ttl: ttl}
}

// TTL returns the session lifetime, for cookie expiry.
func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

// Token mints a signed token binding the user id to an expiry time.
func (s *Sessions) Token(userID string) string {
	expiry := time.Now().Add(s.ttl).Unix()
	payload := fmt.Sprintf("%s|%d", userID, expiry)
	mac := s.sign(payload)
	return base64.RawURLEncoding.EncodeToString([]byte(payload + "|" + mac))
}

// Verify checks the token's signature and expiry and returns the user id it
// was minted for. Any failure returns ErrInvalidToken.
func (s *Sessions) Verify(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrInvalidToken
	}

	parts := strings.Split(string(raw), "|")
	if len(parts) != 3 {
		return "", ErrInvalidToken
	}
	userID, expiryStr, mac := parts[0], parts[1], parts[2]

	payload := userID + "|" + expiryStr
	if !hmac.Equal([]byte(mac), []byte(s.sign(payload))) {
		return "", ErrInvalidToken
	}

	expiry, err := strconv.ParseInt(expiryStr, 10, 64)
	if err != nil || time.Now().Unix() >= expiry {
		return "", ErrInvalidToken
	}
	return userID, nil
}

func (s *Sessions) sign(payload string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
