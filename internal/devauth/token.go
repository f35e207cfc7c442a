// Package devauth issues and verifies the short-lived tokens that unlock
// developer mode. Tokens are self-verifying; nothing is stored server side.
//
// A token has the form <unix seconds>.<fingerprint hash>.<signature>, where
// the signature is HMAC-SHA256 over the first two fields, URL-safe base64
// without padding.
package devauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL is how long a token stays valid.
const DefaultTTL = 8 * time.Hour

const fingerprintHashLen = 16

// ErrNoSecret is returned when tokens are requested without a signing key.
var ErrNoSecret = errors.New("devauth: signing secret not configured")

// Service signs and checks developer tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates a token service. A zero ttl means DefaultTTL.
func NewService(secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the token lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue creates a token bound to the client fingerprint (its user agent).
func (s *Service) Issue(fingerprint string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrNoSecret
	}
	payload := strconv.FormatInt(s.now().Unix(), 10) + "." + hashFingerprint(fingerprint)
	return payload + "." + s.sign(payload), nil
}

// Verify reports whether token was issued by this service for fingerprint
// and has not expired. Malformed tokens are simply invalid.
func (s *Service) Verify(token, fingerprint string) bool {
	if len(s.secret) == 0 {
		return false
	}

	parts := strings.SplitN(token, ".", 3)
	if len(parts) != 3 {
		return false
	}
	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return false
	}

	expected := s.sign(parts[0] + "." + hashFingerprint(fingerprint))
	if !hmac.Equal([]byte(parts[2]), []byte(expected)) {
		return false
	}

	return s.now().Sub(time.Unix(ts, 0)) <= s.ttl
}

func (s *Service) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func hashFingerprint(fingerprint string) string {
	sum := sha256.Sum256([]byte(fingerprint))
	return hex.EncodeToString(sum[:])[:fingerprintHashLen]
}
