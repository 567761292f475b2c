package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DownloadClaim is what a signed download token vouches for.
type DownloadClaim struct {
	Resource  string
	Path      string
	ExpiresAt time.Time
}

// SignedURLSigner creates and validates signed download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate returns a URL-safe token binding resource and path until the TTL elapses.
func (s *SignedURLSigner) Generate(resource, relPath string) (string, time.Time, error) {
	if resource == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("resource and path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	payload := strings.Join([]string{resource, strconv.FormatInt(expiresAt.Unix(), 10), relPath}, "\n")
	encoded := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return encoded + "." + s.sign(encoded), expiresAt, nil
}

// Parse validates a token and returns its claim. When allowExpired is true the
// expiry check is skipped.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (*DownloadClaim, error) {
	encoded, signature, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || signature == "" {
		return nil, fmt.Errorf("invalid token format")
	}
	if !hmac.Equal([]byte(s.sign(encoded)), []byte(signature)) {
		return nil, fmt.Errorf("invalid token signature")
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	parts := strings.SplitN(string(raw), "\n", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid token payload")
	}
	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid token expiry")
	}
	claim := &DownloadClaim{Resource: parts[0], Path: parts[2], ExpiresAt: time.Unix(exp, 0)}
	if !allowExpired && s.now().After(claim.ExpiresAt) {
		return nil, fmt.Errorf("token expired")
	}
	return claim, nil
}

func (s *SignedURLSigner) sign(encoded string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
