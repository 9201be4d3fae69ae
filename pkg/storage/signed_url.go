package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

var (
	ErrInvalidSignature = errors.New("invalid download signature")
	ErrLinkExpired      = errors.New("download link expired")
)

// SignedURLSigner creates and validates expiring download links for file revisions.
type SignedURLSigner struct {
	baseURL string
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(baseURL, secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{
		baseURL: baseURL,
		secret:  []byte(secret),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Generate returns a download URL for fileUUID valid until the returned time.
func (s *SignedURLSigner) Generate(fileUUID string) (string, time.Time, error) {
	if fileUUID == "" {
		return "", time.Time{}, fmt.Errorf("file uuid required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	expires := strconv.FormatInt(expiresAt.Unix(), 10)

	query := url.Values{}
	query.Set("expires", expires)
	query.Set("token", s.sign(fileUUID, expires))
	return fmt.Sprintf("%s/%s?%s", s.baseURL, url.PathEscape(fileUUID), query.Encode()), expiresAt, nil
}

// Verify checks a token/expires pair previously produced by Generate.
func (s *SignedURLSigner) Verify(fileUUID, expires, token string) error {
	expUnix, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	expected := s.sign(fileUUID, expires)
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return ErrInvalidSignature
	}
	if s.now().After(time.Unix(expUnix, 0)) {
		return ErrLinkExpired
	}
	return nil
}

func (s *SignedURLSigner) sign(fileUUID, expires string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(fileUUID + "|" + expires))
	return hex.EncodeToString(mac.Sum(nil))
}
