package storage

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndVerify(t *testing.T) {
	signer := NewSignedURLSigner("http://portal/api/download", "secret", time.Hour)
	link, expiresAt, err := signer.Generate("6f1b83a6-0a4e-4a8b-9f65-3f0e3a7d1a11")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link, "http://portal/api/download/6f1b83a6-0a4e-4a8b-9f65-3f0e3a7d1a11?"))
	require.False(t, expiresAt.IsZero())

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	q := parsed.Query()
	require.NoError(t, signer.Verify("6f1b83a6-0a4e-4a8b-9f65-3f0e3a7d1a11", q.Get("expires"), q.Get("token")))
	require.ErrorIs(t, signer.Verify("another-uuid", q.Get("expires"), q.Get("token")), ErrInvalidSignature)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("http://portal/api/download", "secret", time.Hour)
	link, _, err := signer.Generate("u1")
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	parsed, err := url.Parse(link)
	require.NoError(t, err)
	q := parsed.Query()
	require.ErrorIs(t, signer.Verify("u1", q.Get("expires"), q.Get("token")), ErrLinkExpired)
}

func TestSignedURLSignerRequiresSecret(t *testing.T) {
	_, _, err := NewSignedURLSigner("http://portal", "", time.Hour).Generate("u1")
	require.Error(t, err)
}
