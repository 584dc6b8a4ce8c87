package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/pxwallet/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newVerifier(secret, issuer string) *Verifier {
	return NewVerifier(Params{
		Cfg: config.Config{AuthJWTSecret: secret, AuthIssuer: issuer},
		Log: zap.NewNop(),
	})
}

func TestVerifyRoundTrip(t *testing.T) {
	v := newVerifier("s3cret", "https://id.example.com")

	token, err := v.Issue(Identity{UserID: "user-1", Name: "Alice", Email: "alice@example.com"}, time.Hour)
	require.NoError(t, err)

	id, err := v.Authenticate("Bearer "+token, "")
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "user-1", Name: "Alice", Email: "alice@example.com"}, id)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	v := newVerifier("s3cret", "")
	other := newVerifier("other", "")

	foreign, err := other.Issue(Identity{UserID: "user-1"}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	v.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := v.Issue(Identity{UserID: "user-1"}, time.Hour)
	require.NoError(t, err)
	v.now = time.Now
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSubject, err := v.Issue(Identity{}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(noSubject)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyChecksIssuer(t *testing.T) {
	v := newVerifier("s3cret", "https://id.example.com")
	wrong := newVerifier("s3cret", "https://evil.example.com")

	token, err := wrong.Issue(Identity{UserID: "user-1"}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestEnforcedIgnoresUserIDHeader(t *testing.T) {
	v := newVerifier("s3cret", "")

	_, err := v.Authenticate("", "user-1")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = v.Authenticate("Basic abc", "user-1")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestDevelopmentModeTrustsHeader(t *testing.T) {
	v := newVerifier("", "")
	assert.False(t, v.Enforced())

	id, err := v.Authenticate("", "  user-7 ")
	require.NoError(t, err)
	assert.Equal(t, "user-7", id.UserID)

	_, err = v.Authenticate("", "")
	assert.ErrorIs(t, err, ErrMissingToken)

	signer := newVerifier("whatever", "")
	token, err := signer.Issue(Identity{UserID: "user-9", Email: "nine@example.com"}, time.Hour)
	require.NoError(t, err)
	id, err = v.Authenticate("Bearer "+token, "user-7")
	require.NoError(t, err)
	assert.Equal(t, "user-9", id.UserID)
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: "user-1"})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "user-1", id.UserID)
}
