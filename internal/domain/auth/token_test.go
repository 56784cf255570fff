package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-caption-server/internal/platform/errors"
)

func TestTokenRoundTrip(t *testing.T) {
	at := NewAuthToken("secret").WithTTL(time.Hour)

	token, err := at.GenerateToken("editor")
	require.NoError(t, err)

	subject, err := at.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "editor", subject)
}

func TestTokenRejections(t *testing.T) {
	at := NewAuthToken("secret")
	token, err := at.GenerateToken("editor")
	require.NoError(t, err)

	_, err = NewAuthToken("other").VerifyToken(token)
	assert.True(t, errors.IsKind(err, errors.KindDomain))

	_, err = at.VerifyToken("not-a-token")
	assert.True(t, errors.IsKind(err, errors.KindDomain))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "editor", Issuer: issuer})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = at.VerifyToken(unsigned)
	assert.Error(t, err)

	_, err = at.GenerateToken("")
	assert.True(t, errors.IsKind(err, errors.KindDomain))

	_, err = NewAuthToken("").GenerateToken("editor")
	assert.True(t, errors.IsKind(err, errors.KindConfig))
}

func TestTokenExpiry(t *testing.T) {
	at := NewAuthToken("secret").WithTTL(time.Minute)
	issued := time.Now()
	at.now = func() time.Time { return issued }

	token, err := at.GenerateToken("editor")
	require.NoError(t, err)

	at.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = at.VerifyToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}
