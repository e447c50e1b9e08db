package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnvelope() Envelope {
	return Envelope{
		UserID:       "google-123",
		Email:        "user@example.com",
		Name:         "Test User",
		Picture:      "https://example.com/p.png",
		AccessToken:  "ya29.access",
		RefreshToken: "1//refresh",
		TokenExpiry:  time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC),
	}
}

func TestCodecRoundTrip(t *testing.T) {
	codec, err := NewCodec("test-secret")
	require.NoError(t, err)

	token, expiresAt, err := codec.Encode(testEnvelope())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), expiresAt, time.Minute)

	env, err := codec.Decode(token)
	require.NoError(t, err)
	want := testEnvelope()
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, want.UserID, env.UserID)
	assert.Equal(t, want.Email, env.Email)
	assert.Equal(t, want.Name, env.Name)
	assert.Equal(t, want.Picture, env.Picture)
	assert.Equal(t, want.AccessToken, env.AccessToken)
	assert.Equal(t, want.RefreshToken, env.RefreshToken)
	assert.True(t, want.TokenExpiry.Equal(env.TokenExpiry), "token expiry %v != %v", env.TokenExpiry, want.TokenExpiry)
}

func TestCodecRequiresSecretAndSubject(t *testing.T) {
	_, err := NewCodec("  ")
	require.Error(t, err)

	codec, err := NewCodec("s")
	require.NoError(t, err)
	_, _, err = codec.Encode(Envelope{Email: "x@example.com"})
	require.Error(t, err)
}

func TestCodecRejectsTamperedSignature(t *testing.T) {
	codec, _ := NewCodec("secret-a")
	other, _ := NewCodec("secret-b")

	token, _, err := other.Encode(testEnvelope())
	require.NoError(t, err)

	_, err = codec.Decode(token)
	require.ErrorIs(t, err, ErrInvalidEnvelope)
	require.ErrorIs(t, err, ErrEnvelopeSignature)
}

func TestCodecRejectsExpiredEnvelope(t *testing.T) {
	past := time.Now().Add(-8 * 24 * time.Hour)
	issuer, _ := NewCodec("secret", WithCodecClock(func() time.Time { return past }))
	token, _, err := issuer.Encode(testEnvelope())
	require.NoError(t, err)

	codec, _ := NewCodec("secret")
	_, err = codec.Decode(token)
	require.ErrorIs(t, err, ErrInvalidEnvelope)
	require.ErrorIs(t, err, ErrEnvelopeExpired)
}

func TestCodecExpiryIsIndependentOfAccessTokenExpiry(t *testing.T) {
	codec, _ := NewCodec("secret")
	env := testEnvelope()
	env.TokenExpiry = time.Now().Add(-24 * time.Hour)

	token, _, err := codec.Encode(env)
	require.NoError(t, err)
	decoded, err := codec.Decode(token)
	require.NoError(t, err)
	assert.True(t, decoded.TokenExpiry.Before(time.Now()))
}

func TestCodecRejectsMalformedAndForeignTokens(t *testing.T) {
	codec, _ := NewCodec("secret")

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := codec.Decode(token)
		require.ErrorIs(t, err, ErrInvalidEnvelope, "token %q", token)
	}

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "someone-else",
		Subject:   "u",
		ID:        "x",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := foreign.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = codec.Decode(signed)
	require.ErrorIs(t, err, ErrInvalidEnvelope)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: defaultIssuer, Subject: "u", ID: "x"})
	signed, err = noExp.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = codec.Decode(signed)
	require.ErrorIs(t, err, ErrInvalidEnvelope)
}

func TestCodecRejectsNoneAlgorithm(t *testing.T) {
	codec, _ := NewCodec("secret")
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    defaultIssuer,
		Subject:   "u",
		ID:        "x",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(signed, "."))

	_, err = codec.Decode(signed)
	require.ErrorIs(t, err, ErrInvalidEnvelope)
}
