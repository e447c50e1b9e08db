package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/adityaahir3105/FinDocs/internal/ids"
)

const (
	defaultIssuer      = "findocs"
	defaultEnvelopeTTL = 7 * 24 * time.Hour
)

// Envelope is the client-held credential bundle: identity plus the delegated token pair.
type Envelope struct {
	ID           string
	UserID       string
	Email        string
	Name         string
	Picture      string
	AccessToken  string
	RefreshToken string
	// TokenExpiry is the access-token expiry. It is independent of the envelope's own expiry.
	TokenExpiry time.Time
}

// Profile is the identity part of an envelope, safe to return to clients.
type Profile struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// Profile returns the public identity carried by the envelope.
func (e Envelope) Profile() Profile {
	return Profile{ID: e.UserID, Email: e.Email, Name: e.Name, Picture: e.Picture}
}

type envelopeClaims struct {
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	Picture      string `json:"picture,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenExpiry  int64  `json:"tokenExpiry"`
	jwt.RegisteredClaims
}

// Codec signs and verifies envelopes with an HMAC secret.
type Codec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			c.issuer = issuer
		}
	}
}

// WithEnvelopeTTL sets the envelope lifetime (and therefore the cookie lifetime).
func WithEnvelopeTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCodecClock overrides the time source.
func WithCodecClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec builds a codec. The secret must be non-empty.
func NewCodec(secret string, opts ...CodecOption) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: envelope secret is required")
	}
	c := &Codec{
		secret: []byte(secret),
		issuer: defaultIssuer,
		ttl:    defaultEnvelopeTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL reports the envelope lifetime.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Encode signs env and returns the opaque token with the envelope's own expiry.
// A missing envelope id is filled in.
func (c *Codec) Encode(env Envelope) (string, time.Time, error) {
	if strings.TrimSpace(env.UserID) == "" {
		return "", time.Time{}, errors.New("auth: envelope user id is required")
	}
	if env.ID == "" {
		env.ID = ids.New()
	}
	now := c.now().UTC()
	expiresAt := now.Add(c.ttl)
	claims := envelopeClaims{
		Email:        env.Email,
		Name:         env.Name,
		Picture:      env.Picture,
		AccessToken:  env.AccessToken,
		RefreshToken: env.RefreshToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   env.UserID,
			ID:        env.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if !env.TokenExpiry.IsZero() {
		claims.TokenExpiry = env.TokenExpiry.UnixMilli()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign envelope: %w", err)
	}
	return signed, expiresAt, nil
}

// Decode verifies the token and returns the envelope. Every failure wraps ErrInvalidEnvelope.
func (c *Codec) Decode(token string) (Envelope, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Envelope{}, ErrEnvelopeMalformed
	}
	var claims envelopeClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Envelope{}, ErrEnvelopeExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return Envelope{}, ErrEnvelopeSignature
		default:
			return Envelope{}, ErrEnvelopeMalformed
		}
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.ID == "" {
		return Envelope{}, ErrEnvelopeMalformed
	}
	env := Envelope{
		ID:           claims.ID,
		UserID:       claims.Subject,
		Email:        claims.Email,
		Name:         claims.Name,
		Picture:      claims.Picture,
		AccessToken:  claims.AccessToken,
		RefreshToken: claims.RefreshToken,
	}
	if claims.TokenExpiry > 0 {
		env.TokenExpiry = time.UnixMilli(claims.TokenExpiry).UTC()
	}
	return env, nil
}
