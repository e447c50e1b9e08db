package auth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/adityaahir3105/FinDocs/internal/ids"
	"github.com/adityaahir3105/FinDocs/internal/obs"
)

const (
	defaultRefreshSkew = 5 * time.Minute
	// sharedRefreshTimeout bounds a serialized exchange, which outlives the caller that started it.
	sharedRefreshTimeout = 15 * time.Second
)

// Token is a delegated access/refresh token pair as returned by the identity provider.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// TokenSource exchanges a refresh token for a new token pair.
type TokenSource interface {
	Refresh(ctx context.Context, refreshToken string) (Token, error)
}

// Fresh is the outcome of EnsureFresh.
type Fresh struct {
	Envelope Envelope
	// Token and ExpiresAt are set only when Refreshed is true; the caller re-issues the cookie.
	Token     string
	ExpiresAt time.Time
	Refreshed bool
}

// Refresher renews the delegated access token when it is close to expiry.
//
// Concurrent requests from one user near expiry may each refresh on their own; whether the
// provider invalidates the earlier refresh token decides which envelope survives. Enable
// WithSerializedRefresh for providers that issue single-use refresh tokens.
type Refresher struct {
	codec  *Codec
	source TokenSource
	skew   time.Duration
	now    func() time.Time
	group  *singleflight.Group
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithRefreshSkew sets how long before access-token expiry a refresh is attempted.
func WithRefreshSkew(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		if d > 0 {
			r.skew = d
		}
	}
}

// WithRefresherClock overrides the time source.
func WithRefresherClock(fn func() time.Time) RefresherOption {
	return func(r *Refresher) {
		if fn != nil {
			r.now = fn
		}
	}
}

// WithSerializedRefresh collapses concurrent refreshes of one user into a single exchange.
func WithSerializedRefresh(enabled bool) RefresherOption {
	return func(r *Refresher) {
		if enabled {
			r.group = &singleflight.Group{}
		} else {
			r.group = nil
		}
	}
}

// NewRefresher wires a refresher to the envelope codec and the provider's token source.
func NewRefresher(codec *Codec, source TokenSource, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		codec:  codec,
		source: source,
		skew:   defaultRefreshSkew,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NeedsRefresh reports whether env's access token expires within the skew window.
func (r *Refresher) NeedsRefresh(env Envelope) bool {
	if env.AccessToken == "" {
		return false
	}
	return env.TokenExpiry.Sub(r.now()) < r.skew
}

// EnsureFresh returns env unchanged when its access token is comfortably valid, otherwise
// exchanges the refresh token and returns a re-encoded envelope. Any refresh failure is
// ErrSessionExpired; the stale access token is never used as a fallback.
func (r *Refresher) EnsureFresh(ctx context.Context, env Envelope) (Fresh, error) {
	if !r.NeedsRefresh(env) {
		return Fresh{Envelope: env}, nil
	}
	if env.RefreshToken == "" {
		obs.TokenRefresh("failed")
		return Fresh{}, fmt.Errorf("%w: no refresh token", ErrSessionExpired)
	}
	if r.group == nil {
		return r.refresh(ctx, env)
	}
	v, err, _ := r.group.Do(env.UserID, func() (any, error) {
		// Waiters share this exchange, so one client going away must not fail the others.
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedRefreshTimeout)
		defer cancel()
		return r.refresh(sctx, env)
	})
	if err != nil {
		return Fresh{}, err
	}
	return v.(Fresh), nil
}

func (r *Refresher) refresh(ctx context.Context, env Envelope) (Fresh, error) {
	log := obs.WithContext(ctx)
	log.Debug("access token expiring, refreshing", zap.Time("token_expiry", env.TokenExpiry))

	tok, err := r.source.Refresh(ctx, env.RefreshToken)
	if err != nil {
		obs.TokenRefresh("failed")
		log.Warn("token refresh failed", zap.Error(err))
		return Fresh{}, fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	if tok.AccessToken == "" {
		obs.TokenRefresh("failed")
		return Fresh{}, fmt.Errorf("%w: empty access token", ErrSessionExpired)
	}

	next := env
	next.ID = ids.New()
	next.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		next.RefreshToken = tok.RefreshToken
	}
	next.TokenExpiry = tok.Expiry
	if next.TokenExpiry.IsZero() {
		next.TokenExpiry = r.now().Add(time.Hour)
	}
	next.TokenExpiry = next.TokenExpiry.UTC().Truncate(time.Millisecond)

	signed, expiresAt, err := r.codec.Encode(next)
	if err != nil {
		obs.TokenRefresh("failed")
		return Fresh{}, err
	}
	obs.TokenRefresh("ok")
	return Fresh{Envelope: next, Token: signed, ExpiresAt: expiresAt, Refreshed: true}, nil
}
