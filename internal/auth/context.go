package auth

import "context"

type sessionContextKey struct{}

// Session is the per-request view of an authenticated caller after the refresh check.
type Session struct {
	Envelope Envelope
	// Refreshed reports whether the access token was renewed during this request.
	Refreshed bool
}

// AccessToken returns the delegated token to use for this request's storage calls.
func (s Session) AccessToken() string { return s.Envelope.AccessToken }

// ContextWithSession attaches the session to ctx.
func ContextWithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, &s)
}

// SessionFromContext extracts the session stored by ContextWithSession.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	v, ok := ctx.Value(sessionContextKey{}).(*Session)
	if !ok || v == nil {
		return Session{}, false
	}
	return *v, true
}
