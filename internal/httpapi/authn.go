package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/adityaahir3105/FinDocs/internal/audit"
	"github.com/adityaahir3105/FinDocs/internal/auth"
	"github.com/adityaahir3105/FinDocs/internal/obs"
)

const (
	cookieName = "token"
	authHeader = "Authorization"
	bearer     = "Bearer "

	msgUnauthenticated = "Authentication required"
	msgInvalidToken    = "Invalid or expired token"
	msgSessionExpired  = "Session expired. Please login again."
)

// tokenFromRequest prefers the session cookie and falls back to a bearer header.
func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	header := strings.TrimSpace(r.Header.Get(authHeader))
	if len(header) > len(bearer) && strings.EqualFold(header[:len(bearer)], bearer) {
		return strings.TrimSpace(header[len(bearer):])
	}
	return ""
}

func (a *API) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	c := &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
	}
	a.applyCookiePolicy(c)
	http.SetCookie(w, c)
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	c := &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	}
	a.applyCookiePolicy(c)
	http.SetCookie(w, c)
}

func (a *API) applyCookiePolicy(c *http.Cookie) {
	if a.opts.Production {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
		return
	}
	c.SameSite = http.SameSiteLaxMode
}

// authenticate verifies the envelope, checks the deny-list and runs the refresh protocol once.
// The session placed in the context carries the access token storage calls must use.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := obs.WithContext(ctx)

		token := tokenFromRequest(r)
		if token == "" {
			writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
			return
		}
		env, err := a.codec.Decode(token)
		if err != nil {
			log.Debug("envelope rejected", zap.Error(err))
			writeError(w, r, http.StatusUnauthorized, msgInvalidToken)
			return
		}
		revoked, err := a.revoker.IsRevoked(ctx, env.ID)
		if err != nil {
			log.Error("revocation check failed", zap.Error(err))
			writeError(w, r, http.StatusServiceUnavailable, "Authentication temporarily unavailable")
			return
		}
		if revoked {
			log.Debug("envelope rejected", zap.Error(auth.ErrEnvelopeRevoked))
			writeError(w, r, http.StatusUnauthorized, msgInvalidToken)
			return
		}

		ctx = obs.ContextWithUserID(ctx, env.UserID)
		fresh, err := a.refresher.EnsureFresh(ctx, env)
		if err != nil {
			if errors.Is(err, auth.ErrSessionExpired) {
				a.clearSessionCookie(w)
				writeReauthenticate(w, r, msgSessionExpired)
				return
			}
			log.Error("token refresh error", zap.Error(err))
			writeError(w, r, http.StatusInternalServerError, "Internal server error")
			return
		}
		if fresh.Refreshed {
			a.setSessionCookie(w, fresh.Token, fresh.ExpiresAt)
			_ = audit.LogEvent(ctx, "auth.refresh", map[string]any{"user_id": env.UserID})
		}

		ctx = auth.ContextWithSession(ctx, auth.Session{Envelope: fresh.Envelope, Refreshed: fresh.Refreshed})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeReauthenticate(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, http.StatusUnauthorized, withRequestID(r, map[string]any{
		"success":        false,
		"message":        msg,
		"reauthenticate": true,
	}))
}
