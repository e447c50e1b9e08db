package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/adityaahir3105/FinDocs/internal/audit"
	"github.com/adityaahir3105/FinDocs/internal/auth"
	"github.com/adityaahir3105/FinDocs/internal/oauth"
	"github.com/adityaahir3105/FinDocs/internal/obs"
)

type googleLoginRequest struct {
	Code string `json:"code"`
}

type devLoginRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type loginResponse struct {
	Success bool         `json:"success"`
	User    auth.Profile `json:"user"`
}

type checkResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *auth.Profile `json:"user,omitempty"`
}

func (a *API) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Code) == "" {
		writeError(w, r, http.StatusBadRequest, "Missing authorization code")
		return
	}
	if a.oauth == nil {
		writeError(w, r, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return
	}

	ctx := r.Context()
	grant, err := a.oauth.Exchange(ctx, req.Code)
	if err != nil {
		obs.WithContext(ctx).Warn("google login failed", zap.Error(err))
		switch {
		case errors.Is(err, oauth.ErrNoAccessToken):
			writeError(w, r, http.StatusBadRequest, "No access token received")
		case errors.Is(err, oauth.ErrProfile):
			writeError(w, r, http.StatusBadRequest, "Failed to get user information")
		default:
			writeError(w, r, http.StatusBadRequest, "Failed to exchange authorization code")
		}
		return
	}

	env := auth.Envelope{
		UserID:       grant.Profile.ID,
		Email:        grant.Profile.Email,
		Name:         grant.Profile.Name,
		Picture:      grant.Profile.Picture,
		AccessToken:  grant.Token.AccessToken,
		RefreshToken: grant.Token.RefreshToken,
		TokenExpiry:  grant.Token.Expiry,
	}
	a.issueSession(w, r, env, "google")
}

// handleDevLogin issues an envelope without a delegated token, so storage falls back to the
// local filesystem. Only routed in development with DEV_LOGIN_ENABLED.
func (a *API) handleDevLogin(w http.ResponseWriter, r *http.Request) {
	var req devLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, r, http.StatusBadRequest, "A valid email is required")
		return
	}
	env := auth.Envelope{
		UserID: "dev-" + strings.ToLower(email),
		Email:  email,
		Name:   strings.TrimSpace(req.Name),
	}
	a.issueSession(w, r, env, "dev")
}

func (a *API) issueSession(w http.ResponseWriter, r *http.Request, env auth.Envelope, method string) {
	token, expiresAt, err := a.codec.Encode(env)
	if err != nil {
		obs.WithContext(r.Context()).Error("encode envelope", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	a.setSessionCookie(w, token, expiresAt)

	ctx := obs.ContextWithUserID(r.Context(), env.UserID)
	_ = audit.LogEvent(ctx, "auth.login", map[string]any{
		"method":            method,
		"email":             env.Email,
		"has_refresh_token": env.RefreshToken != "",
	})
	writeJSON(w, http.StatusOK, loginResponse{Success: true, User: env.Profile()})
}

// handleCheck decodes the envelope without refreshing it.
func (a *API) handleCheck(w http.ResponseWriter, r *http.Request) {
	token := tokenFromRequest(r)
	if token == "" {
		writeJSON(w, http.StatusOK, checkResponse{})
		return
	}
	env, err := a.codec.Decode(token)
	if err != nil {
		writeJSON(w, http.StatusOK, checkResponse{})
		return
	}
	if revoked, err := a.revoker.IsRevoked(r.Context(), env.ID); err != nil || revoked {
		writeJSON(w, http.StatusOK, checkResponse{})
		return
	}
	profile := env.Profile()
	writeJSON(w, http.StatusOK, checkResponse{Authenticated: true, User: &profile})
}

// handleLogout clears the cookie and denies the envelope for the rest of its lifetime. The
// Google grant itself is left alone.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if token := tokenFromRequest(r); token != "" {
		if env, err := a.codec.Decode(token); err == nil {
			until := a.now().Add(a.codec.TTL())
			if err := a.revoker.Revoke(ctx, env.ID, until); err != nil {
				obs.WithContext(ctx).Warn("revoke envelope", zap.Error(err))
			}
			_ = audit.LogEvent(obs.ContextWithUserID(ctx, env.UserID), "auth.logout", map[string]any{
				"envelope_id": env.ID,
			})
		}
	}
	a.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
