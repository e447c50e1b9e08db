// Package oauth performs the delegated-authorization exchange with Google and renews
// access tokens for the envelope refresh protocol.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/adityaahir3105/FinDocs/internal/auth"
	"github.com/adityaahir3105/FinDocs/internal/obs"
)

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Scopes requested by the client-side consent flow. drive.file limits access to files the
// application itself created.
var Scopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/drive.file",
}

var (
	ErrExchangeFailed = errors.New("oauth: code exchange failed")
	ErrNoAccessToken  = errors.New("oauth: no access token received")
	ErrProfile        = errors.New("oauth: failed to get user information")
)

// Grant is the result of a successful authorization-code exchange.
type Grant struct {
	Token   auth.Token
	Profile auth.Profile
}

// Config holds the registered OAuth client.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Google talks to Google's token and userinfo endpoints.
type Google struct {
	cfg         *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
	now         func() time.Time
}

// Option configures Google.
type Option func(*Google)

// WithEndpoint overrides the token endpoint (tests).
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(g *Google) { g.cfg.Endpoint = ep }
}

// WithUserInfoURL overrides the userinfo endpoint (tests).
func WithUserInfoURL(u string) Option {
	return func(g *Google) { g.userInfoURL = u }
}

// WithHTTPClient sets the base transport for token and userinfo requests.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Google) { g.httpClient = c }
}

// New builds the exchanger. Client id and secret are required.
func New(cfg Config, opts ...Option) (*Google, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("oauth: client id and secret are required")
	}
	redirect := cfg.RedirectURL
	if redirect == "" {
		redirect = "postmessage"
	}
	g := &Google{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirect,
			Endpoint:     google.Endpoint,
			Scopes:       Scopes,
		},
		userInfoURL: defaultUserInfoURL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *Google) context(ctx context.Context) context.Context {
	if g.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
}

// Exchange trades an authorization code for a token pair and the user's basic profile.
// A missing refresh token is only logged: the user will have to re-consent once the
// access token expires.
func (g *Google) Exchange(ctx context.Context, code string) (Grant, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Grant{}, fmt.Errorf("%w: missing authorization code", ErrExchangeFailed)
	}
	ctx = g.context(ctx)
	log := obs.WithContext(ctx)

	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		log.Warn("token exchange failed", zap.Error(err))
		return Grant{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if tok.AccessToken == "" {
		return Grant{}, ErrNoAccessToken
	}
	if tok.RefreshToken == "" {
		log.Warn("no refresh token received, user may need to re-consent")
	}

	profile, err := g.fetchProfile(ctx, tok)
	if err != nil {
		log.Warn("userinfo fetch failed", zap.Error(err))
		return Grant{}, err
	}

	return Grant{Token: g.toToken(tok, ""), Profile: profile}, nil
}

// Refresh implements auth.TokenSource.
func (g *Google) Refresh(ctx context.Context, refreshToken string) (auth.Token, error) {
	if refreshToken == "" {
		return auth.Token{}, errors.New("oauth: refresh token is empty")
	}
	ctx = g.context(ctx)
	tok, err := g.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return auth.Token{}, fmt.Errorf("oauth: refresh: %w", err)
	}
	return g.toToken(tok, refreshToken), nil
}

func (g *Google) toToken(tok *oauth2.Token, previousRefresh string) auth.Token {
	out := auth.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if out.RefreshToken == "" {
		out.RefreshToken = previousRefresh
	}
	if out.Expiry.IsZero() {
		out.Expiry = g.now().Add(time.Hour)
	}
	return out
}

type userInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (g *Google) fetchProfile(ctx context.Context, tok *oauth2.Token) (auth.Profile, error) {
	client := g.cfg.Client(ctx, tok)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return auth.Profile{}, fmt.Errorf("%w: %v", ErrProfile, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return auth.Profile{}, fmt.Errorf("%w: %v", ErrProfile, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return auth.Profile{}, fmt.Errorf("%w: status %d", ErrProfile, resp.StatusCode)
	}
	var info userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return auth.Profile{}, fmt.Errorf("%w: %v", ErrProfile, err)
	}
	if info.ID == "" || info.Email == "" {
		return auth.Profile{}, fmt.Errorf("%w: incomplete profile", ErrProfile)
	}
	return auth.Profile{ID: info.ID, Email: info.Email, Name: info.Name, Picture: info.Picture}, nil
}
