package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/adityaahir3105/FinDocs/internal/auth"
	"github.com/adityaahir3105/FinDocs/internal/oauth"
	"github.com/adityaahir3105/FinDocs/internal/obs"
	"github.com/adityaahir3105/FinDocs/internal/storage"
	"github.com/adityaahir3105/FinDocs/internal/submission"
)

const (
	jsonBodyLimit    = 1 << 20
	multipartSlack   = 1 << 20
	defaultSubmitTTL = 2 * time.Minute
)

// Pinger is satisfied by dependencies that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe checks that local storage is writable and, when configured, that Redis answers.
type ReadyProbe struct {
	Local *storage.Local
	Redis Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Local != nil {
		if err := rp.Local.CheckWritable(); err != nil {
			return err
		}
	}
	if rp.Redis != nil {
		return rp.Redis.Ping(ctx)
	}
	return nil
}

// CodeExchanger trades an authorization code for tokens and a profile.
type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (oauth.Grant, error)
}

// ProviderFactory picks the storage provider for a request.
type ProviderFactory interface {
	ForAccessToken(ctx context.Context, accessToken string) (storage.Provider, error)
}

// Options are the HTTP-level settings.
type Options struct {
	Version         string
	Production      bool
	CORSOrigin      string
	DevLoginEnabled bool
	RateWindow      time.Duration
	RateMax         int
	RateSubmitMax   int
	SubmitTimeout   time.Duration
	// TrustProxy rewrites the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Codec       *auth.Codec
	Refresher   *auth.Refresher
	Revoker     auth.Revoker
	OAuth       CodeExchanger
	Storage     ProviderFactory
	Submissions *submission.Service
	Ready       ReadyProbe
}

// API is the HTTP layer.
type API struct {
	router       chi.Router
	opts         Options
	codec        *auth.Codec
	refresher    *auth.Refresher
	revoker      auth.Revoker
	oauth        CodeExchanger
	storage      ProviderFactory
	submissions  *submission.Service
	readyProbe   ReadyProbe
	generalLimit *RateLimiter
	submitLimit  *RateLimiter
	now          func() time.Time
}

func New(opts Options, deps Deps) *API {
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = defaultSubmitTTL
	}
	if deps.Revoker == nil {
		deps.Revoker = auth.NewMemoryRevoker(time.Minute)
	}
	if deps.Submissions == nil {
		deps.Submissions = submission.NewService()
	}
	a := &API{
		opts:         opts,
		codec:        deps.Codec,
		refresher:    deps.Refresher,
		revoker:      deps.Revoker,
		oauth:        deps.OAuth,
		storage:      deps.Storage,
		submissions:  deps.Submissions,
		readyProbe:   deps.Ready,
		generalLimit: NewRateLimiter(opts.RateMax, opts.RateWindow, "Too many requests, please try again later."),
		submitLimit:  NewRateLimiter(opts.RateSubmitMax, opts.RateWindow, "Too many submissions, please try again later."),
		now:          time.Now,
	}
	a.router = a.routes()
	return a
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	if a.opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestID)
	r.Use(LoggingJSON)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(CORS(a.opts.CORSOrigin))

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Handle("/metrics", obs.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(a.generalLimit.Middleware)
		r.Get("/health", a.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Use(MaxBodyBytes(jsonBodyLimit))
			r.Post("/google", a.handleGoogleLogin)
			if a.opts.DevLoginEnabled && !a.opts.Production {
				r.Post("/dev", a.handleDevLogin)
			}
			r.Get("/check", a.handleCheck)
			r.Post("/logout", a.handleLogout)
		})

		r.Route("/submit", func(r chi.Router) {
			r.Use(a.authenticate)
			r.With(a.submitLimit.Middleware, MaxBodyBytes(a.multipartLimit())).Post("/", a.handleSubmit)
			r.Get("/history", a.handleHistory)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

func (a *API) multipartLimit() int64 {
	return a.submissions.Limits().MaxTotalSize + multipartSlack
}

// Handler returns the instrumented router.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.router)
}

// SweepRateLimits drops idle per-client buckets.
func (a *API) SweepRateLimits() {
	a.generalLimit.Sweep()
	a.submitLimit.Sweep()
}

// --- Handlers ---

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "findocs-api",
		"version": a.opts.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, r *http.Request, code int, data any) {
	writeJSON(w, code, withRequestID(r, map[string]any{"success": true, "data": data}))
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, withRequestID(r, map[string]any{"success": false, "message": msg}))
}

func withRequestID(r *http.Request, payload map[string]any) map[string]any {
	if rid := obs.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	return payload
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
