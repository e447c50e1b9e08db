package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/adityaahir3105/FinDocs/internal/auth"
	"github.com/adityaahir3105/FinDocs/internal/config"
	"github.com/adityaahir3105/FinDocs/internal/httpapi"
	"github.com/adityaahir3105/FinDocs/internal/oauth"
	"github.com/adityaahir3105/FinDocs/internal/obs"
	"github.com/adityaahir3105/FinDocs/internal/storage"
	"github.com/adityaahir3105/FinDocs/internal/submission"
)

var (
	version = "0.1.0"
	commit  = "unknown"
)

const sweepInterval = time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "findocs-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	if err := obs.InitLogger(cfg.Env); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer obs.Sync()
	obs.Init()
	obs.InitBuildInfo(version, commit)
	log := obs.Logger()

	codec, err := auth.NewCodec(cfg.JWTSecret, auth.WithEnvelopeTTL(cfg.JWTExpiresIn))
	if err != nil {
		return err
	}
	google, err := oauth.New(oauth.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURI,
	})
	if err != nil {
		return err
	}
	refresher := auth.NewRefresher(codec, google,
		auth.WithRefreshSkew(cfg.RefreshSkew),
		auth.WithSerializedRefresh(cfg.SerializeRefresh),
	)

	ready := httpapi.ReadyProbe{}
	var revoker auth.Revoker
	if cfg.RedisAddr != "" {
		rr, err := auth.NewRedisRevoker(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("redis revoker: %w", err)
		}
		defer rr.Close()
		revoker = rr
		ready.Redis = rr
		log.Info("revocation list backed by redis", zap.String("addr", cfg.RedisAddr))
	} else {
		mr := auth.NewMemoryRevoker(time.Minute)
		defer mr.Stop()
		revoker = mr
	}

	factory, err := storage.NewFactory(cfg.LocalStoragePath)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	ready.Local = factory.Local()

	submissions := submission.NewService(submission.WithLimits(submission.Limits{
		MaxFileSize:  cfg.MaxFileSize,
		MaxTotalSize: cfg.MaxTotalSize,
	}))

	api := httpapi.New(httpapi.Options{
		Version:         version,
		Production:      cfg.Production(),
		CORSOrigin:      cfg.CORSOrigin,
		DevLoginEnabled: cfg.DevLoginEnabled,
		RateWindow:      cfg.RateLimitWindow,
		RateMax:         cfg.RateLimitMax,
		RateSubmitMax:   cfg.RateLimitSubmitMax,
		SubmitTimeout:   cfg.SubmitTimeout,
		TrustProxy:      cfg.TrustProxy,
	}, httpapi.Deps{
		Codec:       codec,
		Refresher:   refresher,
		Revoker:     revoker,
		OAuth:       google,
		Storage:     factory,
		Submissions: submissions,
		Ready:       ready,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		// uploads to Drive can take a while; the submit handler bounds itself with SubmitTimeout
		ReadTimeout:  cfg.SubmitTimeout + 30*time.Second,
		WriteTimeout: cfg.SubmitTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		t := time.NewTicker(sweepInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				api.SweepRateLimits()
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting findocs-api",
			zap.String("version", version),
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env),
			zap.String("local_storage", factory.Local().Base()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("stopped")
	return nil
}
