// Package config loads server settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultJWTSecret is accepted only outside production.
const DefaultJWTSecret = "your-super-secret-jwt-key-change-in-production"

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all settings for the API server.
type Config struct {
	Port int
	Env  string

	JWTSecret    string
	JWTExpiresIn time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string

	CORSOrigin string

	LocalStoragePath string
	MaxFileSize      int64
	MaxTotalSize     int64

	RateLimitWindow    time.Duration
	RateLimitMax       int
	RateLimitSubmitMax int
	// TrustProxy takes the client address from forwarding headers. Enable only behind a
	// reverse proxy that overwrites them.
	TrustProxy bool

	RefreshSkew      time.Duration
	SerializeRefresh bool
	SubmitTimeout    time.Duration
	DevLoginEnabled  bool
	ShutdownTimeout  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Production reports whether the server runs with production cookie and secret rules.
func (c *Config) Production() bool { return c.Env == EnvProduction }

// Addr is the listen address.
func (c *Config) Addr() string { return ":" + strconv.Itoa(c.Port) }

func defaults(v *viper.Viper) {
	v.SetDefault("port", 3001)
	v.SetDefault("app_env", EnvDevelopment)
	v.SetDefault("jwt_secret", DefaultJWTSecret)
	v.SetDefault("jwt_expires_in", "7d")
	v.SetDefault("google_client_id", "")
	v.SetDefault("google_client_secret", "")
	v.SetDefault("google_redirect_uri", "postmessage")
	v.SetDefault("cors_origin", "http://localhost:5173")
	v.SetDefault("local_storage_path", "./uploads")
	v.SetDefault("max_file_size", 5<<20)
	v.SetDefault("max_total_size", 25<<20)
	v.SetDefault("rate_limit_window", "15m")
	v.SetDefault("rate_limit_max", 100)
	v.SetDefault("rate_limit_submit_max", 10)
	v.SetDefault("trust_proxy", false)
	v.SetDefault("refresh_skew", "5m")
	v.SetDefault("auth_serialize_refresh", false)
	v.SetDefault("submit_timeout", "2m")
	v.SetDefault("dev_login_enabled", false)
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
}

// Load reads envFile (when it exists) into the process environment, then resolves every
// setting from environment variables over defaults. Variables already set in the
// environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}

	v := viper.New()
	defaults(v)
	v.AutomaticEnv()
	_ = v.BindEnv("app_env", "APP_ENV", "NODE_ENV")

	cfg := &Config{
		Port:               v.GetInt("port"),
		Env:                strings.ToLower(strings.TrimSpace(v.GetString("app_env"))),
		JWTSecret:          v.GetString("jwt_secret"),
		GoogleClientID:     strings.TrimSpace(v.GetString("google_client_id")),
		GoogleClientSecret: strings.TrimSpace(v.GetString("google_client_secret")),
		GoogleRedirectURI:  v.GetString("google_redirect_uri"),
		CORSOrigin:         v.GetString("cors_origin"),
		LocalStoragePath:   v.GetString("local_storage_path"),
		MaxFileSize:        v.GetInt64("max_file_size"),
		MaxTotalSize:       v.GetInt64("max_total_size"),
		RateLimitMax:       v.GetInt("rate_limit_max"),
		RateLimitSubmitMax: v.GetInt("rate_limit_submit_max"),
		TrustProxy:         v.GetBool("trust_proxy"),
		SerializeRefresh:   v.GetBool("auth_serialize_refresh"),
		DevLoginEnabled:    v.GetBool("dev_login_enabled"),
		RedisAddr:          v.GetString("redis_addr"),
		RedisPassword:      v.GetString("redis_password"),
		RedisDB:            v.GetInt("redis_db"),
	}

	var err error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"jwt_expires_in", &cfg.JWTExpiresIn},
		{"rate_limit_window", &cfg.RateLimitWindow},
		{"refresh_skew", &cfg.RefreshSkew},
		{"submit_timeout", &cfg.SubmitTimeout},
		{"shutdown_timeout", &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = ParseDuration(v.GetString(d.key)); err != nil {
			return nil, fmt.Errorf("%s: %w", strings.ToUpper(d.key), err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	var errs []error
	if c.Env != EnvDevelopment && c.Env != EnvProduction && c.Env != "test" {
		errs = append(errs, fmt.Errorf("APP_ENV: unknown environment %q", c.Env))
	}
	if c.GoogleClientID == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID is not set"))
	}
	if c.GoogleClientSecret == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_SECRET is not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is empty"))
	}
	if c.Production() && c.JWTSecret == DefaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be changed in production"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT: out of range: %d", c.Port))
	}
	if c.MaxFileSize <= 0 || c.MaxTotalSize < c.MaxFileSize {
		errs = append(errs, errors.New("MAX_FILE_SIZE and MAX_TOTAL_SIZE must be positive with total >= per-file"))
	}
	if c.RateLimitMax <= 0 || c.RateLimitSubmitMax <= 0 || c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	if c.JWTExpiresIn <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRES_IN must be positive"))
	}
	return errors.Join(errs...)
}

// ParseDuration accepts time.ParseDuration syntax plus a whole-day suffix such as "7d".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
