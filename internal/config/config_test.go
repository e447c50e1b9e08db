package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("GOOGLE_CLIENT_ID", "client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "")
	t.Setenv("NODE_ENV", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3001, cfg.Port)
	assert.Equal(t, ":3001", cfg.Addr())
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpiresIn)
	assert.Equal(t, "postmessage", cfg.GoogleRedirectURI)
	assert.Equal(t, int64(5<<20), cfg.MaxFileSize)
	assert.Equal(t, int64(25<<20), cfg.MaxTotalSize)
	assert.Equal(t, 15*time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 100, cfg.RateLimitMax)
	assert.Equal(t, 10, cfg.RateLimitSubmitMax)
	assert.Equal(t, 5*time.Minute, cfg.RefreshSkew)
	assert.False(t, cfg.TrustProxy)
	assert.False(t, cfg.Production())
}

func TestLoadFromEnvironment(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "8081")
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_EXPIRES_IN", "12h")
	t.Setenv("AUTH_SERIALIZE_REFRESH", "true")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Port)
	assert.True(t, cfg.Production())
	assert.Equal(t, 12*time.Hour, cfg.JWTExpiresIn)
	assert.True(t, cfg.SerializeRefresh)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.True(t, cfg.TrustProxy)
}

func TestLoadRejectsMissingGoogleCredentials(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("GOOGLE_CLIENT_SECRET", "")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_CLIENT_ID")
	assert.Contains(t, err.Error(), "GOOGLE_CLIENT_SECRET")
}

func TestLoadRejectsDefaultSecretInProduction(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadReadsDotEnv(t *testing.T) {
	setRequired(t)
	// Register cleanup for a variable the file is about to set.
	t.Setenv("CORS_ORIGIN", "")
	require.NoError(t, os.Unsetenv("CORS_ORIGIN"))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CORS_ORIGIN=https://app.example.com\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com", cfg.CORSOrigin)
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("7d")
	require.NoError(t, err)
	assert.Equal(t, 168*time.Hour, d)

	d, err = ParseDuration("90s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = ParseDuration("xd")
	assert.Error(t, err)
}
