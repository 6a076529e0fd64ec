package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/possync/internal/infrastructure/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("AUTH_ENABLED", "")
	t.Setenv("ENV_FILE", "")
	t.Chdir(t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.JWTSecret)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 1000, cfg.TombstoneMaxCodes)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis://example")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DATABASE_TIMEOUT", "45s")
	t.Setenv("JWT_SECRET", "top-secret")
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("APP_ENV", "Production")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("ENV_FILE", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://example", cfg.DatabaseURL)
	assert.Equal(t, "redis://example", cfg.RedisURL)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, 45*time.Second, cfg.DatabaseTimeout)
	assert.True(t, cfg.AuthEnabled)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadRequiresSecretWithAuth(t *testing.T) {
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ENV_FILE", "")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "possync.env")
	require.NoError(t, os.WriteFile(path, []byte("TOMBSTONE_MAX_CODES=250\nHTTP_PORT=7000\n"), 0o600))

	t.Setenv("ENV_FILE", path)
	t.Setenv("HTTP_PORT", "7100")
	t.Setenv("AUTH_ENABLED", "false")
	// godotenv only sets unset variables; register cleanup for the one it adds.
	t.Setenv("TOMBSTONE_MAX_CODES", "")
	require.NoError(t, os.Unsetenv("TOMBSTONE_MAX_CODES"))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.TombstoneMaxCodes)
	assert.Equal(t, "7100", cfg.HTTPPort)
}

func TestLoadMissingExplicitEnvFile(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))

	_, err := config.Load()
	assert.Error(t, err)
}
