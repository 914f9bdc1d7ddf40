package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var requiredKeys = []string{"DB_DSN", "JWT_SECRET", "S3_BUCKET", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY"}

func setRequired(t *testing.T) {
	for _, k := range requiredKeys {
		t.Setenv(k, "value-"+k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, int64(70)<<20, cfg.MaxUploadBytes)
	assert.Equal(t, 3*time.Hour, cfg.JWTTTL)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.False(t, cfg.IsDevelopment())
	assert.False(t, cfg.TrustProxy)
}

func TestLoad_UnsetEnvIsProduction(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvProduction, cfg.Env)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_MissingRequiredWithoutEnv(t *testing.T) {
	for _, k := range requiredKeys {
		t.Setenv(k, "")
	}
	t.Setenv("APP_ENV", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_MissingRequired(t *testing.T) {
	for _, k := range requiredKeys {
		t.Setenv(k, "")
	}
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
	for _, k := range requiredKeys {
		assert.Contains(t, err.Error(), k)
	}
}

func TestLoad_TestModeSkipsRequired(t *testing.T) {
	for _, k := range requiredKeys {
		t.Setenv(k, "")
	}
	t.Setenv("APP_ENV", "test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsTest())
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("MAX_UPLOAD_MB", "5")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("RATE_LIMIT_RPS", "not-a-number")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(5)<<20, cfg.MaxUploadBytes)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, float64(10), cfg.RateLimitRPS)
	assert.True(t, cfg.TrustProxy)
}

func TestLoadEnvFiles_DoesNotOverrideExistingEnv(t *testing.T) {
	tmp := t.TempDir()
	p := filepath.Join(tmp, ".env")

	if err := os.WriteFile(p, []byte("DB_DSN=from_file\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	t.Setenv("DB_DSN", "from_env")

	cwd, _ := os.Getwd()
	_ = os.Chdir(tmp)
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	LoadEnvFiles()

	if got := os.Getenv("DB_DSN"); got != "from_env" {
		t.Fatalf("expected existing env to win, got %q", got)
	}
}
