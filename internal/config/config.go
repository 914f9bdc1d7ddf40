package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

type Config struct {
	Addr string
	Env  string

	DatabaseDSN string
	DBTimeout   time.Duration

	RedisURL     string
	CacheTTL     time.Duration
	CacheTimeout time.Duration

	S3Endpoint      string
	S3Region        string
	S3Bucket        string
	S3AccessKeyID   string
	S3SecretKey     string
	S3PublicBaseURL string
	BlobTimeout     time.Duration

	JWTSecret string
	JWTTTL    time.Duration

	MaxUploadBytes int64
	ProxyTimeout   time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
	// TrustProxy keys rate limits on X-Forwarded-For. Enable it only
	// behind a proxy that overwrites the header.
	TrustProxy bool

	SentryDSN string
	LogLevel  string
}

// IsTest reports whether external backends may be replaced with in-memory ones.
func (c Config) IsTest() bool { return c.Env == EnvTest }

// IsDevelopment reports whether error responses may carry stack details.
func (c Config) IsDevelopment() bool { return c.Env == EnvDevelopment }

// LoadEnvFiles reads .env and .env.local without overriding variables
// already provided by the runtime (e.g. Docker).
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// Load builds a Config from the environment. Outside test mode every
// required key must be present; all missing keys are reported together.
func Load() (Config, error) {
	cfg := Config{
		Addr: getEnv("APP_ADDR", ":8080"),
		Env:  strings.ToLower(getEnv("APP_ENV", EnvProduction)),

		DatabaseDSN: os.Getenv("DB_DSN"),
		DBTimeout:   getDuration("DB_TIMEOUT", 5*time.Second),

		RedisURL:     os.Getenv("REDIS_URL"),
		CacheTTL:     getDuration("CACHE_TTL", time.Hour),
		CacheTimeout: getDuration("CACHE_TIMEOUT", 500*time.Millisecond),

		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3Region:        getEnv("S3_REGION", "us-east-1"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3AccessKeyID:   os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretKey:     os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		BlobTimeout:     getDuration("BLOB_TIMEOUT", time.Minute),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    getDuration("JWT_TTL", 3*time.Hour),

		MaxUploadBytes: int64(getInt("MAX_UPLOAD_MB", 70)) << 20,
		ProxyTimeout:   getDuration("PROXY_TIMEOUT", 30*time.Second),

		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 20),
		CORSOrigins:    splitList(os.Getenv("CORS_ORIGINS")),
		TrustProxy:     getBool("TRUST_PROXY", false),

		SentryDSN: os.Getenv("SENTRY_DSN"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
	}

	if cfg.IsTest() {
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = "test-secret"
		}
		return cfg, nil
	}

	var missing []string
	for _, req := range []struct{ key, val string }{
		{"DB_DSN", cfg.DatabaseDSN},
		{"JWT_SECRET", cfg.JWTSecret},
		{"S3_BUCKET", cfg.S3Bucket},
		{"S3_ACCESS_KEY_ID", cfg.S3AccessKeyID},
		{"S3_SECRET_ACCESS_KEY", cfg.S3SecretKey},
	} {
		if req.val == "" {
			missing = append(missing, req.key)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && v > 0 {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
