package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env  string
	Port int

	// storage
	StoreDriver string
	DBURL       string
	DBMaxConns  int32

	// auth
	JWTSecret        string
	JWTTTLHours      int
	BcryptCost       int
	BcryptChangeCost int
	AllowAdminSignup bool

	// token denylist: off | memory | redis
	TokenDenylist string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// seeded admin
	AdminEmail    string
	AdminPassword string
	AdminName     string

	// http
	AllowedOrigins []string
	MaxBodyBytes   int64
	AuthRateLimit  int

	// tracing
	OTELEnabled  bool
	OTELEndpoint string
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	DenylistOff    = "off"
	DenylistMemory = "memory"
	DenylistRedis  = "redis"
)

func Load() Config {
	return Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 5000),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DBURL:       getEnv("DATABASE_URL", buildDBURL()),
		DBMaxConns:  int32(getEnvInt("DB_MAX_CONNS", 5)),

		JWTSecret:        getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTTTLHours:      getEnvInt("JWT_TTL_HOURS", 24*7),
		BcryptCost:       getEnvInt("BCRYPT_COST", 10),
		BcryptChangeCost: getEnvInt("BCRYPT_CHANGE_COST", 12),
		AllowAdminSignup: getEnvBool("ALLOW_ADMIN_SIGNUP", true),

		TokenDenylist: strings.ToLower(getEnv("TOKEN_DENYLIST", DenylistOff)),
		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),

		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		MaxBodyBytes:   int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
		AuthRateLimit:  getEnvInt("AUTH_RATE_LIMIT", 20),

		OTELEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.TokenDenylist {
	case DenylistOff, DenylistMemory, DenylistRedis:
	default:
		return fmt.Errorf("config: unknown TOKEN_DENYLIST %q", c.TokenDenylist)
	}

	if c.Env == "prod" && c.JWTSecret == "dev-secret-change-me" {
		return fmt.Errorf("config: JWT_SECRET must be set in prod")
	}

	if c.JWTTTLHours <= 0 {
		return fmt.Errorf("config: JWT_TTL_HOURS must be positive")
	}

	return nil
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "enrollhub")
	pass := getEnv("DB_PASSWORD", "enrollhub")
	name := getEnv("DB_NAME", "enrollhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
