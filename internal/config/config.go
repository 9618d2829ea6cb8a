package config

import (
	"log/slog"
	"os"
	"time"
)

const devJWTSecret = "dev-secret-change-in-production"

type Config struct {
	Port           string
	Env            string
	StorageBackend string
	DatabaseDSN    string
	JWTSecret      string
	JWTExpiry      time.Duration
	LockTimeout    time.Duration
}

func Load() Config {
	cfg := Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		StorageBackend: getEnv("STORAGE_BACKEND", "mysql"),
		DatabaseDSN:    getEnv("DATABASE_DSN", "root:password@tcp(127.0.0.1:3306)/vaultpass?parseTime=true"),
		JWTSecret:      getEnv("JWT_SECRET", devJWTSecret),
		JWTExpiry:      getDuration("JWT_EXPIRY", 24*time.Hour),
		LockTimeout:    getDuration("LOCK_TIMEOUT", 15*time.Minute),
	}

	if cfg.Env == "production" && cfg.JWTSecret == devJWTSecret {
		slog.Error("JWT_SECRET must be set in production environment")
		os.Exit(1)
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getDuration parses a Go duration such as "15m"; "0" disables the feature it configures.
func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		slog.Warn("invalid duration, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}
