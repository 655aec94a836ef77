package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr        string
	DBPath      string
	UploadDir   string
	JWTSecret   string
	TokenTTL    time.Duration
	BcryptCost  int
	ReleaseMode bool

	// Simulated generation backend.
	FaultProbability float64
	MinDelay         time.Duration
	MaxDelay         time.Duration

	// Circuit breaker settings shared by every repository operation.
	BreakerTimeout   time.Duration
	BreakerThreshold float64
	BreakerReset     time.Duration
}

func Load() Config {
	return Config{
		Addr:             env("LOOKBOOK_ADDR", ":8080"),
		DBPath:           env("LOOKBOOK_DB_PATH", "lookbook.db"),
		UploadDir:        env("LOOKBOOK_UPLOAD_DIR", "uploads"),
		JWTSecret:        env("LOOKBOOK_JWT_SECRET", "dev-change-me"),
		TokenTTL:         envDuration("LOOKBOOK_TOKEN_TTL", 7*24*time.Hour),
		BcryptCost:       envInt("LOOKBOOK_BCRYPT_COST", 10),
		ReleaseMode:      env("LOOKBOOK_ENV", "development") == "production",
		FaultProbability: envFloat("LOOKBOOK_FAULT_PROBABILITY", 0.2),
		MinDelay:         envDuration("LOOKBOOK_MIN_DELAY", time.Second),
		MaxDelay:         envDuration("LOOKBOOK_MAX_DELAY", 2*time.Second),
		BreakerTimeout:   envDuration("LOOKBOOK_BREAKER_TIMEOUT", 3*time.Second),
		BreakerThreshold: envFloat("LOOKBOOK_BREAKER_THRESHOLD", 50),
		BreakerReset:     envDuration("LOOKBOOK_BREAKER_RESET", 30*time.Second),
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
