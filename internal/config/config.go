// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	BackendURL  string
	RedisAddr   string        // empty disables response caching
	PostgresDSN string        // empty disables durable export history
	CacheTTL    time.Duration

	// Email notification settings; empty API key disables email.
	EmailAPIKey string
	FromName    string
	FromAddress string
	ToAddress   string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:        getenv("PORT", "8080"),
		BackendURL:  getenv("BACKEND_URL", "http://localhost:8000"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		CacheTTL:    30 * time.Second,
		EmailAPIKey: os.Getenv("EMAIL_API_KEY"),
		FromName:    os.Getenv("FROM_NAME"),
		FromAddress: os.Getenv("FROM_ADDRESS"),
		ToAddress:   os.Getenv("TO_ADDRESS"),
	}

	if raw := os.Getenv("CACHE_TTL_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return cfg, fmt.Errorf("invalid CACHE_TTL_SECONDS %q", raw)
		}
		cfg.CacheTTL = time.Duration(seconds) * time.Second
	}

	return cfg, nil
}

func getenv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
