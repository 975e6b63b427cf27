// Package config loads runtime configuration for the news API.
//
// CONFIGURATION SOURCES (in priority order):
//  1. Process environment variables (Docker, systemd, CI)
//  2. An optional .env file in the working directory (local development)
//  3. Built-in defaults
//
// The .env file is read with godotenv.Read, which returns a map instead of
// mutating os.Environ. That keeps tests free of global side effects.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SMTP holds outbound mail settings. An empty Host means "log emails instead
// of sending them", which is what local development wants.
type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
}

// Config is the fully resolved application configuration.
type Config struct {
	Port            int
	DBPath          string
	MediaDir        string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	APIBaseURL      string
	LogLevel        slog.Level
	SMTP            SMTP
}

// lookup resolves a key against the environment first, then the .env values.
type lookup func(key string) (string, bool)

// Load reads the optional .env file at envFile and the process environment.
// A missing .env file is not an error.
func Load(envFile string) (Config, error) {
	fileVals := map[string]string{}
	if envFile != "" {
		vals, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileVals = vals
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("config: reading %s: %w", envFile, err)
		}
	}

	return FromLookup(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := fileVals[key]
		return v, ok && v != ""
	})
}

// FromLookup builds a Config from an arbitrary key lookup. Exposed for tests.
func FromLookup(get lookup) (Config, error) {
	var cfg Config
	var err error

	if cfg.Port, err = intVal(get, "PORT", 8080); err != nil {
		return Config{}, err
	}
	cfg.DBPath = strVal(get, "DB_PATH", "data/news.db")
	cfg.MediaDir = strVal(get, "MEDIA_DIR", "data/media")

	cfg.JWTSecret = strVal(get, "JWT_SECRET", "")
	if len(cfg.JWTSecret) < 16 {
		return Config{}, errors.New("config: JWT_SECRET must be set and at least 16 characters")
	}

	if cfg.AccessTokenTTL, err = durationVal(get, "ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = durationVal(get, "REFRESH_TOKEN_TTL", 7*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL <= cfg.AccessTokenTTL {
		return Config{}, errors.New("config: REFRESH_TOKEN_TTL must be longer than ACCESS_TOKEN_TTL")
	}

	cfg.APIBaseURL = strings.TrimRight(
		strVal(get, "API_BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)), "/")

	if cfg.LogLevel, err = levelVal(get, "LOG_LEVEL", slog.LevelInfo); err != nil {
		return Config{}, err
	}

	cfg.SMTP.Host = strVal(get, "SMTP_HOST", "")
	if cfg.SMTP.Port, err = intVal(get, "SMTP_PORT", 587); err != nil {
		return Config{}, err
	}
	cfg.SMTP.Username = strVal(get, "SMTP_USERNAME", "")
	cfg.SMTP.Password = strVal(get, "SMTP_PASSWORD", "")
	cfg.SMTP.Sender = strVal(get, "SMTP_SENDER", "no-reply@localhost")

	return cfg, nil
}

func strVal(get lookup, key, def string) string {
	if v, ok := get(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func intVal(get lookup, key string, def int) (int, error) {
	v, ok := get(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s value %q: %w", key, v, err)
	}
	return n, nil
}

func durationVal(get lookup, key string, def time.Duration) (time.Duration, error) {
	v, ok := get(key)
	if !ok {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s value %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", key)
	}
	return d, nil
}

func levelVal(get lookup, key string, def slog.Level) (slog.Level, error) {
	v, ok := get(key)
	if !ok {
		return def, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
		return 0, fmt.Errorf("config: invalid %s value %q: %w", key, v, err)
	}
	return lvl, nil
}
