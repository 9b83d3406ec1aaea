// Package config reads process settings from the environment, with local
// files as a fallback for secrets during development.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends for the user registry.
const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// Config holds the settings shared by the server and the console client.
type Config struct {
	// DataDir holds the user snapshot and the tokens directory.
	DataDir string
	// TokensDir holds one credential directory per user.
	TokensDir string
	// UserStore selects the snapshot backend: StoreJSON or StoreSQLite.
	UserStore string

	AIAPIKey  string
	AIBaseURL string
	AIModel   string

	// GoogleCredentials is the OAuth client JSON, empty when none was found.
	GoogleCredentials []byte
	RedirectURL       string

	AllowedOrigins []string
	Location       *time.Location
	CacheSize      int
	LogLevel       string

	// ExpirySchedule is the cron spec of the stale-login sweep.
	ExpirySchedule string
}

// Load reads a .env file if present, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DataDir:     getEnv("DATA_DIR", "./data"),
		UserStore:   strings.ToLower(getEnv("USER_STORE", StoreJSON)),
		AIBaseURL:   getEnv("AI_BASE_URL", ""),
		AIModel:     getEnv("AI_MODEL", ""),
		RedirectURL: getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/events/auth/callback"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		ExpirySchedule: getEnv("LOGIN_EXPIRY_SCHEDULE", "@every 1h"),
	}
	cfg.TokensDir = getEnv("TOKENS_DIR", filepath.Join(cfg.DataDir, "tokens"))
	cfg.AllowedOrigins = splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"))

	if cfg.UserStore != StoreJSON && cfg.UserStore != StoreSQLite {
		return Config{}, fmt.Errorf("USER_STORE must be %q or %q, got %q", StoreJSON, StoreSQLite, cfg.UserStore)
	}

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "Local"))
	if err != nil {
		return Config{}, fmt.Errorf("loading TIMEZONE: %w", err)
	}
	cfg.Location = loc

	size, err := strconv.Atoi(getEnv("GATEWAY_CACHE_SIZE", "256"))
	if err != nil || size <= 0 {
		return Config{}, errors.New("GATEWAY_CACHE_SIZE must be a positive integer")
	}
	cfg.CacheSize = size

	cfg.AIAPIKey, err = loadAIKey(getEnv("AI_KEY_FILE", filepath.Join("config", "ai.env")))
	if err != nil {
		return Config{}, err
	}

	cfg.GoogleCredentials, err = loadGoogleCredentials(getEnv("GOOGLE_CREDENTIALS_FILE", "credentials.json"))
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// UserSnapshotPath returns the file backing the selected user store.
func (c Config) UserSnapshotPath() string {
	if c.UserStore == StoreSQLite {
		return filepath.Join(c.DataDir, "calendar.db")
	}
	return filepath.Join(c.DataDir, "users.json")
}

// loadAIKey prefers the environment and falls back to a dotenv file.
func loadAIKey(path string) (string, error) {
	for _, key := range []string{"AI_API_KEY", "GEMINI_API_KEY"} {
		if v := os.Getenv(key); v != "" {
			return v, nil
		}
	}

	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading AI key file %s: %w", path, err)
	}
	if v := values["AI_API_KEY"]; v != "" {
		return v, nil
	}
	return values["GEMINI_API_KEY"], nil
}

// loadGoogleCredentials prefers GOOGLE_CREDENTIALS_BASE64 and falls back to
// the credentials file. Neither being present is not an error.
func loadGoogleCredentials(path string) ([]byte, error) {
	if encoded := strings.TrimSpace(os.Getenv("GOOGLE_CREDENTIALS_BASE64")); encoded != "" {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decoding GOOGLE_CREDENTIALS_BASE64: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials file %s: %w", path, err)
	}
	return data, nil
}

// NewLogger returns a text logger on stderr at the named level.
func NewLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// getEnv returns an environment variable value or a default if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.TrimSuffix(part, "/"))
		}
	}
	return out
}
