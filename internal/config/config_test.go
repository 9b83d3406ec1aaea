package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// clearEnv blanks every variable Load reads so the host environment does not
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATA_DIR", "TOKENS_DIR", "USER_STORE", "AI_BASE_URL", "AI_MODEL",
		"GOOGLE_REDIRECT_URL", "LOG_LEVEL", "ALLOWED_ORIGINS", "TIMEZONE",
		"GATEWAY_CACHE_SIZE", "AI_API_KEY", "GEMINI_API_KEY", "AI_KEY_FILE",
		"GOOGLE_CREDENTIALS_BASE64", "GOOGLE_CREDENTIALS_FILE", "LOGIN_EXPIRY_SCHEDULE",
	} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UserStore != StoreJSON || cfg.CacheSize != 256 || cfg.ExpirySchedule != "@every 1h" {
		t.Errorf("defaults = store %q, cache %d, expiry %q", cfg.UserStore, cfg.CacheSize, cfg.ExpirySchedule)
	}
	if cfg.TokensDir != filepath.Join("data", "tokens") {
		t.Errorf("TokensDir = %q", cfg.TokensDir)
	}
	if cfg.UserSnapshotPath() != filepath.Join("data", "users.json") {
		t.Errorf("UserSnapshotPath() = %q", cfg.UserSnapshotPath())
	}
	if cfg.AIAPIKey != "" || cfg.GoogleCredentials != nil {
		t.Errorf("secrets loaded from nowhere: key %q, creds %q", cfg.AIAPIKey, cfg.GoogleCredentials)
	}
	if diff := cmp.Diff([]string{"http://localhost:3000"}, cfg.AllowedOrigins); diff != "" {
		t.Errorf("AllowedOrigins mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("USER_STORE", "SQLite")
	t.Setenv("DATA_DIR", "/var/lib/assistant")
	t.Setenv("TIMEZONE", "America/Toronto")
	t.Setenv("GATEWAY_CACHE_SIZE", "8")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://app.example.com/ ,")
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UserSnapshotPath() != filepath.Join("/var/lib/assistant", "calendar.db") {
		t.Errorf("UserSnapshotPath() = %q", cfg.UserSnapshotPath())
	}
	if cfg.Location.String() != "America/Toronto" || cfg.CacheSize != 8 {
		t.Errorf("Location = %v, CacheSize = %d", cfg.Location, cfg.CacheSize)
	}
	if cfg.AIAPIKey != "env-key" {
		t.Errorf("AIAPIKey = %q, want env-key", cfg.AIAPIKey)
	}
	if diff := cmp.Diff([]string{"http://localhost:3000", "https://app.example.com"}, cfg.AllowedOrigins); diff != "" {
		t.Errorf("AllowedOrigins mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"store", "USER_STORE", "postgres"},
		{"timezone", "TIMEZONE", "Mars/Olympus"},
		{"cache size", "GATEWAY_CACHE_SIZE", "-1"},
		{"credentials", "GOOGLE_CREDENTIALS_BASE64", "not base64!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%q succeeded, want error", tt.key, tt.value)
			}
		})
	}
}

func TestSecretFallbackFiles(t *testing.T) {
	clearEnv(t)
	if err := os.MkdirAll("config", 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join("config", "ai.env"), []byte("GEMINI_API_KEY=file-key\n"), 0600); err != nil {
		t.Fatal(err)
	}
	creds := []byte(`{"installed":{"client_id":"id"}}`)
	if err := os.WriteFile("credentials.json", creds, 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AIAPIKey != "file-key" {
		t.Errorf("AIAPIKey = %q, want file-key", cfg.AIAPIKey)
	}
	if diff := cmp.Diff(creds, cfg.GoogleCredentials); diff != "" {
		t.Errorf("GoogleCredentials mismatch (-want +got):\n%s", diff)
	}

	t.Setenv("GOOGLE_CREDENTIALS_BASE64", base64.StdEncoding.EncodeToString([]byte(`{"web":{}}`)))
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(cfg.GoogleCredentials) != `{"web":{}}` {
		t.Errorf("GoogleCredentials = %q, want the decoded env value", cfg.GoogleCredentials)
	}
}
