package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

// unsetenv clears key for the test and restores it afterwards.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatal(err)
	}
}

func TestLoadEnv(t *testing.T) {
	unsetenv(t, "GEMINI_API_KEY")
	dir := t.TempDir()

	if err := loadEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing dotenv file: %v", err)
	}
	if err := loadEnv(""); err != nil {
		t.Fatalf("empty path: %v", err)
	}

	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("GEMINI_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := loadEnv(path); err != nil {
		t.Fatalf("loadEnv() error: %v", err)
	}
	if got := os.Getenv("GEMINI_API_KEY"); got != "from-dotenv" {
		t.Errorf("GEMINI_API_KEY = %q, want from-dotenv", got)
	}
}

func TestLoadEnv_KeepsExistingVariables(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-shell")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("GEMINI_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := loadEnv(path); err != nil {
		t.Fatalf("loadEnv() error: %v", err)
	}
	if got := os.Getenv("GEMINI_API_KEY"); got != "from-shell" {
		t.Errorf("GEMINI_API_KEY = %q, want from-shell", got)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg, watch, err := loadConfig(filepath.Join(t.TempDir(), "carecoach.yaml"))
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if watch {
		t.Error("missing file should not be watched")
	}
	if cfg.Gateway.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key", cfg.Gateway.APIKey)
	}
}

func TestLoadConfig_MissingFileWithoutKey(t *testing.T) {
	unsetenv(t, "GEMINI_API_KEY")

	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "carecoach.yaml")); err == nil {
		t.Fatal("expected error when defaults have no API key")
	}
}

func TestLoadConfig_ExistingFileIsWatched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carecoach.yaml")
	if err := os.WriteFile(path, []byte("gateway:\n  api_key: file-key\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, watch, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if !watch || cfg.Gateway.APIKey != "file-key" {
		t.Errorf("loadConfig() = key %q watch %v", cfg.Gateway.APIKey, watch)
	}
}

func TestOpenLog_Discard(t *testing.T) {
	t.Parallel()

	w, closeLog, err := openLog("-")
	if err != nil {
		t.Fatal(err)
	}
	defer closeLog()
	if w != io.Discard {
		t.Error("\"-\" should discard logs")
	}
}
