package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Model != "gemini-2.5-flash" {
		t.Fatalf("model = %q", cfg.LLM.Model)
	}
	if cfg.Locale != "en-US" {
		t.Fatalf("locale = %q", cfg.Locale)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"llm":{"model":"gemini-2.5-pro"},"locale":"es-ES","economy":{"daily_allotment":200}}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Model != "gemini-2.5-pro" {
		t.Fatalf("model = %q", cfg.LLM.Model)
	}
	if cfg.Locale != "es-ES" {
		t.Fatalf("locale = %q", cfg.Locale)
	}
	if cfg.Economy.DailyAllotment != 200 {
		t.Fatalf("allotment = %d", cfg.Economy.DailyAllotment)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"llm":{"api_key":"from-file"}}`), 0644)

	t.Setenv("PARLEY_API_KEY", "from-env")
	t.Setenv("PARLEY_LOCALE", "fr-FR")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "from-env" {
		t.Fatalf("api key = %q, want env to win", cfg.LLM.APIKey)
	}
	if cfg.Locale != "fr-FR" {
		t.Fatalf("locale = %q", cfg.Locale)
	}
}

func TestLoad_GeminiKeyFallback(t *testing.T) {
	t.Setenv("PARLEY_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gem-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "gem-key" {
		t.Fatalf("api key = %q, want GEMINI_API_KEY fallback", cfg.LLM.APIKey)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".parley", "config.json")

	cfg := DefaultConfig()
	cfg.Logging.DebugMode = true
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.Logging.DebugMode {
		t.Fatal("debug mode lost in round trip")
	}
}
