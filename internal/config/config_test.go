package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bounan/Bounan.Matcher/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
[animan]
base_url = "https://animan.example/api/"

[loanapi]
base_url = "https://loan.example"
`

func TestLoadAppliesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, _, exists, err := config.Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Matching.EpisodesToMatch != 5 {
		t.Fatalf("unexpected episodes_to_match: %d", cfg.Matching.EpisodesToMatch)
	}
	if cfg.Matching.SecondsToMatch != 360 {
		t.Fatalf("unexpected seconds_to_match: %d", cfg.Matching.SecondsToMatch)
	}
	if cfg.Matching.ForceEpisodeCap != 27 {
		t.Fatalf("unexpected force_episode_cap: %d", cfg.Matching.ForceEpisodeCap)
	}
	if cfg.Download.Threads != 12 {
		t.Fatalf("unexpected download threads: %d", cfg.Download.Threads)
	}
	if cfg.Workflow.BatchAttempts != 2 {
		t.Fatalf("unexpected batch attempts: %d", cfg.Workflow.BatchAttempts)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if cfg.AniMan.BaseURL != "https://animan.example/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.AniMan.BaseURL)
	}
	if !filepath.IsAbs(cfg.Download.TempDir) {
		t.Fatalf("temp dir not absolute: %q", cfg.Download.TempDir)
	}
}

func TestLoadRequiresBackendURLs(t *testing.T) {
	_, _, _, err := config.Load(writeConfig(t, "[animan]\nbase_url = \"\"\n"))
	if err == nil {
		t.Fatal("expected missing animan.base_url to fail validation")
	}
	if !strings.Contains(err.Error(), "animan.base_url") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsNonPositiveMatchingValues(t *testing.T) {
	body := minimalConfig + "\n[matching]\nbatch_size = 0\n"
	if _, _, _, err := config.Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected zero batch_size to fail validation")
	}
}

func TestTokenEnvFallback(t *testing.T) {
	t.Setenv("ANIMAN_TOKEN", "secret-token")
	cfg, _, _, err := config.Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AniMan.Token != "secret-token" {
		t.Fatalf("expected token from env, got %q", cfg.AniMan.Token)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[matching]") {
		t.Fatal("sample config missing [matching] section")
	}
}
