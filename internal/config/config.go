package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Matching contains the scene-matching heuristics and batching knobs.
type Matching struct {
	// EpisodesToMatch is the lookahead radius (in positions, not episode
	// numbers) around each requested episode.
	EpisodesToMatch int `toml:"episodes_to_match"`
	// SecondsToMatch is the audio window captured from each episode edge.
	SecondsToMatch int `toml:"seconds_to_match"`
	// MinEpisodeNumber is the smallest episode window worth matching.
	MinEpisodeNumber int `toml:"min_episode_number"`
	BatchSize        int `toml:"batch_size"`
	// ForceEpisodeCap bounds force-mode full reprocessing.
	ForceEpisodeCap               int `toml:"force_episode_cap"`
	SceneAfterOpeningThresholdSec int `toml:"scene_after_opening_threshold_secs"`
	MinSceneLengthSec             int `toml:"min_scene_length_secs"`
}

// Download contains segment download and merge settings.
type Download struct {
	Threads        int    `toml:"threads"`
	SegmentRetries int    `toml:"segment_retries"`
	TempDir        string `toml:"temp_dir"`
	RequestTimeout int    `toml:"request_timeout"`
}

// AniMan contains the work-queue / result-submission backend settings.
type AniMan struct {
	BaseURL                 string `toml:"base_url"`
	Token                   string `toml:"token"`
	NotificationWaitSeconds int    `toml:"notification_wait_seconds"`
	RequestTimeout          int    `toml:"request_timeout"`
}

// LoanAPI contains the episode list / manifest backend settings.
type LoanAPI struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Recognizer contains the external recognition binary settings.
type Recognizer struct {
	Binary         string `toml:"binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workflow contains retry and backoff timing for the service loop.
type Workflow struct {
	BatchAttempts          int `toml:"batch_attempts"`
	BatchRetryDelaySeconds int `toml:"batch_retry_delay_seconds"`
	ErrorBackoffSeconds    int `toml:"error_backoff_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	LogDir string `toml:"log_dir"`
}

// Config encapsulates all configuration values for the matcher.
//
// Configuration sections by subsystem:
//   - Matching: window radius, audio length, batch sizing, scene thresholds
//   - Download: segment fetch concurrency, retries, temp storage
//   - AniMan: work queue and result submission backend
//   - LoanAPI: episode list and stream manifest backend
//   - Recognizer: external recognition binary
//   - Workflow: batch retry policy and service loop backoff
//   - Logging: log format, level, and directory
type Config struct {
	Matching   Matching   `toml:"matching"`
	Download   Download   `toml:"download"`
	AniMan     AniMan     `toml:"animan"`
	LoanAPI    LoanAPI    `toml:"loanapi"`
	Recognizer Recognizer `toml:"recognizer"`
	Workflow   Workflow   `toml:"workflow"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/matcher/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("matcher.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Download.TempDir, c.Logging.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for audio merging.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
