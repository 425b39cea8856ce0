package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateBackends(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMatching() error {
	if err := ensurePositiveMap(map[string]int{
		"matching.episodes_to_match":  c.Matching.EpisodesToMatch,
		"matching.seconds_to_match":   c.Matching.SecondsToMatch,
		"matching.min_episode_number": c.Matching.MinEpisodeNumber,
		"matching.batch_size":         c.Matching.BatchSize,
		"matching.force_episode_cap":  c.Matching.ForceEpisodeCap,
	}); err != nil {
		return err
	}
	if c.Matching.SceneAfterOpeningThresholdSec < 0 {
		return errors.New("matching.scene_after_opening_threshold_secs must be >= 0")
	}
	if c.Matching.MinSceneLengthSec < 0 {
		return errors.New("matching.min_scene_length_secs must be >= 0")
	}
	return nil
}

func (c *Config) validateBackends() error {
	if strings.TrimSpace(c.AniMan.BaseURL) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/matcher/config.toml"
		}
		return fmt.Errorf("animan.base_url is required. Edit %s (create with 'matcherctl config init')", defaultPath)
	}
	if strings.TrimSpace(c.LoanAPI.BaseURL) == "" {
		return errors.New("loanapi.base_url is required")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.batch_attempts":            c.Workflow.BatchAttempts,
		"workflow.batch_retry_delay_seconds": c.Workflow.BatchRetryDelaySeconds,
		"workflow.error_backoff_seconds":     c.Workflow.ErrorBackoffSeconds,
		"animan.notification_wait_seconds":   c.AniMan.NotificationWaitSeconds,
		"animan.request_timeout":             c.AniMan.RequestTimeout,
		"loanapi.request_timeout":            c.LoanAPI.RequestTimeout,
		"download.request_timeout":           c.Download.RequestTimeout,
		"recognizer.timeout_seconds":         c.Recognizer.TimeoutSeconds,
	})
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
