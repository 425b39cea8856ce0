package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeDownload(); err != nil {
		return err
	}
	c.normalizeBackends()
	c.normalizeRecognizer()
	if err := c.normalizeLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) normalizeDownload() error {
	var err error
	if strings.TrimSpace(c.Download.TempDir) == "" {
		c.Download.TempDir = defaultTempDir()
	}
	if c.Download.TempDir, err = expandPath(c.Download.TempDir); err != nil {
		return fmt.Errorf("download.temp_dir: %w", err)
	}
	if c.Download.Threads <= 0 {
		c.Download.Threads = defaultDownloadThreads
	}
	if c.Download.SegmentRetries <= 0 {
		c.Download.SegmentRetries = defaultSegmentRetries
	}
	if c.Download.RequestTimeout <= 0 {
		c.Download.RequestTimeout = defaultDownloadRequestTimeout
	}
	return nil
}

func (c *Config) normalizeBackends() {
	c.AniMan.BaseURL = strings.TrimRight(strings.TrimSpace(c.AniMan.BaseURL), "/")
	c.LoanAPI.BaseURL = strings.TrimRight(strings.TrimSpace(c.LoanAPI.BaseURL), "/")
	if c.AniMan.Token == "" {
		if value, ok := os.LookupEnv("ANIMAN_TOKEN"); ok {
			c.AniMan.Token = strings.TrimSpace(value)
		}
	}
	if c.LoanAPI.Token == "" {
		if value, ok := os.LookupEnv("LOANAPI_TOKEN"); ok {
			c.LoanAPI.Token = strings.TrimSpace(value)
		}
	}
	if c.AniMan.NotificationWaitSeconds <= 0 {
		c.AniMan.NotificationWaitSeconds = defaultNotificationWaitSeconds
	}
	if c.AniMan.RequestTimeout <= 0 {
		c.AniMan.RequestTimeout = defaultBackendRequestTimeout
	}
	if c.LoanAPI.RequestTimeout <= 0 {
		c.LoanAPI.RequestTimeout = defaultBackendRequestTimeout
	}
}

func (c *Config) normalizeRecognizer() {
	c.Recognizer.Binary = strings.TrimSpace(c.Recognizer.Binary)
	if c.Recognizer.Binary == "" {
		c.Recognizer.Binary = defaultRecognizerBinary
	}
	if c.Recognizer.TimeoutSeconds <= 0 {
		c.Recognizer.TimeoutSeconds = defaultRecognizerTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if strings.TrimSpace(c.Logging.LogDir) == "" {
		c.Logging.LogDir = defaultLogDir
	}
	var err error
	if c.Logging.LogDir, err = expandPath(c.Logging.LogDir); err != nil {
		return fmt.Errorf("logging.log_dir: %w", err)
	}
	return nil
}
