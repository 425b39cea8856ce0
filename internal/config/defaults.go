package config

import (
	"os"
	"path/filepath"
)

const (
	defaultEpisodesToMatch               = 5
	defaultSecondsToMatch                = 6 * 60
	defaultMinEpisodeNumber              = 3
	defaultBatchSize                     = 10
	defaultForceEpisodeCap               = 27
	defaultSceneAfterOpeningThresholdSec = 4
	defaultMinSceneLengthSec             = 20
	defaultDownloadThreads               = 12
	defaultSegmentRetries                = 3
	defaultDownloadRequestTimeout        = 30
	defaultNotificationWaitSeconds       = 20
	defaultBackendRequestTimeout         = 30
	defaultRecognizerBinary              = "series-recognizer"
	defaultRecognizerTimeoutSeconds      = 1800
	defaultBatchAttempts                 = 2
	defaultBatchRetryDelaySeconds        = 1
	defaultErrorBackoffSeconds           = 3
	defaultLogFormat                     = "console"
	defaultLogLevel                      = "info"
	defaultLogDir                        = "~/.local/share/matcher/logs"
)

func defaultTempDir() string {
	return filepath.Join(os.TempDir(), "matcher")
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Matching: Matching{
			EpisodesToMatch:               defaultEpisodesToMatch,
			SecondsToMatch:                defaultSecondsToMatch,
			MinEpisodeNumber:              defaultMinEpisodeNumber,
			BatchSize:                     defaultBatchSize,
			ForceEpisodeCap:               defaultForceEpisodeCap,
			SceneAfterOpeningThresholdSec: defaultSceneAfterOpeningThresholdSec,
			MinSceneLengthSec:             defaultMinSceneLengthSec,
		},
		Download: Download{
			Threads:        defaultDownloadThreads,
			SegmentRetries: defaultSegmentRetries,
			TempDir:        defaultTempDir(),
			RequestTimeout: defaultDownloadRequestTimeout,
		},
		AniMan: AniMan{
			NotificationWaitSeconds: defaultNotificationWaitSeconds,
			RequestTimeout:          defaultBackendRequestTimeout,
		},
		LoanAPI: LoanAPI{
			RequestTimeout: defaultBackendRequestTimeout,
		},
		Recognizer: Recognizer{
			Binary:         defaultRecognizerBinary,
			TimeoutSeconds: defaultRecognizerTimeoutSeconds,
		},
		Workflow: Workflow{
			BatchAttempts:          defaultBatchAttempts,
			BatchRetryDelaySeconds: defaultBatchRetryDelaySeconds,
			ErrorBackoffSeconds:    defaultErrorBackoffSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
			LogDir: defaultLogDir,
		},
	}
}
