package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bounan/Bounan.Matcher/internal/animan"
	"github.com/bounan/Bounan.Matcher/internal/config"
	"github.com/bounan/Bounan.Matcher/internal/logging"
	"github.com/bounan/Bounan.Matcher/internal/scene"
)

// Processor handles one matching request end to end.
type Processor interface {
	ProcessRequest(ctx context.Context, keys []scene.VideoKey, force bool) error
}

// Loop is the long-lived worker cycle: poll the queue, process what it
// returns, long-poll when it is empty. Errors never stop the loop; a failed
// request is answered with empty scenes and the loop backs off before the
// next poll. Only context cancellation ends Run.
type Loop struct {
	queue     animan.Service
	processor Processor
	backoff   time.Duration
	logger    *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewLoop wires a service loop from its collaborators.
func NewLoop(cfg *config.Config, queue animan.Service, processor Processor, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = logging.NewNop()
	}
	backoff := time.Duration(cfg.Workflow.ErrorBackoffSeconds) * time.Second
	if backoff <= 0 {
		backoff = 3 * time.Second
	}
	return &Loop{
		queue:     queue,
		processor: processor,
		backoff:   backoff,
		logger:    logging.NewComponentLogger(logger, "service"),
		sleep:     sleepContext,
	}
}

// Run executes the loop until ctx is cancelled. The returned error is
// always the context's.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("service loop started")
	defer l.logger.Info("service loop stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		keys, err := l.queue.VideosToMatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Error("fetching work queue failed", logging.Error(err))
			if err := l.sleep(ctx, l.backoff); err != nil {
				return err
			}
			continue
		}

		if len(keys) == 0 {
			l.logger.Debug("queue empty, waiting for notification")
			if err := l.queue.WaitForNotification(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				l.logger.Error("waiting for notification failed", logging.Error(err))
				if err := l.sleep(ctx, l.backoff); err != nil {
					return err
				}
			}
			continue
		}

		logger := l.logger.With(logging.String(logging.FieldRequestID, uuid.NewString()))
		logger.Info("processing request",
			logging.Int("videos", len(keys)),
			logging.Int(logging.FieldSeriesID, keys[0].SeriesID),
			logging.String(logging.FieldDub, keys[0].Dub))
		if err := l.processor.ProcessRequest(ctx, keys, false); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.handleRequestFailure(ctx, logger, keys, err)
			if err := l.sleep(ctx, l.backoff); err != nil {
				return err
			}
		}
	}
}

// handleRequestFailure answers the in-flight request with empty scenes so
// no episode stays queued forever behind a crashing request.
func (l *Loop) handleRequestFailure(ctx context.Context, logger *slog.Logger, keys []scene.VideoKey, cause error) {
	logger.Error("request failed", logging.Error(cause), logging.Int("videos", len(keys)))
	if err := l.queue.UploadEmptyScenes(ctx, keys); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("uploading fallback empty scenes failed", logging.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
