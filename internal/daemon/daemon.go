package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"github.com/bounan/Bounan.Matcher/internal/config"
	"github.com/bounan/Bounan.Matcher/internal/logging"
)

// Runner is the long-running work the daemon supervises. Run must block
// until ctx is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// Daemon wraps the service loop with single-instance enforcement via a
// file lock.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	runner Runner

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
	mu      sync.Mutex
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	LockFilePath string
}

// New constructs a daemon around the given runner.
func New(cfg *config.Config, runner Runner, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || runner == nil {
		return nil, errors.New("daemon requires config and runner")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := filepath.Join(cfg.Logging.LogDir, "matcherd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		runner:   runner,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the runner in the background.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another matcher daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running.Store(true)

	go func() {
		defer close(d.done)
		err := d.runner.Run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("runner exited", logging.Error(err))
		}
		d.mu.Lock()
		d.runErr = err
		d.mu.Unlock()
	}()

	d.logger.Info("matcher daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop cancels the runner, waits for it to exit, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.done != nil {
		<-d.done
		d.done = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("matcher daemon stopped")
}

// Wait blocks until the runner exits and returns its error.
func (d *Daemon) Wait() error {
	if d.done != nil {
		<-d.done
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runErr
}

// Close stops the daemon. It satisfies io.Closer for deferred shutdown.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Status reports whether the daemon is running and where its lock lives.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		LockFilePath: d.lockPath,
	}
}
