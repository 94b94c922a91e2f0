package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"snapsheet/internal/catalog"
	"snapsheet/internal/config"
	"snapsheet/internal/dataset"
	"snapsheet/internal/generator"
	"snapsheet/internal/logging"
	"snapsheet/internal/preflight"
	"snapsheet/internal/sweeper"
	"snapsheet/internal/uploads"
)

// Daemon coordinates the upload pipeline, the retention sweeper, and
// the HTTP API, enforcing single-instance execution via a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	journal  *catalog.Store
	datasets *dataset.Store
	orch     *uploads.Orchestrator
	sweep    *sweeper.Sweeper
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, journal *catalog.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	datasets := dataset.NewStore(cfg.Paths.StorageDir)
	gen := generator.NewCLI(cfg.Generator)

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		journal:  journal,
		datasets: datasets,
		orch:     uploads.New(cfg, datasets, journal, gen, logger),
		sweep:    sweeper.New(cfg, journal, logger),
		lockPath: filepath.Join(cfg.Paths.LogDir, "snapsheetd.lock"),
	}
	d.lock = flock.New(d.lockPath)
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, launches the sweeper loop, and begins
// serving the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another snapsheet daemon instance is already running")
	}

	for _, result := range preflight.RunAll(d.cfg) {
		if !result.Passed {
			d.logger.Warn("preflight check failed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sweep.Run(runCtx)
	}()

	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.wg.Wait()
		_ = d.lock.Unlock()
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("snapsheet daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("snapsheet daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.journal != nil {
		return d.journal.Close()
	}
	return nil
}

// Addr returns the API listen address once started.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// currentDatasetPath resolves the current dataset, preferring the
// journal pointer and falling back to the directory scan when the
// pointer is unset or its file has been swept.
func (d *Daemon) currentDatasetPath(ctx context.Context) (string, error) {
	if d.journal != nil {
		path, err := d.journal.CurrentDataset(ctx)
		if err != nil {
			d.logger.Warn("current dataset pointer read failed", logging.Error(err))
		} else if path != "" {
			if _, statErr := os.Stat(path); statErr == nil {
				return path, nil
			} else if !errors.Is(statErr, fs.ErrNotExist) {
				return "", statErr
			}
		}
	}
	return d.datasets.LatestPath()
}
