// Package sweeper prunes stale files from the storage directory on a
// fixed schedule. It has no state machine: each pass lists the
// directory, stats every file, and deletes the ones older than the
// configured age, then prunes batch journal rows whose dataset vanished.
package sweeper

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"snapsheet/internal/catalog"
	"snapsheet/internal/config"
	"snapsheet/internal/faults"
	"snapsheet/internal/logging"
)

// Sweeper deletes storage files older than the retention threshold.
type Sweeper struct {
	dir      string
	maxAge   time.Duration
	interval time.Duration
	journal  *catalog.Store
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs a sweeper from the retention configuration. The
// journal may be nil.
func New(cfg *config.Config, journal *catalog.Store, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		dir:      cfg.Paths.StorageDir,
		maxAge:   time.Duration(cfg.Retention.MaxAgeMinutes) * time.Minute,
		interval: time.Duration(cfg.Retention.SweepIntervalMinutes) * time.Minute,
		journal:  journal,
		logger:   logging.WithComponent(logger, "sweeper"),
		now:      time.Now,
	}
}

// Run sweeps on the configured interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if deleted, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("sweep failed", logging.Error(err))
			} else if deleted > 0 {
				s.logger.Info("sweep completed", logging.Int("deleted", deleted))
			}
		}
	}
}

// SweepOnce deletes every storage file whose modification time is older
// than the retention threshold and returns how many were removed. A
// failure to delete one file is logged and does not stop the sweep.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, faults.Wrap(faults.ErrStorage, "sweeper", "list storage", "", err)
	}

	cutoff := s.now().Add(-s.maxAge)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warn("stale file remove failed; file remains",
				logging.String("path", path),
				logging.Error(err),
			)
			continue
		}
		deleted++
		s.logger.Info("stale file pruned", logging.String("path", path))
	}

	if s.journal != nil {
		if _, err := s.journal.PruneMissing(ctx); err != nil {
			s.logger.Warn("journal prune failed", logging.Error(err))
		}
	}
	return deleted, nil
}
