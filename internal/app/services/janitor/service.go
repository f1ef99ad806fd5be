// Package janitor sweeps stale temp artifacts and expired sessions on a cron
// schedule. The orchestrator deletes its own artifact on every exit path, so
// the sweep only catches files orphaned by process crashes.
package janitor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sitewrap/platform/pkg/logger"
)

// Sweeper removes expired entries from a store; the in-memory session store
// implements this.
type Sweeper interface {
	Sweep() int
}

// Service runs the periodic cleanup.
type Service struct {
	downloadsDir string
	maxAge       time.Duration
	schedule     string
	sweeper      Sweeper
	cron         *cron.Cron
	log          *logger.Logger
}

// New constructs a janitor. sweeper may be nil when sessions live in Redis,
// which expires keys natively.
func New(downloadsDir string, maxAge time.Duration, sweeper Sweeper, log *logger.Logger) *Service {
	if downloadsDir == "" {
		downloadsDir = "downloads"
	}
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	if log == nil {
		log = logger.NewDefault("janitor")
	}
	return &Service{
		downloadsDir: downloadsDir,
		maxAge:       maxAge,
		schedule:     "@every 10m",
		sweeper:      sweeper,
		log:          log,
	}
}

// Name implements system.Service.
func (s *Service) Name() string { return "janitor" }

// Start schedules the sweep.
func (s *Service) Start(ctx context.Context) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Service) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	return nil
}

func (s *Service) run() {
	removed := s.sweepArtifacts()
	sessions := 0
	if s.sweeper != nil {
		sessions = s.sweeper.Sweep()
	}
	if removed > 0 || sessions > 0 {
		s.log.WithField("artifacts", removed).WithField("sessions", sessions).Info("janitor sweep")
	}
}

func (s *Service) sweepArtifacts() int {
	entries, err := os.ReadDir(s.downloadsDir)
	if err != nil {
		return 0
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "temp_") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.downloadsDir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.log.WithError(err).WithField("path", path).Warn("remove stale artifact")
			continue
		}
		removed++
	}
	return removed
}
