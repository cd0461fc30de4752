package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/aldoetobex/legal-consult-backend/internal/metrics"
)

// Sweeper periodically removes staging files older than maxAge, left behind
// when the process died mid-upload.
type Sweeper struct {
	dir    string
	maxAge time.Duration
	cron   *cron.Cron
	logger log.FieldLogger
}

func NewSweeper(dir string, maxAge time.Duration, logger log.FieldLogger) *Sweeper {
	return &Sweeper{dir: dir, maxAge: maxAge, cron: cron.New(), logger: logger}
}

// Start schedules the sweep on a cron spec such as "@every 15m".
func (s *Sweeper) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() { s.Sweep(time.Now()) }); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.WithFields(log.Fields{"dir": s.dir, "schedule": spec}).Info("staging sweeper started")
	return nil
}

// Stop halts scheduling; the returned context is done once a running sweep finishes.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

// Sweep deletes regular files in the staging directory last modified before
// now-maxAge and returns how many it removed.
func (s *Sweeper) Sweep(now time.Time) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WithError(err).Warn("could not read staging dir")
		}
		return 0
	}

	removed := 0
	cutoff := now.Add(-s.maxAge)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		p := filepath.Join(s.dir, e.Name())
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.logger.WithError(err).WithField("path", p).Warn("could not remove stale staging file")
			continue
		}
		removed++
	}
	if removed > 0 {
		metrics.StagingFilesSwept.Add(float64(removed))
		s.logger.WithField("removed", removed).Info("swept stale staging files")
	}
	return removed
}
