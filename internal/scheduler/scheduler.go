// Package scheduler runs periodic maintenance tasks.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chandabaz/internal/config"
	"chandabaz/internal/logger"
	"chandabaz/internal/media"
	"chandabaz/internal/metrics"
)

// MediaReferences reports which stored files are still attached to a post
type MediaReferences interface {
	ReferencedMedia(ctx context.Context, publicIDs []string) (map[string]bool, error)
}

// Scheduler handles periodic tasks
type Scheduler struct {
	files    media.Store
	refs     MediaReferences
	config   *config.UploadConfig
	now      func() time.Time
	log      *slog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a new scheduler
func NewScheduler(files media.Store, refs MediaReferences, cfg *config.UploadConfig) *Scheduler {
	return &Scheduler{
		files:    files,
		refs:     refs,
		config:   cfg,
		now:      time.Now,
		log:      logger.Component("scheduler"),
		stopChan: make(chan struct{}),
	}
}

// Start starts all scheduled tasks
func (s *Scheduler) Start() {
	s.log.Info("Starting scheduler",
		"sweep_interval", s.config.SweepInterval,
		"orphan_grace", s.config.OrphanGrace)

	if s.config.SweepInterval <= 0 {
		s.log.Info("Orphan sweeper disabled")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.scheduleIntervalTask(s.config.SweepInterval, "orphan_sweep", func(ctx context.Context) {
			if _, err := s.SweepOrphans(ctx); err != nil {
				s.log.Error("Orphan sweep failed", "error", err)
			}
		})
	}()

	s.log.Info("Scheduler started")
}

// Stop stops the scheduler and waits for a running task to finish
func (s *Scheduler) Stop() {
	s.log.Info("Stopping scheduler")
	close(s.stopChan)
	s.wg.Wait()
}

// scheduleIntervalTask runs a task at regular intervals
func (s *Scheduler) scheduleIntervalTask(interval time.Duration, taskName string, task func(ctx context.Context)) {
	s.log.Info("Starting interval task", "task", taskName, "interval", interval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stopChan
		cancel()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.log.Debug("Running interval task", "task", taskName)
			task(ctx)
		case <-s.stopChan:
			return
		}
	}
}

// SweepOrphans deletes stored files older than the grace period that no post
// references. It returns the number of files removed.
func (s *Scheduler) SweepOrphans(ctx context.Context) (int, error) {
	files, err := s.files.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.config.OrphanGrace)
	var candidates []string
	for _, f := range files {
		if f.ModTime.Before(cutoff) {
			candidates = append(candidates, f.PublicID)
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	referenced, err := s.refs.ReferencedMedia(ctx, candidates)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range candidates {
		if referenced[id] {
			continue
		}
		if err := s.files.Delete(ctx, id); err != nil {
			s.log.Warn("Failed to remove orphaned upload", "public_id", id, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		metrics.OrphansRemoved.Add(float64(removed))
		s.log.Info("Removed orphaned uploads", "count", removed, "checked", len(candidates))
	}
	return removed, nil
}
