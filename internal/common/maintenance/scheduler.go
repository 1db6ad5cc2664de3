package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/transitlens-data/internal/common/logger"
)

// CleanupScheduler handles periodic retention pruning.
type CleanupScheduler struct {
	maintenance *Maintenance
	logger      logger.Logger
	config      SchedulerConfig
	isRunning   bool
	mu          sync.RWMutex
	cancelFn    context.CancelFunc
}

type SchedulerConfig struct {
	CleanupInterval time.Duration // how often to run a pruning pass
	SnapshotsKeep   int           // snapshot directories to retain
	ArtifactMaxAge  time.Duration // artifact files older than this are removed
	PinnedSnapshot  string        // never pruned, regardless of age
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		CleanupInterval: time.Hour,
		SnapshotsKeep:   48,
		ArtifactMaxAge:  7 * 24 * time.Hour,
	}
}

func NewCleanupScheduler(m *Maintenance, logger logger.Logger, config SchedulerConfig) *CleanupScheduler {
	return &CleanupScheduler{
		maintenance: m,
		logger:      logger,
		config:      config,
	}
}

func (s *CleanupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cleanup scheduler is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancelFn = cancel
	s.isRunning = true

	s.logger.Info("Starting cleanup scheduler",
		"interval", s.config.CleanupInterval,
		"snapshots_keep", s.config.SnapshotsKeep,
		"artifact_max_age", s.config.ArtifactMaxAge)

	go s.cleanupLoop(ctx)
	return nil
}

func (s *CleanupScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	s.logger.Info("Stopping cleanup scheduler")
	if s.cancelFn != nil {
		s.cancelFn()
	}
	s.isRunning = false
	s.logger.Info("Cleanup scheduler stopped")
}

func (s *CleanupScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *CleanupScheduler) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	// initial pass after a short delay so startup captures settle first
	initialDelay := time.NewTimer(1 * time.Minute)
	defer initialDelay.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Cleanup loop stopping")
			return
		case <-initialDelay.C:
			s.performCleanup()
		case <-ticker.C:
			s.performCleanup()
		}
	}
}

func (s *CleanupScheduler) performCleanup() {
	start := time.Now()
	snapshots := s.maintenance.PruneSnapshots(s.config.SnapshotsKeep, s.config.PinnedSnapshot)
	artifacts := s.maintenance.PruneArtifacts(s.config.ArtifactMaxAge)

	s.logger.Info("Cleanup pass completed",
		"snapshots_removed", len(snapshots),
		"artifacts_removed", len(artifacts),
		"duration", time.Since(start))
}

// TriggerCleanup runs one pruning pass immediately.
func (s *CleanupScheduler) TriggerCleanup() PruneResult {
	s.logger.Info("Manual cleanup triggered")
	return PruneResult{
		SnapshotsRemoved: s.maintenance.PruneSnapshots(s.config.SnapshotsKeep, s.config.PinnedSnapshot),
		ArtifactsRemoved: s.maintenance.PruneArtifacts(s.config.ArtifactMaxAge),
	}
}
