package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/transitlens-data/internal/common/config"
	"github.com/transitlens-data/internal/common/logger"
	"github.com/transitlens-data/internal/common/webhook"
)

// Scheduler periodically compares upstream archive metadata against the
// recorded state and runs a full refresh when it changed.
type Scheduler struct {
	provider        config.StaticProvider
	checkInterval   time.Duration
	metadataFetcher MetadataFetcher
	pipeline        *Pipeline
	notifier        *webhook.Client
	logger          logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

func NewScheduler(
	provider config.StaticProvider,
	checkInterval time.Duration,
	notifier *webhook.Client,
	log logger.Logger,
) *Scheduler {
	return &Scheduler{
		provider:      provider,
		checkInterval: checkInterval,
		metadataFetcher: NewHeadMetadataFetcher(
			provider.URL,
			time.Duration(provider.TimeoutS)*time.Second,
			config.VerifyTLSOrDefault(provider.VerifyTLS),
			log),
		pipeline: NewPipeline(provider, nil, log),
		notifier: notifier,
		logger:   log,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("static scheduler already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting static refresh scheduler",
		"url", s.provider.URL,
		"check_interval", s.checkInterval)

	// Initial check
	if err := s.checkAndRefresh(ctx); err != nil {
		s.logger.Error("Initial static check failed", "error", err)
	}

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Static refresh scheduler stopped")
			return nil
		case <-ticker.C:
			if err := s.checkAndRefresh(ctx); err != nil {
				s.logger.Error("Scheduled static check failed", "error", err)
			}
		}
	}
}

func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("static scheduler not running")
	}

	if s.cancel != nil {
		s.cancel()
	}

	s.running = false
	return nil
}

func (s *Scheduler) checkAndRefresh(ctx context.Context) error {
	s.logger.Debug("Checking for static archive updates", "url", s.provider.URL)

	metadata, err := s.metadataFetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetching archive metadata: %w", err)
	}

	prev := LoadMetadataState(s.provider.OutDir)
	if !metadata.Changed(prev) {
		s.logger.Debug("Static archive unchanged",
			"last_modified", metadata.LastModified, "etag", metadata.ETag)
		return nil
	}

	s.logger.Info("Static archive changed, refreshing",
		"last_modified", metadata.LastModified, "etag", metadata.ETag)

	result, err := s.pipeline.Run(ctx)
	if err != nil {
		s.notify("static_refresh_failed", err.Error(), nil)
		return fmt.Errorf("running static refresh: %w", err)
	}

	if err := SaveMetadataState(s.provider.OutDir, metadata); err != nil {
		s.logger.Warn("Failed to persist archive metadata state", "error", err)
	}

	s.notify("static_refresh_complete", "", map[string]interface{}{
		"extracted": len(result.Extracted),
		"missing":   len(result.Missing),
		"removed":   len(result.Removed),
	})
	return nil
}

func (s *Scheduler) notify(event, detail string, fields map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(webhook.Message{Event: event, Detail: detail, Fields: fields}); err != nil {
		s.logger.Warn("Webhook notification failed", "event", event, "error", err)
	}
}
