package gtfs_realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/transitlens-data/internal/common/config"
	"github.com/transitlens-data/internal/common/logger"
	"github.com/transitlens-data/internal/common/webhook"
	"github.com/transitlens-data/internal/gtfs-realtime/snapshot"
)

// Manager runs the periodic realtime capture loop: one snapshot per tick,
// each snapshot atomic on disk.
type Manager struct {
	config    config.RealtimeProvider
	interval  time.Duration
	fetcher   *snapshot.Fetcher
	notifier  *webhook.Client
	logger    logger.Logger
	mu        sync.RWMutex
	isRunning bool
	cancelFn  context.CancelFunc
}

func NewManager(cfg config.RealtimeProvider, interval time.Duration, notifier *webhook.Client, log logger.Logger) *Manager {
	return &Manager{
		config:   cfg,
		interval: interval,
		fetcher:  snapshot.NewFetcher(cfg, log),
		notifier: notifier,
		logger:   log,
	}
}

func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("realtime capture manager is already running")
	}
	if err := m.validateConfig(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFn = cancel

	go m.captureLoop(ctx)

	m.isRunning = true
	m.logger.Info("Realtime capture manager started", "interval", m.interval)
	return nil
}

func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isRunning {
		return
	}

	m.logger.Info("Stopping realtime capture manager")
	if m.cancelFn != nil {
		m.cancelFn()
	}
	m.isRunning = false
	m.logger.Info("Realtime capture manager stopped")
}

func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isRunning
}

func (m *Manager) captureLoop(ctx context.Context) {
	// capture immediately, then on the tick
	m.captureOnce(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.captureOnce(ctx)
		}
	}
}

func (m *Manager) captureOnce(ctx context.Context) {
	dir, err := m.fetcher.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Error("Snapshot capture failed", "error", err)
		m.notify("snapshot_capture_failed", err.Error(), nil)
		return
	}
	m.notify("snapshot_captured", "", map[string]interface{}{"dir": dir})
}

func (m *Manager) notify(event, detail string, fields map[string]interface{}) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(webhook.Message{Event: event, Detail: detail, Fields: fields}); err != nil {
		m.logger.Warn("Webhook notification failed", "event", event, "error", err)
	}
}

func (m *Manager) validateConfig() error {
	if m.config.Type != config.RealtimeProviderType {
		return fmt.Errorf("realtime provider type must be %q", config.RealtimeProviderType)
	}
	if len(m.config.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint must be configured")
	}
	for _, endpoint := range m.config.Endpoints {
		if endpoint.URL == "" {
			return fmt.Errorf("endpoint URL cannot be empty")
		}
		if endpoint.Name == "" {
			return fmt.Errorf("endpoint name cannot be empty")
		}
	}
	if m.interval <= 0 {
		return fmt.Errorf("capture interval must be positive")
	}
	return nil
}
