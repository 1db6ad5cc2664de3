package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the environment-sourced runtime configuration. Provider and
// endpoint definitions live in providers.yaml (see providers.go); the
// environment carries operational knobs and secrets only.
type Config struct {
	ProvidersPath string
	Logging       LoggingConfig
	StaticRefresh StaticRefreshConfig
	Capture       CaptureConfig
	Retention     RetentionConfig
	WebhookURL    string

	// SnapshotPin pins every query in this process to one snapshot so a
	// multi-step session stays consistent while new snapshots land. Read
	// once here and threaded explicitly through the call chain.
	SnapshotPin string
}

type LoggingConfig struct {
	Level    string
	FilePath string
}

// StaticRefreshConfig for the periodic static archive refresh loop
type StaticRefreshConfig struct {
	CheckInterval time.Duration
}

// CaptureConfig for the periodic realtime snapshot capture loop
type CaptureConfig struct {
	Interval time.Duration
}

type RetentionConfig struct {
	SnapshotsKeep   int
	ArtifactMaxAge  time.Duration
	CleanupInterval time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		ProvidersPath: getEnv("TRANSITLENS_PROVIDERS", "providers.yaml"),
		Logging: LoggingConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			FilePath: getEnv("LOG_FILE", "transitlens.log"),
		},
		StaticRefresh: StaticRefreshConfig{
			CheckInterval: getDurationEnv("STATIC_CHECK_INTERVAL", 30*time.Minute),
		},
		Capture: CaptureConfig{
			Interval: getDurationEnv("REALTIME_CAPTURE_INTERVAL", 30*time.Second),
		},
		Retention: RetentionConfig{
			SnapshotsKeep:   getIntEnv("SNAPSHOT_KEEP", 48),
			ArtifactMaxAge:  getDurationEnv("ARTIFACT_MAX_AGE", 7*24*time.Hour),
			CleanupInterval: getDurationEnv("CLEANUP_INTERVAL", time.Hour),
		},
		WebhookURL:  getEnv("WEBHOOK_URL", ""),
		SnapshotPin: getEnv("TRANSITLENS_SNAPSHOT", ""),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
