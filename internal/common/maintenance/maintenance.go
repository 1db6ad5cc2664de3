// Package maintenance prunes the dataset directories: old realtime snapshot
// directories past the retention count and stale artifact files past the age
// limit. Pruning is best-effort; a failed removal is logged and skipped.
package maintenance

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/transitlens-data/internal/common/logger"
)

// PruneResult reports what one pruning pass removed.
type PruneResult struct {
	SnapshotsRemoved []string
	ArtifactsRemoved []string
}

type Maintenance struct {
	realtimeRoot string
	artifactsDir string
	logger       logger.Logger
}

func New(realtimeRoot, artifactsDir string, log logger.Logger) *Maintenance {
	return &Maintenance{
		realtimeRoot: realtimeRoot,
		artifactsDir: artifactsDir,
		logger:       log,
	}
}

// PruneSnapshots keeps the `keep` newest snapshot directories plus the
// pinned one, whatever its age. Staging directories (dot-prefixed) older
// than an hour are leftovers from crashed captures and are removed too.
func (m *Maintenance) PruneSnapshots(keep int, pinned string) []string {
	entries, err := os.ReadDir(m.realtimeRoot)
	if err != nil {
		return nil
	}

	var snapshots []string
	var removed []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), ".") {
			if m.removeStaleStaging(e.Name()) {
				removed = append(removed, e.Name())
			}
			continue
		}
		snapshots = append(snapshots, e.Name())
	}

	if keep < 1 {
		keep = 1
	}
	if len(snapshots) <= keep {
		return removed
	}

	// newest first; directory names sort chronologically
	sort.Sort(sort.Reverse(sort.StringSlice(snapshots)))

	pinnedBase := filepath.Base(pinned)
	for _, name := range snapshots[keep:] {
		if pinned != "" && name == pinnedBase {
			m.logger.Debug("Keeping pinned snapshot past retention", "snapshot", name)
			continue
		}
		path := filepath.Join(m.realtimeRoot, name)
		if err := os.RemoveAll(path); err != nil {
			m.logger.Warn("Failed to prune snapshot", "path", path, "error", err)
			continue
		}
		m.logger.Info("Pruned snapshot", "snapshot", name)
		removed = append(removed, name)
	}
	return removed
}

func (m *Maintenance) removeStaleStaging(name string) bool {
	path := filepath.Join(m.realtimeRoot, name)
	info, err := os.Stat(path)
	if err != nil || time.Since(info.ModTime()) < time.Hour {
		return false
	}
	if err := os.RemoveAll(path); err != nil {
		m.logger.Warn("Failed to remove stale staging dir", "path", path, "error", err)
		return false
	}
	m.logger.Info("Removed stale staging dir", "path", path)
	return true
}

// PruneArtifacts removes artifact files older than maxAge.
func (m *Maintenance) PruneArtifacts(maxAge time.Duration) []string {
	entries, err := os.ReadDir(m.artifactsDir)
	if err != nil {
		return nil
	}

	var removed []string
	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(m.artifactsDir, e.Name())
		if err := os.Remove(path); err != nil {
			m.logger.Warn("Failed to prune artifact", "path", path, "error", err)
			continue
		}
		m.logger.Debug("Pruned artifact", "path", path)
		removed = append(removed, e.Name())
	}
	if len(removed) > 0 {
		m.logger.Info("Pruned old artifacts", "count", len(removed))
	}
	return removed
}
