// Package snapshot manages timestamped realtime snapshot directories.
// Directory names are UTC timestamps, so lexicographic and chronological
// order coincide by construction. Snapshots are immutable once written and
// safe for concurrent reads.
package snapshot

import (
	"os"
	"path/filepath"
	"strings"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"github.com/transitlens-data/internal/common/errs"
	"github.com/transitlens-data/internal/common/logger"
	"github.com/transitlens-data/internal/gtfs-realtime/decoder"
	"github.com/transitlens-data/pkg/gtfs/models"
)

// DirTimestampLayout formats snapshot directory names (YYYYMMDDTHHMMSSZ).
const DirTimestampLayout = "20060102T150405Z"

// Default snapshot member filenames; endpoint config may override them.
const (
	DefaultVehiclePositionsFile = "vehicle_positions.pb"
	DefaultTripUpdatesFile      = "trip_updates.pb"
	DefaultAlertsFile           = "alerts.pb"
)

// Snapshot is one decoded capture of the realtime feed. A snapshot with no
// decodable files is valid and empty, so the query layer stays resilient to
// partial feeds.
type Snapshot struct {
	Dir              string
	ID               string
	FeedTimestamp    *int64
	VehiclePositions []models.VehiclePositionRow
	TripUpdates      []models.TripUpdateRow
	StopTimeUpdates  []models.StopTimeUpdateRow
	Alerts           []models.AlertRow
}

// FileSet names the three feed files inside a snapshot directory.
type FileSet struct {
	VehiclePositions string
	TripUpdates      string
	Alerts           string
}

func DefaultFileSet() FileSet {
	return FileSet{
		VehiclePositions: DefaultVehiclePositionsFile,
		TripUpdates:      DefaultTripUpdatesFile,
		Alerts:           DefaultAlertsFile,
	}
}

type Repository struct {
	root   string
	files  FileSet
	logger logger.Logger
}

func NewRepository(root string, files FileSet, log logger.Logger) *Repository {
	return &Repository{root: root, files: files, logger: log}
}

func (r *Repository) Root() string { return r.root }

// Latest returns the path of the lexicographically-greatest snapshot
// directory, without decoding anything. NotFoundError when none exist.
func (r *Repository) Latest() (string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return "", errs.NotFound("snapshot", "no snapshot directories under "+r.root)
	}

	latest := ""
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if e.Name() > latest {
			latest = e.Name()
		}
	}
	if latest == "" {
		return "", errs.NotFound("snapshot", "no snapshot directories under "+r.root)
	}
	return filepath.Join(r.root, latest), nil
}

// Resolve validates an explicit snapshot id or path.
func (r *Repository) Resolve(idOrPath string) (string, error) {
	p := idOrPath
	if !filepath.IsAbs(p) && !strings.ContainsRune(p, os.PathSeparator) {
		p = filepath.Join(r.root, p)
	}
	info, err := os.Stat(p)
	if err != nil || !info.IsDir() {
		return "", errs.NotFound("snapshot", idOrPath)
	}
	return p, nil
}

// Select resolves the snapshot for a query with deterministic precedence:
// explicit request, then session pin, then latest. "Latest" can change
// between two calls in one logical request, which is why callers thread
// the selected directory through instead of re-selecting.
func (r *Repository) Select(explicit, pinned string) (string, error) {
	if explicit != "" {
		return r.Resolve(explicit)
	}
	if pinned != "" {
		return r.Resolve(pinned)
	}
	return r.Latest()
}

// Load decodes the up-to-three feed files in a snapshot directory. A
// missing file yields an empty family; a DecodeError on one file is logged
// and does not fail the snapshot, because the three feeds are independent.
// The first non-nil header timestamp found across the feeds wins.
func (r *Repository) Load(dir string) (*Snapshot, error) {
	snap := &Snapshot{Dir: dir, ID: filepath.Base(dir)}

	r.logger.Info("Loading snapshot", "dir", dir)

	if fm, ok := r.readFeed(dir, r.files.VehiclePositions); ok {
		if snap.FeedTimestamp == nil {
			snap.FeedTimestamp = decoder.FeedTimestamp(fm)
		}
		snap.VehiclePositions = decoder.VehiclePositionRows(fm, snap.FeedTimestamp)
		r.logger.Info("Parsed vehicle positions",
			"file", r.files.VehiclePositions, "rows", len(snap.VehiclePositions))
	}

	if fm, ok := r.readFeed(dir, r.files.TripUpdates); ok {
		if snap.FeedTimestamp == nil {
			snap.FeedTimestamp = decoder.FeedTimestamp(fm)
		}
		snap.TripUpdates, snap.StopTimeUpdates = decoder.TripUpdateRows(fm, snap.FeedTimestamp)
		r.logger.Info("Parsed trip updates",
			"file", r.files.TripUpdates,
			"trips", len(snap.TripUpdates),
			"stop_time_updates", len(snap.StopTimeUpdates))
	}

	if fm, ok := r.readFeed(dir, r.files.Alerts); ok {
		if snap.FeedTimestamp == nil {
			snap.FeedTimestamp = decoder.FeedTimestamp(fm)
		}
		snap.Alerts = decoder.AlertRows(fm, snap.FeedTimestamp)
		r.logger.Info("Parsed alerts", "file", r.files.Alerts, "rows", len(snap.Alerts))
	}

	return snap, nil
}

func (r *Repository) readFeed(dir, filename string) (*gtfsrt.FeedMessage, bool) {
	if filename == "" {
		return nil, false
	}
	path := filepath.Join(dir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		r.logger.Warn("Missing snapshot file", "expected", path)
		return nil, false
	}

	var parsed *gtfsrt.FeedMessage
	if strings.HasSuffix(strings.ToLower(filename), ".json") {
		parsed, err = decoder.ParseFeedJSON(data, path)
	} else {
		parsed, err = decoder.ParseFeed(data, path)
	}
	if err != nil {
		r.logger.Error("Snapshot file undecodable, skipping", "path", path, "error", err)
		return nil, false
	}
	return parsed, true
}
