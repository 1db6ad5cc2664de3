package query

import (
	"fmt"
	"strings"

	"github.com/transitlens-data/internal/gtfs-realtime/snapshot"
)

// SnapshotStats is the one-line health summary of a snapshot.
type SnapshotStats struct {
	SnapshotID         string
	FeedTimestamp      *int64
	VehiclesActive     int
	VehiclesWithoutGPS int
	TripUpdates        int
	StopTimeUpdates    int
	Alerts             int
}

// Stats counts distinct active vehicles by descriptor id, falling back to
// raw row count when no row carries an id at all.
func Stats(snap *snapshot.Snapshot) *SnapshotStats {
	s := &SnapshotStats{
		SnapshotID:      snap.ID,
		FeedTimestamp:   snap.FeedTimestamp,
		TripUpdates:     len(snap.TripUpdates),
		StopTimeUpdates: len(snap.StopTimeUpdates),
		Alerts:          len(snap.Alerts),
	}

	ids := make(map[string]bool)
	for i := range snap.VehiclePositions {
		r := &snap.VehiclePositions[i]
		if id := r.DisplayID(); id != "" {
			ids[id] = true
		}
		if !r.HasPosition() {
			s.VehiclesWithoutGPS++
		}
	}
	s.VehiclesActive = len(ids)
	if s.VehiclesActive == 0 {
		s.VehiclesActive = len(snap.VehiclePositions)
	}

	return s
}

// RenderStats formats the summary for terminal output.
func RenderStats(s *SnapshotStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "snapshot %s\n", s.SnapshotID)
	if s.FeedTimestamp != nil {
		fmt.Fprintf(&b, "  feed_timestamp:    %d\n", *s.FeedTimestamp)
	} else {
		b.WriteString("  feed_timestamp:    (absent)\n")
	}
	fmt.Fprintf(&b, "  vehicles_active:   %d\n", s.VehiclesActive)
	fmt.Fprintf(&b, "  vehicles_no_gps:   %d\n", s.VehiclesWithoutGPS)
	fmt.Fprintf(&b, "  trip_updates:      %d\n", s.TripUpdates)
	fmt.Fprintf(&b, "  stop_time_updates: %d\n", s.StopTimeUpdates)
	fmt.Fprintf(&b, "  alerts:            %d\n", s.Alerts)
	return b.String()
}
