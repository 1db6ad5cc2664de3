package query

import (
	"strconv"

	"github.com/transitlens-data/internal/artifacts"
	"github.com/transitlens-data/internal/common/logger"
	"github.com/transitlens-data/pkg/gtfs/models"
)

// CheckStatus distinguishes a check that ran clean from one that could not
// run at all. A missing table or column skips the check; it never reports a
// false zero.
type CheckStatus string

const (
	CheckSkipped    CheckStatus = "skipped"
	CheckClean      CheckStatus = "clean"
	CheckViolations CheckStatus = "violations"
)

// CheckResult is one referential or quality check over the static set.
type CheckResult struct {
	Status     CheckStatus
	Violations int
	Detail     string
	Artifact   *models.ArtifactRef
}

// IntegrityReport covers the cross-table checks over one static table set.
type IntegrityReport struct {
	MissingRouteRefsInTrips    CheckResult
	MissingTripRefsInStopTimes CheckResult
	StopsMissingCoords         CheckResult
	StopsBBox                  *BBox
}

// BBox is the coordinate envelope of the parseable stops.
type BBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// presenceSet collects the distinct non-empty values of one column.
func presenceSet(t *models.Table, col string) (map[string]bool, bool) {
	if t == nil {
		return nil, false
	}
	c := t.Col(col)
	if c < 0 {
		return nil, false
	}
	set := make(map[string]bool, t.NumRows())
	for i := range t.Rows {
		if v := t.Cell(i, c); v != "" {
			set[v] = true
		}
	}
	return set, true
}

// Integrity runs all checks. Each check degrades to CheckSkipped on its own
// when its tables or columns are absent; one skip never blocks the rest.
// Violation artifacts are written only when a check found something.
func Integrity(static StaticSet, aw *artifacts.Writer, log logger.Logger) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	var err error
	report.MissingRouteRefsInTrips, err = checkMissingRefs(
		static.table("trips"), "route_id", "trip_id",
		static.table("routes"), "route_id",
		"missing_route_refs_in_trips", aw, log)
	if err != nil {
		return nil, err
	}

	report.MissingTripRefsInStopTimes, err = checkMissingRefs(
		static.table("stop_times"), "trip_id", "stop_id",
		static.table("trips"), "trip_id",
		"missing_trip_refs_in_stop_times", aw, log)
	if err != nil {
		return nil, err
	}

	report.StopsMissingCoords, report.StopsBBox, err = checkStopCoords(static.table("stops"), aw, log)
	if err != nil {
		return nil, err
	}

	return report, nil
}

// checkMissingRefs reports rows of the child table whose ref column points
// at a value absent from the parent table's key column. The count is per
// violating row; the distinct missing values go to the log. Runs in one
// pass over each table via a presence set.
func checkMissingRefs(
	child *models.Table, refCol, contextCol string,
	parent *models.Table, parentCol string,
	artifactName string,
	aw *artifacts.Writer, log logger.Logger,
) (CheckResult, error) {
	parents, ok := presenceSet(parent, parentCol)
	if !ok {
		log.Warn("Integrity check skipped, parent table or column missing",
			"check", artifactName)
		return CheckResult{Status: CheckSkipped, Detail: "parent table or column missing"}, nil
	}
	if child == nil || child.Col(refCol) < 0 {
		log.Warn("Integrity check skipped, child table or column missing",
			"check", artifactName)
		return CheckResult{Status: CheckSkipped, Detail: "child table or column missing"}, nil
	}

	rc := child.Col(refCol)
	cc := child.Col(contextCol)

	violations := models.NewTable(artifactName, []string{"row", refCol, contextCol})
	seen := make(map[string]bool)
	distinct := 0
	for i := range child.Rows {
		ref := child.Cell(i, rc)
		if ref == "" || parents[ref] {
			continue
		}
		if !seen[ref] {
			seen[ref] = true
			distinct++
		}
		violations.Append([]string{strconv.Itoa(i + 1), ref, child.Cell(i, cc)})
	}

	if violations.Empty() {
		return CheckResult{Status: CheckClean}, nil
	}

	result := CheckResult{
		Status:     CheckViolations,
		Violations: violations.NumRows(),
	}
	if aw != nil {
		ref, err := aw.WriteTable(violations, artifactName,
			"rows referencing a missing "+parentCol)
		if err != nil {
			return result, err
		}
		result.Artifact = ref
	}
	log.Warn("Integrity violations found",
		"check", artifactName,
		"distinct_missing", distinct,
		"rows", violations.NumRows())
	return result, nil
}

// checkStopCoords flags stops whose stop_lat or stop_lon is empty or not a
// parseable float, and computes the bounding box of the rest.
func checkStopCoords(stops *models.Table, aw *artifacts.Writer, log logger.Logger) (CheckResult, *BBox, error) {
	if stops == nil {
		return CheckResult{Status: CheckSkipped, Detail: "stops table missing"}, nil, nil
	}
	idCol := stops.Col("stop_id")
	latCol := stops.Col("stop_lat")
	lonCol := stops.Col("stop_lon")
	if latCol < 0 || lonCol < 0 {
		log.Warn("Stop coordinate check skipped, coordinate columns missing")
		return CheckResult{Status: CheckSkipped, Detail: "coordinate columns missing"}, nil, nil
	}

	violations := models.NewTable("stops_missing_coords",
		[]string{"row", "stop_id", "stop_lat", "stop_lon"})
	var bbox *BBox
	for i := range stops.Rows {
		latStr := stops.Cell(i, latCol)
		lonStr := stops.Cell(i, lonCol)
		lat, latErr := strconv.ParseFloat(latStr, 64)
		lon, lonErr := strconv.ParseFloat(lonStr, 64)
		if latStr == "" || lonStr == "" || latErr != nil || lonErr != nil {
			violations.Append([]string{
				strconv.Itoa(i + 1), stops.Cell(i, idCol), latStr, lonStr,
			})
			continue
		}
		if bbox == nil {
			bbox = &BBox{MinLat: lat, MaxLat: lat, MinLon: lon, MaxLon: lon}
		} else {
			if lat < bbox.MinLat {
				bbox.MinLat = lat
			}
			if lat > bbox.MaxLat {
				bbox.MaxLat = lat
			}
			if lon < bbox.MinLon {
				bbox.MinLon = lon
			}
			if lon > bbox.MaxLon {
				bbox.MaxLon = lon
			}
		}
	}

	if violations.Empty() {
		return CheckResult{Status: CheckClean}, bbox, nil
	}

	result := CheckResult{
		Status:     CheckViolations,
		Violations: violations.NumRows(),
	}
	if aw != nil {
		ref, err := aw.WriteTable(violations, "stops_missing_coords",
			"stops with missing or unparseable coordinates")
		if err != nil {
			return result, bbox, err
		}
		result.Artifact = ref
	}
	log.Warn("Stops with bad coordinates found", "rows", violations.NumRows())
	return result, bbox, nil
}

// RenderIntegrity formats the report for terminal output.
func RenderIntegrity(r *IntegrityReport) string {
	lines := []struct {
		name   string
		result CheckResult
	}{
		{"missing_route_refs_in_trips", r.MissingRouteRefsInTrips},
		{"missing_trip_refs_in_stop_times", r.MissingTripRefsInStopTimes},
		{"stops_missing_coords", r.StopsMissingCoords},
	}

	out := ""
	for _, l := range lines {
		out += l.name + ": " + string(l.result.Status)
		if l.result.Status == CheckViolations {
			out += " (" + strconv.Itoa(l.result.Violations) + ")"
			if l.result.Artifact != nil {
				out += " -> " + l.result.Artifact.Path
			}
		}
		if l.result.Detail != "" {
			out += " [" + l.result.Detail + "]"
		}
		out += "\n"
	}
	if r.StopsBBox != nil {
		out += "stops_bbox: lat [" +
			strconv.FormatFloat(r.StopsBBox.MinLat, 'f', 6, 64) + ", " +
			strconv.FormatFloat(r.StopsBBox.MaxLat, 'f', 6, 64) + "] lon [" +
			strconv.FormatFloat(r.StopsBBox.MinLon, 'f', 6, 64) + ", " +
			strconv.FormatFloat(r.StopsBBox.MaxLon, 'f', 6, 64) + "]\n"
	}
	return out
}
