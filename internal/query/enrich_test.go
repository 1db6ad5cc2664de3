package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitlens-data/internal/common/logger"
	"github.com/transitlens-data/internal/gtfs-realtime/snapshot"
	"github.com/transitlens-data/pkg/gtfs/models"
)

func sp(s string) *string   { return &s }
func fp(f float64) *float64 { return &f }

func staticWithTrips(rows ...[]string) StaticSet {
	trips := models.NewTable("trips", []string{"trip_id", "route_id"})
	for _, r := range rows {
		trips.Append(r)
	}
	routes := models.NewTable("routes", []string{"route_id", "route_short_name", "route_long_name"})
	routes.Append([]string{"R1", "Red", "Red Line"})
	routes.Append([]string{"R2", "", "Blue Line"})
	return StaticSet{"trips": trips, "routes": routes}
}

func TestBackfillRouteIDs(t *testing.T) {
	static := staticWithTrips([]string{"T1", "R1"}, []string{"T2", "R2"})
	rows := []models.VehiclePositionRow{
		{VehicleID: sp("V1"), TripID: sp("T1")},                       // backfilled
		{VehicleID: sp("V2"), TripID: sp("T2"), RouteID: sp("R9")},    // feed value wins
		{VehicleID: sp("V3"), TripID: sp("T404")},                     // unknown trip
		{VehicleID: sp("V4")},                                         // no trip
	}

	filled := BackfillRouteIDs(rows, static)
	assert.Equal(t, 1, filled)

	require.NotNil(t, rows[0].RouteID)
	assert.Equal(t, "R1", *rows[0].RouteID)
	assert.Equal(t, "R9", *rows[1].RouteID, "feed route id is never overwritten")
	assert.Nil(t, rows[2].RouteID)
	assert.Nil(t, rows[3].RouteID)
}

func TestBackfillWithoutTripsTableIsNoop(t *testing.T) {
	rows := []models.VehiclePositionRow{{VehicleID: sp("V1"), TripID: sp("T1")}}
	assert.Equal(t, 0, BackfillRouteIDs(rows, StaticSet{}))
	assert.Nil(t, rows[0].RouteID)
}

func snapWithVehicles(rows ...models.VehiclePositionRow) *snapshot.Snapshot {
	ts := int64(1700000000)
	return &snapshot.Snapshot{
		ID:               "20260101T000000Z",
		FeedTimestamp:    &ts,
		VehiclePositions: rows,
	}
}

func TestActiveRoutesGroupsAndOrders(t *testing.T) {
	static := staticWithTrips([]string{"T1", "R1"})
	snap := snapWithVehicles(
		models.VehiclePositionRow{VehicleID: sp("V1"), TripID: sp("T1")}, // via backfill -> R1
		models.VehiclePositionRow{VehicleID: sp("V2"), RouteID: sp("R1")},
		models.VehiclePositionRow{VehicleID: sp("V3"), RouteID: sp("R2")},
		models.VehiclePositionRow{VehicleID: sp("V4")}, // no route, excluded
	)

	result := ActiveRoutes(snap, static, ActiveRoutesOptions{}, logger.New())
	require.Len(t, result.Routes, 2)
	assert.Equal(t, 2, result.RoutesTotal)

	// R1 has more vehicles, so it comes first
	assert.Equal(t, "R1", result.Routes[0].RouteID)
	assert.Equal(t, 2, result.Routes[0].VehiclesActive)
	assert.Equal(t, []string{"V1", "V2"}, result.Routes[0].VehicleIDs)
	require.NotNil(t, result.Routes[0].RouteShortName)
	assert.Equal(t, "Red", *result.Routes[0].RouteShortName)

	assert.Equal(t, "R2", result.Routes[1].RouteID)
	assert.Nil(t, result.Routes[1].RouteShortName)
	assert.Equal(t, "Blue Line", *result.Routes[1].RouteLongName)
}

func TestActiveRoutesTiesBreakByRouteID(t *testing.T) {
	snap := snapWithVehicles(
		models.VehiclePositionRow{VehicleID: sp("V1"), RouteID: sp("R2")},
		models.VehiclePositionRow{VehicleID: sp("V2"), RouteID: sp("R1")},
	)

	result := ActiveRoutes(snap, StaticSet{}, ActiveRoutesOptions{}, logger.New())
	require.Len(t, result.Routes, 2)
	assert.Equal(t, "R1", result.Routes[0].RouteID)
	assert.Equal(t, "R2", result.Routes[1].RouteID)
}

func TestActiveRoutesDedupByFullIdentityTuple(t *testing.T) {
	snap := snapWithVehicles(
		// same id, same label: one vehicle
		models.VehiclePositionRow{VehicleID: sp("V1"), VehicleLabel: sp("Car 1"), RouteID: sp("R1")},
		models.VehiclePositionRow{VehicleID: sp("V1"), VehicleLabel: sp("Car 1"), RouteID: sp("R1")},
		// same id, different label: distinct tuples, counted separately
		models.VehiclePositionRow{VehicleID: sp("V1"), VehicleLabel: sp("Car 2"), RouteID: sp("R1")},
	)

	result := ActiveRoutes(snap, StaticSet{}, ActiveRoutesOptions{}, logger.New())
	require.Len(t, result.Routes, 1)
	assert.Equal(t, 2, result.Routes[0].VehiclesActive)
}

func TestActiveRoutesEntityIDFallbackAndUnkeyedRows(t *testing.T) {
	snap := snapWithVehicles(
		models.VehiclePositionRow{EntityID: sp("ent-1"), RouteID: sp("R1")},
		models.VehiclePositionRow{RouteID: sp("R1")}, // nothing to identify it by
	)

	result := ActiveRoutes(snap, StaticSet{}, ActiveRoutesOptions{}, logger.New())
	require.Len(t, result.Routes, 1)
	// the unkeyed row still counts toward activity
	assert.Equal(t, 2, result.Routes[0].VehiclesActive)
	assert.Equal(t, []string{"ent-1"}, result.Routes[0].VehicleIDs)
}

func TestActiveRoutesSingleRouteFilter(t *testing.T) {
	static := staticWithTrips([]string{"T1", "R1"})
	snap := snapWithVehicles(
		models.VehiclePositionRow{VehicleID: sp("V1"), TripID: sp("T1")}, // via backfill -> R1
		models.VehiclePositionRow{VehicleID: sp("V2"), RouteID: sp("R1")},
		models.VehiclePositionRow{VehicleID: sp("V3"), RouteID: sp("R2")},
	)

	result := ActiveRoutes(snap, static, ActiveRoutesOptions{RouteID: "R1"}, logger.New())
	require.Len(t, result.Routes, 1)
	assert.Equal(t, 1, result.RoutesTotal)
	assert.Equal(t, "R1", result.Routes[0].RouteID)
	assert.Equal(t, []string{"V1", "V2"}, result.Routes[0].VehicleIDs)

	none := ActiveRoutes(snap, static, ActiveRoutesOptions{RouteID: "R404"}, logger.New())
	assert.Empty(t, none.Routes)
	assert.Equal(t, 0, none.RoutesTotal)
}

func TestActiveRoutesTruncation(t *testing.T) {
	snap := snapWithVehicles(
		models.VehiclePositionRow{VehicleID: sp("V1"), RouteID: sp("R1")},
		models.VehiclePositionRow{VehicleID: sp("V2"), RouteID: sp("R1")},
		models.VehiclePositionRow{VehicleID: sp("V3"), RouteID: sp("R2")},
		models.VehiclePositionRow{VehicleID: sp("V4"), RouteID: sp("R3")},
	)

	result := ActiveRoutes(snap, StaticSet{}, ActiveRoutesOptions{
		MaxRoutes:           2,
		MaxVehiclesPerRoute: 1,
	}, logger.New())

	assert.Equal(t, 3, result.RoutesTotal)
	assert.Equal(t, 2, result.RoutesShown)
	require.Len(t, result.Routes, 2)
	assert.Len(t, result.Routes[0].Vehicles, 1)
	// the pre-truncation count survives
	assert.Equal(t, 2, result.Routes[0].VehiclesActive)
}

func TestRenderActiveRoutes(t *testing.T) {
	snap := snapWithVehicles(
		models.VehiclePositionRow{VehicleID: sp("V1"), RouteID: sp("R1")},
	)
	out := RenderActiveRoutes(ActiveRoutes(snap, StaticSet{}, ActiveRoutesOptions{}, logger.New()))

	assert.True(t, strings.HasPrefix(out, "snapshot 20260101T000000Z"))
	assert.Contains(t, out, "1 active routes")
	assert.Contains(t, out, "R1")
	assert.Contains(t, out, "V1")
}

func TestEnrichedVehicleTable(t *testing.T) {
	static := staticWithTrips([]string{"T1", "R1"})
	snap := snapWithVehicles(
		models.VehiclePositionRow{VehicleID: sp("V1"), TripID: sp("T1"), Lat: fp(1), Lon: fp(2)},
		models.VehiclePositionRow{VehicleID: sp("V2")},
	)

	tbl := EnrichedVehicleTable(snap, static)
	require.Equal(t, 2, tbl.NumRows())

	shortCol := tbl.Col("route_short_name")
	require.GreaterOrEqual(t, shortCol, 0)
	assert.Equal(t, "Red", tbl.Cell(0, shortCol))
	assert.Equal(t, "", tbl.Cell(1, shortCol))
	// backfill must not mutate the snapshot itself
	assert.Nil(t, snap.VehiclePositions[0].RouteID)
}

func TestStats(t *testing.T) {
	snap := snapWithVehicles(
		models.VehiclePositionRow{VehicleID: sp("V1"), Lat: fp(1), Lon: fp(2)},
		models.VehiclePositionRow{VehicleID: sp("V1")}, // same vehicle, no GPS
		models.VehiclePositionRow{VehicleID: sp("V2")},
	)
	snap.TripUpdates = make([]models.TripUpdateRow, 3)
	snap.Alerts = make([]models.AlertRow, 1)

	s := Stats(snap)
	assert.Equal(t, 2, s.VehiclesActive)
	assert.Equal(t, 2, s.VehiclesWithoutGPS)
	assert.Equal(t, 3, s.TripUpdates)
	assert.Equal(t, 1, s.Alerts)

	out := RenderStats(s)
	assert.Contains(t, out, "vehicles_active:   2")
}

func TestStatsFallsBackToRowCount(t *testing.T) {
	snap := snapWithVehicles(
		models.VehiclePositionRow{},
		models.VehiclePositionRow{},
	)
	assert.Equal(t, 2, Stats(snap).VehiclesActive)
}
