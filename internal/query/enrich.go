// Package query derives read-only views by joining one realtime snapshot
// against the static table set. Results are computed per call and never
// persisted; the only side effects are artifact exports.
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/transitlens-data/internal/common/logger"
	"github.com/transitlens-data/internal/gtfs-realtime/snapshot"
	"github.com/transitlens-data/pkg/gtfs/models"
)

// StaticSet is the loaded static table set keyed by table name.
type StaticSet map[string]*models.Table

func (s StaticSet) table(name string) *models.Table {
	if s == nil {
		return nil
	}
	return s[name]
}

// tripRouteIndex builds trip_id -> route_id from the trips table. Returns
// nil when the table or its required columns are absent, which downstream
// treats as "no enrichment possible".
func tripRouteIndex(trips *models.Table) map[string]string {
	if trips == nil {
		return nil
	}
	tripCol := trips.Col("trip_id")
	routeCol := trips.Col("route_id")
	if tripCol < 0 || routeCol < 0 {
		return nil
	}

	idx := make(map[string]string, trips.NumRows())
	for i := range trips.Rows {
		tripID := trips.Cell(i, tripCol)
		routeID := trips.Cell(i, routeCol)
		if tripID != "" && routeID != "" {
			idx[tripID] = routeID
		}
	}
	return idx
}

// routeNameIndex builds route_id -> (short_name, long_name) from routes.
func routeNameIndex(routes *models.Table) map[string][2]*string {
	if routes == nil {
		return nil
	}
	idCol := routes.Col("route_id")
	if idCol < 0 {
		return nil
	}
	shortCol := routes.Col("route_short_name")
	longCol := routes.Col("route_long_name")

	idx := make(map[string][2]*string, routes.NumRows())
	for i := range routes.Rows {
		id := routes.Cell(i, idCol)
		if id == "" {
			continue
		}
		var names [2]*string
		if s := routes.Cell(i, shortCol); shortCol >= 0 && s != "" {
			names[0] = &s
		}
		if l := routes.Cell(i, longCol); longCol >= 0 && l != "" {
			names[1] = &l
		}
		idx[id] = names
	}
	return idx
}

// BackfillRouteIDs fills nil RouteID fields on vehicle rows from the static
// trips table. A route id already present in the feed is never overwritten;
// the feed is the more current source. Returns how many rows were filled.
func BackfillRouteIDs(rows []models.VehiclePositionRow, static StaticSet) int {
	idx := tripRouteIndex(static.table("trips"))
	if idx == nil {
		return 0
	}

	filled := 0
	for i := range rows {
		if rows[i].RouteID != nil || rows[i].TripID == nil {
			continue
		}
		if routeID, ok := idx[*rows[i].TripID]; ok {
			r := routeID
			rows[i].RouteID = &r
			filled++
		}
	}
	return filled
}

// ActiveRoutesOptions bounds the rendered result; zero values mean no limit.
// RouteID restricts the aggregate to one route when non-empty.
type ActiveRoutesOptions struct {
	MaxRoutes           int
	MaxVehiclesPerRoute int
	RouteID             string
}

// ActiveRoutesResult is the aggregate over one snapshot.
type ActiveRoutesResult struct {
	SnapshotID    string
	FeedTimestamp *int64
	Routes        []models.ActiveRoute
	RoutesTotal   int
	RoutesShown   int
}

// ActiveRoutes groups the snapshot's vehicles by route after trip-based
// route backfill. Vehicles with no route id after backfill are excluded.
// Routes are ordered by active vehicle count descending, route id ascending.
func ActiveRoutes(snap *snapshot.Snapshot, static StaticSet, opts ActiveRoutesOptions, log logger.Logger) *ActiveRoutesResult {
	rows := make([]models.VehiclePositionRow, len(snap.VehiclePositions))
	copy(rows, snap.VehiclePositions)

	filled := BackfillRouteIDs(rows, static)
	if filled > 0 {
		log.Debug("Backfilled route ids from trips", "rows", filled)
	}

	names := routeNameIndex(static.table("routes"))
	if names == nil {
		log.Warn("Routes table unavailable, route names will be empty")
	}

	type group struct {
		refs    []models.VehicleRef
		seen    map[string]bool
		unkeyed int // rows with no identity fields at all
	}
	groups := make(map[string]*group)

	for i := range rows {
		if rows[i].RouteID == nil {
			continue
		}
		routeID := *rows[i].RouteID
		if opts.RouteID != "" && routeID != opts.RouteID {
			continue
		}
		g := groups[routeID]
		if g == nil {
			g = &group{seen: make(map[string]bool)}
			groups[routeID] = g
		}

		ref := models.VehicleRef{
			VehicleID:    rows[i].VehicleID,
			VehicleLabel: rows[i].VehicleLabel,
			LicensePlate: rows[i].LicensePlate,
		}
		if ref.VehicleID == nil && rows[i].EntityID != nil {
			// entity id stands in when the descriptor has no id
			ref.VehicleID = rows[i].EntityID
		}
		if ref.VehicleID == nil && ref.VehicleLabel == nil && ref.LicensePlate == nil {
			g.unkeyed++
			continue
		}

		key := identityKey(ref)
		if g.seen[key] {
			continue
		}
		g.seen[key] = true
		g.refs = append(g.refs, ref)
	}

	result := &ActiveRoutesResult{
		SnapshotID:    snap.ID,
		FeedTimestamp: snap.FeedTimestamp,
	}

	for routeID, g := range groups {
		route := models.ActiveRoute{
			RouteID:        routeID,
			VehiclesActive: len(g.refs) + g.unkeyed,
		}
		if n, ok := names[routeID]; ok {
			route.RouteShortName = n[0]
			route.RouteLongName = n[1]
		}

		sort.Slice(g.refs, func(i, j int) bool {
			return g.refs[i].DisplayID() < g.refs[j].DisplayID()
		})
		for _, ref := range g.refs {
			route.VehicleIDs = append(route.VehicleIDs, ref.DisplayID())
		}
		route.Vehicles = g.refs
		if opts.MaxVehiclesPerRoute > 0 && len(route.Vehicles) > opts.MaxVehiclesPerRoute {
			route.Vehicles = route.Vehicles[:opts.MaxVehiclesPerRoute]
		}

		result.Routes = append(result.Routes, route)
	}

	sort.Slice(result.Routes, func(i, j int) bool {
		if result.Routes[i].VehiclesActive != result.Routes[j].VehiclesActive {
			return result.Routes[i].VehiclesActive > result.Routes[j].VehiclesActive
		}
		return result.Routes[i].RouteID < result.Routes[j].RouteID
	})

	result.RoutesTotal = len(result.Routes)
	if opts.MaxRoutes > 0 && len(result.Routes) > opts.MaxRoutes {
		result.Routes = result.Routes[:opts.MaxRoutes]
	}
	result.RoutesShown = len(result.Routes)

	return result
}

// identityKey joins the full tuple; nil and empty stay distinguishable.
func identityKey(ref models.VehicleRef) string {
	part := func(p *string) string {
		if p == nil {
			return "\x00"
		}
		return "\x01" + *p
	}
	return part(ref.VehicleID) + "|" + part(ref.VehicleLabel) + "|" + part(ref.LicensePlate)
}

// RenderActiveRoutes formats the aggregate for terminal output.
func RenderActiveRoutes(r *ActiveRoutesResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "snapshot %s", r.SnapshotID)
	if r.FeedTimestamp != nil {
		fmt.Fprintf(&b, " (feed timestamp %d)", *r.FeedTimestamp)
	}
	fmt.Fprintf(&b, ": %d active routes", r.RoutesTotal)
	if r.RoutesShown < r.RoutesTotal {
		fmt.Fprintf(&b, " (showing %d)", r.RoutesShown)
	}
	b.WriteString("\n")

	for _, route := range r.Routes {
		name := route.RouteID
		if route.RouteShortName != nil {
			name = fmt.Sprintf("%s (%s)", *route.RouteShortName, route.RouteID)
		} else if route.RouteLongName != nil {
			name = fmt.Sprintf("%s (%s)", *route.RouteLongName, route.RouteID)
		}
		fmt.Fprintf(&b, "  %-40s %3d vehicles", name, route.VehiclesActive)
		if len(route.VehicleIDs) > 0 {
			shown := route.VehicleIDs
			if len(shown) > 8 {
				shown = shown[:8]
			}
			fmt.Fprintf(&b, "  [%s]", strings.Join(shown, " "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// EnrichedVehicleTable joins vehicle rows with route names for export. Rows
// keep their feed values; only nil route ids are backfilled from trips.
func EnrichedVehicleTable(snap *snapshot.Snapshot, static StaticSet) *models.Table {
	rows := make([]models.VehiclePositionRow, len(snap.VehiclePositions))
	copy(rows, snap.VehiclePositions)
	BackfillRouteIDs(rows, static)

	names := routeNameIndex(static.table("routes"))

	t := models.VehiclePositionsTable(rows)
	t.Name = "enriched_vehicle_positions"
	t.Columns = append(t.Columns, "route_short_name", "route_long_name")
	for i := range rows {
		short, long := "", ""
		if rows[i].RouteID != nil {
			if n, ok := names[*rows[i].RouteID]; ok {
				if n[0] != nil {
					short = *n[0]
				}
				if n[1] != nil {
					long = *n[1]
				}
			}
		}
		t.Rows[i] = append(t.Rows[i], short, long)
	}
	return t
}
