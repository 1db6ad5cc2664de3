package query

import (
	"math"
	"sort"

	"github.com/transitlens-data/internal/common/errs"
	"github.com/transitlens-data/internal/gtfs-realtime/snapshot"
	"github.com/transitlens-data/pkg/gtfs/models"
)

// earthRadiusM is the mean Earth radius used by the haversine formula.
const earthRadiusM = 6371000.0

// HaversineMeters returns the great-circle distance between two WGS84
// coordinates in meters. Symmetric; zero for identical points.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// VehicleByID finds a vehicle row by its descriptor id.
func VehicleByID(snap *snapshot.Snapshot, vehicleID string) (*models.VehiclePositionRow, error) {
	for i := range snap.VehiclePositions {
		r := &snap.VehiclePositions[i]
		if r.VehicleID != nil && *r.VehicleID == vehicleID {
			return r, nil
		}
	}
	return nil, errs.NotFound("vehicle", vehicleID)
}

// NearbyResult is the proximity answer around one reference vehicle.
// CountConsidered is the number of candidate vehicles that carried both an
// id and coordinates, before the radius filter.
type NearbyResult struct {
	Center          models.VehiclePositionRow
	Nearby          []models.NearbyVehicle
	CountConsidered int
}

// NearVehicle lists vehicles within radiusM of the given vehicle, sorted by
// distance ascending. The reference vehicle itself is excluded by id. A
// reference without coordinates is an InvalidStateError, not a NotFound.
func NearVehicle(snap *snapshot.Snapshot, vehicleID string, radiusM float64, limit int) (*NearbyResult, error) {
	center, err := VehicleByID(snap, vehicleID)
	if err != nil {
		return nil, err
	}
	if !center.HasPosition() {
		return nil, errs.InvalidStatef("vehicle %s has no position in this snapshot", vehicleID)
	}

	result := &NearbyResult{Center: *center}
	for i := range snap.VehiclePositions {
		r := &snap.VehiclePositions[i]
		if r.VehicleID == nil || !r.HasPosition() {
			continue
		}
		if *r.VehicleID == vehicleID {
			continue
		}
		result.CountConsidered++

		d := HaversineMeters(*center.Lat, *center.Lon, *r.Lat, *r.Lon)
		if d <= radiusM {
			result.Nearby = append(result.Nearby, models.NearbyVehicle{
				VehicleID: *r.VehicleID,
				DistanceM: d,
			})
		}
	}

	sort.Slice(result.Nearby, func(i, j int) bool {
		if result.Nearby[i].DistanceM != result.Nearby[j].DistanceM {
			return result.Nearby[i].DistanceM < result.Nearby[j].DistanceM
		}
		return result.Nearby[i].VehicleID < result.Nearby[j].VehicleID
	})
	if limit > 0 && len(result.Nearby) > limit {
		result.Nearby = result.Nearby[:limit]
	}

	return result, nil
}
