package models

// VehicleRef is the identity tuple used to deduplicate vehicles within a
// route group. Two rows are the same vehicle only if all three fields match;
// a feed that populates the fields inconsistently across updates can produce
// duplicate refs. This is best-effort identity, not a single source of truth.
type VehicleRef struct {
	VehicleID    *string
	VehicleLabel *string
	LicensePlate *string
}

// DisplayID resolves the ref to one identifier: id > label > plate.
func (v VehicleRef) DisplayID() string {
	switch {
	case v.VehicleID != nil:
		return *v.VehicleID
	case v.VehicleLabel != nil:
		return *v.VehicleLabel
	case v.LicensePlate != nil:
		return *v.LicensePlate
	}
	return ""
}

// ActiveRoute is a derived per-query aggregate, never persisted.
type ActiveRoute struct {
	RouteID        string
	RouteShortName *string
	RouteLongName  *string
	Vehicles       []VehicleRef // deduplicated, possibly truncated for display
	VehicleIDs     []string     // sorted distinct display identifiers
	VehiclesActive int          // distinct vehicle identities (pre-truncation)
}

type NearbyVehicle struct {
	VehicleID string
	DistanceM float64
}

// ArtifactRef points at an exported tabular result on disk.
type ArtifactRef struct {
	Path        string
	Format      string
	Rows        int
	Columns     []string
	Description string
}
