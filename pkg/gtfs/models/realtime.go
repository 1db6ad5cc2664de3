package models

// Realtime row structs use pointer fields for wire-optional values: a nil
// pointer means the field was unset in the feed, which downstream logic must
// keep distinct from a zero value (a bearing of 0 is a real bearing).

type VehiclePositionRow struct {
	FeedTimestamp       *int64
	EntityID            *string
	VehicleID           *string
	VehicleLabel        *string
	LicensePlate        *string
	TripID              *string
	RouteID             *string
	DirectionID         *int64
	StopID              *string
	VehicleTimestamp    *int64
	CurrentStatus       *int64
	CurrentStopSequence *int64
	Lat                 *float64
	Lon                 *float64
	Bearing             *float64
	Speed               *float64
}

// HasPosition reports whether the row carries coordinates. Lat and Lon are
// set as a pair by the decoder, never one without the other.
func (r *VehiclePositionRow) HasPosition() bool {
	return r.Lat != nil && r.Lon != nil
}

// DisplayID resolves the vehicle identifier for display:
// id > label > license plate > entity id.
func (r *VehiclePositionRow) DisplayID() string {
	switch {
	case r.VehicleID != nil:
		return *r.VehicleID
	case r.VehicleLabel != nil:
		return *r.VehicleLabel
	case r.LicensePlate != nil:
		return *r.LicensePlate
	case r.EntityID != nil:
		return *r.EntityID
	}
	return ""
}

type TripUpdateRow struct {
	FeedTimestamp *int64
	EntityID      *string
	TripID        *string
	RouteID       *string
	DirectionID   *int64
	Timestamp     *int64
	Delay         *int64
	VehicleID     *string
}

// StopTimeUpdateRow is a child row of TripUpdateRow, keyed by
// (trip_id, stop_sequence).
type StopTimeUpdateRow struct {
	FeedTimestamp  *int64
	EntityID       *string
	TripID         *string
	RouteID        *string
	StopSequence   *int64
	StopID         *string
	ArrivalTime    *int64
	ArrivalDelay   *int64
	DepartureTime  *int64
	DepartureDelay *int64
}

type AlertRow struct {
	FeedTimestamp   *int64
	EntityID        *string
	Cause           *int64
	Effect          *int64
	HeaderText      *string
	DescriptionText *string
}
