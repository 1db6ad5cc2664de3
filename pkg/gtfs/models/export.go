package models

import "strconv"

// Table converters for the realtime row families. Null pointers render as
// empty cells so the CSV artifacts keep the unset/zero distinction readable.

func fmtStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func fmtInt(i *int64) string {
	if i == nil {
		return ""
	}
	return strconv.FormatInt(*i, 10)
}

func fmtFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func VehiclePositionsTable(rows []VehiclePositionRow) *Table {
	t := NewTable("vehicle_positions", []string{
		"feed_timestamp", "entity_id", "vehicle_id", "vehicle_label",
		"vehicle_license_plate", "trip_id", "route_id", "direction_id",
		"stop_id", "vehicle_timestamp", "current_status",
		"current_stop_sequence", "lat", "lon", "bearing", "speed",
	})
	for i := range rows {
		r := &rows[i]
		t.Append([]string{
			fmtInt(r.FeedTimestamp), fmtStr(r.EntityID), fmtStr(r.VehicleID),
			fmtStr(r.VehicleLabel), fmtStr(r.LicensePlate), fmtStr(r.TripID),
			fmtStr(r.RouteID), fmtInt(r.DirectionID), fmtStr(r.StopID),
			fmtInt(r.VehicleTimestamp), fmtInt(r.CurrentStatus),
			fmtInt(r.CurrentStopSequence), fmtFloat(r.Lat), fmtFloat(r.Lon),
			fmtFloat(r.Bearing), fmtFloat(r.Speed),
		})
	}
	return t
}

func TripUpdatesTable(rows []TripUpdateRow) *Table {
	t := NewTable("trip_updates", []string{
		"feed_timestamp", "entity_id", "trip_id", "route_id", "direction_id",
		"timestamp", "delay", "vehicle_id",
	})
	for i := range rows {
		r := &rows[i]
		t.Append([]string{
			fmtInt(r.FeedTimestamp), fmtStr(r.EntityID), fmtStr(r.TripID),
			fmtStr(r.RouteID), fmtInt(r.DirectionID), fmtInt(r.Timestamp),
			fmtInt(r.Delay), fmtStr(r.VehicleID),
		})
	}
	return t
}

func StopTimeUpdatesTable(rows []StopTimeUpdateRow) *Table {
	t := NewTable("trip_update_stop_times", []string{
		"feed_timestamp", "entity_id", "trip_id", "route_id", "stop_sequence",
		"stop_id", "arrival_time", "arrival_delay", "departure_time",
		"departure_delay",
	})
	for i := range rows {
		r := &rows[i]
		t.Append([]string{
			fmtInt(r.FeedTimestamp), fmtStr(r.EntityID), fmtStr(r.TripID),
			fmtStr(r.RouteID), fmtInt(r.StopSequence), fmtStr(r.StopID),
			fmtInt(r.ArrivalTime), fmtInt(r.ArrivalDelay),
			fmtInt(r.DepartureTime), fmtInt(r.DepartureDelay),
		})
	}
	return t
}

func AlertsTable(rows []AlertRow) *Table {
	t := NewTable("alerts", []string{
		"feed_timestamp", "entity_id", "cause", "effect", "header_text",
		"description_text",
	})
	for i := range rows {
		r := &rows[i]
		t.Append([]string{
			fmtInt(r.FeedTimestamp), fmtStr(r.EntityID), fmtInt(r.Cause),
			fmtInt(r.Effect), fmtStr(r.HeaderText), fmtStr(r.DescriptionText),
		})
	}
	return t
}
