// Package decoder turns one serialized GTFS-Realtime FeedMessage into
// normalized row sets. Each feed entity is exactly one of vehicle,
// trip_update or alert; anything else is skipped. Wire-optional fields
// decode to nil, never to a defaulted zero.
package decoder

import (
	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/transitlens-data/internal/common/errs"
	"github.com/transitlens-data/pkg/gtfs/models"
)

// ParseFeed decodes protobuf bytes into a FeedMessage. A malformed stream
// is a DecodeError, fatal for this file only.
func ParseFeed(data []byte, source string) (*gtfsrt.FeedMessage, error) {
	fm := &gtfsrt.FeedMessage{}
	if err := proto.Unmarshal(data, fm); err != nil {
		return nil, errs.Decode(source, err)
	}
	return fm, nil
}

// ParseFeedJSON decodes the JSON wire variant with identical semantics.
func ParseFeedJSON(data []byte, source string) (*gtfsrt.FeedMessage, error) {
	fm := &gtfsrt.FeedMessage{}
	opts := protojson.UnmarshalOptions{DiscardUnknown: true}
	if err := opts.Unmarshal(data, fm); err != nil {
		return nil, errs.Decode(source, err)
	}
	return fm, nil
}

// FeedTimestamp extracts the header timestamp. Zero or negative values are
// treated as absent; some upstream feeds ship them on empty messages.
func FeedTimestamp(fm *gtfsrt.FeedMessage) *int64 {
	if fm == nil || fm.Header == nil || fm.Header.Timestamp == nil {
		return nil
	}
	ts := int64(*fm.Header.Timestamp)
	if ts <= 0 {
		return nil
	}
	return &ts
}

func strOrNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

func u32OrNil(v *uint32) *int64 {
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}

func u64OrNil(v *uint64) *int64 {
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}

func i32OrNil(v *int32) *int64 {
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}

func f32OrNil(v *float32) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

// VehiclePositionRows extracts vehicle entities. Lat and lon are set as a
// pair from the position message, or left nil as a pair.
func VehiclePositionRows(fm *gtfsrt.FeedMessage, feedTS *int64) []models.VehiclePositionRow {
	var rows []models.VehiclePositionRow
	for _, e := range fm.GetEntity() {
		v := e.GetVehicle()
		if v == nil {
			continue
		}

		row := models.VehiclePositionRow{
			FeedTimestamp:       feedTS,
			EntityID:            strOrNil(e.Id),
			VehicleTimestamp:    u64OrNil(v.Timestamp),
			CurrentStopSequence: u32OrNil(v.CurrentStopSequence),
			StopID:              strOrNil(v.StopId),
		}
		if d := v.GetVehicle(); d != nil {
			row.VehicleID = strOrNil(d.Id)
			row.VehicleLabel = strOrNil(d.Label)
			row.LicensePlate = strOrNil(d.LicensePlate)
		}
		if t := v.GetTrip(); t != nil {
			row.TripID = strOrNil(t.TripId)
			row.RouteID = strOrNil(t.RouteId)
			row.DirectionID = u32OrNil(t.DirectionId)
		}
		if v.CurrentStatus != nil {
			s := int64(*v.CurrentStatus)
			row.CurrentStatus = &s
		}
		if p := v.GetPosition(); p != nil {
			row.Lat = f32OrNil(p.Latitude)
			row.Lon = f32OrNil(p.Longitude)
			row.Bearing = f32OrNil(p.Bearing)
			if p.Speed != nil {
				sp := float64(*p.Speed)
				row.Speed = &sp
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// TripUpdateRows extracts trip_update entities plus their child stop-time
// update rows, keyed by (trip_id, stop_sequence).
func TripUpdateRows(fm *gtfsrt.FeedMessage, feedTS *int64) ([]models.TripUpdateRow, []models.StopTimeUpdateRow) {
	var trips []models.TripUpdateRow
	var stus []models.StopTimeUpdateRow

	for _, e := range fm.GetEntity() {
		tu := e.GetTripUpdate()
		if tu == nil {
			continue
		}

		row := models.TripUpdateRow{
			FeedTimestamp: feedTS,
			EntityID:      strOrNil(e.Id),
			Timestamp:     u64OrNil(tu.Timestamp),
			Delay:         i32OrNil(tu.Delay),
		}
		if t := tu.GetTrip(); t != nil {
			row.TripID = strOrNil(t.TripId)
			row.RouteID = strOrNil(t.RouteId)
			row.DirectionID = u32OrNil(t.DirectionId)
		}
		if d := tu.GetVehicle(); d != nil {
			row.VehicleID = strOrNil(d.Id)
		}
		trips = append(trips, row)

		for _, stu := range tu.GetStopTimeUpdate() {
			child := models.StopTimeUpdateRow{
				FeedTimestamp: feedTS,
				EntityID:      row.EntityID,
				TripID:        row.TripID,
				RouteID:       row.RouteID,
				StopSequence:  u32OrNil(stu.StopSequence),
				StopID:        strOrNil(stu.StopId),
			}
			if a := stu.GetArrival(); a != nil {
				if a.Time != nil {
					t := *a.Time
					child.ArrivalTime = &t
				}
				child.ArrivalDelay = i32OrNil(a.Delay)
			}
			if d := stu.GetDeparture(); d != nil {
				if d.Time != nil {
					t := *d.Time
					child.DepartureTime = &t
				}
				child.DepartureDelay = i32OrNil(d.Delay)
			}
			stus = append(stus, child)
		}
	}
	return trips, stus
}

// AlertRows extracts alert entities, keeping the first translation of the
// header and description texts.
func AlertRows(fm *gtfsrt.FeedMessage, feedTS *int64) []models.AlertRow {
	var rows []models.AlertRow
	for _, e := range fm.GetEntity() {
		a := e.GetAlert()
		if a == nil {
			continue
		}

		row := models.AlertRow{
			FeedTimestamp:   feedTS,
			EntityID:        strOrNil(e.Id),
			HeaderText:      firstTranslation(a.GetHeaderText()),
			DescriptionText: firstTranslation(a.GetDescriptionText()),
		}
		if a.Cause != nil {
			c := int64(*a.Cause)
			row.Cause = &c
		}
		if a.Effect != nil {
			ef := int64(*a.Effect)
			row.Effect = &ef
		}
		rows = append(rows, row)
	}
	return rows
}

func firstTranslation(ts *gtfsrt.TranslatedString) *string {
	if ts == nil || len(ts.Translation) == 0 {
		return nil
	}
	return strOrNil(ts.Translation[0].Text)
}
