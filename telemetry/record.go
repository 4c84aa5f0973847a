// Package telemetry defines the surveillance record stored per aircraft
// sample and the half-open time range used to select records.
package telemetry

import "time"

// Record is one ASTERIX-derived aircraft surveillance sample.
//
// Field keys follow the ASTERIX data item they were decoded from
// (I130 = calculated position, I140 = geometric altitude, ...) and are the
// keys of the stored documents, so they must not be renamed.
// A Record is a value: it is read from the store as a whole and never
// updated field by field.
type Record struct {
	Timestamp    time.Time `json:"timestamp" bson:"timestamp" cbor:"timestamp" yaml:"timestamp"`
	LatitudeDeg  float64   `json:"I130_lat_deg" bson:"I130_lat_deg" cbor:"I130_lat_deg" yaml:"I130_lat_deg"`
	LongitudeDeg float64   `json:"I130_lon_deg" bson:"I130_lon_deg" cbor:"I130_lon_deg" yaml:"I130_lon_deg"`
	TimeOfDayS   float64   `json:"I030_tod_s" bson:"I030_tod_s" cbor:"I030_tod_s" yaml:"I030_tod_s"`             // seconds since midnight UTC
	GeoAltFt     float64   `json:"I140_galt_ft" bson:"I140_galt_ft" cbor:"I140_galt_ft" yaml:"I140_galt_ft"`     // geometric altitude, feet
	FlightLevel  float64   `json:"I145_fl" bson:"I145_fl" cbor:"I145_fl" yaml:"I145_fl"`                         // flight level
	BaroVertRate float64   `json:"I155_bvr_ftpm" bson:"I155_bvr_ftpm" cbor:"I155_bvr_ftpm" yaml:"I155_bvr_ftpm"` // barometric vertical rate, ft/min
	GroundSpeed  float64   `json:"I160_gs_nmps" bson:"I160_gs_nmps" cbor:"I160_gs_nmps" yaml:"I160_gs_nmps"`     // ground speed, NM/s
	TrackAngle   float64   `json:"I160_ta_deg" bson:"I160_ta_deg" cbor:"I160_ta_deg" yaml:"I160_ta_deg"`         // track angle, degrees
}
