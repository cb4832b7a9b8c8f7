package aggregator

import "errors"

var ErrNotEnoughSnapshots = errors.New("not enough snapshots")

// DailyConsumption is the difference between two daily register snapshots.
type DailyConsumption struct {
	MeterID   string  `json:"meter_id"`
	FromDay   int64   `json:"from_day"`
	ToDay     int64   `json:"to_day"`
	KWh       float64 `json:"kwh"`
	KVAh      float64 `json:"kvah"`
	ExportKWh float64 `json:"export_kwh,omitempty"`
	Days      int     `json:"days"`
	// Complete is false when some days in the range have no snapshot.
	Complete bool `json:"complete"`
}
