package capturedb

import (
	"database/sql"
	"errors"
)

var (
	ErrNotFound         = errors.New("reading not found")
	ErrChecksumMismatch = errors.New("stored capture checksum mismatch")
)

type ReadingRow struct {
	ID          string          `db:"id"`
	Timestamp   int64           `db:"timestamp"`
	Variant     string          `db:"variant"`
	Valid       bool            `db:"valid"`
	Raw         []byte          `db:"raw"`
	RawCRC      uint16          `db:"raw_crc"`
	Faults      string          `db:"faults"`
	MeterID     string          `db:"meter_id"`
	RecordValid bool            `db:"record_valid"`
	KWh         sql.NullFloat64 `db:"kwh"`
	KVAh        sql.NullFloat64 `db:"kvah"`
	ExportKWh   sql.NullFloat64 `db:"export_kwh"`
	RecordJSON  sql.NullString  `db:"record_json"`
}

// DailyEnergySnapshot is the last register standing of a meter on a UTC day.
type DailyEnergySnapshot struct {
	DayStart          int64           `db:"day_start"`
	MeterID           string          `db:"meter_id"`
	KWhStanding       float64         `db:"kwh_standing"`
	KVAhStanding      float64         `db:"kvah_standing"`
	ExportKWhStanding sql.NullFloat64 `db:"export_kwh_standing"`
	SampleCount       uint32          `db:"sample_count"`
}
