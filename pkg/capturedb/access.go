package capturedb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sigurn/crc16"

	"github.com/NotCoffee418/optical_meter_reader/pkg/types"
)

var crcTable = crc16.MakeTable(crc16.CRC16_ARC)

// Checksum is the CRC-16/ARC of a stored capture.
func Checksum(raw []byte) uint16 {
	return crc16.Checksum(raw, crcTable)
}

// ToRow flattens a reading into its stored form.
func ToRow(r *types.Reading) (*ReadingRow, error) {
	raw, err := r.RawBytes()
	if err != nil {
		return nil, fmt.Errorf("decode raw capture: %w", err)
	}
	ts, err := r.Time()
	if err != nil {
		return nil, fmt.Errorf("parse timestamp: %w", err)
	}
	faults, err := json.Marshal(r.Faults)
	if err != nil {
		return nil, err
	}

	row := &ReadingRow{
		ID:        r.ID,
		Timestamp: ts.Unix(),
		Variant:   r.Variant.String(),
		Valid:     r.Valid,
		Raw:       raw,
		RawCRC:    Checksum(raw),
		Faults:    string(faults),
	}
	if r.Faults == nil {
		row.Faults = "[]"
	}
	if rec := r.Record; rec != nil {
		b, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		row.RecordJSON = sql.NullString{String: string(b), Valid: true}
		row.RecordValid = rec.Valid
		row.MeterID = rec.Identity.MeterID()
		if rec.Valid {
			row.KWh = sql.NullFloat64{Float64: rec.Energy.KWh, Valid: true}
			row.KVAh = sql.NullFloat64{Float64: rec.Energy.KVAh, Valid: true}
			if rec.Export != nil {
				row.ExportKWh = sql.NullFloat64{Float64: rec.Export.KWh, Valid: true}
			}
		}
	}
	return row, nil
}

func (s *Store) InsertReading(r *types.Reading) error {
	row, err := ToRow(r)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		"INSERT INTO readings "+
			"(id, timestamp, variant, valid, raw, raw_crc, faults, meter_id, record_valid, kwh, kvah, export_kwh, record_json) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		row.ID,
		row.Timestamp,
		row.Variant,
		row.Valid,
		row.Raw,
		row.RawCRC,
		row.Faults,
		row.MeterID,
		row.RecordValid,
		row.KWh,
		row.KVAh,
		row.ExportKWh,
		row.RecordJSON,
	)
	return err
}

const readingColumns = "id, timestamp, variant, valid, raw, raw_crc, faults, meter_id, record_valid, kwh, kvah, export_kwh, record_json"

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (*ReadingRow, error) {
	var row ReadingRow
	err := sc.Scan(
		&row.ID,
		&row.Timestamp,
		&row.Variant,
		&row.Valid,
		&row.Raw,
		&row.RawCRC,
		&row.Faults,
		&row.MeterID,
		&row.RecordValid,
		&row.KWh,
		&row.KVAh,
		&row.ExportKWh,
		&row.RecordJSON,
	)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ToReading rebuilds the reading envelope, verifying the capture checksum.
func (row *ReadingRow) ToReading() (*types.Reading, error) {
	if Checksum(row.Raw) != row.RawCRC {
		return nil, fmt.Errorf("%w: reading %s", ErrChecksumMismatch, row.ID)
	}
	variant, err := types.ParseMeterVariant(row.Variant)
	if err != nil {
		return nil, err
	}

	capture := types.NewRawCapture(variant, row.Valid, row.Raw, nil)
	r := types.NewReading(capture, nil, time.Unix(row.Timestamp, 0))
	r.ID = row.ID
	if err := json.Unmarshal([]byte(row.Faults), &r.Faults); err != nil {
		return nil, fmt.Errorf("decode faults: %w", err)
	}
	if len(r.Faults) == 0 {
		r.Faults = nil
	}
	if row.RecordJSON.Valid {
		var rec types.ParsedRecord
		if err := json.Unmarshal([]byte(row.RecordJSON.String), &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		r.Record = &rec
	}
	return r, nil
}

func (s *Store) GetReading(id string) (*types.Reading, error) {
	row, err := scanRow(s.db.QueryRow("SELECT "+readingColumns+" FROM readings WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return row.ToReading()
}

// LatestReadings returns up to limit readings, newest first.
func (s *Store) LatestReadings(limit int) ([]*types.Reading, error) {
	rows, err := s.db.Query("SELECT "+readingColumns+" FROM readings ORDER BY timestamp DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.Reading
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		r, err := row.ToReading()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LastStandings returns, per meter, the registers of its newest decoded reading
// in [from, to] together with the number of decoded readings in that window.
func (s *Store) LastStandings(from, to int64) ([]DailyEnergySnapshot, error) {
	query := `
		SELECT r.meter_id, r.kwh, r.kvah, r.export_kwh, c.cnt
		FROM readings r
		JOIN (
			SELECT meter_id, MAX(timestamp) AS ts, COUNT(*) AS cnt
			FROM readings
			WHERE record_valid = 1 AND meter_id != '' AND timestamp >= ? AND timestamp <= ?
			GROUP BY meter_id
		) c ON r.meter_id = c.meter_id AND r.timestamp = c.ts
		WHERE r.record_valid = 1
		GROUP BY r.meter_id
		ORDER BY r.meter_id
	`

	rows, err := s.db.Query(query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyEnergySnapshot
	for rows.Next() {
		var snap DailyEnergySnapshot
		if err := rows.Scan(&snap.MeterID, &snap.KWhStanding, &snap.KVAhStanding, &snap.ExportKWhStanding, &snap.SampleCount); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *Store) UpsertDailySnapshot(snap DailyEnergySnapshot) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO daily_energy_snapshots "+
			"(day_start, meter_id, kwh_standing, kvah_standing, export_kwh_standing, sample_count) "+
			"VALUES (?, ?, ?, ?, ?, ?)",
		snap.DayStart,
		snap.MeterID,
		snap.KWhStanding,
		snap.KVAhStanding,
		snap.ExportKWhStanding,
		snap.SampleCount,
	)
	return err
}

// DailySnapshots returns a meter's snapshots for days in [fromDay, toDay], oldest first.
func (s *Store) DailySnapshots(meterID string, fromDay, toDay int64) ([]DailyEnergySnapshot, error) {
	rows, err := s.db.Query(`
		SELECT day_start, meter_id, kwh_standing, kvah_standing, export_kwh_standing, sample_count
		FROM daily_energy_snapshots
		WHERE meter_id = ? AND day_start >= ? AND day_start <= ?
		ORDER BY day_start
	`, meterID, fromDay, toDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyEnergySnapshot
	for rows.Next() {
		var snap DailyEnergySnapshot
		if err := rows.Scan(&snap.DayStart, &snap.MeterID, &snap.KWhStanding, &snap.KVAhStanding, &snap.ExportKWhStanding, &snap.SampleCount); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// LastSnapshotDay returns the newest snapshot day, or false when there is none.
func (s *Store) LastSnapshotDay() (int64, bool, error) {
	var day sql.NullInt64
	if err := s.db.QueryRow("SELECT MAX(day_start) FROM daily_energy_snapshots").Scan(&day); err != nil {
		return 0, false, err
	}
	return day.Int64, day.Valid, nil
}

func (s *Store) DeleteReadingsBefore(cutoff int64) (int64, error) {
	res, err := s.db.Exec("DELETE FROM readings WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
