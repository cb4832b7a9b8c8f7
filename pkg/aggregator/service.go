package aggregator

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NotCoffee418/optical_meter_reader/pkg/capturedb"
)

// roundToDayStart returns the Unix timestamp of the start of the UTC day of t
func roundToDayStart(t time.Time) int64 {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix()
}

// getDayEnd returns the Unix timestamp of the last second of the day (next day start - 1)
func getDayEnd(dayStart int64) int64 {
	return time.Unix(dayStart, 0).UTC().AddDate(0, 0, 1).Unix() - 1
}

// snapshotDailyEnergy stores the last register standing of every meter read on the given day.
func snapshotDailyEnergy(store *capturedb.Store, dayStart int64) (int, error) {
	standings, err := store.LastStandings(dayStart, getDayEnd(dayStart))
	if err != nil {
		return 0, fmt.Errorf("query standings: %w", err)
	}

	for _, snap := range standings {
		snap.DayStart = dayStart
		if err := store.UpsertDailySnapshot(snap); err != nil {
			return 0, fmt.Errorf("store snapshot for %s: %w", snap.MeterID, err)
		}
	}
	return len(standings), nil
}

// cleanupOldData removes readings older than the retention window once a
// snapshot exists at or beyond the cutoff.
func cleanupOldData(store *capturedb.Store, now time.Time, retentionMonths int) (int64, error) {
	cutoff := now.UTC().AddDate(0, -retentionMonths, 0).Unix()

	lastDay, ok, err := store.LastSnapshotDay()
	if err != nil {
		return 0, err
	}
	if !ok || lastDay < cutoff {
		return 0, nil
	}
	return store.DeleteReadingsBefore(cutoff)
}

// AggregateAndCleanup snapshots the current and the previous day, then prunes
// readings older than retentionMonths.
func AggregateAndCleanup(store *capturedb.Store, now time.Time, retentionMonths int, log logrus.FieldLogger) error {
	days := []int64{
		roundToDayStart(now.AddDate(0, 0, -1)),
		roundToDayStart(now),
	}

	for _, day := range days {
		n, err := snapshotDailyEnergy(store, day)
		if err != nil {
			log.WithError(err).Error("Error creating daily energy snapshot")
			return err
		}
		log.WithFields(logrus.Fields{
			"day":    time.Unix(day, 0).UTC().Format(time.DateOnly),
			"meters": n,
		}).Debug("Daily energy snapshot updated")
	}

	deleted, err := cleanupOldData(store, now, retentionMonths)
	if err != nil {
		log.WithError(err).Error("Error cleaning up old data")
		return err
	}
	if deleted > 0 {
		log.WithField("rows", deleted).Info("Cleaned up old readings")
	}
	return nil
}

// Consumption returns the energy used by a meter between the snapshots of two days.
func Consumption(store *capturedb.Store, meterID string, from, to time.Time) (*DailyConsumption, error) {
	fromDay, toDay := roundToDayStart(from), roundToDayStart(to)
	snaps, err := store.DailySnapshots(meterID, fromDay, toDay)
	if err != nil {
		return nil, err
	}
	if len(snaps) < 2 {
		return nil, fmt.Errorf("%w: %s has %d snapshots between %s and %s",
			ErrNotEnoughSnapshots, meterID, len(snaps),
			from.UTC().Format(time.DateOnly), to.UTC().Format(time.DateOnly))
	}

	first, last := snaps[0], snaps[len(snaps)-1]
	c := &DailyConsumption{
		MeterID:  meterID,
		FromDay:  first.DayStart,
		ToDay:    last.DayStart,
		KWh:      last.KWhStanding - first.KWhStanding,
		KVAh:     last.KVAhStanding - first.KVAhStanding,
		Days:     len(snaps),
		Complete: len(snaps) == int((toDay-fromDay)/86400)+1,
	}
	if first.ExportKWhStanding.Valid && last.ExportKWhStanding.Valid {
		c.ExportKWh = last.ExportKWhStanding.Float64 - first.ExportKWhStanding.Float64
	}
	return c, nil
}
