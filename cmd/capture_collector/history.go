package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NotCoffee418/optical_meter_reader/pkg/aggregator"
	"github.com/NotCoffee418/optical_meter_reader/pkg/capturedb"
	"github.com/NotCoffee418/optical_meter_reader/pkg/types"
)

const (
	defaultReadingsLimit = 50
	maxReadingsLimit     = 1000
)

// historyServer exposes the stored readings and daily consumption.
type historyServer struct {
	store *capturedb.Store
	log   logrus.FieldLogger
	now   func() time.Time
}

func newHistoryServer(store *capturedb.Store, log logrus.FieldLogger) *historyServer {
	return &historyServer{store: store, log: log, now: time.Now}
}

func (h *historyServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /readings", h.handleReadings)
	mux.HandleFunc("GET /readings/{id}", h.handleReading)
	mux.HandleFunc("GET /consumption/{meter}", h.handleConsumption)
	return mux
}

func (h *historyServer) handleReadings(w http.ResponseWriter, r *http.Request) {
	limit := defaultReadingsLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive number"})
			return
		}
		limit = min(n, maxReadingsLimit)
	}

	readings, err := h.store.LatestReadings(limit)
	if err != nil {
		h.log.WithError(err).Error("Failed to load readings")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load readings"})
		return
	}
	if readings == nil {
		readings = []*types.Reading{}
	}
	writeJSON(w, http.StatusOK, readings)
}

func (h *historyServer) handleReading(w http.ResponseWriter, r *http.Request) {
	reading, err := h.store.GetReading(r.PathValue("id"))
	switch {
	case errors.Is(err, capturedb.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reading not found"})
	case errors.Is(err, capturedb.ErrChecksumMismatch):
		h.log.WithError(err).Error("Stored reading is corrupt")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stored reading is corrupt"})
	case err != nil:
		h.log.WithError(err).Error("Failed to load reading")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load reading"})
	default:
		writeJSON(w, http.StatusOK, reading)
	}
}

// handleConsumption reports usage between two UTC days given as from/to
// (YYYY-MM-DD). to defaults to today, from to the day before to.
func (h *historyServer) handleConsumption(w http.ResponseWriter, r *http.Request) {
	to := h.now().UTC()
	if q := r.URL.Query().Get("to"); q != "" {
		parsed, err := time.Parse(time.DateOnly, q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to must be YYYY-MM-DD"})
			return
		}
		to = parsed
	}
	from := to.AddDate(0, 0, -1)
	if q := r.URL.Query().Get("from"); q != "" {
		parsed, err := time.Parse(time.DateOnly, q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from must be YYYY-MM-DD"})
			return
		}
		from = parsed
	}
	if from.After(to) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from is after to"})
		return
	}

	c, err := aggregator.Consumption(h.store, r.PathValue("meter"), from, to)
	switch {
	case errors.Is(err, aggregator.ErrNotEnoughSnapshots):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not enough snapshots in range"})
	case err != nil:
		h.log.WithError(err).Error("Failed to compute consumption")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to compute consumption"})
	default:
		writeJSON(w, http.StatusOK, c)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
