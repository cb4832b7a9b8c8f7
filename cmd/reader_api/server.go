package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/NotCoffee418/optical_meter_reader/pkg/decoder"
	"github.com/NotCoffee418/optical_meter_reader/pkg/engine"
	"github.com/NotCoffee418/optical_meter_reader/pkg/metrics"
	"github.com/NotCoffee418/optical_meter_reader/pkg/types"
)

type meterEngine interface {
	Read(variant types.MeterVariant) (types.RawCapture, error)
	Diagnose(id engine.ChannelID) (bool, error)
}

type recordPublisher interface {
	Publish(rec types.ParsedRecord) error
}

type server struct {
	engine    meterEngine
	publisher recordPublisher
	metrics   *metrics.ExchangeMetrics
	log       logrus.FieldLogger
	hub       *wsHub
	now       func() time.Time

	// Held for the whole of a read or diagnostic. The serial channels carry one
	// exchange at a time.
	channelMu sync.Mutex

	latestMu sync.RWMutex
	latest   *types.Reading
}

func newServer(e meterEngine, publisher recordPublisher, m *metrics.ExchangeMetrics, log logrus.FieldLogger) *server {
	return &server{
		engine:    e,
		publisher: publisher,
		metrics:   m,
		log:       log,
		hub:       newWsHub(log),
		now:       time.Now,
	}
}

func (s *server) routes(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleStatus)
	mux.HandleFunc("GET /variants", s.handleVariants)
	mux.HandleFunc("GET /read/{variant}", s.handleRead)
	mux.HandleFunc("GET /latest", s.handleLatest)
	mux.HandleFunc("GET /diagnostics", s.handleDiagnostics)
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		s.hub.serve(w, r, s.latestReading())
	})
	if reg != nil {
		mux.Handle("GET /metrics", metrics.Handler(reg))
	}
	return mux
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "running",
		"websocket_clients": s.hub.count(),
	})
}

func (s *server) handleVariants(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(types.AllVariants()))
	for _, v := range types.AllVariants() {
		names = append(names, v.String())
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *server) handleLatest(w http.ResponseWriter, r *http.Request) {
	latest := s.latestReading()
	if latest == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no reading yet"})
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

// handleRead runs one exchange. parse=false skips decoding, format=text
// returns the hex dump and record summary instead of JSON.
func (s *server) handleRead(w http.ResponseWriter, r *http.Request) {
	variant, err := types.ParseMeterVariant(r.PathValue("variant"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported meter variant"})
		return
	}

	parse := true
	if q := r.URL.Query().Get("parse"); q != "" {
		parse, err = strconv.ParseBool(q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "parse must be true or false"})
			return
		}
	}
	asText := r.URL.Query().Get("format") == "text"

	s.channelMu.Lock()
	capture, err := s.engine.Read(variant)
	s.channelMu.Unlock()
	if err != nil {
		s.log.WithError(err).WithField("variant", variant.String()).Warn("Read rejected")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported meter variant"})
		return
	}

	var record *types.ParsedRecord
	status, failure := http.StatusOK, ""
	switch {
	case !capture.Valid:
		status, failure = http.StatusBadGateway, "read failed"
	case parse:
		rec, err := decoder.Decode(capture)
		s.metrics.ObserveDecode(variant.String(), err == nil)
		if err != nil {
			s.log.WithError(err).WithField("variant", variant.String()).Warn("Decode failed")
			status, failure = http.StatusUnprocessableEntity, "parse failed"
			break
		}
		record = &rec
		s.publish(rec)
	}

	reading := types.NewReading(capture, record, s.now())
	s.setLatest(reading)
	s.hub.broadcast(reading)

	if asText {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprint(w, renderText(capture, record, failure))
		return
	}
	if failure != "" {
		writeJSON(w, status, map[string]any{"error": failure, "reading": reading})
		return
	}
	writeJSON(w, status, reading)
}

func (s *server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	s.channelMu.Lock()
	defer s.channelMu.Unlock()

	result := make(map[string]string, 2)
	for _, id := range []engine.ChannelID{engine.ChannelOptical, engine.ChannelInfrared} {
		ok, err := s.engine.Diagnose(id)
		if err != nil && !errors.Is(err, engine.ErrUnknownChannel) {
			s.log.WithError(err).WithField("channel", id.String()).Error("Diagnostic error")
		}
		if ok {
			result[id.String()] = "PASS"
		} else {
			result[id.String()] = "FAIL"
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) publish(rec types.ParsedRecord) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(rec)
	s.metrics.ObservePublish("modbus", err == nil)
	if err != nil {
		s.log.WithError(err).Warn("Failed to publish record")
	}
}

func (s *server) setLatest(r *types.Reading) {
	s.latestMu.Lock()
	s.latest = r
	s.latestMu.Unlock()
}

func (s *server) latestReading() *types.Reading {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	return s.latest
}

func renderText(capture types.RawCapture, record *types.ParsedRecord, failure string) string {
	var sb strings.Builder
	if failure != "" {
		sb.WriteString(failure + "\n\n")
	}
	fmt.Fprintf(&sb, "%s: %d bytes\n", capture.Variant, capture.Length())
	if dump := capture.HexDump(); dump != "" {
		sb.WriteString(dump + "\n\n")
		sb.WriteString(capture.Printable() + "\n")
	}
	if record != nil {
		sb.WriteString("\n" + record.Summary() + "\n")
	}
	return sb.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
