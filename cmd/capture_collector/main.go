package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NotCoffee418/optical_meter_reader/pkg/aggregator"
	"github.com/NotCoffee418/optical_meter_reader/pkg/capturedb"
	"github.com/NotCoffee418/optical_meter_reader/pkg/config"
	"github.com/NotCoffee418/optical_meter_reader/pkg/interpreter"
	"github.com/NotCoffee418/optical_meter_reader/pkg/logging"
	"github.com/NotCoffee418/optical_meter_reader/pkg/pathing"
	"github.com/NotCoffee418/optical_meter_reader/pkg/types"
)

const aggregateInterval = time.Hour

func main() {
	if err := pathing.EnsureDirs(); err != nil {
		logrus.Fatalf("Failed to create directories: %v", err)
	}
	if err := config.LoadCaptureCollectorConfig(); err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.ActiveCaptureCollectorConfig

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		logrus.Fatalf("Failed to set up logging: %v", err)
	}

	store := capturedb.GetStore()
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runAggregator(ctx, store, cfg.RetentionMonths, log)
	if cfg.HistoryListenPort > 0 {
		go serveHistory(ctx, fmt.Sprintf("%s:%d", cfg.HistoryListenAddress, cfg.HistoryListenPort), store, log)
	}

	log.Infof("Collecting readings from %s", interpreter.ListenerURL(cfg.ReaderAPIHost, cfg.TLSEnabled))
	interpreter.StartListener(ctx, cfg.ReaderAPIHost, cfg.TLSEnabled, log, func(reading *types.Reading) {
		entry := log.WithFields(logrus.Fields{
			"id":      reading.ID,
			"variant": reading.Variant.String(),
			"valid":   reading.Valid,
		})
		if err := store.InsertReading(reading); err != nil {
			entry.WithError(err).Error("Failed to store reading")
			return
		}
		entry.Debug("Reading stored")
	})
	log.Info("Capture collector stopped")
}

// runAggregator snapshots daily energy once at start and then every aggregateInterval.
func runAggregator(ctx context.Context, store *capturedb.Store, retentionMonths int, log logrus.FieldLogger) {
	aggregator.AggregateAndCleanup(store, time.Now(), retentionMonths, log)

	ticker := time.NewTicker(aggregateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			aggregator.AggregateAndCleanup(store, now, retentionMonths, log)
		}
	}
}

// serveHistory runs the history API until ctx is cancelled.
func serveHistory(ctx context.Context, addr string, store *capturedb.Store, log logrus.FieldLogger) {
	srv := &http.Server{
		Addr:    addr,
		Handler: newHistoryServer(store, log).routes(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Infof("Serving history API on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("History API stopped")
	}
}
