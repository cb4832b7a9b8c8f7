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

	"github.com/NotCoffee418/optical_meter_reader/pkg/channel"
	"github.com/NotCoffee418/optical_meter_reader/pkg/config"
	"github.com/NotCoffee418/optical_meter_reader/pkg/engine"
	"github.com/NotCoffee418/optical_meter_reader/pkg/logging"
	"github.com/NotCoffee418/optical_meter_reader/pkg/metrics"
	"github.com/NotCoffee418/optical_meter_reader/pkg/modbusexport"
	"github.com/NotCoffee418/optical_meter_reader/pkg/pathing"
)

func main() {
	if err := pathing.EnsureDirs(); err != nil {
		logrus.Fatalf("Failed to create directories: %v", err)
	}
	if err := config.LoadReaderAPIConfig(); err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.ActiveReaderAPIConfig

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		logrus.Fatalf("Failed to set up logging: %v", err)
	}

	optical, err := openChannel(cfg.OpticalDevice, cfg, log)
	if err != nil {
		log.Fatalf("Failed to set up optical channel: %v", err)
	}
	infrared, err := openChannel(cfg.InfraredDevice, cfg, log)
	if err != nil {
		log.Fatalf("Failed to set up infrared channel: %v", err)
	}

	var frontEnd channel.FrontEnd = channel.NopFrontEnd{}
	if cfg.OpticalEnableGPIO != "" {
		frontEnd = channel.NewGPIOFrontEnd(cfg.OpticalEnableGPIO, cfg.OpticalEnableActiveLow)
		if err := frontEnd.Enable(); err != nil {
			log.WithError(err).Warn("Failed to enable optical front end")
		}
	}

	reg := metrics.NewRegistry()
	exchangeMetrics := metrics.NewExchangeMetrics(reg)

	meterEngine := engine.New(optical, infrared, engine.Options{
		FrontEnd: frontEnd,
		Logger:   log,
		Metrics:  exchangeMetrics,
		Frame:    cfg.Frame(),
	})

	var publisher recordPublisher
	if cfg.ModbusExportEndpoint != "" {
		exporter, err := modbusexport.New(modbusexport.Config{
			Endpoint:    cfg.ModbusExportEndpoint,
			UnitID:      cfg.ModbusExportUnitID,
			BaseAddress: cfg.ModbusExportBaseAddress,
		}, log)
		if err != nil {
			log.WithError(err).Warn("Modbus export disabled")
		} else {
			defer exporter.Close()
			publisher = exporter
		}
	}

	srv := newServer(meterEngine, publisher, exchangeMetrics, log)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort),
		Handler: srv.routes(reg),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Infof("Starting reader API on %s", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}

	for _, ch := range []channel.Channel{optical, infrared} {
		if ch != nil {
			ch.Close()
		}
	}
	log.Info("Reader API stopped")
}

// openChannel returns a nil interface when no device is configured so the
// engine reports the channel as unavailable.
func openChannel(device string, cfg *config.ReaderAPIConfig, log logrus.FieldLogger) (channel.Channel, error) {
	if device == "" {
		return nil, nil
	}
	return channel.NewSerialChannel(device, channel.Driver(cfg.SerialDriver), log)
}
