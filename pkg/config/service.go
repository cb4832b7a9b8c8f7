package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/NotCoffee418/optical_meter_reader/pkg/channel"
	"github.com/NotCoffee418/optical_meter_reader/pkg/pathing"
)

var ErrInvalidConfig = errors.New("invalid config")

var (
	ActiveReaderAPIConfig        *ReaderAPIConfig
	ActiveCaptureCollectorConfig *CaptureCollectorConfig
)

func DefaultReaderAPIConfig() *ReaderAPIConfig {
	return &ReaderAPIConfig{
		OpticalDevice:           "/dev/ttyUSB0",
		InfraredDevice:          "/dev/ttyUSB1",
		SerialDriver:            string(channel.DriverJacobsa),
		FrameFormat:             channel.Frame8N1.String(),
		ListenAddress:           "0.0.0.0",
		ListenPort:              9040,
		ModbusExportUnitID:      1,
		ModbusExportBaseAddress: 0,
		LogConfig:               LogConfig{LogLevel: "info", LogFormat: "text"},
	}
}

func DefaultCaptureCollectorConfig() *CaptureCollectorConfig {
	return &CaptureCollectorConfig{
		ReaderAPIHost:        "localhost:9040",
		TLSEnabled:           false,
		RetentionMonths:      3,
		HistoryListenAddress: "0.0.0.0",
		HistoryListenPort:    9041,
		LogConfig:            LogConfig{LogLevel: "info", LogFormat: "text"},
	}
}

func LoadReaderAPIConfig() error {
	cfg, err := loadOrCreate(filepath.Join(pathing.GetConfigDir(), "reader_api.toml"), DefaultReaderAPIConfig())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ActiveReaderAPIConfig = cfg
	return nil
}

func LoadCaptureCollectorConfig() error {
	cfg, err := loadOrCreate(filepath.Join(pathing.GetConfigDir(), "capture_collector.toml"), DefaultCaptureCollectorConfig())
	if err != nil {
		return err
	}
	if cfg.RetentionMonths < 1 {
		return fmt.Errorf("%w: retention_months must be at least 1", ErrInvalidConfig)
	}
	if cfg.HistoryListenPort < 0 || cfg.HistoryListenPort > 65535 {
		return fmt.Errorf("%w: history_listen_port %d", ErrInvalidConfig, cfg.HistoryListenPort)
	}
	ActiveCaptureCollectorConfig = cfg
	return nil
}

// Validate checks the settings that would otherwise only fail on the first read.
func (c *ReaderAPIConfig) Validate() error {
	switch channel.Driver(c.SerialDriver) {
	case channel.DriverJacobsa, channel.DriverGoburrow:
	default:
		return fmt.Errorf("%w: serial_driver %q", ErrInvalidConfig, c.SerialDriver)
	}
	if _, err := channel.ParseFrameFormat(c.FrameFormat); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("%w: listen_port %d", ErrInvalidConfig, c.ListenPort)
	}
	if c.OpticalDevice == "" && c.InfraredDevice == "" {
		return fmt.Errorf("%w: no serial device configured", ErrInvalidConfig)
	}
	return nil
}

// Frame returns the parsed frame_format. Call Validate first.
func (c *ReaderAPIConfig) Frame() channel.FrameFormat {
	f, err := channel.ParseFrameFormat(c.FrameFormat)
	if err != nil {
		return channel.Frame8N1
	}
	return f
}

// loadOrCreate decodes the file at path into defaults, writing defaults to the
// file first when it does not exist.
func loadOrCreate[T any](path string, defaults *T) (*T, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfgFile, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		defer cfgFile.Close()
		if err := toml.NewEncoder(cfgFile).Encode(defaults); err != nil {
			return nil, fmt.Errorf("write default config %s: %w", path, err)
		}
		return defaults, nil
	}

	if _, err := toml.DecodeFile(path, defaults); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return defaults, nil
}
