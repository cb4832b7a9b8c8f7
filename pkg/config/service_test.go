package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NotCoffee418/optical_meter_reader/pkg/channel"
)

func TestLoadReaderAPIConfigWritesDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OPTICAL_METER_CONFIG_DIR", dir)

	require.NoError(t, LoadReaderAPIConfig())
	assert.Equal(t, DefaultReaderAPIConfig(), ActiveReaderAPIConfig)

	b, err := os.ReadFile(filepath.Join(dir, "reader_api.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `serial_driver = "jacobsa"`)
	assert.Contains(t, string(b), `frame_format = "8N1"`)
}

func TestLoadReaderAPIConfigKeepsUnsetDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OPTICAL_METER_CONFIG_DIR", dir)
	content := "optical_device = \"/dev/ttyAMA0\"\nserial_driver = \"goburrow\"\nlog_level = \"debug\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reader_api.toml"), []byte(content), 0o644))

	require.NoError(t, LoadReaderAPIConfig())
	cfg := ActiveReaderAPIConfig
	assert.Equal(t, "/dev/ttyAMA0", cfg.OpticalDevice)
	assert.Equal(t, "goburrow", cfg.SerialDriver)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9040, cfg.ListenPort)
	assert.Equal(t, channel.Frame8N1, cfg.Frame())
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := map[string]func(c *ReaderAPIConfig){
		"driver": func(c *ReaderAPIConfig) { c.SerialDriver = "bitbang" },
		"frame":  func(c *ReaderAPIConfig) { c.FrameFormat = "9Z9" },
		"port":   func(c *ReaderAPIConfig) { c.ListenPort = 70000 },
		"device": func(c *ReaderAPIConfig) { c.OpticalDevice, c.InfraredDevice = "", "" },
	}
	for name, mutate := range cases {
		cfg := DefaultReaderAPIConfig()
		mutate(cfg)
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig, name)
	}
	assert.NoError(t, DefaultReaderAPIConfig().Validate())
}

func TestLoadCaptureCollectorConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OPTICAL_METER_CONFIG_DIR", dir)

	require.NoError(t, LoadCaptureCollectorConfig())
	assert.Equal(t, 3, ActiveCaptureCollectorConfig.RetentionMonths)
	assert.Equal(t, 9041, ActiveCaptureCollectorConfig.HistoryListenPort)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "capture_collector.toml"), []byte("retention_months = 0\n"), 0o644))
	assert.ErrorIs(t, LoadCaptureCollectorConfig(), ErrInvalidConfig)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "capture_collector.toml"), []byte("history_listen_port = 70000\n"), 0o644))
	assert.ErrorIs(t, LoadCaptureCollectorConfig(), ErrInvalidConfig)
}
