package config

// LogConfig is shared by both binaries.
type LogConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`
}

type CaptureCollectorConfig struct {
	ReaderAPIHost   string `toml:"reader_api_host"`
	TLSEnabled      bool   `toml:"tls_enabled"`
	RetentionMonths int    `toml:"retention_months"`
	// Serves stored readings and consumption. Port 0 disables the history API.
	HistoryListenAddress string `toml:"history_listen_address"`
	HistoryListenPort    int    `toml:"history_listen_port"`
	LogConfig
}

type ReaderAPIConfig struct {
	OpticalDevice  string `toml:"optical_device"`
	InfraredDevice string `toml:"infrared_device"`
	// jacobsa or goburrow
	SerialDriver string `toml:"serial_driver"`
	FrameFormat  string `toml:"frame_format"`
	// Sysfs value file of the optical front-end enable pin. Empty disables switching.
	OpticalEnableGPIO      string `toml:"optical_enable_gpio"`
	OpticalEnableActiveLow bool   `toml:"optical_enable_active_low"`
	ListenAddress          string `toml:"listen_address"`
	ListenPort             int    `toml:"listen_port"`
	// host:port of a Modbus TCP server. Empty disables publishing.
	ModbusExportEndpoint    string `toml:"modbus_export_endpoint"`
	ModbusExportUnitID      uint8  `toml:"modbus_export_unit_id"`
	ModbusExportBaseAddress uint16 `toml:"modbus_export_base_address"`
	LogConfig
}
