package pathing

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDirs creates the config and data directories if they are missing.
func EnsureDirs() error {
	dirs := []string{
		GetConfigDir(),
		GetDataDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func GetCaptureDbPath() string {
	return filepath.Join(GetDataDir(), "captures.db")
}

func GetDataDir() string {
	return envOr("OPTICAL_METER_DATA_DIR", "/var/lib/optical_meter_reader")
}

func GetConfigDir() string {
	return envOr("OPTICAL_METER_CONFIG_DIR", "/etc/optical_meter_reader")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
