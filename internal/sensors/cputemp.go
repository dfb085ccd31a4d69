package sensors

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const defaultThermalZone = "/sys/class/thermal/thermal_zone0/temp"

// CPUTemp reads the SoC temperature from the kernel thermal zone,
// reported in millidegrees Celsius.
type CPUTemp struct {
	path string
}

// NewCPUTemp creates a CPU temperature reader. An empty path uses
// thermal_zone0.
func NewCPUTemp(path string) *CPUTemp {
	if path == "" {
		path = defaultThermalZone
	}
	return &CPUTemp{path: path}
}

// Name implements Reader.
func (c *CPUTemp) Name() string { return "cpu_temp" }

// Unit implements Reader.
func (c *CPUTemp) Unit() string { return "°C" }

// Read implements Reader.
func (c *CPUTemp) Read() (float64, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return 0, fmt.Errorf("failed to read thermal zone: %w", err)
	}

	milli, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed thermal zone value: %w", err)
	}

	return float64(milli) / 1000.0, nil
}
