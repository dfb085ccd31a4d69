package sensors

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const w1Devices = "/sys/bus/w1/devices"

// DS18B20 reads one one-wire temperature probe through the kernel w1
// subsystem.
type DS18B20 struct {
	id      string
	baseDir string
}

// NewDS18B20 creates a reader for the probe with the given one-wire
// id (e.g. "28-0316a279c6ff").
func NewDS18B20(id string) *DS18B20 {
	return &DS18B20{id: id, baseDir: w1Devices}
}

// NewDS18B20WithDir creates a reader rooted at a custom w1 directory
// (for testing).
func NewDS18B20WithDir(id, baseDir string) *DS18B20 {
	return &DS18B20{id: id, baseDir: baseDir}
}

// DiscoverDS18B20 lists the probes currently on the bus.
func DiscoverDS18B20() []string {
	return discoverDS18B20(w1Devices)
}

func discoverDS18B20(baseDir string) []string {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil
	}

	var ids []string
	for _, e := range entries {
		// Family code 28 is the DS18B20.
		if strings.HasPrefix(e.Name(), "28-") {
			ids = append(ids, e.Name())
		}
	}
	return ids
}

// Name implements Reader.
func (d *DS18B20) Name() string { return "ds18b20_" + strings.TrimPrefix(d.id, "28-") }

// Unit implements Reader.
func (d *DS18B20) Unit() string { return "°C" }

// Read implements Reader. The w1_slave file carries two lines:
// a CRC status line ending in YES/NO and a payload line with t=<milli °C>.
func (d *DS18B20) Read() (float64, error) {
	data, err := os.ReadFile(filepath.Join(d.baseDir, d.id, "w1_slave"))
	if err != nil {
		return 0, fmt.Errorf("failed to read probe %s: %w", d.id, err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("probe %s: truncated w1_slave output", d.id)
	}

	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, fmt.Errorf("probe %s: CRC check failed", d.id)
	}

	idx := strings.LastIndex(lines[1], "t=")
	if idx < 0 {
		return 0, fmt.Errorf("probe %s: no temperature in w1_slave output", d.id)
	}

	milli, err := strconv.Atoi(strings.TrimSpace(lines[1][idx+2:]))
	if err != nil {
		return 0, fmt.Errorf("probe %s: malformed temperature: %w", d.id, err)
	}

	return float64(milli) / 1000.0, nil
}
