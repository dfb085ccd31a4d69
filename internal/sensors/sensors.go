// Package sensors provides the readers the bridge publishes: CPU
// temperature, DS18B20 one-wire probes, and ADS1115-backed current
// channels.
package sensors

// Reading is one published measurement.
type Reading struct {
	Sensor string
	Value  float64
	Unit   string
}

// Reader is a single sensor channel. Read failures are per-cycle:
// the bridge logs them and keeps polling.
type Reader interface {
	// Name is the unique sensor id used in topics and discovery.
	Name() string
	// Unit is the unit of measurement reported to discovery.
	Unit() string
	// Read samples the sensor.
	Read() (float64, error)
}
