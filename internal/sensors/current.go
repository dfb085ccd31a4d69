package sensors

import (
	"fmt"
)

// Voltmeter is the slice of gobot's ADS1x15 driver the current
// channels consume.
type Voltmeter interface {
	ReadWithDefaults(channel int) (float64, error)
}

// Current converts one ADS1115 input channel to amperes through a
// hall-effect sensor's sensitivity and zero-current voltage.
type Current struct {
	adc         Voltmeter
	channel     int
	sensitivity float64 // V/A
	zeroPoint   float64 // V at zero current
}

// NewCurrent creates a current reader on the given ADC channel.
func NewCurrent(adc Voltmeter, channel int, sensitivity, zeroPoint float64) *Current {
	return &Current{
		adc:         adc,
		channel:     channel,
		sensitivity: sensitivity,
		zeroPoint:   zeroPoint,
	}
}

// NewCurrentChannels creates readers for channels 0..n-1 on one ADC.
func NewCurrentChannels(adc Voltmeter, n int, sensitivity, zeroPoint float64) []Reader {
	readers := make([]Reader, 0, n)
	for ch := 0; ch < n; ch++ {
		readers = append(readers, NewCurrent(adc, ch, sensitivity, zeroPoint))
	}
	return readers
}

// Name implements Reader.
func (c *Current) Name() string { return fmt.Sprintf("current_%d", c.channel+1) }

// Unit implements Reader.
func (c *Current) Unit() string { return "A" }

// Read implements Reader.
func (c *Current) Read() (float64, error) {
	volts, err := c.adc.ReadWithDefaults(c.channel)
	if err != nil {
		return 0, fmt.Errorf("failed to read ADC channel %d: %w", c.channel, err)
	}
	return (volts - c.zeroPoint) / c.sensitivity, nil
}
