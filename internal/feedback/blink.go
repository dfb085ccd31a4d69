// Package feedback signals update progress on the status LED. The
// patterns are cosmetic, not contractual: every caller works the same
// with the no-op blinker.
package feedback

import (
	"time"
)

// DefaultStep is the per-character duration of a pattern.
const DefaultStep = 150 * time.Millisecond

// LED is the slice of gobot's LED driver the blinker consumes.
type LED interface {
	On() error
	Off() error
}

// Blinker plays "0"/"1" pattern strings on an LED, one step per
// character, and leaves the LED off.
type Blinker struct {
	led   LED
	step  time.Duration
	sleep func(time.Duration)
}

// NewBlinker creates a blinker with the default step duration.
func NewBlinker(led LED) *Blinker {
	return &Blinker{led: led, step: DefaultStep, sleep: time.Sleep}
}

// Pattern plays one pattern string. Characters other than '1' switch
// the LED off for the step.
func (b *Blinker) Pattern(p string) {
	for _, c := range p {
		if c == '1' {
			_ = b.led.On()
		} else {
			_ = b.led.Off()
		}
		b.sleep(b.step)
	}
	_ = b.led.Off()
}

// Noop returns a pattern sink for headless runs.
func Noop() func(string) {
	return func(string) {}
}

// NoopLED is an LED that goes nowhere, for devices with no status LED
// wired.
type NoopLED struct{}

func (NoopLED) On() error  { return nil }
func (NoopLED) Off() error { return nil }
