package trigger

// DigitalReader reads one GPIO line. gobot's raspi adaptor satisfies
// this.
type DigitalReader interface {
	DigitalRead(pin string) (int, error)
}

// GPIOSampler returns a press sampler for an active-low input with an
// idle pull-up: the button reads pressed while the line is low. A read
// error reads as not pressed, so a wiring fault can never hold the
// boot hostage.
func GPIOSampler(r DigitalReader, pin string) func() bool {
	return func() bool {
		v, err := r.DigitalRead(pin)
		return err == nil && v == 0
	}
}
