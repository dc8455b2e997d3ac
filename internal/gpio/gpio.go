// Package gpio provides the hardware abstraction for the sign: a digital
// output line, the reset button, and a PWM channel. The real implementations
// use the Linux GPIO character device and host PWM; the fakes allow testing
// without hardware.
package gpio

// DefaultChip is the GPIO character device used unless configured otherwise.
const DefaultChip = "gpiochip0"

// Output drives a single digital line. Set is in raw physical terms; the
// actuator driver applies polarity.
type Output interface {
	// Set drives the line high (true) or low (false).
	Set(high bool) error

	// Close releases the line.
	Close() error
}

// Button reads the reset control. The real implementation requests the line
// with a pull-up and inverts it, so Pressed returns true when the button
// pulls the line low.
type Button interface {
	Pressed() (bool, error)
	Close() error
}

// PWM is a single hardware PWM channel. It is a singleton resource: Attach
// while already attached is an error, so callers must Detach first when
// moving to another pin. The actuator driver owns that discipline.
type PWM interface {
	// Attach binds the channel to a pin. Returns an error if already bound.
	Attach(pin int) error

	// Attached reports whether the channel is bound, and to which pin.
	Attached() (bool, int)

	// SetDuty drives the bound pin at duty out of MaxDuty.
	SetDuty(duty uint32) error

	// MaxDuty is the full-scale duty value.
	MaxDuty() uint32

	// Detach releases the pin. Detaching an unbound channel is a no-op.
	Detach() error
}
