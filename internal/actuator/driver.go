// Package actuator maps the sign's logical intensity percentage onto the
// physical drive signal: a binary GPIO level when no PWM channel is
// available, a PWM duty cycle otherwise. Polarity is applied at this edge so
// everything above it thinks in 0..100 "how lit is the sign" terms.
package actuator

import (
	"errors"
	"fmt"
	"math"

	"github.com/mveplus/onair-led-sign-firmware/internal/gpio"
)

// Config describes the physical binding of the driver. Exactly one of Out
// and PWM drives the pin: PWM is preferred when present, Out is the
// digital-only fallback.
type Config struct {
	Out gpio.Output
	PWM gpio.PWM

	// Pin is the output pin the PWM channel binds to.
	Pin int

	// ActiveHigh is false when the line sinks current (built-in LEDs,
	// typically), in which case on-levels are inverted before they reach
	// the hardware.
	ActiveHigh bool
}

// Driver owns the actuator pin. Not safe for concurrent use; the control
// loop is the single writer.
type Driver struct {
	out        gpio.Output
	pwm        gpio.PWM
	pin        int
	activeHigh bool
	level      int
}

var errNoDrive = errors.New("actuator has neither output line nor pwm channel")

// New creates a driver. PWM attachment is lazy: nothing touches the channel
// until the first intensity write.
func New(cfg Config) *Driver {
	return &Driver{
		out:        cfg.Out,
		pwm:        cfg.PWM,
		pin:        cfg.Pin,
		activeHigh: cfg.ActiveHigh,
	}
}

// SetIntensity drives the sign at pct (0..100, clamped). Digital-only
// hardware treats any non-zero intensity as full on.
func (d *Driver) SetIntensity(pct int) error {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	d.level = pct

	if d.pwm != nil {
		if err := d.ensureAttached(); err != nil {
			return err
		}
		return d.pwm.SetDuty(d.toDuty(pct))
	}

	if d.out == nil {
		return errNoDrive
	}
	on := pct > 0
	return d.out.Set(on == d.activeHigh)
}

// Feedback drives the sign fully on or off for reset-gesture feedback.
func (d *Driver) Feedback(on bool) error {
	if on {
		return d.SetIntensity(100)
	}
	return d.SetIntensity(0)
}

// Level reports the last logical intensity written.
func (d *Driver) Level() int {
	return d.level
}

// SetPin retargets the driver to a new output pin. The PWM channel is a
// singleton hardware resource, so the next intensity write detaches the old
// binding before attaching the new pin.
func (d *Driver) SetPin(pin int) {
	d.pin = pin
}

// ensureAttached lazily binds the PWM channel to the configured pin,
// migrating the binding if the pin changed since the last write.
func (d *Driver) ensureAttached() error {
	attached, pin := d.pwm.Attached()
	if attached && pin == d.pin {
		return nil
	}
	if attached {
		if err := d.pwm.Detach(); err != nil {
			return fmt.Errorf("detach pwm from pin %d: %w", pin, err)
		}
	}
	if err := d.pwm.Attach(d.pin); err != nil {
		return fmt.Errorf("attach pwm to pin %d: %w", d.pin, err)
	}
	return nil
}

// toDuty converts a logical percentage to a physical duty value, inverting
// for active-low hardware.
func (d *Driver) toDuty(pct int) uint32 {
	max := d.pwm.MaxDuty()
	duty := uint32(math.Round(float64(pct) * float64(max) / 100))
	if duty > max {
		duty = max
	}
	if !d.activeHigh {
		duty = max - duty
	}
	return duty
}

// Close parks the sign visually off and releases the PWM binding.
func (d *Driver) Close() error {
	var errs []error

	if d.pwm != nil {
		if attached, _ := d.pwm.Attached(); attached {
			if err := d.pwm.SetDuty(d.toDuty(0)); err != nil {
				errs = append(errs, err)
			}
			if err := d.pwm.Detach(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if d.out != nil {
		if err := d.out.Set(!d.activeHigh); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
