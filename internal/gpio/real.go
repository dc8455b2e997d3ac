//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// RealOutput drives a line through the Linux GPIO character device.
type RealOutput struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealOutput requests pin on chip as an output, initially low.
func NewRealOutput(chip string, pin int) (*RealOutput, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := c.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("request output pin %d: %w", pin, err)
	}

	return &RealOutput{chip: c, line: line}, nil
}

func (o *RealOutput) Set(high bool) error {
	v := 0
	if high {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set output: %w", err)
	}
	return nil
}

// Close drives the line low and releases it.
func (o *RealOutput) Close() error {
	var errs []error

	if o.line != nil {
		if err := o.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear output: %w", err))
		}
		if err := o.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close output line: %w", err))
		}
	}
	if o.chip != nil {
		if err := o.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealButton reads the reset button through the Linux GPIO character device.
// The line is requested with a pull-up; the button shorts it to ground.
type RealButton struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealButton requests pin on chip as a pulled-up input.
func NewRealButton(chip string, pin int) (*RealButton, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := c.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("request button pin %d: %w", pin, err)
	}

	return &RealButton{chip: c, line: line}, nil
}

// Pressed inverts the raw level: pulled low means pressed.
func (b *RealButton) Pressed() (bool, error) {
	raw, err := b.line.Value()
	if err != nil {
		return false, fmt.Errorf("read button: %w", err)
	}
	return raw == 0, nil
}

func (b *RealButton) Close() error {
	var errs []error

	if b.line != nil {
		if err := b.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button line: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// pwmFrequency is fast enough that LED modulation is invisible.
const pwmFrequency = physic.KiloHertz

var hostInit sync.Once

// RealPWM drives a pin's hardware PWM through periph.io.
type RealPWM struct {
	pin    gpio.PinIO
	pinNum int
}

// NewRealPWM initializes the host drivers. The channel starts detached.
func NewRealPWM() (*RealPWM, error) {
	var initErr error
	hostInit.Do(func() {
		_, initErr = host.Init()
	})
	if initErr != nil {
		return nil, fmt.Errorf("init periph host: %w", initErr)
	}
	return &RealPWM{}, nil
}

func (p *RealPWM) Attach(pin int) error {
	if p.pin != nil {
		return fmt.Errorf("pwm already attached to pin %d", p.pinNum)
	}

	name := fmt.Sprintf("GPIO%d", pin)
	pinIO := gpioreg.ByName(name)
	if pinIO == nil {
		return fmt.Errorf("no such pin %s", name)
	}

	p.pin = pinIO
	p.pinNum = pin
	return nil
}

func (p *RealPWM) Attached() (bool, int) {
	return p.pin != nil, p.pinNum
}

func (p *RealPWM) SetDuty(duty uint32) error {
	if p.pin == nil {
		return fmt.Errorf("pwm not attached")
	}
	if err := p.pin.PWM(gpio.Duty(duty), pwmFrequency); err != nil {
		return fmt.Errorf("set pwm duty on pin %d: %w", p.pinNum, err)
	}
	return nil
}

func (p *RealPWM) MaxDuty() uint32 {
	return uint32(gpio.DutyMax)
}

func (p *RealPWM) Detach() error {
	if p.pin == nil {
		return nil
	}
	pin := p.pin
	num := p.pinNum
	p.pin = nil
	p.pinNum = 0
	if err := pin.Halt(); err != nil {
		return fmt.Errorf("halt pwm on pin %d: %w", num, err)
	}
	return nil
}
