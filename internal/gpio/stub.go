//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealOutput is not available on non-Linux platforms.
type RealOutput struct{}

func NewRealOutput(chip string, pin int) (*RealOutput, error) {
	return nil, errUnsupported
}

func (o *RealOutput) Set(high bool) error { return errUnsupported }
func (o *RealOutput) Close() error        { return nil }

// RealButton is not available on non-Linux platforms.
type RealButton struct{}

func NewRealButton(chip string, pin int) (*RealButton, error) {
	return nil, errUnsupported
}

func (b *RealButton) Pressed() (bool, error) { return false, errUnsupported }
func (b *RealButton) Close() error           { return nil }

// RealPWM is not available on non-Linux platforms.
type RealPWM struct{}

func NewRealPWM() (*RealPWM, error) {
	return nil, errUnsupported
}

func (p *RealPWM) Attach(pin int) error      { return errUnsupported }
func (p *RealPWM) Attached() (bool, int)     { return false, 0 }
func (p *RealPWM) SetDuty(duty uint32) error { return errUnsupported }
func (p *RealPWM) MaxDuty() uint32           { return 0 }
func (p *RealPWM) Detach() error             { return nil }
