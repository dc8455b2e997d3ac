package gpio

import (
	"errors"
	"fmt"
)

// FakeOutput is a test double that records every level written to it.
type FakeOutput struct {
	// Level is the most recent value written.
	Level bool

	// History records every Set call in order.
	History []bool

	// Closed tracks if Close was called.
	Closed bool

	// SetError, if set, will be returned by Set().
	SetError error
}

func (o *FakeOutput) Set(high bool) error {
	if o.SetError != nil {
		return o.SetError
	}
	o.Level = high
	o.History = append(o.History, high)
	return nil
}

func (o *FakeOutput) Close() error {
	o.Closed = true
	return nil
}

// FakeButton is a test double that returns scripted pressed levels.
type FakeButton struct {
	// Samples contains scripted pressed values to return.
	// Each call to Pressed() consumes the next sample.
	Samples []bool

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Pressed()
	ReadError error
}

// NewFakeButton creates a FakeButton with the given samples.
func NewFakeButton(samples []bool) *FakeButton {
	return &FakeButton{Samples: samples}
}

// Pressed returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (b *FakeButton) Pressed() (bool, error) {
	if b.ReadError != nil {
		return false, b.ReadError
	}

	if len(b.Samples) == 0 {
		return false, nil
	}

	sample := b.Samples[b.index]
	if b.index < len(b.Samples)-1 {
		b.index++
	}

	return sample, nil
}

func (b *FakeButton) Close() error {
	b.Closed = true
	return nil
}

// Reset rewinds the button to the beginning of its samples.
func (b *FakeButton) Reset() {
	b.index = 0
	b.Closed = false
}

// FakePWM is a test double that records attach/detach/duty activity.
type FakePWM struct {
	// Max is the full-scale duty value reported by MaxDuty.
	Max uint32

	// Duties records every SetDuty call in order.
	Duties []uint32

	// Events records attach/detach calls, e.g. "attach:18", "detach".
	Events []string

	attached bool
	pin      int
}

// NewFakePWM creates a detached fake channel with the given full-scale duty.
func NewFakePWM(max uint32) *FakePWM {
	return &FakePWM{Max: max}
}

func (p *FakePWM) Attach(pin int) error {
	if p.attached {
		return fmt.Errorf("pwm already attached to pin %d", p.pin)
	}
	p.attached = true
	p.pin = pin
	p.Events = append(p.Events, fmt.Sprintf("attach:%d", pin))
	return nil
}

func (p *FakePWM) Attached() (bool, int) {
	return p.attached, p.pin
}

func (p *FakePWM) SetDuty(duty uint32) error {
	if !p.attached {
		return errors.New("pwm not attached")
	}
	p.Duties = append(p.Duties, duty)
	return nil
}

func (p *FakePWM) MaxDuty() uint32 {
	return p.Max
}

func (p *FakePWM) Detach() error {
	if !p.attached {
		return nil
	}
	p.attached = false
	p.pin = 0
	p.Events = append(p.Events, "detach")
	return nil
}

// LastDuty returns the most recent duty written, or 0 if none.
func (p *FakePWM) LastDuty() uint32 {
	if len(p.Duties) == 0 {
		return 0
	}
	return p.Duties[len(p.Duties)-1]
}
