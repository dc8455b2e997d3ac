// Package logic contains the pure engines behind the sign: the breathing
// waveform and the factory-reset hold gesture. This package has NO external
// dependencies (no GPIO, network, OS, or time.Sleep). Time is always
// injectable via time.Time parameters.
package logic

import "time"

// GestureAction describes what the reset detector decided on a tick.
type GestureAction string

const (
	// GestureNone means nothing changed this tick.
	GestureNone GestureAction = "NONE"
	// GestureBegan means a debounced press was just recognized.
	GestureBegan GestureAction = "BEGAN"
	// GestureHolding means the press is held but still below the threshold.
	GestureHolding GestureAction = "HOLDING"
	// GestureCancelled means the press ended before the threshold.
	GestureCancelled GestureAction = "CANCELLED"
	// GestureTriggered means the hold crossed the threshold. Emitted exactly
	// once per press; the caller is expected to erase config and restart.
	GestureTriggered GestureAction = "TRIGGERED"
)

// GestureUpdate is the detector's per-tick verdict. FeedbackOn is the level
// the feedback LED should show right now: blinking while the hold is armed,
// solid once the threshold is crossed.
type GestureUpdate struct {
	Action     GestureAction
	Held       time.Duration
	FeedbackOn bool
}

// BlinkHalfPeriod is the feedback blink rate while a reset hold is armed.
const BlinkHalfPeriod = 500 * time.Millisecond
