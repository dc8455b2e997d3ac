package logic

import "time"

// ResetDetector debounces the physical reset button and measures hold
// duration against the factory-reset threshold. It owns no side effects:
// the caller snapshots/restores actuator state on Began/Cancelled, drives
// the feedback LED from FeedbackOn, and performs the erase+restart on
// Triggered.
type ResetDetector struct {
	debounce  time.Duration
	threshold time.Duration

	// Debounced button level plus the pending raw change being timed.
	stable       bool
	pending      bool
	pendingSet   bool
	pendingSince time.Time

	// Hold tracking between a debounced press and its release.
	held       bool
	pressStart time.Time
	triggered  bool
}

// NewResetDetector creates a detector with the given debounce window and
// hold threshold.
func NewResetDetector(debounce, threshold time.Duration) *ResetDetector {
	return &ResetDetector{
		debounce:  debounce,
		threshold: threshold,
	}
}

// Process takes the raw pressed level for this tick and returns the
// detector's verdict. Hold duration is measured from the moment the press
// debounced, not from the raw edge.
func (d *ResetDetector) Process(pressed bool, now time.Time) GestureUpdate {
	d.debounceLevel(pressed, now)

	switch {
	case d.stable && !d.held:
		d.held = true
		d.pressStart = now
		d.triggered = false
		return GestureUpdate{Action: GestureBegan, FeedbackOn: true}

	case d.stable && d.held:
		heldFor := now.Sub(d.pressStart)
		// While a release is debouncing the hold effectively ended at the
		// raw edge; only trigger if the threshold was crossed before it.
		if d.pendingSet && !d.pending {
			heldFor = d.pendingSince.Sub(d.pressStart)
		}
		if heldFor >= d.threshold {
			if d.triggered {
				return GestureUpdate{Action: GestureNone, Held: heldFor, FeedbackOn: true}
			}
			d.triggered = true
			return GestureUpdate{Action: GestureTriggered, Held: heldFor, FeedbackOn: true}
		}
		return GestureUpdate{Action: GestureHolding, Held: heldFor, FeedbackOn: blinkOn(heldFor)}

	case !d.stable && d.held:
		heldFor := now.Sub(d.pressStart)
		wasTriggered := d.triggered
		d.held = false
		d.triggered = false
		if wasTriggered {
			// The erase+restart already fired; the release is not a cancel.
			return GestureUpdate{Action: GestureNone, Held: heldFor}
		}
		return GestureUpdate{Action: GestureCancelled, Held: heldFor}

	default:
		return GestureUpdate{Action: GestureNone}
	}
}

// debounceLevel folds a raw sample into the stable level. A raw change must
// persist for the debounce window before it commits; returning to the stable
// level clears the pending change.
func (d *ResetDetector) debounceLevel(raw bool, now time.Time) {
	if raw == d.stable {
		d.pendingSet = false
		return
	}

	if !d.pendingSet || d.pending != raw {
		d.pending = raw
		d.pendingSet = true
		d.pendingSince = now
		return
	}

	if now.Sub(d.pendingSince) >= d.debounce {
		d.stable = raw
		d.pendingSet = false
	}
}

// blinkOn reports whether the armed-hold blink is in its on half-period.
func blinkOn(held time.Duration) bool {
	return (held/BlinkHalfPeriod)%2 == 0
}

// Pressed reports the current debounced button level.
func (d *ResetDetector) Pressed() bool {
	return d.stable
}

// Holding reports whether a debounced press is currently in progress.
func (d *ResetDetector) Holding() bool {
	return d.held
}
