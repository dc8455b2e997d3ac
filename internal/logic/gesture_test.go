package logic

import (
	"testing"
	"time"
)

const (
	testDebounce  = 50 * time.Millisecond
	testThreshold = 5 * time.Second
)

// pressDetector returns a detector whose press has just debounced at the
// returned time.
func pressDetector(t *testing.T) (*ResetDetector, time.Time) {
	t.Helper()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewResetDetector(testDebounce, testThreshold)

	if got := d.Process(true, start); got.Action != GestureNone {
		t.Fatalf("expected NONE before debounce, got %s", got.Action)
	}
	pressed := start.Add(testDebounce)
	got := d.Process(true, pressed)
	if got.Action != GestureBegan {
		t.Fatalf("expected BEGAN after debounce, got %s", got.Action)
	}
	if !got.FeedbackOn {
		t.Fatal("expected feedback on at press begin")
	}
	return d, pressed
}

func TestResetDetectorIdleProducesNothing(t *testing.T) {
	d := NewResetDetector(testDebounce, testThreshold)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		got := d.Process(false, now.Add(time.Duration(i)*20*time.Millisecond))
		if got.Action != GestureNone {
			t.Errorf("tick %d: expected NONE while idle, got %s", i, got.Action)
		}
		if got.FeedbackOn {
			t.Errorf("tick %d: expected feedback off while idle", i)
		}
	}
}

func TestResetDetectorShortGlitchIgnored(t *testing.T) {
	d := NewResetDetector(testDebounce, testThreshold)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	// A 30ms blip never debounces into a press.
	d.Process(true, now)
	d.Process(true, now.Add(30*time.Millisecond))
	got := d.Process(false, now.Add(40*time.Millisecond))
	if got.Action != GestureNone {
		t.Errorf("expected NONE for sub-debounce glitch, got %s", got.Action)
	}
	if d.Pressed() {
		t.Error("debounced level should still be released")
	}

	// Long after, nothing lingers.
	got = d.Process(false, now.Add(time.Second))
	if got.Action != GestureNone {
		t.Errorf("expected NONE, got %s", got.Action)
	}
}

func TestResetDetectorHoldBelowThresholdThenRelease(t *testing.T) {
	d, pressed := pressDetector(t)

	// Held for just under the threshold.
	got := d.Process(true, pressed.Add(testThreshold-time.Millisecond))
	if got.Action != GestureHolding {
		t.Fatalf("expected HOLDING below threshold, got %s", got.Action)
	}

	// Release: raw low, then the release debounces.
	relStart := pressed.Add(testThreshold - time.Millisecond)
	d.Process(false, relStart)
	got = d.Process(false, relStart.Add(testDebounce))
	if got.Action != GestureCancelled {
		t.Fatalf("expected CANCELLED on early release, got %s", got.Action)
	}
	if got.FeedbackOn {
		t.Error("expected feedback off after cancel")
	}
	if d.Holding() {
		t.Error("detector should be idle after cancel")
	}
}

func TestResetDetectorTriggersAtThreshold(t *testing.T) {
	d, pressed := pressDetector(t)

	got := d.Process(true, pressed.Add(testThreshold))
	if got.Action != GestureTriggered {
		t.Fatalf("expected TRIGGERED at threshold, got %s", got.Action)
	}
	if got.Held != testThreshold {
		t.Errorf("expected held duration %v, got %v", testThreshold, got.Held)
	}
	if !got.FeedbackOn {
		t.Error("expected solid feedback at trigger")
	}
}

func TestResetDetectorTriggersExactlyOnce(t *testing.T) {
	d, pressed := pressDetector(t)

	d.Process(true, pressed.Add(testThreshold))
	for i := 1; i <= 3; i++ {
		got := d.Process(true, pressed.Add(testThreshold+time.Duration(i)*100*time.Millisecond))
		if got.Action != GestureNone {
			t.Errorf("tick %d: expected NONE after trigger, got %s", i, got.Action)
		}
		if !got.FeedbackOn {
			t.Errorf("tick %d: expected solid feedback after trigger", i)
		}
	}
}

func TestResetDetectorReleaseAfterTriggerIsNotCancel(t *testing.T) {
	d, pressed := pressDetector(t)

	d.Process(true, pressed.Add(testThreshold))

	relStart := pressed.Add(testThreshold + 200*time.Millisecond)
	d.Process(false, relStart)
	got := d.Process(false, relStart.Add(testDebounce))
	if got.Action != GestureNone {
		t.Errorf("expected NONE on release after trigger, got %s", got.Action)
	}
}

func TestResetDetectorBlinkAlternates(t *testing.T) {
	d, pressed := pressDetector(t)

	tests := []struct {
		held time.Duration
		want bool
	}{
		{100 * time.Millisecond, true},
		{600 * time.Millisecond, false},
		{1100 * time.Millisecond, true},
		{1600 * time.Millisecond, false},
	}

	for _, tt := range tests {
		got := d.Process(true, pressed.Add(tt.held))
		if got.Action != GestureHolding {
			t.Fatalf("held %v: expected HOLDING, got %s", tt.held, got.Action)
		}
		if got.FeedbackOn != tt.want {
			t.Errorf("held %v: expected feedback %v, got %v", tt.held, tt.want, got.FeedbackOn)
		}
	}
}

func TestResetDetectorBounceDuringHoldDoesNotCancel(t *testing.T) {
	d, pressed := pressDetector(t)

	// A 20ms low blip mid-hold is contact bounce, not a release.
	d.Process(false, pressed.Add(time.Second))
	got := d.Process(true, pressed.Add(time.Second+20*time.Millisecond))
	if got.Action != GestureHolding {
		t.Fatalf("expected HOLDING across bounce, got %s", got.Action)
	}

	// The hold still triggers on the original press clock.
	got = d.Process(true, pressed.Add(testThreshold))
	if got.Action != GestureTriggered {
		t.Errorf("expected TRIGGERED despite bounce, got %s", got.Action)
	}
}

func TestResetDetectorNewPressAfterCancelStartsFresh(t *testing.T) {
	d, pressed := pressDetector(t)

	// Release early.
	relStart := pressed.Add(time.Second)
	d.Process(false, relStart)
	if got := d.Process(false, relStart.Add(testDebounce)); got.Action != GestureCancelled {
		t.Fatalf("expected CANCELLED, got %s", got.Action)
	}

	// Press again: a fresh BEGAN with a fresh hold clock.
	again := relStart.Add(time.Second)
	d.Process(true, again)
	got := d.Process(true, again.Add(testDebounce))
	if got.Action != GestureBegan {
		t.Fatalf("expected BEGAN on new press, got %s", got.Action)
	}
	got = d.Process(true, again.Add(testDebounce).Add(time.Second))
	if got.Action != GestureHolding {
		t.Errorf("expected HOLDING, got %s", got.Action)
	}
	if got.Held != time.Second {
		t.Errorf("expected held 1s on new press, got %v", got.Held)
	}
}
