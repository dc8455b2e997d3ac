package gpio

import (
	"errors"
	"testing"
)

func TestFakeButtonPressed(t *testing.T) {
	b := NewFakeButton([]bool{false, true, true})

	// Consume scripted samples in order.
	for i, want := range []bool{false, true, true} {
		got, err := b.Pressed()
		if err != nil {
			t.Fatalf("sample %d: unexpected error: %v", i, err)
		}
		if got != want {
			t.Errorf("sample %d: expected %v, got %v", i, want, got)
		}
	}

	// Further reads repeat the last sample.
	got, err := b.Pressed()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != true {
		t.Errorf("repeat read: expected true, got %v", got)
	}
}

func TestFakeButtonNoSamples(t *testing.T) {
	b := NewFakeButton(nil)

	got, err := b.Pressed()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Error("expected released with no samples")
	}
}

func TestFakeButtonError(t *testing.T) {
	b := NewFakeButton([]bool{true})
	b.ReadError = errors.New("simulated error")

	_, err := b.Pressed()
	if err == nil {
		t.Error("expected error to be returned")
	}
}

func TestFakeButtonReset(t *testing.T) {
	b := NewFakeButton([]bool{false, true})

	b.Pressed()
	b.Pressed()
	b.Reset()

	got, _ := b.Pressed()
	if got {
		t.Error("after reset: expected first sample (released)")
	}
}

func TestFakeOutputRecordsHistory(t *testing.T) {
	o := &FakeOutput{}

	for _, level := range []bool{true, false, true} {
		if err := o.Set(level); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if !o.Level {
		t.Error("expected final level high")
	}
	if len(o.History) != 3 {
		t.Fatalf("expected 3 recorded writes, got %d", len(o.History))
	}
	if o.History[0] != true || o.History[1] != false || o.History[2] != true {
		t.Errorf("unexpected history: %v", o.History)
	}
}

func TestFakePWMSingletonDiscipline(t *testing.T) {
	p := NewFakePWM(1000)

	if err := p.Attach(18); err != nil {
		t.Fatalf("first attach failed: %v", err)
	}
	if err := p.Attach(12); err == nil {
		t.Error("expected second attach to fail while bound")
	}

	attached, pin := p.Attached()
	if !attached || pin != 18 {
		t.Errorf("expected attached to pin 18, got attached=%v pin=%d", attached, pin)
	}

	if err := p.Detach(); err != nil {
		t.Fatalf("detach failed: %v", err)
	}
	if err := p.Attach(12); err != nil {
		t.Fatalf("attach after detach failed: %v", err)
	}

	want := []string{"attach:18", "detach", "attach:12"}
	if len(p.Events) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), p.Events)
	}
	for i := range want {
		if p.Events[i] != want[i] {
			t.Errorf("event %d: expected %q, got %q", i, want[i], p.Events[i])
		}
	}
}

func TestFakePWMDutyRequiresAttach(t *testing.T) {
	p := NewFakePWM(1000)

	if err := p.SetDuty(500); err == nil {
		t.Error("expected error writing duty while detached")
	}

	if err := p.Attach(18); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if err := p.SetDuty(500); err != nil {
		t.Fatalf("SetDuty failed: %v", err)
	}
	if p.LastDuty() != 500 {
		t.Errorf("expected last duty 500, got %d", p.LastDuty())
	}

	// Detaching twice is a no-op.
	if err := p.Detach(); err != nil {
		t.Fatalf("detach failed: %v", err)
	}
	if err := p.Detach(); err != nil {
		t.Errorf("second detach should be a no-op, got %v", err)
	}
}
