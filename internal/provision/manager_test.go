package provision

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/mveplus/onair-led-sign-firmware/internal/actuator"
	"github.com/mveplus/onair-led-sign-firmware/internal/announce"
	"github.com/mveplus/onair-led-sign-firmware/internal/device"
	"github.com/mveplus/onair-led-sign-firmware/internal/discovery"
	"github.com/mveplus/onair-led-sign-firmware/internal/gpio"
	"github.com/mveplus/onair-led-sign-firmware/internal/store"
	"github.com/mveplus/onair-led-sign-firmware/internal/wifi"
)

var provBase = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

const tickStep = 20 * time.Millisecond

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// holdButton reports pressed while the fake clock sits inside its hold
// window.
type holdButton struct {
	clk  *fakeClock
	from time.Time
	to   time.Time
	err  error
}

func (b *holdButton) Pressed() (bool, error) {
	if b.err != nil {
		return false, b.err
	}
	if b.to.IsZero() {
		return false, nil
	}
	return !b.clk.now.Before(b.from) && b.clk.now.Before(b.to), nil
}

func (b *holdButton) Close() error { return nil }

type harness struct {
	clk      *fakeClock
	state    *device.State
	mem      *store.Memory
	radio    *wifi.FakeRadio
	pwm      *gpio.FakePWM
	button   *holdButton
	dns      *FakeDNS
	disc     *discovery.Fake
	ann      *announce.FakePublisher
	restarts *FakeRestarter
	diag     bytes.Buffer
	mgr      *Manager
}

func newHarness(t *testing.T, seed map[string]string) *harness {
	t.Helper()

	mem := store.NewMemory()
	for k, v := range seed {
		if err := mem.SetString(k, v); err != nil {
			t.Fatalf("seed %s: %v", k, err)
		}
	}
	cfg, err := device.LoadConfig(mem)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	clk := &fakeClock{now: provBase}
	h := &harness{
		clk:      clk,
		state:    device.NewState(provBase, cfg, "1.2.3"),
		mem:      mem,
		radio:    wifi.NewFakeRadio("HomeNet"),
		pwm:      gpio.NewFakePWM(1023),
		button:   &holdButton{clk: clk},
		dns:      &FakeDNS{},
		disc:     &discovery.Fake{},
		ann:      announce.NewFakePublisher(),
		restarts: &FakeRestarter{},
	}
	h.mgr = NewManager(Deps{
		State:     h.state,
		Store:     mem,
		Radio:     h.radio,
		Scans:     wifi.NewCoordinator(h.radio, 0),
		Driver:    actuator.New(actuator.Config{PWM: h.pwm, Pin: device.DefaultOutputPin, ActiveHigh: true}),
		Button:    h.button,
		DNS:       h.dns,
		Discovery: h.disc,
		Announcer: h.ann,
		Restarter: h.restarts,
		DeviceID:  "A1B2C3D4E5F6",
		Gateway:   net.ParseIP("192.168.4.1"),
		HTTPPort:  80,
		Version:   "1.2.3",
		Diag:      &h.diag,
		Now:       clk.Now,
		Sleep:     clk.Advance,
	})
	return h
}

func (h *harness) boot(t *testing.T) {
	t.Helper()
	if err := h.mgr.Boot(context.Background()); err != nil {
		t.Fatalf("boot: %v", err)
	}
}

func (h *harness) tick() {
	h.clk.Advance(tickStep)
	h.mgr.Tick(h.clk.now)
}

func (h *harness) tickFor(d time.Duration) {
	end := h.clk.now.Add(d)
	for h.clk.now.Before(end) {
		h.tick()
	}
}

func (h *harness) lastSystemEvent(t *testing.T) announce.SystemEvent {
	t.Helper()
	if len(h.ann.SystemEvents) == 0 {
		t.Fatal("expected a system event, got none")
	}
	return h.ann.SystemEvents[len(h.ann.SystemEvents)-1]
}

func TestBootWithoutCredentialsEntersPortal(t *testing.T) {
	h := newHarness(t, nil)
	h.boot(t)

	if got := h.state.Mode(); got != device.ModePortal {
		t.Fatalf("expected portal mode, got %v", got)
	}
	if len(h.radio.StartAPCalls) != 1 {
		t.Fatalf("expected 1 AP start, got %d", len(h.radio.StartAPCalls))
	}
	ap := h.radio.StartAPCalls[0]
	if ap.SSID != "ONAIR-A1B2C3D4E5F6" {
		t.Errorf("expected SSID ONAIR-A1B2C3D4E5F6, got %q", ap.SSID)
	}
	if ap.Password != "" {
		t.Errorf("expected an open network, got password %q", ap.Password)
	}
	if ap.Gateway != "192.168.4.1" {
		t.Errorf("expected gateway 192.168.4.1, got %q", ap.Gateway)
	}
	if len(h.dns.Starts) != 1 || h.dns.Starts[0] != "192.168.4.1:53" {
		t.Errorf("expected DNS hijack on 192.168.4.1:53, got %v", h.dns.Starts)
	}
	if h.radio.ScanStarts != 1 {
		t.Errorf("expected a scan prewarm, got %d starts", h.radio.ScanStarts)
	}

	snap := h.state.Snapshot()
	if !snap.PortalSince.Equal(provBase) {
		t.Errorf("expected portal entry at %v, got %v", provBase, snap.PortalSince)
	}
	if snap.Network.SSID != ap.SSID || snap.Network.IP != "192.168.4.1" {
		t.Errorf("unexpected network info %+v", snap.Network)
	}

	ev := h.lastSystemEvent(t)
	if ev.Event != announce.EventMode || ev.Mode != "portal" {
		t.Errorf("expected a portal MODE event, got %+v", ev)
	}
	if !strings.Contains(h.diag.String(), "ONAIR-A1B2C3D4E5F6") {
		t.Error("expected the portal banner to name the AP")
	}
	if h.restarts.Requested() != 0 {
		t.Errorf("expected no restarts, got %d", h.restarts.Requested())
	}
}

func TestBootWithReachableNetworkEntersConnected(t *testing.T) {
	h := newHarness(t, map[string]string{
		device.KeySSID:     "HomeNet",
		device.KeyPassword: "password123",
	})
	h.radio.ConnectAfterPolls = 3
	h.boot(t)

	if got := h.state.Mode(); got != device.ModeConnected {
		t.Fatalf("expected connected mode, got %v", got)
	}
	if len(h.radio.ConnectCalls) != 1 || h.radio.ConnectCalls[0] != "HomeNet" {
		t.Fatalf("expected one connect to HomeNet, got %v", h.radio.ConnectCalls)
	}

	snap := h.state.Snapshot()
	if snap.Network.SSID != "HomeNet" || snap.Network.IP != "192.168.1.50" {
		t.Errorf("unexpected network info %+v", snap.Network)
	}

	token, ok, err := h.mem.GetString(device.KeyAPIToken)
	if err != nil || !ok {
		t.Fatalf("expected a minted token, ok=%v err=%v", ok, err)
	}
	if len(token) != 32 {
		t.Errorf("expected a 32-char token, got %q", token)
	}
	if snap.Config.APIToken != token {
		t.Errorf("state token %q does not match stored %q", snap.Config.APIToken, token)
	}

	if len(h.disc.Registrations) != 1 {
		t.Fatalf("expected 1 discovery registration, got %d", len(h.disc.Registrations))
	}
	reg := h.disc.Registrations[0]
	if reg.Instance != "onair-d4e5f6" {
		t.Errorf("expected instance onair-d4e5f6, got %q", reg.Instance)
	}
	if reg.Port != 80 {
		t.Errorf("expected port 80, got %d", reg.Port)
	}

	// Portal teardown runs even when the portal never started.
	if h.radio.StopAPCalls != 1 || h.dns.Stops != 1 {
		t.Errorf("expected portal teardown, ap stops %d dns stops %d", h.radio.StopAPCalls, h.dns.Stops)
	}

	ev := h.lastSystemEvent(t)
	if ev.Event != announce.EventMode || ev.Mode != "sta" || ev.IP != "192.168.1.50" {
		t.Errorf("expected a sta MODE event, got %+v", ev)
	}
}

func TestBootUnreachableNetworkFallsBackToPortal(t *testing.T) {
	h := newHarness(t, map[string]string{
		device.KeySSID:     "Elsewhere",
		device.KeyPassword: "password123",
	})
	h.boot(t)

	if got := h.state.Mode(); got != device.ModePortal {
		t.Fatalf("expected portal mode, got %v", got)
	}
	if waited := h.clk.now.Sub(provBase); waited < StaConnectTimeout {
		t.Errorf("expected the connect wait to run out %v, waited %v", StaConnectTimeout, waited)
	}
	if len(h.radio.StartAPCalls) != 1 {
		t.Fatalf("expected an AP start after the fallback, got %d", len(h.radio.StartAPCalls))
	}
}

func TestBootUsesStoredAPPassword(t *testing.T) {
	h := newHarness(t, map[string]string{device.KeyAPPassword: "sign-secret"})
	h.boot(t)

	if len(h.radio.StartAPCalls) != 1 {
		t.Fatalf("expected 1 AP start, got %d", len(h.radio.StartAPCalls))
	}
	if got := h.radio.StartAPCalls[0].Password; got != "sign-secret" {
		t.Errorf("expected AP password sign-secret, got %q", got)
	}
	if !strings.Contains(h.diag.String(), "sign-secret") {
		t.Error("expected the banner to include the AP password")
	}
}

func TestBootShortAPPasswordFallsBackToOpen(t *testing.T) {
	h := newHarness(t, map[string]string{device.KeyAPPassword: "abc"})
	h.boot(t)

	if len(h.radio.StartAPCalls) != 1 {
		t.Fatalf("expected 1 AP start, got %d", len(h.radio.StartAPCalls))
	}
	if got := h.radio.StartAPCalls[0].Password; got != "" {
		t.Errorf("expected an open network, got password %q", got)
	}
}

func TestBootSurfacesButtonReadError(t *testing.T) {
	h := newHarness(t, nil)
	h.button.err = errors.New("line request failed")

	if err := h.mgr.Boot(context.Background()); err == nil {
		t.Fatal("expected an error when the reset control cannot be read")
	}
}

func TestGestureHeldPastThresholdWipesAndRestarts(t *testing.T) {
	h := newHarness(t, map[string]string{device.KeyAPPassword: "sign-secret"})
	h.boot(t)
	if h.mem.Len() == 0 {
		t.Fatal("expected seeded keys before the gesture")
	}

	h.button.from = h.clk.now
	h.button.to = h.clk.now.Add(time.Hour)
	h.tickFor(6 * time.Second)

	if h.mem.Len() != 0 {
		t.Errorf("expected a wiped store, %d keys remain", h.mem.Len())
	}
	if h.restarts.Requested() != 1 {
		t.Fatalf("expected exactly 1 restart, got %d", h.restarts.Requested())
	}
	if got := h.restarts.Last().Reason; got != "factory reset" {
		t.Errorf("expected a factory reset restart, got %q", got)
	}
	ev := h.lastSystemEvent(t)
	if ev.Event != announce.EventReset {
		t.Errorf("expected a RESET event, got %+v", ev)
	}

	// Keeping the control held changes nothing further.
	h.tickFor(time.Second)
	if h.restarts.Requested() != 1 {
		t.Errorf("expected no further restarts, got %d", h.restarts.Requested())
	}
}

func TestGestureReleasedEarlyRestoresMode(t *testing.T) {
	h := newHarness(t, map[string]string{
		device.KeySSID:         "HomeNet",
		device.KeyPassword:     "password123",
		device.KeyActuatorMode: "1",
	})
	h.boot(t)
	h.tick()
	if got := h.pwm.LastDuty(); got != 1023 {
		t.Fatalf("expected the sign on before the gesture, duty %d", got)
	}

	start := h.clk.now
	h.button.from = start
	h.button.to = start.Add(3 * time.Second)

	// Walk into the blink's off half-period.
	h.tickFor(700 * time.Millisecond)
	if got := h.pwm.LastDuty(); got != 0 {
		t.Errorf("expected blink feedback off, duty %d", got)
	}

	// Release before the threshold and let the release debounce.
	h.tickFor(3 * time.Second)

	if h.restarts.Requested() != 0 {
		t.Errorf("expected no restart, got %d", h.restarts.Requested())
	}
	if h.mem.Len() == 0 {
		t.Error("expected persisted config to survive")
	}
	snap := h.state.Snapshot()
	if snap.Actuator.Mode != device.ActuatorOn {
		t.Errorf("expected the on mode restored, got %v", snap.Actuator.Mode)
	}
	if got := h.pwm.LastDuty(); got != 1023 {
		t.Errorf("expected the sign back on, duty %d", got)
	}
}

func TestBootHoldForcesFactoryReset(t *testing.T) {
	h := newHarness(t, map[string]string{
		device.KeySSID:     "HomeNet",
		device.KeyPassword: "password123",
	})
	h.button.from = h.clk.now
	h.button.to = h.clk.now.Add(time.Hour)

	h.boot(t)

	if h.mem.Len() != 0 {
		t.Errorf("expected a wiped store, %d keys remain", h.mem.Len())
	}
	if h.restarts.Requested() != 1 {
		t.Fatalf("expected 1 restart, got %d", h.restarts.Requested())
	}
	if len(h.radio.ConnectCalls) != 0 {
		t.Errorf("expected boot to block before connecting, got %v", h.radio.ConnectCalls)
	}
	if got := h.state.Mode(); got != device.ModeUninitialized {
		t.Errorf("expected no mode entry, got %v", got)
	}
}

func TestBootHoldReleasedEarlyContinuesBoot(t *testing.T) {
	h := newHarness(t, map[string]string{
		device.KeySSID:     "HomeNet",
		device.KeyPassword: "password123",
	})
	h.button.from = h.clk.now
	h.button.to = h.clk.now.Add(2 * time.Second)

	h.boot(t)

	if got := h.state.Mode(); got != device.ModeConnected {
		t.Fatalf("expected connected mode after an early release, got %v", got)
	}
	if h.mem.Len() == 0 {
		t.Error("expected persisted config to survive")
	}
	if h.restarts.Requested() != 0 {
		t.Errorf("expected no restart, got %d", h.restarts.Requested())
	}
}

func TestPortalIdleTimeoutRestarts(t *testing.T) {
	h := newHarness(t, nil)
	h.boot(t)

	h.clk.Advance(PortalIdleTimeout)
	h.mgr.Tick(h.clk.now)
	if h.restarts.Requested() != 0 {
		t.Fatalf("expected no restart at exactly the timeout, got %d", h.restarts.Requested())
	}

	h.tick()
	if h.restarts.Requested() != 1 {
		t.Fatalf("expected 1 restart past the timeout, got %d", h.restarts.Requested())
	}
	if got := h.restarts.Last().Reason; got != "portal idle timeout" {
		t.Errorf("expected a portal idle timeout restart, got %q", got)
	}

	h.tickFor(time.Minute)
	if h.restarts.Requested() != 1 {
		t.Errorf("expected a single restart, got %d", h.restarts.Requested())
	}
}

func TestConnectedModeHasNoIdleTimeout(t *testing.T) {
	h := newHarness(t, map[string]string{
		device.KeySSID:     "HomeNet",
		device.KeyPassword: "password123",
	})
	h.boot(t)

	h.clk.Advance(time.Hour)
	h.mgr.Tick(h.clk.now)
	if h.restarts.Requested() != 0 {
		t.Errorf("expected no restart in connected mode, got %d", h.restarts.Requested())
	}
}

func TestEnterConnectedTwiceRegistersOnce(t *testing.T) {
	h := newHarness(t, map[string]string{
		device.KeySSID:     "HomeNet",
		device.KeyPassword: "password123",
	})
	h.boot(t)
	token := h.state.Snapshot().Config.APIToken

	if err := h.mgr.enterConnected(); err != nil {
		t.Fatalf("second enter: %v", err)
	}

	if len(h.disc.Registrations) != 1 {
		t.Errorf("expected a single discovery registration, got %d", len(h.disc.Registrations))
	}
	if got := h.state.Snapshot().Config.APIToken; got != token {
		t.Errorf("expected the token to survive re-entry, got %q want %q", got, token)
	}
}

func TestStopPortalServicesWhenPortalNeverRan(t *testing.T) {
	h := newHarness(t, nil)
	h.mgr.StopPortalServices()
	h.mgr.StopPortalServices()

	if h.radio.StopAPCalls != 2 {
		t.Errorf("expected 2 AP stops, got %d", h.radio.StopAPCalls)
	}
	if h.dns.Stops != 2 {
		t.Errorf("expected 2 DNS stops, got %d", h.dns.Stops)
	}
}

func TestBreathingWaveDrivenByTicks(t *testing.T) {
	h := newHarness(t, map[string]string{
		device.KeySSID:         "HomeNet",
		device.KeyPassword:     "password123",
		device.KeyActuatorMode: "2",
		device.KeyBreathPeriod: "2000",
		device.KeyBreathMin:    "10",
		device.KeyBreathMax:    "90",
	})
	h.boot(t)

	h.clk.Advance(500 * time.Millisecond)
	h.mgr.Tick(h.clk.now)
	if got := h.state.Snapshot().Actuator.Level; got != 50 {
		t.Errorf("expected level 50 at the quarter period, got %d", got)
	}

	h.clk.Advance(500 * time.Millisecond)
	h.mgr.Tick(h.clk.now)
	if got := h.state.Snapshot().Actuator.Level; got != 90 {
		t.Errorf("expected the peak at the half period, got %d", got)
	}

	h.clk.Advance(time.Second)
	h.mgr.Tick(h.clk.now)
	if got := h.state.Snapshot().Actuator.Level; got != 10 {
		t.Errorf("expected the floor at the full period, got %d", got)
	}
}

func TestSaveAndApplyPersistsThenRestarts(t *testing.T) {
	h := newHarness(t, nil)
	h.boot(t)

	cfg := device.Config{
		SSID:          "home",
		WifiPassword:  "password123",
		OutputPin:     device.DefaultOutputPin,
		LEDActiveHigh: true,
		BreathPeriod:  3000,
		BreathMinPct:  10,
		BreathMaxPct:  90,
	}
	if err := h.mgr.SaveAndApply(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	ssid, ok, err := h.mem.GetString(device.KeySSID)
	if err != nil || !ok || ssid != "home" {
		t.Errorf("expected ssid home persisted, got %q ok=%v err=%v", ssid, ok, err)
	}
	req := h.restarts.Last()
	if req.Reason != "configuration saved" || req.Delay != RestartDelay {
		t.Errorf("unexpected restart %+v", req)
	}
	if got := h.state.Snapshot().Config.SSID; got != "home" {
		t.Errorf("expected the state cache updated, got %q", got)
	}
}

func TestSaveAndApplyRejectsInvalidConfig(t *testing.T) {
	h := newHarness(t, nil)
	h.boot(t)

	err := h.mgr.SaveAndApply(device.Config{WifiPassword: "password123"})
	if err == nil || err.Error() != "ssid is required" {
		t.Fatalf("expected ssid is required, got %v", err)
	}
	if h.restarts.Requested() != 0 {
		t.Errorf("expected no restart on a rejected save, got %d", h.restarts.Requested())
	}
	if _, ok, _ := h.mem.GetString(device.KeySSID); ok {
		t.Error("expected nothing persisted on a rejected save")
	}
}

func TestApplyActuatorModePersistsAndAnnounces(t *testing.T) {
	h := newHarness(t, map[string]string{
		device.KeySSID:     "HomeNet",
		device.KeyPassword: "password123",
	})
	h.boot(t)

	if err := h.mgr.ApplyActuatorMode(device.ActuatorBreathing, 2000, 5, 95); err != nil {
		t.Fatalf("apply: %v", err)
	}

	snap := h.state.Snapshot()
	if snap.Actuator.Mode != device.ActuatorBreathing {
		t.Errorf("expected breathing, got %v", snap.Actuator.Mode)
	}
	if snap.Actuator.PeriodMs != 2000 || snap.Actuator.MinPct != 5 || snap.Actuator.MaxPct != 95 {
		t.Errorf("unexpected waveform params %+v", snap.Actuator)
	}
	period, ok, err := h.mem.GetInt(device.KeyBreathPeriod)
	if err != nil || !ok || period != 2000 {
		t.Errorf("expected period 2000 persisted, got %d ok=%v err=%v", period, ok, err)
	}

	if len(h.ann.SignEvents) != 1 {
		t.Fatalf("expected 1 sign event, got %d", len(h.ann.SignEvents))
	}
	ev := h.ann.SignEvents[0]
	if ev.Mode != "breathing" || ev.PeriodMs != 2000 || ev.MinPct != 5 || ev.MaxPct != 95 {
		t.Errorf("unexpected sign event %+v", ev)
	}

	if err := h.mgr.ApplyActuatorMode(device.ActuatorOff, 2000, 5, 95); err != nil {
		t.Fatalf("apply off: %v", err)
	}
	last := h.ann.SignEvents[len(h.ann.SignEvents)-1]
	if last.Mode != "off" || last.PeriodMs != 0 {
		t.Errorf("expected a bare off event, got %+v", last)
	}
}

func TestEffectivePinRoutesBuiltinLED(t *testing.T) {
	cfg := device.Config{OutputPin: 18}
	if got := EffectivePin(cfg); got != 18 {
		t.Errorf("expected pin 18, got %d", got)
	}
	cfg.UseBuiltinLED = true
	if got := EffectivePin(cfg); got != 2 {
		t.Errorf("expected the builtin LED pin, got %d", got)
	}
}
