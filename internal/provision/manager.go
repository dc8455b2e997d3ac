// Package provision owns the device lifecycle: the boot decision between
// Portal and Connected mode, the services each mode runs, the periodic tick
// that drives the breathing waveform and the reset gesture, and the restarts
// that realize every mode transition.
package provision

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mveplus/onair-led-sign-firmware/internal/actuator"
	"github.com/mveplus/onair-led-sign-firmware/internal/announce"
	"github.com/mveplus/onair-led-sign-firmware/internal/device"
	"github.com/mveplus/onair-led-sign-firmware/internal/discovery"
	"github.com/mveplus/onair-led-sign-firmware/internal/gpio"
	"github.com/mveplus/onair-led-sign-firmware/internal/ident"
	"github.com/mveplus/onair-led-sign-firmware/internal/logic"
	"github.com/mveplus/onair-led-sign-firmware/internal/store"
	"github.com/mveplus/onair-led-sign-firmware/internal/wifi"
)

// Lifecycle timings. Every bound is enforced by comparing elapsed time
// against a recorded start; nothing in flight gets cancelled.
const (
	// StaConnectTimeout bounds the boot-time station connect attempt.
	StaConnectTimeout = 12 * time.Second

	// staPollInterval is the connect-wait poll cadence. The reset gesture
	// is serviced on the same cadence so the wait never starves it.
	staPollInterval = 50 * time.Millisecond

	// PortalIdleTimeout restarts an abandoned portal, handing control back
	// to the boot decision.
	PortalIdleTimeout = 10 * time.Minute

	// GestureDebounce and GestureThreshold parameterize the factory-reset
	// hold.
	GestureDebounce  = 50 * time.Millisecond
	GestureThreshold = 5 * time.Second

	// RestartDelay holds a requested restart long enough for the HTTP
	// response acknowledging it to reach the client.
	RestartDelay = 500 * time.Millisecond

	// bootHoldPoll is the poll cadence while the reset control is held at
	// power-on.
	bootHoldPoll = 20 * time.Millisecond
)

// builtinLEDPin is where the board status LED sits when the owner routes the
// sign output through it instead of a dedicated pin.
const builtinLEDPin = 2

// DNSHijack is the portal DNS responder surface the manager drives.
type DNSHijack interface {
	// Start binds the responder to addr, answering every query with gateway.
	Start(addr string, gateway net.IP) error

	// Stop tears the responder down. Safe when never started.
	Stop()
}

// Deps wires the manager's collaborators. Now, Sleep, Diag and Announcer
// default to the real clock, a discarded diagnostic stream and a silent
// publisher.
type Deps struct {
	State     *device.State
	Store     store.Store
	Radio     wifi.Radio
	Scans     *wifi.Coordinator
	Driver    *actuator.Driver
	Button    gpio.Button
	DNS       DNSHijack
	Discovery discovery.Registrar
	Announcer announce.Publisher
	Restarter Restarter

	DeviceID string
	Gateway  net.IP
	HTTPPort int
	Version  string

	// Diag is the operator-visible diagnostic channel for the portal banner
	// and the setup QR code.
	Diag io.Writer

	Now   func() time.Time
	Sleep func(time.Duration)
}

// Manager runs the provisioning lifecycle. Boot and Tick belong to the
// control loop; SaveAndApply, ApplyActuatorMode and RequestRestart are the
// HTTP layer's entry points and touch only locked or goroutine-safe state.
type Manager struct {
	state     *device.State
	store     store.Store
	radio     wifi.Radio
	scans     *wifi.Coordinator
	driver    *actuator.Driver
	button    gpio.Button
	dns       DNSHijack
	discovery discovery.Registrar
	announcer announce.Publisher
	restarter Restarter

	deviceID string
	gateway  net.IP
	httpPort int
	version  string
	diag     io.Writer

	now   func() time.Time
	sleep func(time.Duration)

	// Control-loop state, touched only from the Boot/Tick goroutine.
	detector       *logic.ResetDetector
	savedMode      device.ActuatorMode
	inGesture      bool
	registered     bool
	restartPending bool
}

// NewManager wires a manager from its collaborators.
func NewManager(d Deps) *Manager {
	m := &Manager{
		state:     d.State,
		store:     d.Store,
		radio:     d.Radio,
		scans:     d.Scans,
		driver:    d.Driver,
		button:    d.Button,
		dns:       d.DNS,
		discovery: d.Discovery,
		announcer: d.Announcer,
		restarter: d.Restarter,
		deviceID:  d.DeviceID,
		gateway:   d.Gateway,
		httpPort:  d.HTTPPort,
		version:   d.Version,
		diag:      d.Diag,
		now:       d.Now,
		sleep:     d.Sleep,
		detector:  logic.NewResetDetector(GestureDebounce, GestureThreshold),
	}
	if m.announcer == nil {
		m.announcer = announce.Nop{}
	}
	if m.diag == nil {
		m.diag = io.Discard
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.sleep == nil {
		m.sleep = time.Sleep
	}
	return m
}

// EffectivePin returns the pin the actuator drives: the configured output
// pin, or the board LED pin when the owner routed the sign through the
// built-in LED.
func EffectivePin(cfg device.Config) int {
	if cfg.UseBuiltinLED {
		return builtinLEDPin
	}
	return cfg.OutputPin
}

// Boot runs the boot decision. A reset control held at power-on is serviced
// first and blocks everything else; then stored credentials pick the mode:
// no SSID goes straight to Portal, otherwise a bounded station connect
// attempt decides between Connected and Portal.
func (m *Manager) Boot(ctx context.Context) error {
	// Park the sign off until a mode entry applies the real configuration.
	if err := m.driver.SetIntensity(0); err != nil {
		log.Warn().Err(err).Msg("Actuator park failed")
	}

	if err := m.bootResetHold(ctx); err != nil {
		return err
	}
	if m.restartPending {
		return nil
	}

	cfg := m.state.Snapshot().Config
	if cfg.SSID == "" {
		log.Info().Msg("No stored network, entering portal mode")
		return m.enterPortal()
	}

	log.Info().Str("ssid", cfg.SSID).Msg("Joining stored network")
	if err := m.radio.Connect(cfg.SSID, cfg.WifiPassword); err != nil {
		log.Warn().Err(err).Str("ssid", cfg.SSID).Msg("Connect attempt failed to start")
		return m.enterPortal()
	}

	deadline := m.now().Add(StaConnectTimeout)
	joined := m.pollUntil(ctx, deadline, staPollInterval, func() bool {
		st, err := m.radio.Status()
		return err == nil && st.Connected
	})
	if m.restartPending {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !joined {
		log.Warn().Str("ssid", cfg.SSID).Dur("waited", StaConnectTimeout).
			Msg("Stored network unreachable, entering portal mode")
		return m.enterPortal()
	}
	return m.enterConnected()
}

// Tick services one control-loop beat: the reset gesture, the actuator
// waveform and the portal idle timeout.
func (m *Manager) Tick(now time.Time) {
	m.serviceGesture(now)

	// The hold feedback owns the output while a gesture is in progress.
	if !m.inGesture {
		m.driveActuator(now)
	}

	if m.restartPending || m.state.Mode() != device.ModePortal {
		return
	}
	snap := m.state.Snapshot()
	if snap.PortalSince.IsZero() {
		return
	}
	if idle := now.Sub(snap.PortalSince); idle > PortalIdleTimeout {
		log.Info().Dur("idle", idle).Msg("Portal idle timeout, restarting")
		m.restartPending = true
		m.restarter.Restart("portal idle timeout", 0)
	}
}

// SaveAndApply validates a portal save, persists it wholesale and schedules
// the restart that re-runs the boot decision with the new credentials.
func (m *Manager) SaveAndApply(cfg device.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.SaveTo(m.store); err != nil {
		return err
	}
	m.state.SetConfig(cfg)
	log.Info().Str("ssid", cfg.SSID).Msg("Configuration saved, restarting to apply")
	m.restarter.Restart("configuration saved", RestartDelay)
	return nil
}

// ApplyActuatorMode applies a runtime actuation change: waveform parameters
// first, then the mode switch (re-entering breathing restarts the wave at
// its minimum), persisting the actuator group and announcing the change.
// Callers validate the parameters.
func (m *Manager) ApplyActuatorMode(mode device.ActuatorMode, periodMs, minPct, maxPct int) error {
	now := m.now()
	m.state.SetBreathing(periodMs, minPct, maxPct)
	m.state.SetActuatorMode(mode, now)

	cfg := m.state.Snapshot().Config
	if err := cfg.SaveActuator(m.store); err != nil {
		return err
	}

	ev := announce.SignEvent{Timestamp: now, Mode: mode.String()}
	if mode == device.ActuatorBreathing {
		ev.PeriodMs, ev.MinPct, ev.MaxPct = periodMs, minPct, maxPct
	}
	if err := m.announcer.PublishSign(ev); err != nil {
		log.Warn().Err(err).Msg("Sign announcement failed")
	}
	return nil
}

// RequestRestart schedules a plain reboot, delayed so the acknowledging HTTP
// response can flush first.
func (m *Manager) RequestRestart(reason string) {
	m.restarter.Restart(reason, RestartDelay)
}

// StopPortalServices tears down the soft AP and the DNS responder. Safe when
// the portal never ran, including an AP left over from a previous process
// life.
func (m *Manager) StopPortalServices() {
	m.dns.Stop()
	if err := m.radio.StopAP(); err != nil {
		log.Warn().Err(err).Msg("AP teardown failed")
	}
}

// bootResetHold blocks the boot sequence while the reset control is held at
// power-on, so an operator can force a factory reset without completing a
// boot cycle.
func (m *Manager) bootResetHold(ctx context.Context) error {
	pressed, err := m.button.Pressed()
	if err != nil {
		return fmt.Errorf("read reset control: %w", err)
	}
	if !pressed {
		return nil
	}

	log.Info().Msg("Reset control held at power-on")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		update := m.serviceGesture(m.now())
		if update.Action == logic.GestureTriggered || update.Action == logic.GestureCancelled {
			return nil
		}
		// The raw level can drop again before the press ever debounces.
		if !m.detector.Holding() && !m.detector.Pressed() {
			if raw, err := m.button.Pressed(); err != nil || !raw {
				return nil
			}
		}
		m.sleep(bootHoldPoll)
	}
}

// pollUntil waits for cond up to deadline, servicing the reset gesture on
// every poll so a blocking-looking wait never starves the physical control.
func (m *Manager) pollUntil(ctx context.Context, deadline time.Time, interval time.Duration, cond func() bool) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		now := m.now()
		m.serviceGesture(now)
		if m.restartPending {
			return false
		}
		if cond() {
			return true
		}
		if !now.Before(deadline) {
			return false
		}
		m.sleep(interval)
	}
}

// serviceGesture runs one reset-detector beat: sample the control, drive the
// hold feedback, and perform the erase and restart when the hold crosses the
// threshold.
func (m *Manager) serviceGesture(now time.Time) logic.GestureUpdate {
	pressed, err := m.button.Pressed()
	if err != nil {
		log.Warn().Err(err).Msg("Reset control read failed")
		pressed = false
	}
	update := m.detector.Process(pressed, now)

	switch update.Action {
	case logic.GestureBegan:
		m.savedMode = m.state.Snapshot().Actuator.Mode
		m.inGesture = true
		m.feedback(update.FeedbackOn)
	case logic.GestureHolding:
		m.feedback(update.FeedbackOn)
	case logic.GestureCancelled:
		log.Info().Dur("held", update.Held).Msg("Reset hold released early")
		m.inGesture = false
		m.state.SetActuatorMode(m.savedMode, now)
	case logic.GestureTriggered:
		log.Warn().Dur("held", update.Held).Msg("Reset hold crossed threshold")
		m.feedback(true)
		m.factoryReset(now)
	}
	return update
}

// feedback drives the hold feedback level, skipping writes the wire already
// carries.
func (m *Manager) feedback(on bool) {
	level := 0
	if on {
		level = 100
	}
	if m.driver.Level() == level {
		return
	}
	if err := m.driver.Feedback(on); err != nil {
		log.Warn().Err(err).Msg("Reset feedback write failed")
	}
}

// driveActuator paints the hardware from the actuator state. Off and On are
// level holds, breathing is evaluated against the waveform every tick.
// Writes are skipped while the wire already carries the target level.
func (m *Manager) driveActuator(now time.Time) {
	snap := m.state.Snapshot()
	var level int
	switch snap.Actuator.Mode {
	case device.ActuatorOn:
		level = 100
	case device.ActuatorBreathing:
		period := time.Duration(snap.Actuator.PeriodMs) * time.Millisecond
		level = logic.BreathLevel(now, snap.Actuator.PhaseStart, period, snap.Actuator.MinPct, snap.Actuator.MaxPct)
	default:
		level = 0
	}

	if level == m.driver.Level() {
		return
	}
	if err := m.driver.SetIntensity(level); err != nil {
		log.Warn().Err(err).Msg("Actuator write failed")
		return
	}
	m.state.SetLevel(level)
}

// factoryReset erases every persisted key and schedules the restart that
// boots the wiped device into portal mode. Not cancellable once reached.
func (m *Manager) factoryReset(now time.Time) {
	if err := m.store.Wipe(); err != nil {
		log.Error().Err(err).Msg("Config erase failed")
	}
	ev := announce.SystemEvent{Timestamp: now, Event: announce.EventReset}
	if err := m.announcer.PublishSystem(ev); err != nil {
		log.Debug().Err(err).Msg("Reset announcement failed")
	}
	m.restartPending = true
	m.restarter.Restart("factory reset", 0)
}

// enterPortal brings up the soft AP and the DNS hijack, stamps the entry
// time for the idle timeout and emits the join credentials on the diagnostic
// channel.
func (m *Manager) enterPortal() error {
	cfg := m.state.Snapshot().Config
	ssid := ident.APSSID(m.deviceID)

	// A stored AP password outside the WPA2 length range falls back to an
	// open network.
	pass := cfg.APPassword
	if len(pass) < device.WifiPassMinLen || len(pass) > device.WifiPassMaxLen {
		pass = ""
	}

	gw := m.gateway.String()
	if err := m.radio.StartAP(wifi.APConfig{SSID: ssid, Password: pass, Gateway: gw}); err != nil {
		return fmt.Errorf("start access point: %w", err)
	}
	if err := m.dns.Start(net.JoinHostPort(gw, "53"), m.gateway); err != nil {
		log.Warn().Err(err).Msg("DNS hijack unavailable, portal reachable by address only")
	}

	now := m.now()
	m.state.SetMode(device.ModePortal)
	m.state.SetPortalEntered(now)
	m.state.SetNetwork(device.NetworkInfo{SSID: ssid, IP: gw})
	if err := m.scans.EnsureStarted(now); err != nil {
		log.Debug().Err(err).Msg("Scan prewarm failed")
	}

	m.portalBanner(ssid, pass, gw)
	log.Info().Str("ssid", ssid).Bool("open", pass == "").Str("gateway", gw).Msg("Portal mode up")
	m.announceMode(now, "portal", gw)
	return nil
}

// enterConnected tears down portal leftovers and starts the connected-mode
// services. Entering twice neither re-registers discovery nor re-mints the
// token.
func (m *Manager) enterConnected() error {
	m.StopPortalServices()

	cfg := m.state.Snapshot().Config
	m.driver.SetPin(EffectivePin(cfg))
	cfg.ClampBreathing()
	now := m.now()
	m.state.SetBreathing(cfg.BreathPeriod, cfg.BreathMinPct, cfg.BreathMaxPct)
	m.state.SetActuatorMode(cfg.ActuatorMode, now)

	if cfg.APIToken == "" {
		token := ident.MintToken()
		if err := m.store.SetString(device.KeyAPIToken, token); err != nil {
			return fmt.Errorf("persist api token: %w", err)
		}
		m.state.SetToken(token)
		log.Info().Msg("Minted API token")
	}

	host := cfg.Hostname
	if host == "" {
		host = ident.DefaultHostname(m.deviceID)
	}
	if !m.registered {
		txt := []string{"model=onair-sign", "id=" + m.deviceID, "version=" + m.version}
		if err := m.discovery.Register(host, m.httpPort, txt); err != nil {
			log.Warn().Err(err).Msg("Discovery registration failed")
		} else {
			m.registered = true
		}
	}

	st, err := m.radio.Status()
	if err != nil {
		log.Warn().Err(err).Msg("Radio status read failed")
	}
	m.state.SetNetwork(device.NetworkInfo{SSID: st.SSID, IP: st.IP, RSSI: st.RSSI})
	m.state.SetMode(device.ModeConnected)

	log.Info().Str("ssid", st.SSID).Str("ip", st.IP).Str("host", host).Msg("Connected mode up")
	m.announceMode(now, "sta", st.IP)
	return nil
}

// portalBanner emits the AP credentials and a join QR code for out-of-band
// setup.
func (m *Manager) portalBanner(ssid, pass, gateway string) {
	fmt.Fprintf(m.diag, "\nSetup network: %s\n", ssid)
	if pass != "" {
		fmt.Fprintf(m.diag, "Password: %s\n", pass)
	}
	fmt.Fprintf(m.diag, "Setup page: http://%s/\n\n", gateway)
	ident.RenderQR(m.diag, ident.WiFiQR(ssid, pass))
}

func (m *Manager) announceMode(now time.Time, mode, ip string) {
	ev := announce.SystemEvent{Timestamp: now, Event: announce.EventMode, Mode: mode, IP: ip, Retained: true}
	if err := m.announcer.PublishSystem(ev); err != nil {
		log.Warn().Err(err).Msg("Mode announcement failed")
	}
}
