package device

import (
	"sync"
	"time"
)

// NetworkInfo is the device's view of its own network position. In Portal
// mode SSID is the soft-AP name and IP the gateway address; in Connected
// mode they describe the joined network.
type NetworkInfo struct {
	SSID string
	IP   string
	RSSI int
}

// Actuator is the live actuator state driven by the control loop.
type Actuator struct {
	Mode       ActuatorMode
	PeriodMs   int
	MinPct     int
	MaxPct     int
	PhaseStart time.Time
	// Level is the last intensity written to the hardware, for status display.
	Level int
}

// Snapshot is a point-in-time view of device state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Mode        Mode
	Actuator    Actuator
	Network     NetworkInfo
	Config      Config
	StartTime   time.Time
	PortalSince time.Time
	Now         time.Time
	Version     string
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// PortalAge returns how long the portal has been up, or zero outside Portal.
func (s Snapshot) PortalAge() time.Duration {
	if s.Mode != ModePortal || s.PortalSince.IsZero() {
		return 0
	}
	return s.Now.Sub(s.PortalSince)
}

// State holds mutable device state behind an RWMutex. The control loop and
// HTTP handlers are the two writer contexts; every mutation happens inside
// one method call so no reader observes a torn combination.
type State struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewState creates a State seeded with the loaded config.
func NewState(startTime time.Time, cfg Config, version string) *State {
	return &State{
		snap: Snapshot{
			Mode:      ModeUninitialized,
			StartTime: startTime,
			Version:   version,
			Config:    cfg,
			Actuator: Actuator{
				Mode:     cfg.ActuatorMode,
				PeriodMs: cfg.BreathPeriod,
				MinPct:   cfg.BreathMinPct,
				MaxPct:   cfg.BreathMaxPct,
			},
		},
	}
}

// SetMode records a provisioning mode transition. Only the provisioning
// manager calls this.
func (s *State) SetMode(m Mode) {
	s.mu.Lock()
	s.snap.Mode = m
	s.mu.Unlock()
}

// SetPortalEntered stamps the portal-entry time for the idle timeout.
func (s *State) SetPortalEntered(t time.Time) {
	s.mu.Lock()
	s.snap.PortalSince = t
	s.mu.Unlock()
}

// SetNetwork replaces the cached network info.
func (s *State) SetNetwork(info NetworkInfo) {
	s.mu.Lock()
	s.snap.Network = info
	s.mu.Unlock()
}

// SetConfig replaces the cached provisioning config.
func (s *State) SetConfig(cfg Config) {
	s.mu.Lock()
	s.snap.Config = cfg
	s.mu.Unlock()
}

// SetActuatorMode switches the actuator mode. Entering Breathing resets the
// waveform phase so the wave always starts at its minimum.
func (s *State) SetActuatorMode(m ActuatorMode, now time.Time) {
	s.mu.Lock()
	s.snap.Actuator.Mode = m
	s.snap.Config.ActuatorMode = m
	if m == ActuatorBreathing {
		s.snap.Actuator.PhaseStart = now
	}
	s.mu.Unlock()
}

// SetBreathing updates the waveform parameters. Callers validate first.
func (s *State) SetBreathing(periodMs, minPct, maxPct int) {
	s.mu.Lock()
	s.snap.Actuator.PeriodMs = periodMs
	s.snap.Actuator.MinPct = minPct
	s.snap.Actuator.MaxPct = maxPct
	s.snap.Config.BreathPeriod = periodMs
	s.snap.Config.BreathMinPct = minPct
	s.snap.Config.BreathMaxPct = maxPct
	s.mu.Unlock()
}

// SetLevel records the intensity last written to the hardware.
func (s *State) SetLevel(pct int) {
	s.mu.Lock()
	s.snap.Actuator.Level = pct
	s.mu.Unlock()
}

// SetToken records a freshly minted API token in the config cache.
func (s *State) SetToken(token string) {
	s.mu.Lock()
	s.snap.Config.APIToken = token
	s.mu.Unlock()
}

// Mode returns the current provisioning mode.
func (s *State) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Mode
}

// Snapshot returns a point-in-time copy of the device state.
// The Now field is set to the current time at the moment of the call.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	snap.Now = time.Now()
	return snap
}
