package device

import (
	"errors"
	"fmt"

	"github.com/mveplus/onair-led-sign-firmware/internal/store"
)

// Persisted config keys. The whole set is wiped by a factory reset.
const (
	KeySSID          = "ssid"
	KeyPassword      = "pass"
	KeyHostname      = "host"
	KeyOutputPin     = "out"
	KeyUseBuiltinLED = "usebl"
	KeyLEDActiveHigh = "ledah"
	KeyAdminUser     = "auth_user"
	KeyAdminPassword = "auth_pass"
	KeyAPPassword    = "ap_pass"
	KeyAPIToken      = "api_token"
	KeyActuatorMode  = "mode"
	KeyBreathPeriod  = "br_period"
	KeyBreathMin     = "br_min"
	KeyBreathMax     = "br_max"
)

// Field bounds.
const (
	PeriodMinMs = 500
	PeriodMaxMs = 10000
	PctFloor    = 1
	MinPctCeil  = 99
	MaxPctCeil  = 100

	SSIDMaxLen      = 32
	WifiPassMinLen  = 8
	WifiPassMaxLen  = 63
	HostnameMaxLen  = 32
	AdminUserMaxLen = 32
	AdminPassMaxLen = 64
	PinMax          = 63
)

// Defaults applied when a key has never been stored.
const (
	DefaultOutputPin     = 18
	DefaultBreathPeriod  = 3000
	DefaultBreathMinPct  = 10
	DefaultBreathMaxPct  = 90
	DefaultLEDActiveHigh = true
)

// Config is the persisted provisioning configuration. The Save endpoint
// overwrites it wholesale; factory reset clears it wholesale; actuator
// endpoints and the token mint update individual fields.
type Config struct {
	SSID          string
	WifiPassword  string
	Hostname      string
	OutputPin     int
	UseBuiltinLED bool
	LEDActiveHigh bool
	AdminUser     string
	AdminPassword string
	APPassword    string
	APIToken      string

	ActuatorMode ActuatorMode
	BreathPeriod int
	BreathMinPct int
	BreathMaxPct int
}

// LoadConfig reads the persisted configuration, applying defaults for keys
// never written and clamping the breathing parameters to their legal ranges.
// After clamping, the maxPct > minPct invariant is re-asserted: clamps alone
// do not guarantee it for all stored combinations.
func LoadConfig(s store.Store) (Config, error) {
	cfg := Config{
		OutputPin:     DefaultOutputPin,
		LEDActiveHigh: DefaultLEDActiveHigh,
		BreathPeriod:  DefaultBreathPeriod,
		BreathMinPct:  DefaultBreathMinPct,
		BreathMaxPct:  DefaultBreathMaxPct,
	}

	var err error
	if cfg.SSID, err = loadString(s, KeySSID, cfg.SSID); err != nil {
		return cfg, err
	}
	if cfg.WifiPassword, err = loadString(s, KeyPassword, cfg.WifiPassword); err != nil {
		return cfg, err
	}
	if cfg.Hostname, err = loadString(s, KeyHostname, cfg.Hostname); err != nil {
		return cfg, err
	}
	if cfg.OutputPin, err = loadInt(s, KeyOutputPin, cfg.OutputPin); err != nil {
		return cfg, err
	}
	if cfg.UseBuiltinLED, err = loadBool(s, KeyUseBuiltinLED, cfg.UseBuiltinLED); err != nil {
		return cfg, err
	}
	if cfg.LEDActiveHigh, err = loadBool(s, KeyLEDActiveHigh, cfg.LEDActiveHigh); err != nil {
		return cfg, err
	}
	if cfg.AdminUser, err = loadString(s, KeyAdminUser, cfg.AdminUser); err != nil {
		return cfg, err
	}
	if cfg.AdminPassword, err = loadString(s, KeyAdminPassword, cfg.AdminPassword); err != nil {
		return cfg, err
	}
	if cfg.APPassword, err = loadString(s, KeyAPPassword, cfg.APPassword); err != nil {
		return cfg, err
	}
	if cfg.APIToken, err = loadString(s, KeyAPIToken, cfg.APIToken); err != nil {
		return cfg, err
	}

	modeInt, err := loadInt(s, KeyActuatorMode, int(ActuatorOff))
	if err != nil {
		return cfg, err
	}
	cfg.ActuatorMode = ActuatorModeFromInt(modeInt)

	if cfg.BreathPeriod, err = loadInt(s, KeyBreathPeriod, cfg.BreathPeriod); err != nil {
		return cfg, err
	}
	if cfg.BreathMinPct, err = loadInt(s, KeyBreathMin, cfg.BreathMinPct); err != nil {
		return cfg, err
	}
	if cfg.BreathMaxPct, err = loadInt(s, KeyBreathMax, cfg.BreathMaxPct); err != nil {
		return cfg, err
	}

	if cfg.OutputPin < 0 || cfg.OutputPin > PinMax {
		cfg.OutputPin = DefaultOutputPin
	}
	cfg.ClampBreathing()

	return cfg, nil
}

// ClampBreathing forces the breathing parameters into their legal ranges
// and re-asserts maxPct > minPct afterwards.
func (c *Config) ClampBreathing() {
	c.BreathPeriod = clampInt(c.BreathPeriod, PeriodMinMs, PeriodMaxMs)
	c.BreathMinPct = clampInt(c.BreathMinPct, PctFloor, MinPctCeil)
	c.BreathMaxPct = clampInt(c.BreathMaxPct, PctFloor, MaxPctCeil)
	if c.BreathMaxPct <= c.BreathMinPct {
		c.BreathMaxPct = c.BreathMinPct + 1
	}
}

// Validate checks a portal save payload. The first violated bound wins; no
// state is mutated on failure.
func (c *Config) Validate() error {
	if c.SSID == "" {
		return errors.New("ssid is required")
	}
	if len(c.SSID) > SSIDMaxLen {
		return fmt.Errorf("ssid must be %d characters or fewer", SSIDMaxLen)
	}
	if c.WifiPassword != "" &&
		(len(c.WifiPassword) < WifiPassMinLen || len(c.WifiPassword) > WifiPassMaxLen) {
		return fmt.Errorf("password must be %d-%d characters or empty", WifiPassMinLen, WifiPassMaxLen)
	}
	if len(c.Hostname) > HostnameMaxLen {
		return fmt.Errorf("hostname must be %d characters or fewer", HostnameMaxLen)
	}
	if !validHostname(c.Hostname) {
		return errors.New("hostname may contain only letters, digits and hyphens")
	}
	if c.OutputPin < 0 || c.OutputPin > PinMax {
		return fmt.Errorf("output pin must be 0-%d", PinMax)
	}
	if len(c.AdminUser) > AdminUserMaxLen {
		return fmt.Errorf("admin user must be %d characters or fewer", AdminUserMaxLen)
	}
	if len(c.AdminPassword) > AdminPassMaxLen {
		return fmt.Errorf("admin password must be %d characters or fewer", AdminPassMaxLen)
	}
	if c.APPassword != "" &&
		(len(c.APPassword) < WifiPassMinLen || len(c.APPassword) > WifiPassMaxLen) {
		return fmt.Errorf("ap password must be %d-%d characters or empty", WifiPassMinLen, WifiPassMaxLen)
	}
	return nil
}

// ValidateBreathing checks actuation-endpoint breathing parameters. Error
// text is part of the API surface.
func ValidateBreathing(periodMs, minPct, maxPct int) error {
	if periodMs < PeriodMinMs || periodMs > PeriodMaxMs {
		return fmt.Errorf("period_ms must be %d-%d", PeriodMinMs, PeriodMaxMs)
	}
	if minPct < PctFloor || minPct > MinPctCeil {
		return fmt.Errorf("min_pct must be %d-%d", PctFloor, MinPctCeil)
	}
	if maxPct < PctFloor || maxPct > MaxPctCeil {
		return fmt.Errorf("max_pct must be %d-%d", PctFloor, MaxPctCeil)
	}
	if maxPct <= minPct {
		return errors.New("max_pct must be greater than min_pct")
	}
	return nil
}

// SaveTo persists the whole configuration as a group.
func (c *Config) SaveTo(s store.Store) error {
	writes := []struct {
		key string
		fn  func() error
	}{
		{KeySSID, func() error { return s.SetString(KeySSID, c.SSID) }},
		{KeyPassword, func() error { return s.SetString(KeyPassword, c.WifiPassword) }},
		{KeyHostname, func() error { return s.SetString(KeyHostname, c.Hostname) }},
		{KeyOutputPin, func() error { return s.SetInt(KeyOutputPin, c.OutputPin) }},
		{KeyUseBuiltinLED, func() error { return s.SetBool(KeyUseBuiltinLED, c.UseBuiltinLED) }},
		{KeyLEDActiveHigh, func() error { return s.SetBool(KeyLEDActiveHigh, c.LEDActiveHigh) }},
		{KeyAdminUser, func() error { return s.SetString(KeyAdminUser, c.AdminUser) }},
		{KeyAdminPassword, func() error { return s.SetString(KeyAdminPassword, c.AdminPassword) }},
		{KeyAPPassword, func() error { return s.SetString(KeyAPPassword, c.APPassword) }},
		{KeyAPIToken, func() error { return s.SetString(KeyAPIToken, c.APIToken) }},
		{KeyActuatorMode, func() error { return s.SetInt(KeyActuatorMode, int(c.ActuatorMode)) }},
		{KeyBreathPeriod, func() error { return s.SetInt(KeyBreathPeriod, c.BreathPeriod) }},
		{KeyBreathMin, func() error { return s.SetInt(KeyBreathMin, c.BreathMinPct) }},
		{KeyBreathMax, func() error { return s.SetInt(KeyBreathMax, c.BreathMaxPct) }},
	}

	for _, w := range writes {
		if err := w.fn(); err != nil {
			return fmt.Errorf("persist %s: %w", w.key, err)
		}
	}
	return nil
}

// SaveActuator persists only the actuator fields, used by the runtime
// actuation endpoints so a mode flip does not rewrite credentials.
func (c *Config) SaveActuator(s store.Store) error {
	if err := s.SetInt(KeyActuatorMode, int(c.ActuatorMode)); err != nil {
		return fmt.Errorf("persist %s: %w", KeyActuatorMode, err)
	}
	if err := s.SetInt(KeyBreathPeriod, c.BreathPeriod); err != nil {
		return fmt.Errorf("persist %s: %w", KeyBreathPeriod, err)
	}
	if err := s.SetInt(KeyBreathMin, c.BreathMinPct); err != nil {
		return fmt.Errorf("persist %s: %w", KeyBreathMin, err)
	}
	if err := s.SetInt(KeyBreathMax, c.BreathMaxPct); err != nil {
		return fmt.Errorf("persist %s: %w", KeyBreathMax, err)
	}
	return nil
}

func loadString(s store.Store, key, def string) (string, error) {
	v, ok, err := s.GetString(key)
	if err != nil {
		return def, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

func loadInt(s store.Store, key string, def int) (int, error) {
	v, ok, err := s.GetInt(key)
	if err != nil {
		return def, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

func loadBool(s store.Store, key string, def bool) (bool, error) {
	v, ok, err := s.GetBool(key)
	if err != nil {
		return def, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func validHostname(h string) bool {
	for _, r := range h {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return true
}
