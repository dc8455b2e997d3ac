package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mveplus/onair-led-sign-firmware/internal/device"
)

// envelope is the uniform mutation response: ok, plus the reason when not.
type envelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// scanPendingJSON reports a network sweep still in flight.
type scanPendingJSON struct {
	Scanning bool `json:"scanning"`
}

// scanResultsJSON carries the cleaned network list of a completed sweep.
type scanResultsJSON struct {
	SSIDs []string `json:"ssids"`
}

// StatusJSON is the JSON representation of the device status.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	ID            string      `json:"id"`
	Hostname      string      `json:"hostname"`
	Mode          string      `json:"mode"`
	Version       string      `json:"version"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	StartTime     string      `json:"start_time"`
	Timestamp     string      `json:"timestamp"`
	Network       NetworkJSON `json:"network"`
	Sign          SignJSON    `json:"sign"`
}

// NetworkJSON describes the joined network, or the soft AP in portal mode.
type NetworkJSON struct {
	SSID string `json:"ssid"`
	IP   string `json:"ip"`
	RSSI int    `json:"rssi,omitempty"`
}

// SignJSON is the actuator block of the status document.
type SignJSON struct {
	Mode     string `json:"mode"`
	Level    int    `json:"level"`
	PeriodMs int    `json:"period_ms"`
	MinPct   int    `json:"min_pct"`
	MaxPct   int    `json:"max_pct"`
}

// ConfigJSON is the JSON representation of the persisted configuration.
type ConfigJSON struct {
	Config ConfigInner `json:"config"`
}

// ConfigInner contains the configuration details. Passwords are reported as
// set or not, never echoed; the API token is included because it is the API
// credential itself and the caller already holds one.
type ConfigInner struct {
	SSID          string `json:"ssid"`
	PasswordSet   bool   `json:"pass_set"`
	Hostname      string `json:"host"`
	OutputPin     int    `json:"out"`
	UseBuiltinLED bool   `json:"usebl"`
	LEDActiveHigh bool   `json:"ledah"`
	AdminUser     string `json:"auth_user"`
	AdminPassSet  bool   `json:"auth_pass_set"`
	APPassSet     bool   `json:"ap_pass_set"`
	APIToken      string `json:"api_token"`
	Mode          string `json:"mode"`
	PeriodMs      int    `json:"br_period"`
	MinPct        int    `json:"br_min"`
	MaxPct        int    `json:"br_max"`
}

// wireMode maps the provisioning mode to its API name.
func wireMode(m device.Mode) string {
	switch m {
	case device.ModeConnected:
		return "sta"
	case device.ModePortal:
		return "ap"
	default:
		return "unknown"
	}
}

func statusDocument(snap device.Snapshot, deviceID, hostname string) StatusJSON {
	return StatusJSON{
		Status: StatusInner{
			ID:            deviceID,
			Hostname:      hostname,
			Mode:          wireMode(snap.Mode),
			Version:       snap.Version,
			UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
			StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
			Timestamp:     snap.Now.UTC().Format(time.RFC3339),
			Network: NetworkJSON{
				SSID: snap.Network.SSID,
				IP:   snap.Network.IP,
				RSSI: snap.Network.RSSI,
			},
			Sign: SignJSON{
				Mode:     snap.Actuator.Mode.String(),
				Level:    snap.Actuator.Level,
				PeriodMs: snap.Actuator.PeriodMs,
				MinPct:   snap.Actuator.MinPct,
				MaxPct:   snap.Actuator.MaxPct,
			},
		},
	}
}

func configDocument(cfg device.Config) ConfigJSON {
	return ConfigJSON{
		Config: ConfigInner{
			SSID:          cfg.SSID,
			PasswordSet:   cfg.WifiPassword != "",
			Hostname:      cfg.Hostname,
			OutputPin:     cfg.OutputPin,
			UseBuiltinLED: cfg.UseBuiltinLED,
			LEDActiveHigh: cfg.LEDActiveHigh,
			AdminUser:     cfg.AdminUser,
			AdminPassSet:  cfg.AdminPassword != "",
			APPassSet:     cfg.APPassword != "",
			APIToken:      cfg.APIToken,
			Mode:          cfg.ActuatorMode.String(),
			PeriodMs:      cfg.BreathPeriod,
			MinPct:        cfg.BreathMinPct,
			MaxPct:        cfg.BreathMaxPct,
		},
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(append(data, '\n'))
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, envelope{OK: true})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, envelope{OK: false, Error: msg})
}
