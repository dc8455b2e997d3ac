// Package web is the device's HTTP control plane. One server carries both
// personalities: the captive setup flow while the device runs its own access
// point, and the status page, JSON API and firmware upload once it has joined
// a network. Handlers consult the provisioning mode and refuse requests that
// do not belong to it.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/mveplus/onair-led-sign-firmware/internal/device"
	"github.com/mveplus/onair-led-sign-firmware/internal/ident"
	"github.com/mveplus/onair-led-sign-firmware/internal/ota"
	"github.com/mveplus/onair-led-sign-firmware/internal/wifi"
)

const (
	// maxImageBytes caps a firmware upload.
	maxImageBytes = 64 << 20

	// maxSaveBytes caps a /save payload.
	maxSaveBytes = 16 << 10

	readHeaderTimeout = 5 * time.Second
)

// captivePaths are the connectivity probes operating systems fire when they
// join a network. Answering them with a redirect is what pops the setup page
// open on the phone.
var captivePaths = []string{
	"/generate_204",        // Android
	"/gen_204",             // Android, older builds
	"/hotspot-detect.html", // Apple
	"/ncsi.txt",            // Windows
	"/connecttest.txt",     // Windows 10 and later
	"/success.txt",         // Firefox
	"/canonical.html",      // Ubuntu
	"/redirect",            // Windows redirect target
}

// Provisioner is the slice of the provisioning manager the handlers drive.
type Provisioner interface {
	SaveAndApply(cfg device.Config) error
	ApplyActuatorMode(mode device.ActuatorMode, periodMs, minPct, maxPct int) error
	RequestRestart(reason string)
}

// Deps are the collaborators a Server needs.
type Deps struct {
	State    *device.State
	Manager  Provisioner
	Scans    *wifi.Coordinator
	Updater  ota.Updater
	DeviceID string

	// Now is the clock used for scan bookkeeping. Defaults to time.Now.
	Now func() time.Time
}

// Server exposes the control plane over HTTP.
type Server struct {
	httpServer *http.Server
	state      *device.State
	manager    Provisioner
	scans      *wifi.Coordinator
	updater    ota.Updater
	deviceID   string
	now        func() time.Time
}

// New creates a Server that will listen on addr.
func New(addr string, d Deps) *Server {
	s := &Server{
		state:    d.State,
		manager:  d.Manager,
		scans:    d.Scans,
		updater:  d.Updater,
		deviceID: d.DeviceID,
		now:      d.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/scan", s.requireBasic(s.portalOnly(s.handleScan))).Methods(http.MethodGet)
	r.HandleFunc("/save", s.requireBasic(s.portalOnly(s.handleSave))).Methods(http.MethodPost)
	r.HandleFunc("/api/status", s.requireAPIAuth(s.handleStatus)).Methods(http.MethodGet)
	r.HandleFunc("/api/set", s.requireAPIAuth(s.handleSet)).Methods(http.MethodGet)
	r.HandleFunc("/api/mode", s.requireAPIAuth(s.handleMode)).Methods(http.MethodGet)
	r.HandleFunc("/api/config", s.requireAPIAuth(s.handleConfig)).Methods(http.MethodGet)
	r.HandleFunc("/api/reboot", s.requireAPIAuth(s.handleReboot)).Methods(http.MethodPost)
	r.HandleFunc("/update", s.requireAPIAuth(s.connectedOnly(s.handleUpdateForm))).Methods(http.MethodGet)
	r.HandleFunc("/update", s.requireAPIAuth(s.connectedOnly(s.handleUpdate))).Methods(http.MethodPost)
	for _, path := range captivePaths {
		r.HandleFunc(path, s.handleCaptive)
	}
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// portalOnly rejects the request with a conflict unless the device is in
// Portal mode.
func (s *Server) portalOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.state.Mode() != device.ModePortal {
			writeError(w, http.StatusConflict, "only available in portal mode")
			return
		}
		next(w, r)
	}
}

// connectedOnly rejects the request with a conflict unless the device is in
// Connected mode.
func (s *Server) connectedOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.state.Mode() != device.ModeConnected {
			writeError(w, http.StatusConflict, "only available in connected mode")
			return
		}
		next(w, r)
	}
}

// handleRoot serves the setup page in Portal mode and the status page once
// connected. The setup page stays open so a factory-fresh device can be
// provisioned; the status page honors the admin credentials when configured.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	snap := s.state.Snapshot()
	if snap.Mode == device.ModePortal {
		count, _ := s.scans.LastScan()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		renderSetup(w, setupData{
			APSSID:    ident.APSSID(s.deviceID),
			Config:    snap.Config,
			ScanCount: count,
		})
		return
	}

	if basicConfigured(snap.Config) && !basicMatches(r, snap.Config) {
		s.challenge(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderStatus(w, snap, s.hostname(snap.Config))
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	scanning, ssids, err := s.scans.Poll(r.Context(), s.now())
	if err != nil {
		// A failed sweep start is retried on the next poll; the client keeps
		// polling either way.
		log.Warn().Err(err).Msg("Scan poll failed")
		writeJSON(w, http.StatusOK, scanPendingJSON{Scanning: true})
		return
	}
	if scanning {
		writeJSON(w, http.StatusOK, scanPendingJSON{Scanning: true})
		return
	}
	if ssids == nil {
		ssids = []string{}
	}
	writeJSON(w, http.StatusOK, scanResultsJSON{SSIDs: ssids})
}

// saveRequest is the /save payload. String fields overwrite the stored
// config wholesale; OutputPin and LEDActiveHigh keep their stored values
// when omitted so a partial API call cannot silently retarget the output.
type saveRequest struct {
	SSID          string `json:"ssid"`
	Password      string `json:"pass"`
	Hostname      string `json:"host"`
	OutputPin     *int   `json:"out"`
	UseBuiltinLED bool   `json:"usebl"`
	LEDActiveHigh *bool  `json:"ledah"`
	AdminUser     string `json:"auth_user"`
	AdminPassword string `json:"auth_pass"`
	APPassword    string `json:"ap_pass"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSaveBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed save payload")
		return
	}

	cfg := s.state.Snapshot().Config
	cfg.SSID = req.SSID
	cfg.WifiPassword = req.Password
	cfg.Hostname = req.Hostname
	cfg.UseBuiltinLED = req.UseBuiltinLED
	cfg.AdminUser = req.AdminUser
	cfg.AdminPassword = req.AdminPassword
	cfg.APPassword = req.APPassword
	if req.OutputPin != nil {
		cfg.OutputPin = *req.OutputPin
	}
	if req.LEDActiveHigh != nil {
		cfg.LEDActiveHigh = *req.LEDActiveHigh
	}

	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.manager.SaveAndApply(cfg); err != nil {
		log.Error().Err(err).Msg("Saving configuration failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.state.Snapshot()
	writeJSON(w, http.StatusOK, statusDocument(snap, s.deviceID, s.hostname(snap.Config)))
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	var mode device.ActuatorMode
	switch r.URL.Query().Get("state") {
	case "1":
		mode = device.ActuatorOn
	case "0":
		mode = device.ActuatorOff
	default:
		writeError(w, http.StatusBadRequest, "state must be 0 or 1")
		return
	}

	snap := s.state.Snapshot()
	if err := s.manager.ApplyActuatorMode(mode, snap.Actuator.PeriodMs, snap.Actuator.MinPct, snap.Actuator.MaxPct); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w)
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, ok := device.ParseActuatorMode(q.Get("mode"))
	if !ok {
		writeError(w, http.StatusBadRequest, "mode must be off, on or breathing")
		return
	}

	// Omitted waveform parameters keep their current values.
	snap := s.state.Snapshot()
	periodMs, err := intParam(q, "period_ms", snap.Actuator.PeriodMs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	minPct, err := intParam(q, "min_pct", snap.Actuator.MinPct)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxPct, err := intParam(q, "max_pct", snap.Actuator.MaxPct)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Breathing validates the effective waveform. Explicit parameters are
	// validated for on and off too, so a bad value never lands in the stored
	// config.
	if mode == device.ActuatorBreathing || q.Has("period_ms") || q.Has("min_pct") || q.Has("max_pct") {
		if err := device.ValidateBreathing(periodMs, minPct, maxPct); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := s.manager.ApplyActuatorMode(mode, periodMs, minPct, maxPct); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	snap := s.state.Snapshot()
	writeJSON(w, http.StatusOK, configDocument(snap.Config))
}

func (s *Server) handleReboot(w http.ResponseWriter, r *http.Request) {
	s.manager.RequestRestart("reboot requested")
	writeOK(w)
}

func (s *Server) handleUpdateForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderUpdate(w)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected a multipart upload")
		return
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			writeError(w, http.StatusBadRequest, "missing image field")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed multipart upload")
			return
		}
		if part.FormName() != "image" {
			continue
		}
		s.applyImage(w, part)
		return
	}
}

// applyImage streams one firmware image into the updater. Success restarts
// onto the fresh image. A commit failure also restarts: the staging layer
// discards the image and the device comes back on the binary it already runs.
func (s *Server) applyImage(w http.ResponseWriter, image io.Reader) {
	if err := s.updater.Begin(-1); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	n, err := io.Copy(s.updater, image)
	if err != nil {
		s.updater.Abort()
		log.Error().Err(err).Int64("bytes", n).Msg("Firmware upload failed")
		writeError(w, http.StatusBadRequest, "upload interrupted")
		return
	}

	if err := s.updater.Commit(); err != nil {
		log.Error().Err(err).Int64("bytes", n).Msg("Firmware commit failed")
		s.manager.RequestRestart("firmware commit failed")
		writeError(w, http.StatusInternalServerError, "commit failed: "+err.Error())
		return
	}

	log.Info().Int64("bytes", n).Msg("Firmware image staged")
	s.manager.RequestRestart("firmware updated")
	writeOK(w)
}

// handleCaptive answers OS connectivity probes. In Portal mode the redirect
// is what makes a phone pop the setup page; outside it the probe paths do
// not exist.
func (s *Server) handleCaptive(w http.ResponseWriter, r *http.Request) {
	if s.state.Mode() == device.ModePortal {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	writeError(w, http.StatusNotFound, "not found")
}

// handleNotFound funnels every unknown URL to the setup page while the
// portal runs, so any address typed into a captive browser lands on it.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if s.state.Mode() == device.ModePortal {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	writeError(w, http.StatusNotFound, "not found")
}

// hostname is the effective discovery name: the configured one, or the
// identity-derived default.
func (s *Server) hostname(cfg device.Config) string {
	if cfg.Hostname != "" {
		return cfg.Hostname
	}
	return ident.DefaultHostname(s.deviceID)
}

// intParam reads an optional integer query parameter.
func intParam(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}
