package web

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/mveplus/onair-led-sign-firmware/internal/device"
)

// requireBasic gates the portal routes behind the admin credentials when
// they are configured. A factory-fresh device has none, so the setup flow
// stays open.
func (s *Server) requireBasic(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg := s.state.Snapshot().Config
		if basicConfigured(cfg) && !basicMatches(r, cfg) {
			s.challenge(w)
			return
		}
		next(w, r)
	}
}

// requireAPIAuth gates the API routes behind the bearer token or the admin
// credentials, whichever the caller presents. With neither factor configured
// the API is open, which only happens before the first Connected boot.
func (s *Server) requireAPIAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg := s.state.Snapshot().Config
		if !basicConfigured(cfg) && cfg.APIToken == "" {
			next(w, r)
			return
		}
		if tokenMatches(r, cfg) || (basicConfigured(cfg) && basicMatches(r, cfg)) {
			next(w, r)
			return
		}
		s.challenge(w)
	}
}

// challenge rejects the request without revealing which factor failed.
func (s *Server) challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="onair-sign"`)
	writeError(w, http.StatusUnauthorized, "unauthorized")
}

// basicConfigured reports whether admin credentials exist.
func basicConfigured(cfg device.Config) bool {
	return cfg.AdminUser != "" && cfg.AdminPassword != ""
}

// basicMatches checks the request's Basic credentials in constant time.
func basicMatches(r *http.Request, cfg device.Config) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.AdminUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(cfg.AdminPassword)) == 1
	return userOK && passOK
}

// tokenMatches checks the bearer token, presented as the X-API-Token header,
// an Authorization bearer or the token query parameter.
func tokenMatches(r *http.Request, cfg device.Config) bool {
	if cfg.APIToken == "" {
		return false
	}

	presented := r.Header.Get("X-API-Token")
	if presented == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			presented = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if presented == "" {
		presented = r.URL.Query().Get("token")
	}
	if presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(cfg.APIToken)) == 1
}
