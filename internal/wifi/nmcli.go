package wifi

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// portalConnection is the NetworkManager connection name of the soft AP.
const portalConnection = "onair-portal"

// NMCLIRadio drives the radio by shelling out to nmcli. Scan state is
// guarded by a mutex because the asynchronous scan completes on its own
// goroutine.
type NMCLIRadio struct {
	iface string

	mu       sync.Mutex
	phase    ScanPhase
	scanList []string
}

// NewNMCLIRadio creates a radio bound to the given wireless interface.
func NewNMCLIRadio(iface string) *NMCLIRadio {
	return &NMCLIRadio{iface: iface}
}

func (r *NMCLIRadio) Connect(ssid, password string) error {
	args := []string{"device", "wifi", "connect", ssid}
	if password != "" {
		args = append(args, "password", password)
	}
	args = append(args, "ifname", r.iface)

	// nmcli blocks until the association settles, so run it off-loop; the
	// boot decision watches Status against its own deadline.
	go func() {
		out, err := exec.Command("nmcli", args...).CombinedOutput()
		if err != nil {
			log.Warn().Err(err).Str("ssid", ssid).
				Str("output", strings.TrimSpace(string(out))).
				Msg("nmcli connect attempt failed")
		}
	}()
	return nil
}

func (r *NMCLIRadio) Status() (Status, error) {
	out, err := exec.Command("nmcli", "--terse", "--fields", "ACTIVE,SSID,SIGNAL",
		"device", "wifi", "list", "ifname", r.iface).Output()
	if err != nil {
		return Status{}, fmt.Errorf("nmcli wifi list: %w", err)
	}

	st := parseActiveNetwork(string(out))
	if st.Connected {
		if ip, err := r.ipv4Address(); err == nil {
			st.IP = ip
		}
	}
	return st, nil
}

// parseActiveNetwork reads an ACTIVE:SSID:SIGNAL terse listing and returns
// the station status of the active row, if any.
func parseActiveNetwork(out string) Status {
	var st Status
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.SplitN(line, ":", 3)
		if len(fields) != 3 || fields[0] != "yes" {
			continue
		}
		st.Connected = true
		st.SSID = fields[1]
		if quality, err := strconv.Atoi(fields[2]); err == nil {
			// NetworkManager reports 0-100 quality; map back to dBm.
			st.RSSI = quality/2 - 100
		}
		break
	}
	return st
}

func (r *NMCLIRadio) ipv4Address() (string, error) {
	out, err := exec.Command("nmcli", "-g", "IP4.ADDRESS", "device", "show", r.iface).Output()
	if err != nil {
		return "", fmt.Errorf("nmcli device show: %w", err)
	}
	addr, ok := firstIPv4(string(out))
	if !ok {
		return "", fmt.Errorf("no ipv4 address on %s", r.iface)
	}
	return addr, nil
}

// firstIPv4 picks the first address out of an IP4.ADDRESS listing and strips
// its prefix length.
func firstIPv4(out string) (string, bool) {
	addr := strings.TrimSpace(out)
	if addr == "" {
		return "", false
	}
	addr = strings.Split(addr, "\n")[0]
	if i := strings.IndexByte(addr, '/'); i >= 0 {
		addr = addr[:i]
	}
	return addr, true
}

func (r *NMCLIRadio) Disconnect() error {
	out, err := exec.Command("nmcli", "device", "disconnect", r.iface).CombinedOutput()
	if err != nil {
		return fmt.Errorf("nmcli disconnect: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

func (r *NMCLIRadio) StartAP(cfg APConfig) error {
	args := []string{"device", "wifi", "hotspot",
		"ifname", r.iface, "con-name", portalConnection, "ssid", cfg.SSID}
	if cfg.Password != "" {
		args = append(args, "password", cfg.Password)
	}
	out, err := exec.Command("nmcli", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("nmcli hotspot: %s: %w", strings.TrimSpace(string(out)), err)
	}

	if cfg.Gateway != "" {
		// Pin the shared subnet so the DNS hijack and portal URL are stable.
		mod, err := exec.Command("nmcli", "connection", "modify", portalConnection,
			"ipv4.addresses", cfg.Gateway+"/24").CombinedOutput()
		if err != nil {
			return fmt.Errorf("nmcli pin gateway: %s: %w", strings.TrimSpace(string(mod)), err)
		}
		up, err := exec.Command("nmcli", "connection", "up", portalConnection).CombinedOutput()
		if err != nil {
			return fmt.Errorf("nmcli reactivate hotspot: %s: %w", strings.TrimSpace(string(up)), err)
		}
	}

	log.Info().Str("ssid", cfg.SSID).Str("gateway", cfg.Gateway).Msg("Soft AP up")
	return nil
}

func (r *NMCLIRadio) StopAP() error {
	// Delete rather than down so a portal connection left over from a
	// previous process life is cleaned up too. Absence is fine.
	out, err := exec.Command("nmcli", "connection", "delete", portalConnection).CombinedOutput()
	if err != nil {
		log.Debug().Str("output", strings.TrimSpace(string(out))).
			Msg("No portal connection to delete")
	}
	return nil
}

func (r *NMCLIRadio) StartScan() error {
	r.mu.Lock()
	if r.phase == ScanRunning {
		r.mu.Unlock()
		return nil
	}
	r.phase = ScanRunning
	r.scanList = nil
	r.mu.Unlock()

	go func() {
		names, err := r.listNetworks(context.Background(), true)

		r.mu.Lock()
		defer r.mu.Unlock()
		if err != nil {
			log.Warn().Err(err).Msg("Background scan failed")
			r.phase = ScanIdle
			return
		}
		r.scanList = names
		r.phase = ScanDone
	}()
	return nil
}

func (r *NMCLIRadio) ScanPhase() ScanPhase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *NMCLIRadio) ScanResults() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := r.scanList
	r.scanList = nil
	r.phase = ScanIdle
	return names, nil
}

func (r *NMCLIRadio) SyncScan(ctx context.Context) ([]string, error) {
	names, err := r.listNetworks(ctx, true)

	r.mu.Lock()
	r.scanList = nil
	r.phase = ScanIdle
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return names, nil
}

func (r *NMCLIRadio) listNetworks(ctx context.Context, rescan bool) ([]string, error) {
	args := []string{"--terse", "--fields", "SSID", "device", "wifi", "list", "ifname", r.iface}
	if rescan {
		args = append(args, "--rescan", "yes")
	}
	out, err := exec.CommandContext(ctx, "nmcli", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("nmcli wifi list: %w", err)
	}

	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		names = append(names, strings.TrimSpace(line))
	}
	return names, nil
}

func (r *NMCLIRadio) Close() error {
	return nil
}
