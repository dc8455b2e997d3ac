// Package ident derives the device's stable identity from its Wi-Fi
// hardware address and mints the bearer token. The identity feeds the soft-AP
// SSID, the default discovery hostname and the setup QR payload.
package ident

import (
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/google/uuid"
	"github.com/mdp/qrterminal/v3"
)

// SSIDPrefix is the fixed prefix of the soft-AP SSID.
const SSIDPrefix = "ONAIR"

// DeviceID returns twelve stable hex characters derived from the MAC of the
// named interface. If the interface cannot be found, the first interface
// carrying a hardware address is used, so the ID survives an interface
// rename.
func DeviceID(iface string) (string, error) {
	if ifc, err := net.InterfaceByName(iface); err == nil && len(ifc.HardwareAddr) >= 6 {
		return idFromMAC(ifc.HardwareAddr), nil
	}

	all, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("list interfaces: %w", err)
	}
	for _, ifc := range all {
		if ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(ifc.HardwareAddr) >= 6 {
			return idFromMAC(ifc.HardwareAddr), nil
		}
	}
	return "", fmt.Errorf("no interface with a hardware address (wanted %q)", iface)
}

func idFromMAC(mac net.HardwareAddr) string {
	var b strings.Builder
	for _, octet := range mac[:6] {
		fmt.Fprintf(&b, "%02X", octet)
	}
	return b.String()
}

// APSSID builds the soft-AP SSID for a device ID, e.g. ONAIR-A1B2C3D4E5F6.
func APSSID(deviceID string) string {
	return SSIDPrefix + "-" + deviceID
}

// DefaultHostname builds the discovery hostname used when the operator never
// chose one: the prefix plus the last six ID characters, lower-cased.
func DefaultHostname(deviceID string) string {
	suffix := deviceID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return strings.ToLower(SSIDPrefix + "-" + suffix)
}

// MintToken creates a fresh API bearer token.
func MintToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// WiFiQR builds the standard WIFI: QR payload for joining the soft AP. An
// empty password yields an open-network payload.
func WiFiQR(ssid, password string) string {
	if password == "" {
		return fmt.Sprintf("WIFI:T:nopass;S:%s;;", escapeQR(ssid))
	}
	return fmt.Sprintf("WIFI:T:WPA;S:%s;P:%s;;", escapeQR(ssid), escapeQR(password))
}

// escapeQR backslash-escapes the characters the WIFI: format reserves.
func escapeQR(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`;`, `\;`,
		`,`, `\,`,
		`:`, `\:`,
		`"`, `\"`,
	)
	return r.Replace(s)
}

// RenderQR writes a terminal rendering of the payload for out-of-band setup.
func RenderQR(w io.Writer, payload string) {
	qrterminal.GenerateHalfBlock(payload, qrterminal.L, w)
}
