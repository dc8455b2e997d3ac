// Package discovery advertises the sign's control plane over mDNS/DNS-SD
// so stations on the home network can find it by hostname.
package discovery

// Registrar publishes and withdraws the device's service record.
type Registrar interface {
	// Register advertises an _http._tcp service under instance on port.
	// Registering again replaces the previous advertisement.
	Register(instance string, port int, txt []string) error

	// Close withdraws the advertisement. Safe when never registered.
	Close()
}
