// Package wifi drives the Wi-Fi radio through NetworkManager and runs the
// portal's non-blocking scan coordinator. The Radio interface is the
// capability surface; NMCLIRadio shells out to nmcli, FakeRadio scripts the
// radio for tests.
package wifi

import "context"

// Status describes the station-side connection.
type Status struct {
	Connected bool
	SSID      string
	IP        string
	RSSI      int
}

// APConfig describes the soft access point for Portal mode.
type APConfig struct {
	SSID     string
	Password string // empty brings up an open network
	Gateway  string // IPv4 address the AP (and the DNS hijack) binds to
}

// ScanPhase tracks the asynchronous scan lifecycle.
type ScanPhase int

const (
	// ScanIdle means no scan has run, or its results were consumed.
	ScanIdle ScanPhase = iota
	// ScanRunning means an asynchronous scan is in flight.
	ScanRunning
	// ScanDone means results are waiting to be drained.
	ScanDone
)

// Radio is the capability surface of the Wi-Fi driver.
type Radio interface {
	// Connect starts a station-mode connection attempt. The caller polls
	// Status against its own deadline; attempt failures are not surfaced
	// here.
	Connect(ssid, password string) error

	// Status reports the current station-side state.
	Status() (Status, error)

	// Disconnect drops the station connection.
	Disconnect() error

	// StartAP brings up the soft access point.
	StartAP(cfg APConfig) error

	// StopAP tears the soft access point down. Safe to call when no AP is
	// up, including one left over from a previous process life.
	StopAP() error

	// StartScan kicks off an asynchronous scan.
	StartScan() error

	// ScanPhase reports where the asynchronous scan stands.
	ScanPhase() ScanPhase

	// ScanResults drains the completed scan, returning raw network names
	// and resetting the phase to idle.
	ScanResults() ([]string, error)

	// SyncScan performs a blocking rescan, bounded by ctx. It also resets
	// any in-flight asynchronous scan state.
	SyncScan(ctx context.Context) ([]string, error)

	Close() error
}
