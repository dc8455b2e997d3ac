package wifi

import (
	"context"
	"sync"
)

// FakeRadio is a scripted test double for the Radio interface.
type FakeRadio struct {
	mu sync.Mutex

	// Reachable lists the SSIDs a connect attempt will eventually join.
	Reachable map[string]bool

	// ConnectAfterPolls is how many Status calls a successful attempt takes
	// before it reports connected. Zero connects on the first poll.
	ConnectAfterPolls int

	// IP is the address reported once connected.
	IP string

	// RSSI is the signal reported once connected.
	RSSI int

	// Recorded activity.
	ConnectCalls    []string
	DisconnectCalls int
	StartAPCalls    []APConfig
	StopAPCalls     int
	ScanStarts      int
	SyncScans       int
	Closed          bool

	// Error injection.
	StatusErr    error
	StartScanErr error
	StartAPErr   error
	SyncScanErr  error

	// SyncResults is what SyncScan returns.
	SyncResults []string

	connecting  string
	connected   bool
	statusPolls int
	apUp        bool

	phase    ScanPhase
	scanList []string
}

// NewFakeRadio creates a fake with the given reachable networks.
func NewFakeRadio(reachable ...string) *FakeRadio {
	m := make(map[string]bool, len(reachable))
	for _, ssid := range reachable {
		m[ssid] = true
	}
	return &FakeRadio{Reachable: m, IP: "192.168.1.50", RSSI: -52}
}

func (f *FakeRadio) Connect(ssid, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ConnectCalls = append(f.ConnectCalls, ssid)
	f.connecting = ssid
	f.connected = false
	f.statusPolls = 0
	return nil
}

func (f *FakeRadio) Status() (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.StatusErr != nil {
		return Status{}, f.StatusErr
	}

	if !f.connected && f.connecting != "" && f.Reachable[f.connecting] {
		f.statusPolls++
		if f.statusPolls > f.ConnectAfterPolls {
			f.connected = true
		}
	}

	if !f.connected {
		return Status{}, nil
	}
	return Status{Connected: true, SSID: f.connecting, IP: f.IP, RSSI: f.RSSI}, nil
}

func (f *FakeRadio) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.DisconnectCalls++
	f.connected = false
	f.connecting = ""
	return nil
}

func (f *FakeRadio) StartAP(cfg APConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.StartAPErr != nil {
		return f.StartAPErr
	}
	f.StartAPCalls = append(f.StartAPCalls, cfg)
	f.apUp = true
	return nil
}

func (f *FakeRadio) StopAP() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.StopAPCalls++
	f.apUp = false
	return nil
}

// APUp reports whether the fake AP is currently up.
func (f *FakeRadio) APUp() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.apUp
}

func (f *FakeRadio) StartScan() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.StartScanErr != nil {
		return f.StartScanErr
	}
	f.ScanStarts++
	f.phase = ScanRunning
	f.scanList = nil
	return nil
}

// CompleteScan finishes the in-flight scan with the given raw names.
func (f *FakeRadio) CompleteScan(names []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.scanList = names
	f.phase = ScanDone
}

func (f *FakeRadio) ScanPhase() ScanPhase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

func (f *FakeRadio) ScanResults() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := f.scanList
	f.scanList = nil
	f.phase = ScanIdle
	return names, nil
}

func (f *FakeRadio) SyncScan(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.SyncScans++
	f.scanList = nil
	f.phase = ScanIdle
	if f.SyncScanErr != nil {
		return nil, f.SyncScanErr
	}
	return f.SyncResults, nil
}

func (f *FakeRadio) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Closed = true
	return nil
}
