package provision

import (
	"net"
	"sync"
	"time"
)

// RestartRequest records one captured restart.
type RestartRequest struct {
	Reason string
	Delay  time.Duration
}

// FakeRestarter records restart requests instead of re-executing.
type FakeRestarter struct {
	mu       sync.Mutex
	Requests []RestartRequest
}

func (f *FakeRestarter) Restart(reason string, delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, RestartRequest{Reason: reason, Delay: delay})
}

// Requested reports how many restarts were captured.
func (f *FakeRestarter) Requested() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}

// Last returns the most recent captured restart.
func (f *FakeRestarter) Last() RestartRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Requests) == 0 {
		return RestartRequest{}
	}
	return f.Requests[len(f.Requests)-1]
}

// FakeDNS records hijack responder starts and stops.
type FakeDNS struct {
	mu       sync.Mutex
	Starts   []string
	Gateways []net.IP
	Stops    int

	// StartErr is returned by Start when set.
	StartErr error

	running bool
}

func (f *FakeDNS) Start(addr string, gateway net.IP) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return f.StartErr
	}
	f.Starts = append(f.Starts, addr)
	f.Gateways = append(f.Gateways, gateway)
	f.running = true
	return nil
}

func (f *FakeDNS) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Stops++
	f.running = false
}

// Running reports whether the responder is up.
func (f *FakeDNS) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}
