package wifi

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultScanMaxWait is how long a scan may stay running before the
// watchdog forces a synchronous retry.
const DefaultScanMaxWait = 6 * time.Second

// Coordinator drives non-blocking scans for the portal: handlers poll it,
// it never blocks them while a scan runs, and a watchdog rescues scans that
// wedge. Time is injected by the caller. Portal handlers poll concurrently,
// so the scan lifecycle sits behind a mutex.
type Coordinator struct {
	radio   Radio
	maxWait time.Duration

	mu        sync.Mutex
	started   time.Time
	lastCount int // -1 until a scan has ever completed
	lastAt    time.Time
}

// NewCoordinator creates a coordinator with the given watchdog threshold.
func NewCoordinator(radio Radio, maxWait time.Duration) *Coordinator {
	if maxWait <= 0 {
		maxWait = DefaultScanMaxWait
	}
	return &Coordinator{radio: radio, maxWait: maxWait, lastCount: -1}
}

// EnsureStarted kicks off a scan unless one is already running or completed
// results are still waiting to be consumed.
func (c *Coordinator) EnsureStarted(now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureStarted(now)
}

func (c *Coordinator) ensureStarted(now time.Time) error {
	switch c.radio.ScanPhase() {
	case ScanRunning, ScanDone:
		return nil
	}

	if err := c.radio.StartScan(); err != nil {
		return err
	}
	c.started = now
	return nil
}

// Poll is the non-blocking scan query. It reports scanning=true while a scan
// runs (starting one if needed), or drains and returns the cleaned network
// list when one has completed. Consuming results means the next Poll starts
// a fresh scan.
func (c *Coordinator) Poll(ctx context.Context, now time.Time) (scanning bool, ssids []string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.radio.ScanPhase() {
	case ScanRunning:
		if now.Sub(c.started) > c.maxWait {
			return c.rescue(ctx, now)
		}
		return true, nil, nil

	case ScanDone:
		raw, err := c.radio.ScanResults()
		if err != nil {
			return false, nil, err
		}
		return false, c.finish(raw, now), nil

	default:
		if err := c.ensureStarted(now); err != nil {
			return false, nil, err
		}
		return true, nil, nil
	}
}

// rescue forces a synchronous retry of a wedged scan. If even that fails,
// the scan is declared stale and restarted on the next poll.
func (c *Coordinator) rescue(ctx context.Context, now time.Time) (bool, []string, error) {
	log.Warn().Dur("stuck_for", now.Sub(c.started)).Msg("Scan wedged, forcing synchronous retry")

	raw, err := c.radio.SyncScan(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Synchronous scan retry failed")
		c.started = now
		return true, nil, nil
	}
	return false, c.finish(raw, now), nil
}

// finish cleans raw scan output (drops empty hidden-network names,
// de-duplicates preserving order) and records the completion.
func (c *Coordinator) finish(raw []string, now time.Time) []string {
	seen := make(map[string]bool, len(raw))
	names := make([]string, 0, len(raw))
	for _, name := range raw {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	c.lastCount = len(names)
	c.lastAt = now
	log.Debug().Int("networks", len(names)).Msg("Scan completed")
	return names
}

// LastScan reports the most recent completed scan: its network count and
// when it finished. Count is -1 if no scan has ever completed.
func (c *Coordinator) LastScan() (int, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCount, c.lastAt
}
