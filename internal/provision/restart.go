package provision

import "time"

// Restarter performs the full process restart that realizes every mode
// transition. Restart returns immediately; the delay is applied before the
// process goes down so an in-flight HTTP response can reach the client.
type Restarter interface {
	Restart(reason string, delay time.Duration)
}
