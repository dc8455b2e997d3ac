//go:build !linux

package provision

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// ExecRestarter exits after the delay and relies on the process supervisor
// to bring the daemon back up.
type ExecRestarter struct{}

func (ExecRestarter) Restart(reason string, delay time.Duration) {
	go func() {
		log.Info().Str("reason", reason).Dur("delay", delay).Msg("Restarting")
		if delay > 0 {
			time.Sleep(delay)
		}
		os.Exit(0)
	}()
}
