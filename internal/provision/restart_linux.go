//go:build linux

package provision

import (
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// ExecRestarter restarts by re-executing the current binary in place, so the
// next process life re-runs the boot decision on a fresh network stack.
type ExecRestarter struct{}

func (ExecRestarter) Restart(reason string, delay time.Duration) {
	go func() {
		log.Info().Str("reason", reason).Dur("delay", delay).Msg("Restarting")
		if delay > 0 {
			time.Sleep(delay)
		}
		exe, err := os.Executable()
		if err != nil {
			log.Error().Err(err).Msg("Restart could not resolve the binary, exiting")
			os.Exit(1)
		}
		if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
			log.Error().Err(err).Msg("Restart exec failed, exiting")
			os.Exit(1)
		}
	}()
}
