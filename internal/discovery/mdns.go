package discovery

import (
	"fmt"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog/log"
)

const (
	serviceType   = "_http._tcp"
	serviceDomain = "local."
)

// MDNS is the zeroconf-backed Registrar.
type MDNS struct {
	mu     sync.Mutex
	server *zeroconf.Server
}

func (m *MDNS) Register(instance string, port int, txt []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		m.server.Shutdown()
		m.server = nil
	}

	srv, err := zeroconf.Register(instance, serviceType, serviceDomain, port, txt, nil)
	if err != nil {
		return fmt.Errorf("register mdns service %q: %w", instance, err)
	}
	m.server = srv

	log.Info().Str("instance", instance).Int("port", port).Msg("mDNS service registered")
	return nil
}

func (m *MDNS) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server == nil {
		return
	}
	m.server.Shutdown()
	m.server = nil
	log.Info().Msg("mDNS service withdrawn")
}
