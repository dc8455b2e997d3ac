// Package dnshijack answers every DNS question with the portal gateway
// address so that captive-portal probes on joined stations resolve to the
// sign's setup page.
package dnshijack

import (
	"fmt"
	"net"
	"sync"

	"github.com/miekg/dns"
	"github.com/rs/zerolog/log"
)

const answerTTL = 60

// Responder is a UDP DNS server that resolves all A questions to a single
// IPv4 address while the portal is up.
type Responder struct {
	mu     sync.Mutex
	server *dns.Server
}

// Start binds the responder to addr (usually "<gateway>:53") and begins
// answering with gateway. Starting a running responder is an error; use
// Stop first.
func (r *Responder) Start(addr string, gateway net.IP) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.server != nil {
		return fmt.Errorf("dns responder already running")
	}

	ip := gateway.To4()
	if ip == nil {
		return fmt.Errorf("dns responder needs an IPv4 gateway, got %v", gateway)
	}

	pc, err := net.ListenPacket("udp4", addr)
	if err != nil {
		return fmt.Errorf("listen udp %s: %w", addr, err)
	}

	srv := &dns.Server{PacketConn: pc, Handler: handler(ip)}
	r.server = srv

	go func() {
		if err := srv.ActivateAndServe(); err != nil {
			log.Warn().Err(err).Msg("DNS responder stopped")
		}
	}()

	log.Info().Str("addr", addr).Str("gateway", ip.String()).Msg("DNS hijack started")
	return nil
}

// Addr reports the bound listen address, or nil when stopped. Useful when
// the responder was started on an ephemeral port.
func (r *Responder) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.server == nil {
		return nil
	}
	return r.server.PacketConn.LocalAddr()
}

// Stop shuts the responder down. Safe to call when never started or
// already stopped.
func (r *Responder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.server == nil {
		return
	}
	if err := r.server.Shutdown(); err != nil {
		log.Debug().Err(err).Msg("DNS responder shutdown")
	}
	r.server = nil
	log.Info().Msg("DNS hijack stopped")
}

// handler builds the hijacking handler: every A question gets the gateway
// address, every other question type gets an empty success so clients move
// on instead of retrying.
func handler(gateway net.IP) dns.HandlerFunc {
	return func(w dns.ResponseWriter, req *dns.Msg) {
		resp := new(dns.Msg)
		resp.SetReply(req)
		resp.Authoritative = true

		for _, q := range req.Question {
			if q.Qtype != dns.TypeA {
				continue
			}
			resp.Answer = append(resp.Answer, &dns.A{
				Hdr: dns.RR_Header{
					Name:   q.Name,
					Rrtype: dns.TypeA,
					Class:  dns.ClassINET,
					Ttl:    answerTTL,
				},
				A: gateway,
			})
		}

		if err := w.WriteMsg(resp); err != nil {
			log.Debug().Err(err).Msg("DNS reply failed")
		}
	}
}
