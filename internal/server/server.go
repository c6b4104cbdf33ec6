// Package server runs the UDP event loop that turns inbound datagrams into
// Dispatcher calls and replies, plus the background reaper that expires
// idle sessions (spec.md §4.1, §4.2, §5).
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"gotnfs/internal/dispatch"
	"gotnfs/internal/logger"
	"gotnfs/internal/ratelimiter"
	"gotnfs/internal/session"
)

// maxDatagramSize bounds a single recvfrom; requests and replies are
// always far smaller than this (mount paths, plus at most MaxBlockSize of
// file data), so anything larger is not this protocol's traffic.
const maxDatagramSize = 2048

// Config collects the values Server needs beyond the dispatcher and
// session table themselves, kept separate from internal/config so this
// package has no dependency on the flag/env layer.
type Config struct {
	ListenAddr      string
	IdleTimeout     time.Duration
	SweepInterval   time.Duration
	RateLimitPerSec uint
}

// Server owns the UDP socket, the Session Table, and the Dispatcher that
// turns datagrams into replies. A single goroutine reads and dispatches
// sequentially (spec.md §5: "a single-threaded event loop is sufficient
// for the expected load of this service"); a second goroutine sweeps
// idle sessions on its own cadence.
type Server struct {
	addr        string
	sessions    *session.Table
	dispatcher  *dispatch.Dispatcher
	idleTimeout time.Duration
	sweepEvery  time.Duration
	limiter     *ratelimiter.PerAddress
	conn        *net.UDPConn
}

// New builds a Server bound to cfg.ListenAddr, serving sessions through
// dispatcher (main wires metrics into both before calling New).
func New(cfg Config, sessions *session.Table, dispatcher *dispatch.Dispatcher) *Server {
	return &Server{
		addr:        cfg.ListenAddr,
		sessions:    sessions,
		dispatcher:  dispatcher,
		idleTimeout: cfg.IdleTimeout,
		sweepEvery:  cfg.SweepInterval,
		limiter:     ratelimiter.New(cfg.RateLimitPerSec),
	}
}

// Serve opens the UDP socket and blocks, reading and dispatching
// datagrams until ctx is cancelled or the socket is closed (see Stop).
// Other read errors are logged and the loop carries on.
func (s *Server) Serve(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listen udp: %w", err)
	}
	s.conn = conn
	logger.Info("tnfsd listening on %s", conn.LocalAddr())

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go s.reap(ctx)

	buf := make([]byte, maxDatagramSize)
	for {
		n, clientAddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
				logger.Debug("read error: %v", err)
				continue
			}
		}

		if !s.limiter.Allow(clientAddr) {
			logger.Debug("rate limit exceeded for %s, dropping datagram", clientAddr)
			continue
		}

		reply := s.dispatcher.Handle(clientAddr, buf[:n])
		if reply == nil {
			continue
		}
		if _, err := conn.WriteToUDP(reply, clientAddr); err != nil {
			logger.Debug("write error to %s: %v", clientAddr, err)
		}
	}
}

// reap periodically sweeps the session table for idle sessions. Cadence
// is the caller's responsibility to keep at or below timeout/10, per
// spec.md §5; Server does not second-guess the configured interval.
func (s *Server) reap(ctx context.Context) {
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sessions.Sweep(s.idleTimeout)
			s.dispatcher.ReportOpenHandles()
		}
	}
}

// Stop closes the listening socket, unblocking Serve.
func (s *Server) Stop() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
