// Package ratelimiter throttles the UDP event loop per client address, so
// one misbehaving or spoofed client cannot starve the single-threaded
// dispatcher from serving everyone else (spec.md §5's concurrency model
// calls out that the event loop processes one datagram at a time).
package ratelimiter

import (
	"net"
	"sync"
	"time"
)

// PerAddress is a fixed one-second-window per-IP request counter, the same
// shape as the teacher's own UDP rate limiter (internal/server/discovery.go's
// udpRateLimiter, which throttles WDP1 DISCOVER floods): the whole counts
// map is wiped whenever the wall-clock second rolls over, so tracked
// addresses never outlive the current window and no separate eviction pass
// is needed.
type PerAddress struct {
	mu        sync.Mutex
	windowSec int64
	counts    map[string]int
	limit     int
}

// New returns a PerAddress limiter allowing limit datagrams per second per
// client IP. limit <= 0 disables limiting entirely (Allow always returns
// true without touching the counts map).
func New(limit uint) *PerAddress {
	return &PerAddress{counts: make(map[string]int), limit: int(limit)}
}

// Allow reports whether a datagram from addr may proceed, counting it
// against addr's IP for the current one-second window.
func (p *PerAddress) Allow(addr *net.UDPAddr) bool {
	if p.limit <= 0 || addr == nil {
		return true
	}

	key := addr.IP.String()
	nowSec := time.Now().Unix()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.windowSec != nowSec {
		p.windowSec = nowSec
		for k := range p.counts {
			delete(p.counts, k)
		}
	}
	p.counts[key]++
	return p.counts[key] <= p.limit
}

// Len reports the number of addresses counted in the current window, for
// diagnostics and tests.
func (p *PerAddress) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.counts)
}
