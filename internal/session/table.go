package session

import (
	"net"
	"sync"
	"time"

	"gotnfs/internal/logger"
	"gotnfs/internal/metrics"
)

// Table is the process-wide mapping from session id to Session. The event
// loop goroutine and the reaper goroutine both operate on it, so all
// mutating operations take mu.
type Table struct {
	mu       sync.Mutex
	sessions map[uint16]*Session
	next     uint16
	capacity int
	metrics  metrics.Sink
}

// NewTable creates an empty table that allows at most capacity concurrent
// sessions.
func NewTable(capacity int, m metrics.Sink) *Table {
	if m == nil {
		m = metrics.Noop()
	}
	return &Table{
		sessions: make(map[uint16]*Session),
		next:     1,
		capacity: capacity,
		metrics:  m,
	}
}

// Allocate creates a new Session with a fresh non-zero id for the given
// client address and negotiated version. It returns ok=false if the table
// is already at capacity (spec.md §8 "session-table-full: mount returns
// out of resources").
//
// Ids are handed out from a rotating counter rather than lowest-free, so a
// stale client retrying against a just-reused low id is less likely to
// collide with a different, newer session (spec.md §4.2).
func (t *Table) Allocate(addr *net.UDPAddr, version uint16) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.sessions) >= t.capacity {
		return nil, false
	}

	id := t.nextFreeID()
	s := newSession(id, addr, version)
	t.sessions[id] = s
	t.metrics.SessionCreated()
	t.metrics.SetActiveSessions(len(t.sessions))
	logger.Info("session %d created for %s (protocol version %d)", id, addr, version)
	return s, true
}

// nextFreeID scans forward from the rotating cursor for an id not
// currently in use. Must be called with mu held.
func (t *Table) nextFreeID() uint16 {
	for {
		id := t.next
		t.next++
		if t.next == 0 {
			t.next = 1 // id 0 is reserved for "no session"
		}
		if _, inUse := t.sessions[id]; !inUse {
			return id
		}
	}
}

// Lookup returns the session for id, or ok=false if none is live. It does
// not check the caller's address against the session's recorded address;
// that check belongs to the dispatcher, which also has the datagram's
// source address (spec.md §4.3).
func (t *Table) Lookup(id uint16) (*Session, bool) {
	if id == 0 {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	return s, ok
}

// FindByAddr returns the live session, if any, already mounted from addr.
// Used to implement the established behavior of replacing a stale session
// on remount from the same client rather than leaking a second one.
func (t *Table) FindByAddr(addr *net.UDPAddr) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.sessions {
		if sameAddr(s.addr, addr) {
			return s, true
		}
	}
	return nil, false
}

// Destroy closes every handle owned by id's session and removes it from
// the table. Destroying an unknown id is a no-op.
func (t *Table) Destroy(id uint16) {
	t.mu.Lock()
	s, ok := t.sessions[id]
	if ok {
		delete(t.sessions, id)
	}
	count := len(t.sessions)
	t.mu.Unlock()

	if !ok {
		return
	}
	s.closeHandles()
	t.metrics.SetActiveSessions(count)
	logger.Info("session %d destroyed", id)
}

// Sweep destroys every session idle for longer than timeout. Intended to be
// called periodically by a reaper goroutine (spec.md §4.2, §5).
func (t *Table) Sweep(timeout time.Duration) {
	now := time.Now()

	t.mu.Lock()
	var expired []uint16
	for id, s := range t.sessions {
		if s.IdleSince(now) > timeout {
			expired = append(expired, id)
		}
	}
	t.mu.Unlock()

	for _, id := range expired {
		logger.Info("session %d expired after %s idle", id, timeout)
		t.Destroy(id)
		t.metrics.SessionExpired()
	}
}

// Len returns the number of live sessions, for diagnostics and tests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

func sameAddr(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return false
	}
	return a.IP.Equal(b.IP) && a.Port == b.Port
}
