// Package session implements the per-client Session and the process-wide
// Session Table described in spec.md §3 and §4.2.
package session

import (
	"net"
	"sync"
	"time"

	"gotnfs/internal/handle"
)

// Session is the server-side state established by a successful mount. ID
// never changes; addr, version, lastActivity and the replay cache are
// guarded by mu. The handle tables are not guarded by mu (see Files).
type Session struct {
	ID uint16

	mu           sync.Mutex
	addr         *net.UDPAddr
	version      uint16
	lastActivity time.Time
	files        handle.FileTable
	dirs         handle.DirTable

	// replay cache: a single (sequence, reply) slot, mutated only on
	// completion of a fresh, non-replayed request (spec.md §4.3).
	hasReply   bool
	lastSeq    uint8
	lastReply  []byte
}

func newSession(id uint16, addr *net.UDPAddr, version uint16) *Session {
	return &Session{
		ID:           id,
		addr:         addr,
		version:      version,
		lastActivity: time.Now(),
	}
}

// Addr returns the client address this session was mounted from.
func (s *Session) Addr() *net.UDPAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Version returns the protocol version negotiated at mount. Advisory only;
// behavior does not currently diverge by version (spec.md §9 Open Question).
func (s *Session) Version() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Touch refreshes the last-activity timestamp, extending the idle-timeout
// window.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// IdleSince returns how long it has been since the session's last activity.
func (s *Session) IdleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActivity)
}

// Files returns the session's file-handle table. Callers must not retain
// it past session destruction.
func (s *Session) Files() *handle.FileTable {
	// FileTable and DirTable are not internally synchronized; the
	// dispatcher serializes all access to one session's handles by
	// processing that session's requests one at a time (spec.md §5
	// "within one session, requests are processed in their arrival
	// order"), so no additional locking is needed here.
	return &s.files
}

// Dirs returns the session's directory-handle table.
func (s *Session) Dirs() *handle.DirTable {
	return &s.dirs
}

// CheckReplay returns the cached reply for seq if it matches the last
// completed request's sequence, per the replay-suppression rule in
// spec.md §4.3.
func (s *Session) CheckReplay(seq uint8) (reply []byte, hit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasReply && s.lastSeq == seq {
		return s.lastReply, true
	}
	return nil, false
}

// RecordReply atomically updates the replay cache after a fresh request
// completes. Must not be called for a replayed request.
func (s *Session) RecordReply(seq uint8, reply []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasReply = true
	s.lastSeq = seq
	s.lastReply = reply
}

// closeHandles releases every file and directory handle owned by the
// session. Called once, by the table, on session destruction.
func (s *Session) closeHandles() {
	_ = s.files.CloseAll()
	s.dirs.CloseAll()
}
