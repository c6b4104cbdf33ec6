// Package dispatch implements the Command Dispatcher of spec.md §4.3: it
// classifies decoded requests, enforces session preconditions, applies
// replay suppression, and routes to the Filesystem Mediator.
package dispatch

import (
	"net"
	"time"

	"gotnfs/internal/fsmediator"
	"gotnfs/internal/handle"
	"gotnfs/internal/logger"
	"gotnfs/internal/metrics"
	"gotnfs/internal/protocol"
	"gotnfs/internal/session"
)

// MaxBlockSize is the largest number of bytes the server will read or
// write in a single READBLOCK/WRITEBLOCK, matching the deployed protocol's
// per-block ceiling (original_source/tnfsd.py MAX_IOSZ). Requests asking
// for more are silently clamped, per spec.md §8.
const MaxBlockSize = 512

// ProtocolVersion is the version this server reports at mount, independent
// of whatever a client requests (spec.md §9 Open Question: version is
// advisory metadata only).
const ProtocolVersion = 0x0002

// minRetryDeciseconds is the retry-interval suggestion carried in the mount
// reply, in tenths of a second.
const minRetryDeciseconds = 10

// handlerFunc executes one session-bearing command and returns the status
// and reply payload to encode. It must not itself encode the header.
type handlerFunc func(d *Dispatcher, s *session.Session, payload []byte) (protocol.Status, []byte)

// handlers is a densely indexed function table keyed by opcode value, per
// spec.md §9's "Dynamic dispatch by opcode" design note. Unset slots fall
// through to the unsupported-operation response.
var handlers [256]handlerFunc

func init() {
	handlers[protocol.CmdOpenDir] = handleOpenDir
	handlers[protocol.CmdReadDir] = handleReadDir
	handlers[protocol.CmdCloseDir] = handleCloseDir
	handlers[protocol.CmdMkDir] = handleMkDir
	handlers[protocol.CmdRmDir] = handleRmDir
	handlers[protocol.CmdTellDir] = handleTellDir
	handlers[protocol.CmdSeekDir] = handleSeekDir
	handlers[protocol.CmdOpenDirX] = handleOpenDirX
	handlers[protocol.CmdReadDirX] = handleReadDirX

	handlers[protocol.CmdOpenFile] = handleOpenFile
	handlers[protocol.CmdOpenFileOld] = handleOpenFileOld
	handlers[protocol.CmdReadBlock] = handleReadBlock
	handlers[protocol.CmdWriteBlock] = handleWriteBlock
	handlers[protocol.CmdCloseFile] = handleCloseFile
	handlers[protocol.CmdStatFile] = handleStatFile
	handlers[protocol.CmdSeekFile] = handleSeekFile
	handlers[protocol.CmdUnlinkFile] = handleUnlinkFile
	handlers[protocol.CmdChmodFile] = handleChmodFile
	handlers[protocol.CmdRenameFile] = handleRenameFile
}

// Dispatcher owns the process-wide Session Table and the Filesystem
// Mediator, and turns decoded datagrams into reply datagrams.
type Dispatcher struct {
	mediator *fsmediator.Mediator
	sessions *session.Table
	metrics  metrics.Sink
}

// New returns a Dispatcher serving root through sessions, reporting to m
// (use metrics.Noop() to disable).
func New(root string, sessions *session.Table, m metrics.Sink) *Dispatcher {
	if m == nil {
		m = metrics.Noop()
	}
	return &Dispatcher{
		mediator: fsmediator.New(root),
		sessions: sessions,
		metrics:  m,
	}
}

// Handle decodes one datagram from addr and returns the reply bytes to
// send, or nil if the datagram must be dropped silently (spec.md §4.1,
// §4.3, §7).
func (d *Dispatcher) Handle(addr *net.UDPAddr, data []byte) []byte {
	hdr, payload, ok := protocol.DecodeRequest(data)
	if !ok {
		return nil
	}

	switch hdr.Command {
	case protocol.CmdMount:
		return d.dispatchMount(hdr, addr, payload)
	case protocol.CmdUmount:
		return d.dispatchUmount(hdr, addr)
	}

	s, ok := d.sessions.Lookup(hdr.SessionID)
	if !ok || !sameAddr(s.Addr(), addr) {
		return protocol.EncodeReply(hdr, protocol.StatusESTALE, nil)
	}

	if cached, hit := s.CheckReplay(hdr.Sequence); hit {
		return cached
	}

	s.Touch()

	h := handlers[hdr.Command]
	if h == nil {
		reply := protocol.EncodeReply(hdr, protocol.StatusENOSYS, nil)
		s.RecordReply(hdr.Sequence, reply)
		return reply
	}

	start := time.Now()
	status, resp := h(d, s, payload)
	d.metrics.RequestCompleted(hdr.Command.Name(), status.String(), time.Since(start))
	d.reportOpenHandles()

	reply := protocol.EncodeReply(hdr, status, resp)
	s.RecordReply(hdr.Sequence, reply)
	return reply
}

// reportOpenHandles pushes the current process-wide open-handle counts to
// the metrics sink. Cheap enough (two atomic loads) to call after every
// request that could have changed them, rather than only from the specific
// OPENFILE/CLOSEFILE/OPENDIR/CLOSEDIR handlers.
func (d *Dispatcher) reportOpenHandles() {
	d.metrics.SetOpenHandles("file", int(handle.OpenFileCount()))
	d.metrics.SetOpenHandles("dir", int(handle.OpenDirCount()))
}

// ReportOpenHandles is reportOpenHandles exported for callers outside this
// package, namely the server's reaper goroutine: an idle-timeout sweep can
// close handles via session destruction without any request passing
// through Handle to trigger the usual post-dispatch report.
func (d *Dispatcher) ReportOpenHandles() {
	d.reportOpenHandles()
}

func sameAddr(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return false
	}
	return a.IP.Equal(b.IP) && a.Port == b.Port
}

// dispatchMount implements the session-opening class (spec.md §4.3): the
// request must carry session id zero, and on success the reply's session
// id is the newly assigned one, not the request's.
func (d *Dispatcher) dispatchMount(hdr protocol.Header, addr *net.UDPAddr, payload []byte) []byte {
	if hdr.SessionID != 0 {
		return protocol.EncodeReply(hdr, protocol.StatusEINVAL, nil)
	}
	status, resp, sid := d.handleMount(addr, payload)
	d.reportOpenHandles()
	replyHeader := protocol.Header{SessionID: sid, Sequence: hdr.Sequence, Command: hdr.Command}
	return protocol.EncodeReply(replyHeader, status, resp)
}

// dispatchUmount implements the session-closing class: the session is
// destroyed only after the reply has been built, per spec.md §4.3.
func (d *Dispatcher) dispatchUmount(hdr protocol.Header, addr *net.UDPAddr) []byte {
	s, ok := d.sessions.Lookup(hdr.SessionID)
	if !ok || !sameAddr(s.Addr(), addr) {
		return protocol.EncodeReply(hdr, protocol.StatusESTALE, nil)
	}
	reply := protocol.EncodeReply(hdr, protocol.StatusOK, nil)
	d.sessions.Destroy(hdr.SessionID)
	d.reportOpenHandles()
	return reply
}

func (d *Dispatcher) handleMount(addr *net.UDPAddr, payload []byte) (protocol.Status, []byte, uint16) {
	if len(payload) < 2 {
		return protocol.StatusEINVAL, nil, 0
	}
	version := le16(payload[0:2])
	rest := payload[2:]

	_, rest, ok := readCString(rest) // mount path; a single shared root, so unused beyond validation
	if !ok {
		return protocol.StatusEINVAL, nil, 0
	}
	_, rest, ok = readCString(rest) // user; authentication is out of scope
	if !ok {
		return protocol.StatusEINVAL, nil, 0
	}
	_, _, ok = readCString(rest) // password
	if !ok {
		return protocol.StatusEINVAL, nil, 0
	}

	if existing, found := d.sessions.FindByAddr(addr); found {
		logger.Info("replacing stale session %d for remount from %s", existing.ID, addr)
		d.sessions.Destroy(existing.ID)
	}

	s, ok := d.sessions.Allocate(addr, version)
	if !ok {
		return protocol.StatusENOMEM, nil, 0
	}

	resp := putLE16(nil, ProtocolVersion)
	resp = putLE16(resp, minRetryDeciseconds)
	return protocol.StatusOK, resp, s.ID
}
