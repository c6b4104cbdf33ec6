// Package metrics provides optional observability for the daemon. All
// components depend on the Sink interface, so metrics.Noop() can stand in
// for a real registry-backed Sink wherever Config.Metrics.Enabled is false.
package metrics

import "time"

// Sink receives counters and gauges from the session table and dispatcher.
type Sink interface {
	// SessionCreated is called once per successful mount.
	SessionCreated()
	// SessionExpired is called once per session the reaper destroys for
	// idleness (not for explicit unmount).
	SessionExpired()
	// SetActiveSessions reports the current live session count.
	SetActiveSessions(n int)

	// RequestCompleted records one dispatched request.
	RequestCompleted(command string, status string, duration time.Duration)

	// BytesTransferred records payload bytes moved by read-block/write-block.
	// direction is "read" or "write".
	BytesTransferred(direction string, n int)

	// SetOpenHandles reports the current open-handle count for kind,
	// which is "file" or "dir".
	SetOpenHandles(kind string, n int)
}

type noop struct{}

func (noop) SessionCreated()                                            {}
func (noop) SessionExpired()                                            {}
func (noop) SetActiveSessions(int)                                      {}
func (noop) RequestCompleted(string, string, time.Duration)             {}
func (noop) BytesTransferred(string, int)                               {}
func (noop) SetOpenHandles(string, int)                                 {}

// Noop returns a Sink that discards everything it is given.
func Noop() Sink { return noop{} }
