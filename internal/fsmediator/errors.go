package fsmediator

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"syscall"

	"gotnfs/internal/protocol"
)

// translate maps a host-native error into a protocol.Status, per spec.md §7
// ("Host errors are translated at the Mediator boundary to the taxonomy
// above; the command dispatcher never surfaces a host-native error code").
//
// *protocol.Err passes through unchanged, so handlers that already produced
// a protocol-level status (e.g. from Confine) can funnel through the same
// return path as handlers that only made host calls.
func translate(err error) protocol.Status {
	if err == nil {
		return protocol.StatusOK
	}

	var perr *protocol.Err
	if errors.As(err, &perr) {
		return perr.Status
	}

	if errors.Is(err, io.EOF) {
		return protocol.StatusEOF
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if s, ok := errnoStatus[errno]; ok {
			return s
		}
		return protocol.StatusEIO
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return protocol.StatusENOENT
	case errors.Is(err, fs.ErrExist):
		return protocol.StatusEEXIST
	case errors.Is(err, fs.ErrPermission):
		return protocol.StatusEACCES
	case errors.Is(err, os.ErrClosed):
		return protocol.StatusEBADF
	}

	return protocol.StatusEIO
}

// errnoStatus covers the syscall.Errno values the mediator's host calls can
// plausibly return. Unlisted errnos fall back to EIO.
var errnoStatus = map[syscall.Errno]protocol.Status{
	syscall.EPERM:      protocol.StatusEPERM,
	syscall.ENOENT:     protocol.StatusENOENT,
	syscall.EIO:        protocol.StatusEIO,
	syscall.ENXIO:      protocol.StatusENXIO,
	syscall.E2BIG:      protocol.StatusE2BIG,
	syscall.EBADF:      protocol.StatusEBADF,
	syscall.EAGAIN:     protocol.StatusEAGAIN,
	syscall.ENOMEM:     protocol.StatusENOMEM,
	syscall.EACCES:     protocol.StatusEACCES,
	syscall.EBUSY:      protocol.StatusEBUSY,
	syscall.EEXIST:     protocol.StatusEEXIST,
	syscall.ENOTDIR:    protocol.StatusENOTDIR,
	syscall.EISDIR:     protocol.StatusEISDIR,
	syscall.EINVAL:     protocol.StatusEINVAL,
	syscall.ENFILE:     protocol.StatusENFILE,
	syscall.EMFILE:     protocol.StatusEMFILE,
	syscall.EFBIG:      protocol.StatusEFBIG,
	syscall.ENOSPC:     protocol.StatusENOSPC,
	syscall.ESPIPE:     protocol.StatusESPIPE,
	syscall.EROFS:      protocol.StatusEROFS,
	syscall.ENAMETOOLONG: protocol.StatusENAMETOOLONG,
	syscall.ENOSYS:     protocol.StatusENOSYS,
	syscall.ENOTEMPTY:  protocol.StatusENOTEMPTY,
	syscall.ELOOP:      protocol.StatusELOOP,
}
