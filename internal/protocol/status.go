package protocol

// Status is a protocol-level status/error code, carried in the first byte
// of a reply's payload. Zero means success.
//
// Numeric values match the deployed protocol's error table so existing
// clients interpret them correctly; do not renumber these.
type Status uint8

const (
	StatusOK             Status = 0x00
	StatusEPERM          Status = 0x01
	StatusENOENT         Status = 0x02
	StatusEIO            Status = 0x03
	StatusENXIO          Status = 0x04
	StatusE2BIG          Status = 0x05
	StatusEBADF          Status = 0x06
	StatusEAGAIN         Status = 0x07
	StatusENOMEM         Status = 0x08
	StatusEACCES         Status = 0x09
	StatusEBUSY          Status = 0x0A
	StatusEEXIST         Status = 0x0B
	StatusENOTDIR        Status = 0x0C
	StatusEISDIR         Status = 0x0D
	StatusEINVAL         Status = 0x0E
	StatusENFILE         Status = 0x0F
	StatusEMFILE         Status = 0x10
	StatusEFBIG          Status = 0x11
	StatusENOSPC         Status = 0x12
	StatusESPIPE         Status = 0x13
	StatusEROFS          Status = 0x14
	StatusENAMETOOLONG   Status = 0x15
	StatusENOSYS         Status = 0x16
	StatusENOTEMPTY      Status = 0x17
	StatusELOOP          Status = 0x18
	StatusENODATA        Status = 0x19
	StatusENOSTR         Status = 0x1A
	StatusEPROTO         Status = 0x1B
	StatusEBADFD         Status = 0x1C
	StatusEUSERS         Status = 0x1D
	StatusENOBUFS        Status = 0x1E
	StatusEALREADY       Status = 0x1F
	// StatusESTALE also covers the "invalid session" taxonomy entry of
	// spec.md §7: unknown session id, address mismatch, or an id reused
	// by the reaper out from under a stale client.
	StatusESTALE         Status = 0x20
	StatusEOF            Status = 0x21
)

// String implements fmt.Stringer for logging.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "EUNKNOWN"
}

var statusNames = map[Status]string{
	StatusOK:           "SUCCESS",
	StatusEPERM:        "EPERM",
	StatusENOENT:       "ENOENT",
	StatusEIO:          "EIO",
	StatusENXIO:        "ENXIO",
	StatusE2BIG:        "E2BIG",
	StatusEBADF:        "EBADF",
	StatusEAGAIN:       "EAGAIN",
	StatusENOMEM:       "ENOMEM",
	StatusEACCES:       "EACCES",
	StatusEBUSY:        "EBUSY",
	StatusEEXIST:       "EEXIST",
	StatusENOTDIR:      "ENOTDIR",
	StatusEISDIR:       "EISDIR",
	StatusEINVAL:       "EINVAL",
	StatusENFILE:       "ENFILE",
	StatusEMFILE:       "EMFILE",
	StatusEFBIG:        "EFBIG",
	StatusENOSPC:       "ENOSPC",
	StatusESPIPE:       "ESPIPE",
	StatusEROFS:        "EROFS",
	StatusENAMETOOLONG: "ENAMETOOLONG",
	StatusENOSYS:       "ENOSYS",
	StatusENOTEMPTY:    "ENOTEMPTY",
	StatusELOOP:        "ELOOP",
	StatusENODATA:      "ENODATA",
	StatusENOSTR:       "ENOSTR",
	StatusEPROTO:       "EPROTO",
	StatusEBADFD:       "EBADFD",
	StatusEUSERS:       "EUSERS",
	StatusENOBUFS:      "ENOBUFS",
	StatusEALREADY:     "EALREADY",
	StatusESTALE:       "ESTALE",
	StatusEOF:          "EEOF",
}

// Err wraps a Status as an error, for handlers that want to return it
// through a normal Go error path (e.g. from the filesystem mediator).
type Err struct {
	Status Status
}

func (e *Err) Error() string {
	return "protocol status " + e.Status.String()
}

// AsStatus unwraps err into a Status, defaulting to EIO for any error that
// did not originate as a *Err.
func AsStatus(err error) Status {
	if err == nil {
		return StatusOK
	}
	if pe, ok := err.(*Err); ok {
		return pe.Status
	}
	return StatusEIO
}

// Status.AsError turns a non-OK status into an error.
func (s Status) AsError() error {
	if s == StatusOK {
		return nil
	}
	return &Err{Status: s}
}
