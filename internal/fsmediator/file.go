package fsmediator

import (
	"io"
	"os"

	"gotnfs/internal/handle"
	"gotnfs/internal/protocol"
)

// Current OPENFILE flag bits, per spec.md §4.4.3. These are the only flags
// the dispatcher's OPENFILE handler ever sees; legacy OPENFILE_OLD requests
// are translated into this set before reaching the mediator (see
// TranslateLegacyFlags).
const (
	FlagReadOnly  = 0x0001
	FlagWriteOnly = 0x0002
	FlagReadWrite = 0x0003
	FlagAppend    = 0x0008
	FlagCreate    = 0x0100
	FlagTruncate  = 0x0200
	FlagExclusive = 0x0400
)

// legacyFlagTable translates the single-byte flag values OPENFILE_OLD
// clients send into the current two-byte flag set. The deployed legacy
// protocol only ever defined these five combinations; anything else is
// rejected rather than guessed at.
//
// Grounded on the original daemon's open_flags translation for the
// deprecated opcode (original_source/tnfsd.py), carried forward here as a
// supplemented feature: current clients never hit this path, but old
// FujiNet-era firmware still sends it.
var legacyFlagTable = map[uint8]uint16{
	0x01: FlagReadOnly,
	0x02: FlagWriteOnly,
	0x03: FlagReadWrite,
	0x06: FlagWriteOnly | FlagCreate | FlagTruncate,
	0x0A: FlagWriteOnly | FlagCreate | FlagAppend,
}

// TranslateLegacyFlags converts an OPENFILE_OLD flag byte into the current
// OPENFILE flag word, so OPENFILE_OLD can be dispatched through the same
// OpenFile implementation as OPENFILE (spec.md §4.4.3, "supplemented
// feature").
func TranslateLegacyFlags(legacy uint8) (uint16, error) {
	flags, ok := legacyFlagTable[legacy]
	if !ok {
		return 0, protocol.StatusEINVAL.AsError()
	}
	return flags, nil
}

// openFlags converts the wire flag word into the os.OpenFile flag bits.
func openFlags(flags uint16) int {
	var f int
	switch flags & FlagReadWrite {
	case FlagReadOnly:
		f = os.O_RDONLY
	case FlagWriteOnly:
		f = os.O_WRONLY
	case FlagReadWrite:
		f = os.O_RDWR
	}
	if flags&FlagCreate != 0 {
		f |= os.O_CREATE
	}
	if flags&FlagTruncate != 0 {
		f |= os.O_TRUNC
	}
	if flags&FlagExclusive != 0 {
		f |= os.O_EXCL
	}
	if flags&FlagAppend != 0 {
		f |= os.O_APPEND
	}
	return f
}

// OpenFile confines path, opens it with the given wire flags/mode, and
// stores the handle in files. Returns the new handle id.
func (m *Mediator) OpenFile(files *handle.FileTable, clientPath string, flags uint16, mode uint16) (uint8, error) {
	full, err := Confine(m.root, clientPath)
	if err != nil {
		return 0, err
	}

	f, err := os.OpenFile(full, openFlags(flags), os.FileMode(mode&0o777))
	if err != nil {
		return 0, translate(err).AsError()
	}

	id, ok := files.Alloc(&handle.File{OSFile: f, Path: full, Flags: openFlags(flags)})
	if !ok {
		f.Close()
		return 0, protocol.StatusEMFILE.AsError()
	}
	return id, nil
}

// ReadBlock reads up to len(buf) bytes from fh at its current offset,
// advancing it. A short read that hits end-of-file is reported as a
// partial read, not an error (spec.md §4.4.3, §8 "short read at EOF");
// reading exactly zero bytes at EOF returns protocol.StatusEOF.
func (m *Mediator) ReadBlock(fh *handle.File, buf []byte) (int, error) {
	n, err := fh.OSFile.Read(buf)
	if n > 0 {
		return n, nil
	}
	if err == io.EOF {
		return 0, protocol.StatusEOF.AsError()
	}
	if err != nil {
		return 0, translate(err).AsError()
	}
	return 0, nil
}

// WriteBlock writes buf to fh at its current offset, advancing it, and
// returns the number of bytes written.
func (m *Mediator) WriteBlock(fh *handle.File, buf []byte) (int, error) {
	n, err := fh.OSFile.Write(buf)
	if err != nil {
		return n, translate(err).AsError()
	}
	return n, nil
}

// Seek repositions fh per the standard whence semantics (0=start,
// 1=current, 2=end) and returns the resulting absolute offset.
func (m *Mediator) Seek(fh *handle.File, offset int64, whence int) (int64, error) {
	pos, err := fh.OSFile.Seek(offset, whence)
	if err != nil {
		return 0, translate(err).AsError()
	}
	return pos, nil
}

// Stat returns metadata for the confined path, independent of any open
// handle.
func (m *Mediator) Stat(clientPath string) (handle.Entry, error) {
	full, err := Confine(m.root, clientPath)
	if err != nil {
		return handle.Entry{}, err
	}
	fi, err := os.Stat(full)
	if err != nil {
		return handle.Entry{}, translate(err).AsError()
	}
	name := fi.Name()
	return handle.Entry{
		Name:       name,
		Size:       uint64(fi.Size()),
		Mode:       uint32(fi.Mode()),
		ModTime:    fi.ModTime().Unix(),
		ChangeTime: changeTime(fi),
		IsDir:      fi.IsDir(),
		IsHidden:   len(name) > 0 && name[0] == '.',
	}, nil
}

// Unlink confines path and removes the file. A path that names a directory
// is rejected with EISDIR before any host removal is attempted.
func (m *Mediator) Unlink(clientPath string) error {
	full, err := Confine(m.root, clientPath)
	if err != nil {
		return err
	}
	if fi, statErr := os.Lstat(full); statErr == nil && fi.IsDir() {
		return protocol.StatusEISDIR.AsError()
	}
	if err := os.Remove(full); err != nil {
		return translate(err).AsError()
	}
	return nil
}

// Rename confines both paths and moves oldPath to newPath. Per spec.md
// §4.4.3, both endpoints must resolve within root; a rename that would
// escape on either side is rejected before any host call is made.
func (m *Mediator) Rename(oldClientPath, newClientPath string) error {
	oldFull, err := Confine(m.root, oldClientPath)
	if err != nil {
		return err
	}
	newFull, err := Confine(m.root, newClientPath)
	if err != nil {
		return err
	}
	if err := os.Rename(oldFull, newFull); err != nil {
		return translate(err).AsError()
	}
	return nil
}

// Chmod is unsupported: the protocol's CHMOD opcode exists on the wire but
// the daemon this was built against never implements real permission
// changes, and nothing in spec.md asks for it either. Handlers dispatch it
// straight to ENOSYS rather than silently no-opping.
func (m *Mediator) Chmod(clientPath string, mode uint16) error {
	return protocol.StatusENOSYS.AsError()
}
