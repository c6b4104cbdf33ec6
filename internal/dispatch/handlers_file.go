package dispatch

import (
	"os"

	"gotnfs/internal/fsmediator"
	"gotnfs/internal/protocol"
	"gotnfs/internal/session"
)

// handleOpenFile parses flags(2,LE) mode(2,LE) path(cstring).
func handleOpenFile(d *Dispatcher, s *session.Session, payload []byte) (protocol.Status, []byte) {
	if len(payload) < 4 {
		return protocol.StatusEINVAL, nil
	}
	flags := le16(payload[0:2])
	mode := le16(payload[2:4])
	path, _, ok := readCString(payload[4:])
	if !ok {
		return protocol.StatusEINVAL, nil
	}

	id, err := d.mediator.OpenFile(s.Files(), path, flags, mode)
	if err != nil {
		return protocol.AsStatus(err), nil
	}
	return protocol.StatusOK, []byte{id}
}

// handleOpenFileOld translates the deprecated single-byte flag encoding
// into the current OPENFILE flag word and re-dispatches through the same
// handler (spec.md §4.4.3, supplemented from original_source/'s
// handle_openfile_old). Wire layout: flags(1) path(cstring); mode defaults
// to 0644 since the legacy request carries none.
func handleOpenFileOld(d *Dispatcher, s *session.Session, payload []byte) (protocol.Status, []byte) {
	if len(payload) < 1 {
		return protocol.StatusEINVAL, nil
	}
	flags, err := fsmediator.TranslateLegacyFlags(payload[0])
	if err != nil {
		return protocol.AsStatus(err), nil
	}

	translated := putLE16(nil, flags)
	translated = putLE16(translated, 0o644)
	translated = append(translated, payload[1:]...)
	return handleOpenFile(d, s, translated)
}

func handleReadBlock(d *Dispatcher, s *session.Session, payload []byte) (protocol.Status, []byte) {
	if len(payload) < 3 {
		return protocol.StatusEINVAL, nil
	}
	fh := s.Files().Get(payload[0])
	if fh == nil {
		return protocol.StatusEBADF, nil
	}
	requested := int(le16(payload[1:3]))
	if requested > MaxBlockSize {
		requested = MaxBlockSize
	}

	buf := make([]byte, requested)
	n, err := d.mediator.ReadBlock(fh, buf)
	if err != nil {
		if protocol.AsStatus(err) == protocol.StatusEOF {
			return protocol.StatusEOF, putLE16(nil, 0)
		}
		return protocol.AsStatus(err), nil
	}
	d.metrics.BytesTransferred("read", n)
	resp := putLE16(nil, uint16(n))
	resp = append(resp, buf[:n]...)
	return protocol.StatusOK, resp
}

func handleWriteBlock(d *Dispatcher, s *session.Session, payload []byte) (protocol.Status, []byte) {
	if len(payload) < 3 {
		return protocol.StatusEINVAL, nil
	}
	fh := s.Files().Get(payload[0])
	if fh == nil {
		return protocol.StatusEBADF, nil
	}
	size := int(le16(payload[1:3]))
	if size > MaxBlockSize {
		size = MaxBlockSize
	}
	if 3+size > len(payload) {
		return protocol.StatusEINVAL, nil
	}

	n, err := d.mediator.WriteBlock(fh, payload[3:3+size])
	if err != nil {
		return protocol.AsStatus(err), nil
	}
	d.metrics.BytesTransferred("write", n)
	return protocol.StatusOK, putLE16(nil, uint16(n))
}

func handleCloseFile(d *Dispatcher, s *session.Session, payload []byte) (protocol.Status, []byte) {
	if len(payload) < 1 {
		return protocol.StatusEINVAL, nil
	}
	if s.Files().Get(payload[0]) == nil {
		return protocol.StatusEBADF, nil
	}
	if err := s.Files().Close(payload[0]); err != nil {
		return protocol.AsStatus(err), nil
	}
	return protocol.StatusOK, nil
}

// handleSeekFile parses handle(1) whence(1) offset(4,LE).
func handleSeekFile(d *Dispatcher, s *session.Session, payload []byte) (protocol.Status, []byte) {
	if len(payload) < 6 {
		return protocol.StatusEINVAL, nil
	}
	fh := s.Files().Get(payload[0])
	if fh == nil {
		return protocol.StatusEBADF, nil
	}
	whence, ok := fromWireWhence(payload[1])
	if !ok {
		return protocol.StatusEINVAL, nil
	}
	offset := int64(int32(le32(payload[2:6])))

	pos, err := d.mediator.Seek(fh, offset, whence)
	if err != nil {
		return protocol.AsStatus(err), nil
	}
	return protocol.StatusOK, putLE32(nil, uint32(pos))
}

func fromWireWhence(w uint8) (int, bool) {
	switch w {
	case 0x00:
		return os.SEEK_SET, true
	case 0x01:
		return os.SEEK_CUR, true
	case 0x02:
		return os.SEEK_END, true
	default:
		return 0, false
	}
}

// handleStatFile returns mode(2) uid(2) gid(2) size(4) atime(4) mtime(4)
// ctime(4), matching original_source/'s TNFS_STAT_SIZE layout, per
// spec.md §4.4.3.
func handleStatFile(d *Dispatcher, s *session.Session, payload []byte) (protocol.Status, []byte) {
	path, _, ok := readCString(payload)
	if !ok {
		return protocol.StatusEINVAL, nil
	}
	e, err := d.mediator.Stat(path)
	if err != nil {
		return protocol.AsStatus(err), nil
	}

	// Permission bits come from the real host os.FileInfo.Mode(); only the
	// directory type bit (0x4000, matching original_source/'s TNFS_STAT
	// layout) is synthesized, since this service has no other file type to
	// report (no symlinks, devices, etc. are ever exposed to clients).
	mode := uint16(os.FileMode(e.Mode).Perm())
	if e.IsDir {
		mode |= 0x4000
	}
	resp := putLE16(nil, mode)
	resp = putLE16(resp, 0) // uid: no multi-user identity in this service
	resp = putLE16(resp, 0) // gid
	resp = putLE32(resp, uint32(e.Size))
	resp = putLE32(resp, uint32(e.ModTime)) // atime is not tracked separately; mtime stands in
	resp = putLE32(resp, uint32(e.ModTime))
	resp = putLE32(resp, uint32(e.ChangeTime))
	return protocol.StatusOK, resp
}

func handleUnlinkFile(d *Dispatcher, s *session.Session, payload []byte) (protocol.Status, []byte) {
	path, _, ok := readCString(payload)
	if !ok {
		return protocol.StatusEINVAL, nil
	}
	if err := d.mediator.Unlink(path); err != nil {
		return protocol.AsStatus(err), nil
	}
	return protocol.StatusOK, nil
}

func handleRenameFile(d *Dispatcher, s *session.Session, payload []byte) (protocol.Status, []byte) {
	oldPath, rest, ok := readCString(payload)
	if !ok {
		return protocol.StatusEINVAL, nil
	}
	newPath, _, ok := readCString(rest)
	if !ok {
		return protocol.StatusEINVAL, nil
	}
	if err := d.mediator.Rename(oldPath, newPath); err != nil {
		return protocol.AsStatus(err), nil
	}
	return protocol.StatusOK, nil
}

func handleChmodFile(d *Dispatcher, s *session.Session, payload []byte) (protocol.Status, []byte) {
	return protocol.StatusENOSYS, nil
}
