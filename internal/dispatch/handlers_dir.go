package dispatch

import (
	"gotnfs/internal/fsmediator"
	"gotnfs/internal/protocol"
	"gotnfs/internal/session"
)

func handleOpenDir(d *Dispatcher, s *session.Session, payload []byte) (protocol.Status, []byte) {
	path, _, ok := readCString(payload)
	if !ok {
		return protocol.StatusEINVAL, nil
	}
	id, err := d.mediator.OpenDir(s.Dirs(), path)
	if err != nil {
		return protocol.AsStatus(err), nil
	}
	return protocol.StatusOK, []byte{id}
}

// handleOpenDirX parses diropts(1) sortopts(1) maxresults(2,LE)
// pattern(cstring) path(cstring). maxresults is accepted but not yet
// enforced as a hard cap beyond the per-reply payload budget applied in
// handleReadDirX.
func handleOpenDirX(d *Dispatcher, s *session.Session, payload []byte) (protocol.Status, []byte) {
	if len(payload) < 5 {
		return protocol.StatusEINVAL, nil
	}
	sortOpts := payload[1]
	rest := payload[4:]

	pattern, rest, ok := readCString(rest)
	if !ok {
		return protocol.StatusEINVAL, nil
	}
	path, _, ok := readCString(rest)
	if !ok {
		return protocol.StatusEINVAL, nil
	}

	descending := sortOpts&0x01 != 0
	sortBy := fsmediator.SortByName
	switch (sortOpts >> 1) & 0x03 {
	case 1:
		sortBy = fsmediator.SortByModTime
	case 2:
		sortBy = fsmediator.SortBySize
	}

	id, err := d.mediator.OpenDirExtended(s.Dirs(), path, pattern, sortBy, descending)
	if err != nil {
		return protocol.AsStatus(err), nil
	}
	return protocol.StatusOK, []byte{id}
}

func handleReadDir(d *Dispatcher, s *session.Session, payload []byte) (protocol.Status, []byte) {
	if len(payload) < 1 {
		return protocol.StatusEINVAL, nil
	}
	dh := s.Dirs().Get(payload[0])
	if dh == nil {
		return protocol.StatusEBADF, nil
	}
	entries := d.mediator.ReadDir(dh, 1)
	if len(entries) == 0 {
		return protocol.StatusEOF, nil
	}
	return protocol.StatusOK, putCString(nil, entries[0].Name)
}

// dirStatusEOF is set in the reply's second byte once the handle's
// snapshot is exhausted, letting the client avoid one extra round trip to
// discover end-of-directory (grounded on original_source/'s
// TNFS_DIRSTATUS_EOF bit).
const dirStatusEOF = 0x01

// handleReadDirX returns a count-prefixed batch of entries starting at the
// handle's current position. Wire layout: count(1), dir-status flags(1),
// position-after-read(2, LE), then count entries of
// flags(1) size(8,LE) mtime(4,LE) ctime(4,LE) name(cstring).
func handleReadDirX(d *Dispatcher, s *session.Session, payload []byte) (protocol.Status, []byte) {
	if len(payload) < 2 {
		return protocol.StatusEINVAL, nil
	}
	dh := s.Dirs().Get(payload[0])
	if dh == nil {
		return protocol.StatusEBADF, nil
	}
	requested := int(payload[1])
	if requested == 0 {
		requested = 16
	}

	entries := d.mediator.ReadDir(dh, requested)

	// Budget the reply so a single datagram never grows unbounded: stop
	// adding entries once the running payload size would exceed
	// MaxBlockSize (spec.md §4.4.2's "batch... capped by payload budget",
	// a supplemented feature grounded on original_source/'s fixed
	// MAX_IOSZ block ceiling).
	const headerLen = 4
	count := 0
	size := headerLen
	for _, e := range entries {
		entrySize := 1 + 8 + 4 + 4 + len(e.Name) + 1
		if size+entrySize > MaxBlockSize && count > 0 {
			break
		}
		size += entrySize
		count++
	}

	// ReadDir already advanced the cursor past every entry it returned, but
	// only count of them are actually going out in this reply. Rewind the
	// cursor to the first un-emitted entry so the next READDIRX resumes
	// there instead of skipping entries count..len(entries) (original_source/
	// tnfsd.py's handle_readdirx only advances current_index for entries it
	// actually appends to the reply).
	if count < len(entries) {
		dh.Seek(dh.Tell() - (len(entries) - count))
	}
	entries = entries[:count]

	resp := make([]byte, 0, size)
	resp = append(resp, uint8(count), 0)
	resp = putLE16(resp, uint16(dh.Tell()))
	for _, e := range entries {
		resp = append(resp, uint8(e.Flags()))
		resp = putLE64(resp, e.Size)
		resp = putLE32(resp, uint32(e.ModTime))
		resp = putLE32(resp, uint32(e.ChangeTime))
		resp = putCString(resp, e.Name)
	}
	if dh.Tell() >= len(dh.Entries) {
		resp[1] |= dirStatusEOF
	}

	return protocol.StatusOK, resp
}

func handleCloseDir(d *Dispatcher, s *session.Session, payload []byte) (protocol.Status, []byte) {
	if len(payload) < 1 {
		return protocol.StatusEINVAL, nil
	}
	if s.Dirs().Get(payload[0]) == nil {
		return protocol.StatusEBADF, nil
	}
	s.Dirs().Close(payload[0])
	return protocol.StatusOK, nil
}

func handleTellDir(d *Dispatcher, s *session.Session, payload []byte) (protocol.Status, []byte) {
	if len(payload) < 1 {
		return protocol.StatusEINVAL, nil
	}
	dh := s.Dirs().Get(payload[0])
	if dh == nil {
		return protocol.StatusEBADF, nil
	}
	return protocol.StatusOK, putLE32(nil, uint32(dh.Tell()))
}

func handleSeekDir(d *Dispatcher, s *session.Session, payload []byte) (protocol.Status, []byte) {
	if len(payload) < 5 {
		return protocol.StatusEINVAL, nil
	}
	dh := s.Dirs().Get(payload[0])
	if dh == nil {
		return protocol.StatusEBADF, nil
	}
	dh.Seek(int(le32(payload[1:5])))
	return protocol.StatusOK, nil
}

func handleMkDir(d *Dispatcher, s *session.Session, payload []byte) (protocol.Status, []byte) {
	path, _, ok := readCString(payload)
	if !ok {
		return protocol.StatusEINVAL, nil
	}
	if err := d.mediator.Mkdir(path); err != nil {
		return protocol.AsStatus(err), nil
	}
	return protocol.StatusOK, nil
}

func handleRmDir(d *Dispatcher, s *session.Session, payload []byte) (protocol.Status, []byte) {
	path, _, ok := readCString(payload)
	if !ok {
		return protocol.StatusEINVAL, nil
	}
	if err := d.mediator.Rmdir(path); err != nil {
		return protocol.AsStatus(err), nil
	}
	return protocol.StatusOK, nil
}
