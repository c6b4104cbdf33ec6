package handle

// EntryFlags encodes directory-entry metadata returned by the extended
// read-directory variant. Numeric bit values match the deployed protocol.
type EntryFlags uint8

const (
	EntryIsDir     EntryFlags = 0x01
	EntryIsHidden  EntryFlags = 0x02
	EntryIsSpecial EntryFlags = 0x04
)

// Entry is one materialized directory entry, captured at open time.
type Entry struct {
	Name       string
	Size       uint64
	Mode       uint32 // host os.FileMode bits, as returned by os.FileInfo.Mode(); 0 for synthetic entries
	ModTime    int64  // seconds since epoch
	ChangeTime int64  // seconds since epoch
	IsDir      bool
	IsHidden   bool
	IsSpecial  bool // true for synthetic "." and ".." entries
}

// Flags packs the entry's boolean attributes into the wire flag byte.
func (e Entry) Flags() EntryFlags {
	var f EntryFlags
	if e.IsDir {
		f |= EntryIsDir
	}
	if e.IsHidden {
		f |= EntryIsHidden
	}
	if e.IsSpecial {
		f |= EntryIsSpecial
	}
	return f
}

// Dir is an open directory handle: the confined path it was opened
// against, and the frozen, ordered snapshot of entries materialized at
// open time (spec.md §4.4.2 "materialized enumeration"). Position is a
// cursor into Entries, valid only for this handle's lifetime.
type Dir struct {
	Path     string
	Entries  []Entry
	Position int
}

// Next returns the entry at the current position and advances it, or
// ok=false if the snapshot is exhausted.
func (d *Dir) Next() (Entry, bool) {
	if d.Position >= len(d.Entries) {
		return Entry{}, false
	}
	e := d.Entries[d.Position]
	d.Position++
	return e, true
}

// Seek sets the position, clamping out-of-range values to the snapshot
// length per spec.md §4.4.2.
func (d *Dir) Seek(pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(d.Entries) {
		pos = len(d.Entries)
	}
	d.Position = pos
}

// Tell returns the current position.
func (d *Dir) Tell() int {
	return d.Position
}

// DirTable is a session's bounded array of directory handles.
type DirTable struct {
	slots [DirCapacity]*Dir
}

// Alloc finds a free slot, stores d in it, and returns the slot index. It
// returns ok=false if the table is full.
func (t *DirTable) Alloc(d *Dir) (id uint8, ok bool) {
	for i := range t.slots {
		if t.slots[i] == nil {
			t.slots[i] = d
			openDirs.Add(1)
			return uint8(i), true
		}
	}
	return 0, false
}

// Get returns the handle at id, or nil if id is out of range or the slot is
// free.
func (t *DirTable) Get(id uint8) *Dir {
	if int(id) >= len(t.slots) {
		return nil
	}
	return t.slots[id]
}

// Close frees the slot at id. No host resource needs releasing: the
// snapshot is just dropped for garbage collection.
func (t *DirTable) Close(id uint8) {
	if int(id) >= len(t.slots) || t.slots[id] == nil {
		return
	}
	t.slots[id] = nil
	openDirs.Add(-1)
}

// CloseAll frees every occupied slot.
func (t *DirTable) CloseAll() {
	for i := range t.slots {
		if t.slots[i] == nil {
			continue
		}
		t.slots[i] = nil
		openDirs.Add(-1)
	}
}
