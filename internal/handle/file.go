// Package handle implements the bounded per-session tables of open file and
// directory handles described in spec.md §3 and §4.4.3.
package handle

import (
	"os"
	"sync/atomic"
)

// FileCapacity is the number of file-handle slots in a session's file
// table, matching the deployed protocol's per-connection descriptor limit.
const FileCapacity = 16

// DirCapacity is the number of directory-handle slots in a session's
// directory table, matching the deployed protocol's per-connection limit.
const DirCapacity = 8

// openFiles and openDirs track the process-wide count of live handles
// across every session's table, for internal/metrics' handles-open gauge.
// Package-level rather than per-table because the gauge reports a daemon-
// wide total, not a per-session one.
var (
	openFiles atomic.Int64
	openDirs  atomic.Int64
)

// OpenFileCount returns the number of file handles currently allocated
// across every session's FileTable.
func OpenFileCount() int64 { return openFiles.Load() }

// OpenDirCount returns the number of directory handles currently allocated
// across every session's DirTable.
func OpenDirCount() int64 { return openDirs.Load() }

// File is an open file handle: the host descriptor, the confined absolute
// path it was opened against, and the flags it was opened with. The
// client-visible handle id is the slot index within the owning session's
// file table, not stored here.
type File struct {
	OSFile *os.File
	Path   string
	Flags  int
}

// Close releases the host descriptor. On a nil handle, or one whose OSFile
// is nil, it does nothing and returns nil.
func (f *File) Close() error {
	if f == nil || f.OSFile == nil {
		return nil
	}
	return f.OSFile.Close()
}

// FileTable is a session's bounded array of file handles. The zero value is
// an empty table of capacity FileCapacity.
type FileTable struct {
	slots [FileCapacity]*File
}

// Alloc finds a free slot, stores f in it, and returns the slot index. It
// returns ok=false if the table is full.
func (t *FileTable) Alloc(f *File) (id uint8, ok bool) {
	for i := range t.slots {
		if t.slots[i] == nil {
			t.slots[i] = f
			openFiles.Add(1)
			return uint8(i), true
		}
	}
	return 0, false
}

// Get returns the handle at id, or nil if id is out of range or the slot is
// free.
func (t *FileTable) Get(id uint8) *File {
	if int(id) >= len(t.slots) {
		return nil
	}
	return t.slots[id]
}

// Close closes and frees the slot at id. Closing an already-free or
// out-of-range slot is a no-op that returns nil.
func (t *FileTable) Close(id uint8) error {
	if int(id) >= len(t.slots) || t.slots[id] == nil {
		return nil
	}
	f := t.slots[id]
	t.slots[id] = nil
	openFiles.Add(-1)
	return f.Close()
}

// CloseAll closes every occupied slot, collecting the first error (if any)
// while still attempting to close the rest. Used on session destruction.
func (t *FileTable) CloseAll() error {
	var first error
	for i := range t.slots {
		if t.slots[i] == nil {
			continue
		}
		f := t.slots[i]
		t.slots[i] = nil
		openFiles.Add(-1)
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
