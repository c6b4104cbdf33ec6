package fsmediator

import (
	"os"
	"path"
	"sort"

	"gotnfs/internal/handle"
	"gotnfs/internal/protocol"
)

// Mediator performs the confined, host-error-translated filesystem
// operations behind the dispatcher's directory and file commands. One
// Mediator serves every session; root never changes after construction.
type Mediator struct {
	root string
}

// New returns a Mediator rooted at root. root must already exist; callers
// typically check this once at startup (spec.md §6).
func New(root string) *Mediator {
	return &Mediator{root: root}
}

// OpenDir confines path, materializes its legacy entry list (spec.md
// §4.4.2: "." and ".." synthesized first, followed by the directory's
// children in host readdir order), and stores the snapshot in dirs. It
// returns the new handle id.
func (m *Mediator) OpenDir(dirs *handle.DirTable, clientPath string) (uint8, error) {
	full, err := Confine(m.root, clientPath)
	if err != nil {
		return 0, err
	}

	children, err := readChildren(full)
	if err != nil {
		return 0, translate(err).AsError()
	}

	entries := make([]handle.Entry, 0, len(children)+2)
	entries = append(entries,
		handle.Entry{Name: ".", IsDir: true, IsSpecial: true},
		handle.Entry{Name: "..", IsDir: true, IsSpecial: true},
	)
	entries = append(entries, children...)

	id, ok := dirs.Alloc(&handle.Dir{Path: full, Entries: entries})
	if !ok {
		return 0, protocol.StatusEMFILE.AsError()
	}
	return id, nil
}

// OpenDirExtended is OpenDir's richer sibling (spec.md §4.4.2's
// "extended enumeration"): entries are filtered by the supplied glob-style
// pattern (matched against the base name, empty pattern meaning "*"),
// sorted per sortBy/sortDescending, and no synthetic "." or ".." entries
// are added.
func (m *Mediator) OpenDirExtended(dirs *handle.DirTable, clientPath, pattern string, sortBy SortKey, descending bool) (uint8, error) {
	full, err := Confine(m.root, clientPath)
	if err != nil {
		return 0, err
	}

	children, err := readChildren(full)
	if err != nil {
		return 0, translate(err).AsError()
	}

	filtered := children
	if pattern != "" && pattern != "*" {
		filtered = filtered[:0]
		for _, e := range children {
			if ok, _ := path.Match(pattern, e.Name); ok {
				filtered = append(filtered, e)
			}
		}
	}

	sortEntries(filtered, sortBy, descending)

	id, ok := dirs.Alloc(&handle.Dir{Path: full, Entries: filtered})
	if !ok {
		return 0, protocol.StatusEMFILE.AsError()
	}
	return id, nil
}

// SortKey selects the field OpenDirExtended orders its snapshot by.
type SortKey int

const (
	SortByName SortKey = iota
	SortByModTime
	SortBySize
)

func sortEntries(entries []handle.Entry, by SortKey, descending bool) {
	less := func(i, j int) bool {
		switch by {
		case SortByModTime:
			return entries[i].ModTime < entries[j].ModTime
		case SortBySize:
			return entries[i].Size < entries[j].Size
		default:
			return entries[i].Name < entries[j].Name
		}
	}
	if descending {
		sort.SliceStable(entries, func(i, j int) bool { return less(j, i) })
		return
	}
	sort.SliceStable(entries, less)
}

// readChildren lists full's immediate children as handle.Entry values, in
// host readdir order, with no synthetic entries.
func readChildren(full string) ([]handle.Entry, error) {
	f, err := os.Open(full)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	infos, err := f.Readdir(-1)
	if err != nil {
		return nil, err
	}

	entries := make([]handle.Entry, 0, len(infos))
	for _, fi := range infos {
		entries = append(entries, handle.Entry{
			Name:       fi.Name(),
			Size:       uint64(fi.Size()),
			Mode:       uint32(fi.Mode()),
			ModTime:    fi.ModTime().Unix(),
			ChangeTime: changeTime(fi),
			IsDir:      fi.IsDir(),
			IsHidden:   len(fi.Name()) > 0 && fi.Name()[0] == '.',
		})
	}
	return entries, nil
}

// ReadDir returns up to n entries from dh starting at its current
// position, advancing the cursor (spec.md §4.4.2).
func (m *Mediator) ReadDir(dh *handle.Dir, n int) []handle.Entry {
	out := make([]handle.Entry, 0, n)
	for i := 0; i < n; i++ {
		e, ok := dh.Next()
		if !ok {
			break
		}
		out = append(out, e)
	}
	return out
}

// Mkdir confines path and creates it as a new directory. Per spec.md
// §4.4.2, the parent must already exist; intermediate directories are not
// created.
func (m *Mediator) Mkdir(clientPath string) error {
	full, err := Confine(m.root, clientPath)
	if err != nil {
		return err
	}
	if err := os.Mkdir(full, 0o755); err != nil {
		return translate(err).AsError()
	}
	return nil
}

// Rmdir confines path and removes it if empty.
func (m *Mediator) Rmdir(clientPath string) error {
	full, err := Confine(m.root, clientPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return translate(err).AsError()
	}
	return nil
}

// changeTime reports the best available change-time approximation. The
// standard library exposes no portable ctime, so modification time is
// used; platform-specific stat_t access would be needed for a true ctime
// and is not worth the build-tag proliferation for this field.
func changeTime(fi os.FileInfo) int64 {
	return fi.ModTime().Unix()
}
