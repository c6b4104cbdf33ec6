package dispatch

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotnfs/internal/metrics"
	"gotnfs/internal/protocol"
	"gotnfs/internal/session"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, string) {
	root := t.TempDir()
	tbl := session.NewTable(8, metrics.Noop())
	return New(root, tbl, metrics.Noop()), root
}

func clientAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9000}
}

func mountPayload(path string) []byte {
	p := []byte{0x01, 0x00} // version
	p = append(p, []byte(path)...)
	p = append(p, 0)
	p = append(p, 0) // empty user
	p = append(p, 0) // empty password
	return p
}

func mustMount(t *testing.T, d *Dispatcher, addr *net.UDPAddr) uint16 {
	req := protocol.EncodeRequest(protocol.Header{SessionID: 0, Sequence: 0, Command: protocol.CmdMount}, mountPayload("/"))
	reply := d.Handle(addr, req)
	hdr, _, ok := protocol.DecodeRequest(reply)
	require.True(t, ok)
	require.Equal(t, protocol.StatusOK, protocol.Status(reply[protocol.HeaderSize]))
	require.NotZero(t, hdr.SessionID)
	return hdr.SessionID
}

// Scenario 1: mount then unmount (spec.md §8).
func TestScenario_MountThenUnmount(t *testing.T) {
	d, _ := newTestDispatcher(t)
	addr := clientAddr()

	sid := mustMount(t, d, addr)

	req := protocol.EncodeRequest(protocol.Header{SessionID: sid, Sequence: 1, Command: protocol.CmdUmount}, nil)
	reply := d.Handle(addr, req)
	assert.Equal(t, protocol.StatusOK, protocol.Status(reply[protocol.HeaderSize]))

	req2 := protocol.EncodeRequest(protocol.Header{SessionID: sid, Sequence: 2, Command: protocol.CmdStatFile}, nil)
	reply2 := d.Handle(addr, req2)
	assert.Equal(t, protocol.StatusESTALE, protocol.Status(reply2[protocol.HeaderSize]))
}

// Scenario 2: directory listing with dot entries.
func TestScenario_DirectoryListingWithDotEntries(t *testing.T) {
	d, root := newTestDispatcher(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("x"), 0o644))

	addr := clientAddr()
	sid := mustMount(t, d, addr)

	openReq := protocol.EncodeRequest(protocol.Header{SessionID: sid, Sequence: 1, Command: protocol.CmdOpenDir}, append([]byte("/"), 0))
	openReply := d.Handle(addr, openReq)
	require.Equal(t, protocol.StatusOK, protocol.Status(openReply[protocol.HeaderSize]))
	h := openReply[protocol.HeaderSize+1]

	names := make([]string, 0, 4)
	seq := uint8(2)
	for {
		req := protocol.EncodeRequest(protocol.Header{SessionID: sid, Sequence: seq, Command: protocol.CmdReadDir}, []byte{h})
		reply := d.Handle(addr, req)
		status := protocol.Status(reply[protocol.HeaderSize])
		if status == protocol.StatusEOF {
			break
		}
		require.Equal(t, protocol.StatusOK, status)
		payload := reply[protocol.HeaderSize+1:]
		name, _, ok := readCString(payload)
		require.True(t, ok)
		names = append(names, name)
		seq++
	}

	require.Len(t, names, 4)
	assert.Equal(t, ".", names[0])
	assert.Equal(t, "..", names[1])
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, names[2:])
}

// Scenario 3: confinement attempt.
func TestScenario_ConfinementAttempt(t *testing.T) {
	d, _ := newTestDispatcher(t)
	addr := clientAddr()
	sid := mustMount(t, d, addr)

	payload := putLE16(nil, uint16(0x0001 /* write+create not needed, read-only probe */))
	payload = putLE16(payload, 0)
	payload = append(payload, []byte("/../etc/passwd")...)
	payload = append(payload, 0)

	req := protocol.EncodeRequest(protocol.Header{SessionID: sid, Sequence: 1, Command: protocol.CmdOpenFile}, payload)
	reply := d.Handle(addr, req)
	assert.Equal(t, protocol.StatusEACCES, protocol.Status(reply[protocol.HeaderSize]))
	assert.Len(t, reply, protocol.HeaderSize+1, "no handle id should be returned")
}

// Scenario 4: short read at end-of-file.
func TestScenario_ShortReadAtEOF(t *testing.T) {
	d, root := newTestDispatcher(t)
	content := make([]byte, 100)
	for i := range content {
		content[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.bin"), content, 0o644))

	addr := clientAddr()
	sid := mustMount(t, d, addr)

	openPayload := putLE16(nil, 0x0001) // read-only
	openPayload = putLE16(openPayload, 0)
	openPayload = append(openPayload, []byte("/f.bin")...)
	openPayload = append(openPayload, 0)
	openReply := d.Handle(addr, protocol.EncodeRequest(protocol.Header{SessionID: sid, Sequence: 1, Command: protocol.CmdOpenFile}, openPayload))
	require.Equal(t, protocol.StatusOK, protocol.Status(openReply[protocol.HeaderSize]))
	h := openReply[protocol.HeaderSize+1]

	seekPayload := append([]byte{h, 0x00}, putLE32(nil, 95)...)
	seekReply := d.Handle(addr, protocol.EncodeRequest(protocol.Header{SessionID: sid, Sequence: 2, Command: protocol.CmdSeekFile}, seekPayload))
	require.Equal(t, protocol.StatusOK, protocol.Status(seekReply[protocol.HeaderSize]))

	readPayload := append([]byte{h}, putLE16(nil, 100)...)
	readReply := d.Handle(addr, protocol.EncodeRequest(protocol.Header{SessionID: sid, Sequence: 3, Command: protocol.CmdReadBlock}, readPayload))
	require.Equal(t, protocol.StatusOK, protocol.Status(readReply[protocol.HeaderSize]))
	n := le16(readReply[protocol.HeaderSize+1:])
	assert.Equal(t, uint16(5), n)

	readReply2 := d.Handle(addr, protocol.EncodeRequest(protocol.Header{SessionID: sid, Sequence: 4, Command: protocol.CmdReadBlock}, readPayload))
	assert.Equal(t, protocol.StatusEOF, protocol.Status(readReply2[protocol.HeaderSize]))
	n2 := le16(readReply2[protocol.HeaderSize+1:])
	assert.Equal(t, uint16(0), n2)
}

// Scenario 5: write-block replay.
func TestScenario_WriteBlockReplay(t *testing.T) {
	d, root := newTestDispatcher(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "w.bin"), nil, 0o644))

	addr := clientAddr()
	sid := mustMount(t, d, addr)

	openPayload := putLE16(nil, 0x0002) // write-only
	openPayload = putLE16(openPayload, 0)
	openPayload = append(openPayload, []byte("/w.bin")...)
	openPayload = append(openPayload, 0)
	openReply := d.Handle(addr, protocol.EncodeRequest(protocol.Header{SessionID: sid, Sequence: 1, Command: protocol.CmdOpenFile}, openPayload))
	require.Equal(t, protocol.StatusOK, protocol.Status(openReply[protocol.HeaderSize]))
	h := openReply[protocol.HeaderSize+1]

	writePayload := append([]byte{h}, putLE16(nil, 5)...)
	writePayload = append(writePayload, []byte("HELLO")...)
	req := protocol.EncodeRequest(protocol.Header{SessionID: sid, Sequence: 7, Command: protocol.CmdWriteBlock}, writePayload)

	first := d.Handle(addr, req)
	second := d.Handle(addr, req)
	assert.Equal(t, first, second, "a resent datagram with the same sequence must get a byte-identical reply")

	closeReq := protocol.EncodeRequest(protocol.Header{SessionID: sid, Sequence: 8, Command: protocol.CmdCloseFile}, []byte{h})
	d.Handle(addr, closeReq)

	got, err := os.ReadFile(filepath.Join(root, "w.bin"))
	require.NoError(t, err)
	assert.Equal(t, "HELLO", string(got), "replay must not re-execute the write")
}

// Scenario 6: rename across directories.
func TestScenario_RenameAcrossDirectories(t *testing.T) {
	d, root := newTestDispatcher(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "a"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "x"), []byte("x"), 0o644))

	addr := clientAddr()
	sid := mustMount(t, d, addr)

	renamePayload := append([]byte("/a/x"), 0)
	renamePayload = append(renamePayload, []byte("/b/x")...)
	renamePayload = append(renamePayload, 0)
	reply := d.Handle(addr, protocol.EncodeRequest(protocol.Header{SessionID: sid, Sequence: 1, Command: protocol.CmdRenameFile}, renamePayload))
	require.Equal(t, protocol.StatusOK, protocol.Status(reply[protocol.HeaderSize]))

	statOld := append([]byte("/a/x"), 0)
	statOldReply := d.Handle(addr, protocol.EncodeRequest(protocol.Header{SessionID: sid, Sequence: 2, Command: protocol.CmdStatFile}, statOld))
	assert.Equal(t, protocol.StatusENOENT, protocol.Status(statOldReply[protocol.HeaderSize]))

	statNew := append([]byte("/b/x"), 0)
	statNewReply := d.Handle(addr, protocol.EncodeRequest(protocol.Header{SessionID: sid, Sequence: 3, Command: protocol.CmdStatFile}, statNew))
	assert.Equal(t, protocol.StatusOK, protocol.Status(statNewReply[protocol.HeaderSize]))
}

func TestExtendedDirectoryEnumeration_FilteredAndSorted(t *testing.T) {
	d, root := newTestDispatcher(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("xx"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "c.log"), []byte("x"), 0o644))

	addr := clientAddr()
	sid := mustMount(t, d, addr)

	openPayload := []byte{0x00, 0x00}
	openPayload = putLE16(openPayload, 0)
	openPayload = putCString(openPayload, "*.txt")
	openPayload = putCString(openPayload, "/")
	openReply := d.Handle(addr, protocol.EncodeRequest(protocol.Header{SessionID: sid, Sequence: 1, Command: protocol.CmdOpenDirX}, openPayload))
	require.Equal(t, protocol.StatusOK, protocol.Status(openReply[protocol.HeaderSize]))
	h := openReply[protocol.HeaderSize+1]

	readPayload := []byte{h, 10}
	readReply := d.Handle(addr, protocol.EncodeRequest(protocol.Header{SessionID: sid, Sequence: 2, Command: protocol.CmdReadDirX}, readPayload))
	require.Equal(t, protocol.StatusOK, protocol.Status(readReply[protocol.HeaderSize]))

	body := readReply[protocol.HeaderSize+1:]
	count := int(body[0])
	require.Equal(t, 2, count)
	assert.NotZero(t, body[1]&dirStatusEOF, "both matching entries fit in one batch, so EOF should already be set")

	rest := body[4:]
	var names []string
	for i := 0; i < count; i++ {
		rest = rest[1+8+4+4:]
		name, tail, ok := readCString(rest)
		require.True(t, ok)
		names = append(names, name)
		rest = tail
	}
	assert.Equal(t, []string{"a.txt", "b.txt"}, names)
}

// TestReadDirX_BudgetTruncationDoesNotSkipEntries guards against the cursor
// racing ahead of what a single reply actually carries: ReadDir advances the
// handle for every entry it materializes, but the per-datagram payload
// budget in handleReadDirX may only be able to fit a prefix of those in one
// reply. Regression coverage for a bug where the trimmed remainder was
// silently dropped instead of being returned on the next READDIRX.
func TestReadDirX_BudgetTruncationDoesNotSkipEntries(t *testing.T) {
	d, root := newTestDispatcher(t)

	var want []string
	for i := 0; i < 30; i++ {
		name := fmt.Sprintf("file-with-a-moderately-long-name-%02d.txt", i)
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644))
		want = append(want, name)
	}
	sort.Strings(want)

	addr := clientAddr()
	sid := mustMount(t, d, addr)

	openPayload := []byte{0x00, 0x00}
	openPayload = putLE16(openPayload, 0)
	openPayload = putCString(openPayload, "*")
	openPayload = putCString(openPayload, "/")
	openReply := d.Handle(addr, protocol.EncodeRequest(protocol.Header{SessionID: sid, Sequence: 1, Command: protocol.CmdOpenDirX}, openPayload))
	require.Equal(t, protocol.StatusOK, protocol.Status(openReply[protocol.HeaderSize]))
	h := openReply[protocol.HeaderSize+1]

	var got []string
	truncated := false
	seq := uint8(2)
	for {
		readPayload := []byte{h, 16}
		readReply := d.Handle(addr, protocol.EncodeRequest(protocol.Header{SessionID: sid, Sequence: seq, Command: protocol.CmdReadDirX}, readPayload))
		require.Equal(t, protocol.StatusOK, protocol.Status(readReply[protocol.HeaderSize]))

		body := readReply[protocol.HeaderSize+1:]
		count := int(body[0])
		eof := body[1]&dirStatusEOF != 0
		require.Greater(t, count, 0, "a non-EOF batch must always make progress")
		if count < 16 && !eof {
			truncated = true
		}

		rest := body[4:]
		for i := 0; i < count; i++ {
			rest = rest[1+8+4+4:]
			name, tail, ok := readCString(rest)
			require.True(t, ok)
			got = append(got, name)
			rest = tail
		}

		seq++
		if eof {
			break
		}
	}

	require.True(t, truncated, "this test is only meaningful if at least one batch got budget-truncated below the 16 requested")
	sort.Strings(got)
	assert.Equal(t, want, got, "every entry must be returned exactly once across all batches, with none skipped")
}

func TestHandleTable_FullOpenReturnsOutOfResources(t *testing.T) {
	d, root := newTestDispatcher(t)
	for i := 0; i < 20; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(root, string(rune('a'+i))+".txt"), []byte("x"), 0o644))
	}

	addr := clientAddr()
	sid := mustMount(t, d, addr)

	var lastStatus protocol.Status
	for i := 0; i < 20; i++ {
		openPayload := putLE16(nil, 0x0001)
		openPayload = putLE16(openPayload, 0)
		openPayload = append(openPayload, []byte("/"+string(rune('a'+i))+".txt")...)
		openPayload = append(openPayload, 0)
		reply := d.Handle(addr, protocol.EncodeRequest(protocol.Header{SessionID: sid, Sequence: uint8(i + 1), Command: protocol.CmdOpenFile}, openPayload))
		lastStatus = protocol.Status(reply[protocol.HeaderSize])
	}
	assert.Equal(t, protocol.StatusEMFILE, lastStatus)
}
