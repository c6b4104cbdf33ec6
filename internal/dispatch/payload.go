package dispatch

import (
	"bytes"
	"encoding/binary"
)

// readCString scans b for the first NUL byte and returns the string before
// it together with the remainder of b after that byte. ok is false if b
// contains no NUL (the wire format requires every path/string field to be
// terminated).
func readCString(b []byte) (s string, rest []byte, ok bool) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return "", nil, false
	}
	return string(b[:i]), b[i+1:], true
}

// putCString appends s and a trailing NUL to dst.
func putCString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	return append(dst, 0)
}

func le16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func le32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

func putLE16(dst []byte, v uint16) []byte {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return append(dst, buf[:]...)
}

func putLE32(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

func putLE64(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}
