// Package protocol implements the wire framing for the datagram file
// service: the fixed-length request/reply header, opcode and status
// taxonomies, and the little-endian codec between them and raw bytes.
package protocol

import "encoding/binary"

// HeaderSize is the length in bytes of the fixed header that precedes every
// request payload: session id (2), sequence (1), command (1).
//
// Replies carry one additional status byte immediately after the header,
// before the reply-specific payload; that byte is not part of Header itself
// because requests never carry it (the dispatcher distinguishes direction
// structurally, not by a flag in the wire format).
const HeaderSize = 4

// Header is the decoded form of a request header.
type Header struct {
	SessionID uint16
	Sequence  uint8
	Command   Command
}

// DecodeRequest splits a received datagram into its header and payload.
// It returns false if data is shorter than HeaderSize; per spec, such a
// datagram must be dropped silently, with no reply.
func DecodeRequest(data []byte) (Header, []byte, bool) {
	if len(data) < HeaderSize {
		return Header{}, nil, false
	}
	h := Header{
		SessionID: binary.LittleEndian.Uint16(data[0:2]),
		Sequence:  data[2],
		Command:   Command(data[3]),
	}
	return h, data[HeaderSize:], true
}

// EncodeReply serializes a reply: the request's session id, sequence and
// command echoed back, followed by the status byte and the reply payload.
func EncodeReply(h Header, status Status, payload []byte) []byte {
	out := make([]byte, HeaderSize+1+len(payload))
	binary.LittleEndian.PutUint16(out[0:2], h.SessionID)
	out[2] = h.Sequence
	out[3] = uint8(h.Command)
	out[4] = uint8(status)
	copy(out[5:], payload)
	return out
}

// EncodeRequest serializes a request header followed by payload. Provided
// for symmetry and for tests that exercise the codec round-trip; the
// server itself only ever decodes requests and encodes replies.
func EncodeRequest(h Header, payload []byte) []byte {
	out := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint16(out[0:2], h.SessionID)
	out[2] = h.Sequence
	out[3] = uint8(h.Command)
	copy(out[4:], payload)
	return out
}
