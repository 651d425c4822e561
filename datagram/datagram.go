// Package datagram implements the SBMP datagram layer (DG): it interprets a
// frame payload as a (session, type, body) triple and provides a symmetric
// transmit helper that starts a frame.Inst and writes the 3-byte datagram
// header ahead of the body.
//
// Grounded structurally on vendored github.com/xtaci/smux's Frame/rawHeader
// (version+cmd+length+streamID prefixing a payload) — SBMP folds the same
// idea into a 2-byte session id plus a 1-byte type, relying on the frame
// layer underneath for length and integrity instead of re-deriving them.
package datagram

import (
	"encoding/binary"
	"errors"

	"github.com/ignacioSepam/sbmp/frame"
)

// HeaderLen is the fixed datagram header size: 2 bytes session + 1 byte type.
const HeaderLen = 3

// OriginBit is the position of the origin bit within a session number.
const OriginBit = 15

// Type is the datagram's 8-bit type code. Application type codes are
// opaque to this package; values from 0xF0 upward are reserved (see below).
type Type uint8

// Reserved type codes (spec.md §4.4). HSK_BULK_* are reserved for the
// bulk-transfer extension, which spec.md §1 explicitly scopes out as a
// "peripheral convenience"; they are named here so application code never
// collides with them, but no state machine drives them.
const (
	TypeHskStart    Type = 0xF0
	TypeHskAccept   Type = 0xF1
	TypeHskConflict Type = 0xF2

	TypeHskBulkBegin Type = 0xF8
	TypeHskBulkData  Type = 0xF9
	TypeHskBulkEnd   Type = 0xFA
)

// IsHandshake reports whether t is one of the three handshake type codes
// the endpoint layer intercepts before listener/default dispatch.
func (t Type) IsHandshake() bool {
	return t == TypeHskStart || t == TypeHskAccept || t == TypeHskConflict
}

// ErrShort reports a frame payload shorter than HeaderLen, spec.md §4.2's
// "fails if len < 3".
var ErrShort = errors.New("datagram: payload shorter than header")

// Datagram is a borrowed view over a frame payload: it aliases the frame
// layer's receive buffer and is only valid for the duration of the
// enclosing payload callback (spec.md §3: "does not own its buffer;  it
// aliases the FRM receive buffer for the duration of one upstream callback
// invocation"). Callers that need the body past that point must copy it.
type Datagram struct {
	Session uint16
	Type    Type
	Body    []byte
}

// Origin returns the origin bit (bit 15) of the datagram's session number.
func (d Datagram) Origin() uint16 {
	return (d.Session >> OriginBit) & 1
}

// Parse interprets payload as a datagram view. The returned Datagram's Body
// aliases payload; see the Datagram doc comment on its lifetime.
func Parse(payload []byte) (Datagram, error) {
	if len(payload) < HeaderLen {
		return Datagram{}, ErrShort
	}
	return Datagram{
		Session: binary.LittleEndian.Uint16(payload[0:2]),
		Type:    Type(payload[2]),
		Body:    payload[HeaderLen:],
	}, nil
}

// Start begins transmitting a datagram: it opens a frame of cksum and
// 3+bodyLen total bytes, then writes the session/type header. The caller
// must follow with exactly bodyLen bytes via f.SendByte/f.SendBuffer to
// complete the frame (spec.md §4.2: "Body bytes follow via the FRM send_*
// calls.").
func Start(f *frame.Inst, cksum frame.ChecksumKind, session uint16, typ Type, bodyLen int) bool {
	if !f.Start(cksum, HeaderLen+bodyLen) {
		return false
	}
	var hdr [HeaderLen]byte
	binary.LittleEndian.PutUint16(hdr[0:2], session)
	hdr[2] = byte(typ)
	return f.SendBuffer(hdr[:])
}
