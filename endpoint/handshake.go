package endpoint

import (
	"encoding/binary"

	"github.com/ignacioSepam/sbmp/datagram"
	"github.com/ignacioSepam/sbmp/frame"
)

// HandshakeStatus is the endpoint's handshake state (spec.md §4.3).
type HandshakeStatus uint8

const (
	HandshakeNotStarted HandshakeStatus = iota
	HandshakeAwaitReply
	HandshakeSuccess
	HandshakeConflict
)

func (s HandshakeStatus) String() string {
	switch s {
	case HandshakeNotStarted:
		return "NOT_STARTED"
	case HandshakeAwaitReply:
		return "AWAIT_REPLY"
	case HandshakeSuccess:
		return "SUCCESS"
	case HandshakeConflict:
		return "CONFLICT"
	default:
		return "UNKNOWN"
	}
}

// HandshakeStatus returns the endpoint's current handshake state.
func (ep *Endpoint) HandshakeStatus() HandshakeStatus { return ep.hskStatus }

// HandshakeSession returns the session number of the in-flight or most
// recently completed handshake.
func (ep *Endpoint) HandshakeSession() uint16 { return ep.hskSession }

// StartHandshake resets handshake state, allocates a fresh session, and
// sends HSK_START advertising this endpoint's preferred checksum and
// buffer size (spec.md §4.3). On send failure it reverts to
// HandshakeNotStarted, per spec.md: "On send failure revert to
// NOT_STARTED."
func (ep *Endpoint) StartHandshake() bool {
	ep.hskStatus = HandshakeNotStarted
	session := ep.nextSession()
	body := ep.hskPayload()

	ep.Snmp.addHandshakeStarted()
	if !ep.sendDatagram(ep.ownChecksum, session, datagram.TypeHskStart, body[:]) {
		ep.hskStatus = HandshakeNotStarted
		return false
	}
	ep.hskSession = session
	ep.hskStatus = HandshakeAwaitReply
	return true
}

// AbortHandshake clears any in-flight handshake, returning to
// HandshakeNotStarted (spec.md §4.3).
func (ep *Endpoint) AbortHandshake() {
	ep.hskSession = 0
	ep.hskStatus = HandshakeNotStarted
}

func (ep *Endpoint) handleHandshake(dg *datagram.Datagram) {
	switch dg.Type {
	case datagram.TypeHskStart:
		ep.handleHskStart(dg)
	case datagram.TypeHskAccept:
		ep.handleHskAccept(dg)
	case datagram.TypeHskConflict:
		ep.handleHskConflict(dg)
	}
}

// parsePeerHskPayload extracts the peer's preferred checksum and advertised
// buffer size from an HSK_START/HSK_ACCEPT body, if present. A short body
// (< 3 bytes) leaves peer parameters unchanged, matching spec.md's "parse
// peer payload (if length >= 3)" qualifier.
func (ep *Endpoint) parsePeerHskPayload(body []byte) {
	if len(body) < 3 {
		return
	}
	ep.peerChecksum = frame.ChecksumKind(body[0])
	ep.peerBufferSize = binary.LittleEndian.Uint16(body[1:3])
}

// handleHskStart implements spec.md §4.3's receive-HSK_START transitions.
//
// Open question (spec.md §9, preserved per DESIGN.md): if the endpoint is
// already HandshakeSuccess when a fresh HSK_START arrives, this falls into
// the "else" branch below exactly like a first handshake would — it
// silently re-negotiates, overwriting peer checksum/buffer size and
// flipping origin. This is intentional fidelity to the source behavior,
// not an oversight.
func (ep *Endpoint) handleHskStart(dg *datagram.Datagram) {
	if ep.hskStatus == HandshakeAwaitReply {
		// Simultaneous initiation: both sides raced to handshake first.
		ep.sendDatagram(ep.peerChecksum, dg.Session, datagram.TypeHskConflict, nil)
		ep.hskStatus = HandshakeConflict
		ep.Snmp.addHandshakeConflict()
		return
	}

	ep.origin = (^(dg.Session >> 15)) & 1
	ep.parsePeerHskPayload(dg.Body)

	reply := ep.hskPayload()
	ep.sendDatagram(ep.peerChecksum, dg.Session, datagram.TypeHskAccept, reply[:])
	ep.hskStatus = HandshakeSuccess
	ep.hskSession = dg.Session
	ep.Snmp.addHandshakeOK()
	if ep.onHandshakeSuccess != nil {
		ep.onHandshakeSuccess(ep)
	}
}

func (ep *Endpoint) handleHskAccept(dg *datagram.Datagram) {
	if ep.hskStatus == HandshakeAwaitReply && dg.Session == ep.hskSession {
		ep.parsePeerHskPayload(dg.Body)
		ep.hskStatus = HandshakeSuccess
		ep.Snmp.addHandshakeOK()
		if ep.onHandshakeSuccess != nil {
			ep.onHandshakeSuccess(ep)
		}
		return
	}
	ep.warnf("endpoint: ignoring unexpected HSK_ACCEPT for session %#04x", dg.Session)
}

func (ep *Endpoint) handleHskConflict(dg *datagram.Datagram) {
	if ep.hskStatus == HandshakeAwaitReply && dg.Session == ep.hskSession {
		ep.frm.Reset()
		ep.hskStatus = HandshakeConflict
		ep.Snmp.addHandshakeConflict()
		return
	}
	ep.warnf("endpoint: ignoring unexpected HSK_CONFLICT for session %#04x", dg.Session)
}
