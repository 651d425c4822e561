// Package endpoint implements the SBMP endpoint layer (EP): session
// numbering with origin-bit arbitration, the handshake state machine, and
// session-listener dispatch over a single frame.Inst.
//
// The session/listener lifecycle is modeled after vendored
// github.com/xtaci/smux's Session (nextStreamID + a table of live streams),
// reduced to the fixed-size linearly-scanned array spec.md §9 mandates and
// stripped of smux's goroutine-per-session concurrency: spec.md §5 requires
// single-threaded cooperative dispatch, so every reply here happens
// synchronously inside the Feed call that triggered it. See DESIGN.md.
package endpoint

import (
	"encoding/binary"
	"io"

	"github.com/ignacioSepam/sbmp/datagram"
	"github.com/ignacioSepam/sbmp/frame"
)

// defaultListenerSlots is the fixed listener table size used when the
// caller does not override it with WithListenerSlots.
const defaultListenerSlots = 16

// defaultPeerBufferSize is the value peerBufferSize holds until a
// handshake succeeds (spec.md §3 invariant: "peer_buffer_size is 0xFFFF
// until a handshake succeeds").
const defaultPeerBufferSize = 0xFFFF

// DefaultHandler is invoked for datagrams matching no live listener slot.
type DefaultHandler func(dg *datagram.Datagram)

// ListenerFunc intercepts datagrams for one specific session, ahead of the
// default handler. It receives the owning endpoint so it may reply.
type ListenerFunc func(ep *Endpoint, dg *datagram.Datagram)

type listenerSlot struct {
	session uint16
	active  bool
	cb      ListenerFunc
}

// Endpoint owns one frame.Inst, the session counter and origin bit, peer
// parameter negotiation state, the handshake state machine, and the fixed
// listener table (spec.md §3).
type Endpoint struct {
	frm *frame.Inst

	counter uint16 // 15-bit next-session counter
	origin  uint16 // 0 or 1

	ownBufferSize  uint16
	peerBufferSize uint16
	ownChecksum    frame.ChecksumKind
	peerChecksum   frame.ChecksumKind
	crc32Disabled  bool

	hskStatus  HandshakeStatus
	hskSession uint16

	listeners      []listenerSlot
	defaultHandler DefaultHandler

	onHandshakeSuccess func(ep *Endpoint)

	logger Logger
	Snmp   Snmp
}

// New creates an Endpoint whose frame layer receives into buf (the
// caller-supplied allocation mode) and transmits through writer. buf sizes
// the endpoint's own receive capacity, which is what WithOwnBufferSize
// should advertise to the peer. By default the advertised size is len(buf),
// capped at 0xFFFF, the largest value the 16-bit handshake field carries.
func New(buf []byte, writer io.ByteWriter, opts ...Option) *Endpoint {
	ownBufferSize := len(buf)
	if ownBufferSize > 0xFFFF {
		ownBufferSize = 0xFFFF
	}
	ep := &Endpoint{
		listeners:      make([]listenerSlot, defaultListenerSlots),
		peerBufferSize: defaultPeerBufferSize,
		ownBufferSize:  uint16(ownBufferSize),
		ownChecksum:    frame.ChecksumCRC32,
		peerChecksum:   frame.ChecksumNone,
	}
	for _, opt := range opts {
		opt(ep)
	}
	ep.frm = frame.New(buf, writer, ep.onFramePayload, frame.WithLogger(frameLoggerAdapter{ep}))
	return ep
}

// NewAlloc is New with a library-allocated receive buffer of capacity.
func NewAlloc(capacity int, writer io.ByteWriter, opts ...Option) *Endpoint {
	return New(make([]byte, capacity), writer, opts...)
}

// frameLoggerAdapter forwards frame-layer warnings/errors onto the
// endpoint's own Logger, so installing one Logger covers both layers.
type frameLoggerAdapter struct{ ep *Endpoint }

func (a frameLoggerAdapter) Warnf(format string, args ...any)  { a.ep.warnf(format, args...) }
func (a frameLoggerAdapter) Errorf(format string, args ...any) { a.ep.errorf(format, args...) }

// Feed consumes one byte received from the transport, driving the frame
// layer and, transitively, datagram parsing and dispatch.
func (ep *Endpoint) Feed(b byte) { ep.frm.Feed(b) }

// FeedBuffer feeds each byte of p in order.
func (ep *Endpoint) FeedBuffer(p []byte) { ep.frm.FeedBuffer(p) }

// Reset clears frame, handshake, and peer-negotiation state, keeping
// buffers and listener registrations (spec.md §6: "reset (clears state,
// keeps buffers)"). The origin bit and session counter are left untouched,
// as neither is part of the per-connection negotiated state.
func (ep *Endpoint) Reset() {
	ep.frm.Reset()
	ep.hskStatus = HandshakeNotStarted
	ep.hskSession = 0
	ep.peerBufferSize = defaultPeerBufferSize
	ep.peerChecksum = frame.ChecksumNone
}

// SetRxEnabled toggles the frame layer's receive side.
func (ep *Endpoint) SetRxEnabled(enabled bool) { ep.frm.SetRxEnabled(enabled) }

// SetTxEnabled toggles the frame layer's transmit side.
func (ep *Endpoint) SetTxEnabled(enabled bool) { ep.frm.SetTxEnabled(enabled) }

// SetOrigin sets the origin bit directly. Ordinarily the handshake sets
// this; exposed for hosts that need to seed it manually (spec.md §6
// lifecycle API: "setters for origin bit, preferred checksum, rx/tx
// enable, and session seed").
func (ep *Endpoint) SetOrigin(bit uint16) { ep.origin = bit & 1 }

// Origin returns the endpoint's current origin bit.
func (ep *Endpoint) Origin() uint16 { return ep.origin }

// SetOwnChecksum sets the endpoint's preferred checksum kind.
func (ep *Endpoint) SetOwnChecksum(kind frame.ChecksumKind) { ep.ownChecksum = kind }

// SetSessionSeed overwrites the 15-bit session counter directly.
func (ep *Endpoint) SetSessionSeed(seed uint16) { ep.counter = seed & 0x7FFF }

// PeerBufferSize returns the peer's advertised receive buffer size, or
// 0xFFFF if no handshake has succeeded yet.
func (ep *Endpoint) PeerBufferSize() uint16 { return ep.peerBufferSize }

// PeerChecksum returns the checksum kind the peer prefers.
func (ep *Endpoint) PeerChecksum() frame.ChecksumKind { return ep.peerChecksum }

// resolveChecksum applies the CRC32-unavailable downgrade policy (spec.md
// §4.3/§7: "If CRC32 is advertised but unavailable locally, it is
// downgraded to XOR with a logged error.").
func (ep *Endpoint) resolveChecksum(kind frame.ChecksumKind) frame.ChecksumKind {
	if kind == frame.ChecksumCRC32 && ep.crc32Disabled {
		ep.errorf("endpoint: CRC32 unavailable, downgrading to XOR")
		return frame.ChecksumXOR
	}
	return kind
}

// nextSession allocates the next locally-owned session number: the 15-bit
// counter ORed with the origin bit in bit 15, then advances the counter,
// wrapping 0x8000 back to 0 (spec.md §4.3).
func (ep *Endpoint) nextSession() uint16 {
	s := ep.counter | (ep.origin << 15)
	ep.counter++
	if ep.counter > 0x7FFF {
		ep.counter = 0
	}
	return s
}

// NextSession allocates and returns the next locally-owned session number
// without starting any datagram on it.
func (ep *Endpoint) NextSession() uint16 { return ep.nextSession() }

// onFramePayload is the frame layer's PayloadHandler, bound to this
// endpoint via closure. This is the Go realization of spec.md §9's "user
// token" design note: a bound method value is the function pointer plus
// back-reference the note asks for, without a generic interface{} token
// and an unsafe cast.
func (ep *Endpoint) onFramePayload(payload []byte) {
	ep.Snmp.addFrameDelivered()
	dg, err := datagram.Parse(payload)
	if err != nil {
		ep.Snmp.addProtocolError()
		ep.errorf("endpoint: dropping short datagram (%d bytes): %v", len(payload), err)
		return
	}
	ep.dispatch(&dg)
}

func (ep *Endpoint) dispatch(dg *datagram.Datagram) {
	if dg.Type.IsHandshake() {
		ep.handleHandshake(dg)
		return
	}
	if slot := ep.findListener(dg.Session); slot != nil {
		slot.cb(ep, dg)
		return
	}
	if ep.defaultHandler != nil {
		ep.defaultHandler(dg)
	}
}

// sendDatagram starts and completes a datagram transmit with the given
// checksum kind (post CRC32-downgrade resolution).
func (ep *Endpoint) sendDatagram(cksum frame.ChecksumKind, session uint16, typ datagram.Type, body []byte) bool {
	cksum = ep.resolveChecksum(cksum)
	if !datagram.Start(ep.frm, cksum, session, typ, len(body)) {
		return false
	}
	return ep.frm.SendBuffer(body)
}

// StartResponse opens a datagram of typ/length in session, rejecting
// messages that would not fit the peer's advertised buffer size (spec.md
// §4.3: "rejects with false if length > peer_buffer_size - 3"). It uses
// the peer's preferred checksum kind, since senders checksum for the
// receiver's benefit (spec.md §4.3 preferred-checksum policy).
func (ep *Endpoint) StartResponse(typ datagram.Type, length int, session uint16) bool {
	if length > int(ep.peerBufferSize)-datagram.HeaderLen {
		return false
	}
	cksum := ep.resolveChecksum(ep.peerChecksum)
	return datagram.Start(ep.frm, cksum, session, typ, length)
}

// StartSession allocates a fresh session and starts a response on it,
// returning the session number and whether Start succeeded.
func (ep *Endpoint) StartSession(typ datagram.Type, length int) (uint16, bool) {
	session := ep.nextSession()
	return session, ep.StartResponse(typ, length, session)
}

// SendResponse starts and streams body on an existing session, returning
// the number of body bytes actually accepted by the transmit path (0 on
// any failure, per spec.md §7: fallible sends "fail the operation with
// false; leave no partial state" — reflected here as returning 0 accepted
// bytes rather than a partial count, since the frame layer itself never
// emits a short write on the wire).
func (ep *Endpoint) SendResponse(typ datagram.Type, body []byte, session uint16) int {
	if !ep.StartResponse(typ, len(body), session) {
		return 0
	}
	if !ep.frm.SendBuffer(body) {
		return 0
	}
	return len(body)
}

// SendMessage allocates a fresh session and streams body on it, returning
// the session number and the number of body bytes accepted.
func (ep *Endpoint) SendMessage(typ datagram.Type, body []byte) (uint16, int) {
	session, ok := ep.StartSession(typ, len(body))
	if !ok {
		return 0, 0
	}
	if !ep.frm.SendBuffer(body) {
		return session, 0
	}
	return session, len(body)
}

// hskPayload encodes the 3-byte handshake payload: preferred checksum,
// then the own advertised buffer size, little-endian (spec.md §6).
func (ep *Endpoint) hskPayload() [3]byte {
	var body [3]byte
	body[0] = byte(ep.ownChecksum)
	binary.LittleEndian.PutUint16(body[1:3], ep.ownBufferSize)
	return body
}
