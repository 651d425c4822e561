package endpoint

import (
	"bytes"
	"testing"

	"github.com/ignacioSepam/sbmp/datagram"
	"github.com/ignacioSepam/sbmp/frame"
)

// sendRaw builds a complete wire-encoded datagram and feeds it directly into
// target, bypassing any peer endpoint. Used to drive handshake edge cases
// that would otherwise need an inconvenient amount of two-endpoint setup.
func sendRaw(t *testing.T, target *Endpoint, cksum frame.ChecksumKind, session uint16, typ datagram.Type, body []byte) {
	t.Helper()
	var wire bytes.Buffer
	f := frame.New(make([]byte, 256), &wire, nil)
	if !datagram.Start(f, cksum, session, typ, len(body)) {
		t.Fatalf("datagram.Start failed")
	}
	if !f.SendBuffer(body) {
		t.Fatalf("SendBuffer failed")
	}
	target.FeedBuffer(wire.Bytes())
}

func TestHandshakeSuccessAssignsOrigin(t *testing.T) {
	var wireAtoB, wireBtoA bytes.Buffer
	a := New(make([]byte, 256), &wireAtoB)
	b := New(make([]byte, 256), &wireBtoA)

	if !a.StartHandshake() {
		t.Fatalf("a.StartHandshake failed")
	}
	b.FeedBuffer(wireAtoB.Bytes())
	wireAtoB.Reset()

	if b.HandshakeStatus() != HandshakeSuccess {
		t.Fatalf("b status = %v, want SUCCESS", b.HandshakeStatus())
	}
	if b.Origin() != 1 {
		t.Fatalf("b origin = %d, want 1", b.Origin())
	}

	a.FeedBuffer(wireBtoA.Bytes())

	if a.HandshakeStatus() != HandshakeSuccess {
		t.Fatalf("a status = %v, want SUCCESS", a.HandshakeStatus())
	}
	if a.Origin() != 0 {
		t.Fatalf("a origin = %d, want 0", a.Origin())
	}
	if a.Snmp.HandshakesOK != 1 || b.Snmp.HandshakesOK != 1 {
		t.Fatalf("expected 1 successful handshake counted on each side")
	}
}

func TestHandshakeSimultaneousConflict(t *testing.T) {
	var wireAtoB, wireBtoA bytes.Buffer
	a := New(make([]byte, 256), &wireAtoB)
	b := New(make([]byte, 256), &wireBtoA)

	if !a.StartHandshake() {
		t.Fatalf("a.StartHandshake failed")
	}
	if !b.StartHandshake() {
		t.Fatalf("b.StartHandshake failed")
	}

	aBytes := append([]byte{}, wireAtoB.Bytes()...)
	bBytes := append([]byte{}, wireBtoA.Bytes()...)

	b.FeedBuffer(aBytes)
	a.FeedBuffer(bBytes)

	if a.HandshakeStatus() != HandshakeConflict {
		t.Fatalf("a status = %v, want CONFLICT", a.HandshakeStatus())
	}
	if b.HandshakeStatus() != HandshakeConflict {
		t.Fatalf("b status = %v, want CONFLICT", b.HandshakeStatus())
	}
	if a.Snmp.HandshakeConflicts != 1 || b.Snmp.HandshakeConflicts != 1 {
		t.Fatalf("expected 1 conflict counted on each side")
	}
}

func TestHandshakeRenegotiateWhileSuccess(t *testing.T) {
	// Covers the open question in DESIGN.md: a fresh HSK_START arriving
	// while already HandshakeSuccess is accepted exactly like a first
	// handshake, silently overwriting peer parameters and origin.
	var wire bytes.Buffer
	b := New(make([]byte, 256), &wire)

	sendRaw(t, b, frame.ChecksumXOR, 0x0001, datagram.TypeHskStart, []byte{byte(frame.ChecksumXOR), 0x00, 0x10})
	if b.HandshakeStatus() != HandshakeSuccess {
		t.Fatalf("b status = %v, want SUCCESS after first handshake", b.HandshakeStatus())
	}
	if b.PeerChecksum() != frame.ChecksumXOR {
		t.Fatalf("peer checksum = %v, want XOR", b.PeerChecksum())
	}
	firstOrigin := b.Origin()

	// A second HSK_START, from a session whose origin bit differs, arrives
	// while b is already SUCCESS.
	sendRaw(t, b, frame.ChecksumNone, 0x8002, datagram.TypeHskStart, []byte{byte(frame.ChecksumNone), 0x00, 0x20})

	if b.HandshakeStatus() != HandshakeSuccess {
		t.Fatalf("b status = %v, want SUCCESS after renegotiation", b.HandshakeStatus())
	}
	if b.PeerChecksum() != frame.ChecksumNone {
		t.Fatalf("peer checksum not overwritten by renegotiation, got %v", b.PeerChecksum())
	}
	if b.Origin() == firstOrigin {
		t.Fatalf("origin should flip to match the new peer session's origin bit")
	}
}

func TestListenerPriorityOverDefaultHandler(t *testing.T) {
	var defaultCalled, listenerCalled bool
	ep := New(make([]byte, 256), nil,
		WithDefaultHandler(func(dg *datagram.Datagram) { defaultCalled = true }),
	)
	const session = 0x0042
	ep.AddListener(session, func(ep *Endpoint, dg *datagram.Datagram) { listenerCalled = true })

	sendRaw(t, ep, frame.ChecksumNone, session, 0x01, []byte("hi"))

	if !listenerCalled {
		t.Fatalf("listener for registered session was not invoked")
	}
	if defaultCalled {
		t.Fatalf("default handler should not run when a listener claims the session")
	}
}

func TestDefaultHandlerRunsForUnclaimedSession(t *testing.T) {
	var defaultCalled bool
	ep := New(make([]byte, 256), nil,
		WithDefaultHandler(func(dg *datagram.Datagram) { defaultCalled = true }),
	)
	sendRaw(t, ep, frame.ChecksumNone, 0x9999, 0x01, []byte("hi"))
	if !defaultCalled {
		t.Fatalf("default handler should run for a session with no listener")
	}
}

func TestStartResponseRejectsOverPeerBufferSize(t *testing.T) {
	var wire bytes.Buffer
	ep := New(make([]byte, 256), &wire)
	ep.peerBufferSize = 10

	if ep.StartResponse(0x01, 8, 0x0001) {
		t.Fatalf("length == peerBufferSize-2 should be rejected")
	}
	if !ep.StartResponse(0x01, 7, 0x0002) {
		t.Fatalf("length == peerBufferSize-3 should be accepted")
	}
}

func TestSessionCounterWrapsAround(t *testing.T) {
	ep := New(make([]byte, 256), nil, WithSessionSeed(0x7FFF))

	first := ep.NextSession()
	if first&0x7FFF != 0x7FFF {
		t.Fatalf("first session low bits = %#04x, want 0x7FFF", first&0x7FFF)
	}
	second := ep.NextSession()
	if second&0x7FFF != 0 {
		t.Fatalf("counter should wrap to 0 after 0x7FFF, got %#04x", second&0x7FFF)
	}
}

func TestListenerTableFullRejectsAdd(t *testing.T) {
	ep := New(make([]byte, 256), nil, WithListenerSlots(1))

	if !ep.AddListener(0x0001, func(ep *Endpoint, dg *datagram.Datagram) {}) {
		t.Fatalf("first AddListener into an empty table should succeed")
	}
	if ep.AddListener(0x0002, func(ep *Endpoint, dg *datagram.Datagram) {}) {
		t.Fatalf("AddListener into a full table should fail")
	}
}

func TestRemoveListenerClearsFirstMatchOnly(t *testing.T) {
	ep := New(make([]byte, 256), nil, WithListenerSlots(4))

	ep.AddListener(0x0005, func(ep *Endpoint, dg *datagram.Datagram) {})
	ep.AddListener(0x0005, func(ep *Endpoint, dg *datagram.Datagram) {})

	if !ep.RemoveListener(0x0005) {
		t.Fatalf("RemoveListener should find the first matching slot")
	}
	if ep.findListener(0x0005) == nil {
		t.Fatalf("a second slot registered under the same session should survive one RemoveListener call")
	}
}

func TestCRC32DowngradedWhenDisabled(t *testing.T) {
	logger := &recordingEndpointLogger{}
	ep := New(make([]byte, 256), nil, WithCRC32Disabled(), WithLogger(logger))

	got := ep.resolveChecksum(frame.ChecksumCRC32)
	if got != frame.ChecksumXOR {
		t.Fatalf("got %v, want ChecksumXOR downgrade", got)
	}
	if logger.errs != 1 {
		t.Fatalf("expected 1 logged error for the downgrade, got %d", logger.errs)
	}
}

type recordingEndpointLogger struct {
	infos, warns, errs int
}

func (l *recordingEndpointLogger) Infof(format string, args ...any)  { l.infos++ }
func (l *recordingEndpointLogger) Warnf(format string, args ...any)  { l.warns++ }
func (l *recordingEndpointLogger) Errorf(format string, args ...any) { l.errs++ }
