// Package frame implements the SBMP frame layer (FRM): a per-byte receive
// state machine that delimits and validates variable-length binary frames on
// a raw byte stream, and a symmetric transmit API that frames outgoing
// payloads through a host-supplied byte writer.
//
// Wire format (spec.md §4.1):
//
//	SOF(0x01) | CKSUM_KIND(1B) | LEN_LSB | LEN_MSB | payload[LEN] | CKSUM[0|1|4]
//
// LEN is little-endian. CKSUM is absent for ChecksumNone, one byte (running
// XOR) for ChecksumXOR, and four little-endian bytes (ISO CRC-32) for
// ChecksumCRC32.
package frame

import (
	"encoding/binary"
	"io"
)

// SOF marks the start of a frame on the wire.
const SOF byte = 0x01

// MaxPayloadLen is the largest payload the 16-bit LEN field can describe.
const MaxPayloadLen = 1<<16 - 1

type state uint8

const (
	stateIdle state = iota
	stateChecksumType
	stateLenLSB
	stateLenMSB
	statePayload
	stateChecksumBytes
)

// PayloadHandler is invoked once per successfully validated frame with a
// view into the instance's own receive buffer. The slice is only valid for
// the duration of the call; callers that need to retain bytes beyond it
// must copy them (the same rule spec.md §5 places on datagram.Datagram and
// listener callbacks one layer up).
type PayloadHandler func(payload []byte)

// txState tracks an in-progress Start/SendByte/SendBuffer sequence.
type txState struct {
	active  bool
	kind    ChecksumKind
	length  int
	sent    int
	running uint32
}

// Inst is one FRM receive/transmit instance. Exactly one backs each
// endpoint (spec.md §3: "Exactly one frame instance backs each endpoint.
// Lifetime equals the endpoint's.").
type Inst struct {
	// receive state
	state    state
	buf      []byte
	received int
	length   int
	cksum    ChecksumKind
	running  uint32
	trailer  [4]byte
	trailGot int
	lenBuf   [2]byte

	rxEnabled bool
	txEnabled bool

	onPayload PayloadHandler
	writer    io.ByteWriter
	logger    Logger

	tx txState
}

// New returns a frame instance that receives into the caller-supplied buf
// (the "caller provides all buffers" allocation mode of spec.md §6/§9). The
// instance rejects any frame whose declared length exceeds len(buf).
func New(buf []byte, writer io.ByteWriter, onPayload PayloadHandler, opts ...Option) *Inst {
	f := &Inst{
		buf:       buf,
		writer:    writer,
		onPayload: onPayload,
		rxEnabled: true,
		txEnabled: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewAlloc is New with a library-allocated receive buffer of the given
// capacity (the "library allocates on demand" mode of spec.md §9).
func NewAlloc(capacity int, writer io.ByteWriter, onPayload PayloadHandler, opts ...Option) *Inst {
	return New(make([]byte, capacity), writer, onPayload, opts...)
}

// Capacity returns the receive buffer's capacity.
func (f *Inst) Capacity() int { return len(f.buf) }

// SetRxEnabled toggles the receive side. Bytes fed while disabled are
// discarded regardless of parser state (spec.md §4.1: "Rx-disabled: bytes
// are discarded regardless of state.").
func (f *Inst) SetRxEnabled(enabled bool) { f.rxEnabled = enabled }

// SetTxEnabled toggles the transmit side. Start/SendByte/SendBuffer all
// return false without writing while disabled.
func (f *Inst) SetTxEnabled(enabled bool) { f.txEnabled = enabled }

// Reset clears both receive and transmit state and returns the instance to
// IDLE, keeping its buffers (spec.md §6 lifecycle API: "reset (clears
// state, keeps buffers)").
func (f *Inst) Reset() {
	f.resetRx()
	f.tx = txState{}
}

func (f *Inst) resetRx() {
	f.state = stateIdle
	f.received = 0
	f.length = 0
	f.running = 0
	f.trailGot = 0
}

// Feed consumes one received byte, advancing the parser state machine. When
// a frame completes and its checksum (if any) matches, it invokes the
// payload handler synchronously before returning, per spec.md §5 ("the
// upstream payload handler runs to completion synchronously inside the
// byte-feeding call that completes the frame").
func (f *Inst) Feed(b byte) {
	if !f.rxEnabled {
		return
	}
	switch f.state {
	case stateIdle:
		if b == SOF {
			f.state = stateChecksumType
		}
		// Any other byte outside a frame is silently discarded (spec.md
		// §4.1: "Any byte received outside a frame that is not SOF is
		// silently discarded.").

	case stateChecksumType:
		kind := ChecksumKind(b)
		if !kind.valid() {
			f.state = stateIdle
			return
		}
		f.cksum = kind
		f.running = 0
		f.state = stateLenLSB

	case stateLenLSB:
		f.lenBuf[0] = b
		f.state = stateLenMSB

	case stateLenMSB:
		f.lenBuf[1] = b
		f.length = int(binary.LittleEndian.Uint16(f.lenBuf[:]))
		f.received = 0
		if f.length > len(f.buf) {
			// Overflow: the declared length will never fit the receive
			// buffer. Reject the frame now rather than per payload byte.
			f.errorf("frame: payload length %d exceeds buffer capacity %d", f.length, len(f.buf))
			f.resetRx()
			return
		}
		if f.length == 0 {
			f.finishPayload()
		} else {
			f.state = statePayload
		}

	case statePayload:
		f.buf[f.received] = b
		f.received++
		f.running = updateChecksum(f.cksum, f.running, b)
		if f.received == f.length {
			f.finishPayload()
		}

	case stateChecksumBytes:
		f.trailer[f.trailGot] = b
		f.trailGot++
		if f.trailGot == f.cksum.trailerLen() {
			if matchesTrailer(f.cksum, f.running, f.trailer[:f.trailGot]) {
				f.deliver()
			} else {
				f.errorf("frame: checksum mismatch, dropping %d-byte frame", f.length)
			}
			f.resetRx()
		}
	}
}

// FeedBuffer feeds each byte of p in order; a convenience for hosts that
// read in chunks rather than byte-by-byte.
func (f *Inst) FeedBuffer(p []byte) {
	for _, b := range p {
		f.Feed(b)
	}
}

// finishPayload is reached exactly when f.received == f.length (including
// the zero-length case reached directly from stateLenMSB).
func (f *Inst) finishPayload() {
	if f.cksum.trailerLen() == 0 {
		f.deliver()
		f.resetRx()
		return
	}
	f.trailGot = 0
	f.state = stateChecksumBytes
}

func (f *Inst) deliver() {
	if f.onPayload != nil {
		f.onPayload(f.buf[:f.length])
	}
}

// Start begins transmitting a new frame of the given checksum kind and
// total payload length, writing the SOF/kind/length header through the
// writer. The trailer is flushed automatically once length bytes have been
// sent via SendByte/SendBuffer (spec.md §4.1: "implicit end-of-frame when
// len bytes have been sent").
func (f *Inst) Start(kind ChecksumKind, length int) bool {
	if !f.txEnabled {
		return false
	}
	if length < 0 || length > MaxPayloadLen || !kind.valid() {
		return false
	}
	if f.writer == nil {
		return false
	}

	f.tx = txState{active: true, kind: kind, length: length}

	if !f.writeByte(SOF) || !f.writeByte(byte(kind)) {
		f.tx.active = false
		return false
	}
	var lb [2]byte
	binary.LittleEndian.PutUint16(lb[:], uint16(length))
	if !f.writeByte(lb[0]) || !f.writeByte(lb[1]) {
		f.tx.active = false
		return false
	}

	if length == 0 {
		ok := f.flushTrailer()
		f.tx.active = false
		return ok
	}
	return true
}

// SendByte appends one payload byte to the frame opened by Start, folding
// it into the running checksum and flushing the trailer automatically once
// the declared length is reached.
func (f *Inst) SendByte(b byte) bool {
	if !f.txEnabled || !f.tx.active {
		return false
	}
	if f.tx.sent >= f.tx.length {
		return false
	}
	if !f.writeByte(b) {
		f.tx.active = false
		return false
	}
	f.tx.running = updateChecksum(f.tx.kind, f.tx.running, b)
	f.tx.sent++
	if f.tx.sent == f.tx.length {
		ok := f.flushTrailer()
		f.tx.active = false
		return ok
	}
	return true
}

// SendBuffer appends len(p) payload bytes via repeated SendByte calls,
// stopping at the first failure.
func (f *Inst) SendBuffer(p []byte) bool {
	if len(p) == 0 {
		// Nothing to send; a zero-length Start already flushed.
		return f.txEnabled
	}
	for _, b := range p {
		if !f.SendByte(b) {
			return false
		}
	}
	return true
}

func (f *Inst) flushTrailer() bool {
	n := f.tx.kind.trailerLen()
	if n == 0 {
		return true
	}
	var buf [4]byte
	trailer := encodeTrailer(f.tx.kind, f.tx.running, buf[:0])
	for _, b := range trailer {
		if !f.writeByte(b) {
			return false
		}
	}
	return true
}

func (f *Inst) writeByte(b byte) bool {
	if f.writer == nil {
		return false
	}
	return f.writer.WriteByte(b) == nil
}
