package endpoint

import "github.com/ignacioSepam/sbmp/frame"

// Option configures an Endpoint at construction time, following the same
// functional-options shape as frame.Option (grounded on
// hayabusa-cloud-framer's options.go; see DESIGN.md).
type Option func(*Endpoint)

// WithListenerSlots sets the fixed listener table size. Defaults to 16,
// the size spec.md §9 calls out as beating a map at realistic slot counts.
func WithListenerSlots(n int) Option {
	return func(ep *Endpoint) { ep.listeners = make([]listenerSlot, n) }
}

// WithOrigin sets the endpoint's initial origin bit (0 or 1). Both peers
// default to 0 until a handshake assigns one side 1 (spec.md §4.3).
func WithOrigin(bit uint16) Option {
	return func(ep *Endpoint) { ep.origin = bit & 1 }
}

// WithOwnChecksum sets the endpoint's preferred checksum kind, advertised
// to the peer during handshake.
func WithOwnChecksum(kind frame.ChecksumKind) Option {
	return func(ep *Endpoint) { ep.ownChecksum = kind }
}

// WithOwnBufferSize sets the endpoint's own advertised receive buffer size,
// sent to the peer during handshake so the peer can cap outbound messages.
func WithOwnBufferSize(size uint16) Option {
	return func(ep *Endpoint) { ep.ownBufferSize = size }
}

// WithSessionSeed sets the initial 15-bit session counter value. Useful for
// deterministic tests of the wrap-around boundary (spec.md §8).
func WithSessionSeed(seed uint16) Option {
	return func(ep *Endpoint) { ep.counter = seed & 0x7FFF }
}

// WithCRC32Disabled models the "whether CRC32 is compiled in" configuration
// knob from spec.md §6. When set, any attempt to use ChecksumCRC32 (locally
// requested, or handed back because the peer prefers it) is downgraded to
// ChecksumXOR and logged at error level, per spec.md §4.3/§7.
func WithCRC32Disabled() Option {
	return func(ep *Endpoint) { ep.crc32Disabled = true }
}

// WithLogger installs the optional logging sink.
func WithLogger(l Logger) Option {
	return func(ep *Endpoint) { ep.logger = l }
}

// WithDefaultHandler installs the fallback handler invoked for datagrams
// that match no live listener slot.
func WithDefaultHandler(h DefaultHandler) Option {
	return func(ep *Endpoint) { ep.defaultHandler = h }
}

// WithOnHandshakeSuccess installs a hook invoked synchronously the moment
// the handshake status transitions to HandshakeSuccess. It is not part of
// spec.md's data model; it exists purely so a host application can react
// to the transition without polling HandshakeStatus() after every Feed
// call (see client/main.go's use of it in this repository).
func WithOnHandshakeSuccess(fn func(ep *Endpoint)) Option {
	return func(ep *Endpoint) { ep.onHandshakeSuccess = fn }
}
