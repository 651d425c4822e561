package frame

import (
	"encoding/binary"
	"hash/crc32"
)

// ChecksumKind identifies the checksum coverage applied to a frame's
// payload, per spec.md §4.1.
type ChecksumKind uint8

const (
	// ChecksumNone carries no trailer bytes.
	ChecksumNone ChecksumKind = 0
	// ChecksumXOR is a 1-byte running XOR of the payload.
	ChecksumXOR ChecksumKind = 1
	// ChecksumCRC32 is the 4-byte ISO CRC-32 (poly 0xEDB88320, reflected,
	// init/final XOR 0xFFFFFFFF), little-endian on the wire.
	ChecksumCRC32 ChecksumKind = 32
)

// valid reports whether k is one of the three wire-defined checksum kinds.
// Any other byte value received on the wire rejects the frame (spec.md
// §4.1's CKSUM_TYPE state: "known kind -> LEN_LSB; else -> IDLE").
func (k ChecksumKind) valid() bool {
	switch k {
	case ChecksumNone, ChecksumXOR, ChecksumCRC32:
		return true
	default:
		return false
	}
}

// trailerLen returns the number of checksum trailer bytes on the wire for k.
func (k ChecksumKind) trailerLen() int {
	switch k {
	case ChecksumXOR:
		return 1
	case ChecksumCRC32:
		return 4
	default:
		return 0
	}
}

// updateChecksum folds one payload byte into the running accumulator for
// kind k. CRC32 reuses hash/crc32's composable Update: each single-byte call
// un-complements, folds the byte through IEEETable, and re-complements, so
// calling it once per received byte yields the same result as one bulk call
// over the whole payload.
func updateChecksum(kind ChecksumKind, running uint32, b byte) uint32 {
	switch kind {
	case ChecksumXOR:
		return running ^ uint32(b)
	case ChecksumCRC32:
		return crc32.Update(running, crc32.IEEETable, []byte{b})
	default:
		return running
	}
}

// encodeTrailer appends the wire trailer bytes for running into dst,
// returning the bytes written (0, 1, or 4 depending on kind).
func encodeTrailer(kind ChecksumKind, running uint32, dst []byte) []byte {
	switch kind {
	case ChecksumXOR:
		return append(dst, byte(running))
	case ChecksumCRC32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], running)
		return append(dst, b[:]...)
	default:
		return dst
	}
}

// matchesTrailer reports whether the collected trailer bytes match running
// for the given kind.
func matchesTrailer(kind ChecksumKind, running uint32, trailer []byte) bool {
	switch kind {
	case ChecksumXOR:
		return len(trailer) >= 1 && trailer[0] == byte(running)
	case ChecksumCRC32:
		return len(trailer) >= 4 && binary.LittleEndian.Uint32(trailer[:4]) == running
	default:
		return true
	}
}
