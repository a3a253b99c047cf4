// Package record implements the wire format for a single sequenced
// record: a caller-assigned sequence number plus an opaque payload.
//
// Encoding is big-endian and self-delimiting, with no checksum and no
// version byte:
//
//	+--------+--------+----------+
//	|  8 B   |  8 B   |   N B    |
//	| seq_no | size N | payload  |
//	+--------+--------+----------+
//
// Decoding never allocates: the returned Record borrows its Payload
// from the input slice.
package record

import "encoding/binary"

// HeaderSize is the number of bytes occupied by seq_no and size,
// before the payload.
const HeaderSize = 16

// Record is an immutable (seq_no, payload) pair. A Record returned by
// Decode borrows Payload from the slice it was decoded out of; it is
// invalidated the moment that slice is mutated or freed. Use
// NewOwned to get a Record that owns a private copy of the payload.
type Record struct {
	SeqNo   uint64
	Payload []byte
}

// NewOwned copies payload so the returned Record has no lifetime tie
// to the caller's slice.
func NewOwned(seqNo uint64, payload []byte) Record {
	owned := make([]byte, len(payload))
	copy(owned, payload)
	return Record{SeqNo: seqNo, Payload: owned}
}

// NewBorrowed wraps payload without copying it. The caller must not
// mutate payload for as long as the returned Record is in use.
func NewBorrowed(seqNo uint64, payload []byte) Record {
	return Record{SeqNo: seqNo, Payload: payload}
}

// Size returns the total number of wire bytes Encode would write for
// this record: the 16 byte header plus the payload length.
func (r Record) Size() int {
	return HeaderSize + len(r.Payload)
}

// Less reports whether r sorts before other by sequence number alone.
func (r Record) Less(other Record) bool {
	return r.SeqNo < other.SeqNo
}

// Encode appends the wire encoding of r to dst, growing it as needed,
// and returns the extended slice along with the number of bytes
// written (always r.Size()).
func Encode(dst []byte, r Record) ([]byte, int) {
	start := len(dst)
	total := r.Size()
	dst = growTo(dst, start+total)

	binary.BigEndian.PutUint64(dst[start:start+8], r.SeqNo)
	binary.BigEndian.PutUint64(dst[start+8:start+16], uint64(len(r.Payload)))
	copy(dst[start+16:start+total], r.Payload)

	return dst, total
}

// Decode reads the first record out of b. It returns the decoded
// record, the remainder of b positioned immediately after it, and
// true on success. If b holds fewer than HeaderSize+N bytes (where N
// is the decoded payload size), it returns false and the other
// results are zero values: there is no separate error for a truncated
// record, since random corruption that preserves framing cannot be
// told apart from a short read anyway.
//
// The returned Record.Payload aliases b; it must be treated as a view
// that becomes invalid once b is mutated or goes out of scope.
func Decode(b []byte) (Record, []byte, bool) {
	if len(b) < HeaderSize {
		return Record{}, nil, false
	}

	seqNo := binary.BigEndian.Uint64(b[0:8])
	size := binary.BigEndian.Uint64(b[8:16])

	if size > uint64(len(b)-HeaderSize) {
		return Record{}, nil, false
	}
	total := HeaderSize + size

	payload := b[HeaderSize:total]
	return Record{SeqNo: seqNo, Payload: payload}, b[total:], true
}

// growTo grows dst to length n, reusing existing capacity where
// possible, and returns the grown slice.
func growTo(dst []byte, n int) []byte {
	if cap(dst) >= n {
		return dst[:n]
	}
	grown := make([]byte, n, n+n/2+64)
	copy(grown, dst)
	return grown
}
