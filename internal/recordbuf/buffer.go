// Package recordbuf provides a growable, reusable in-memory staging
// area for sequenced records, ahead of a bulk transfer into
// transactional storage. A Buffer enforces strict monotonic ordering
// of sequence numbers on append and is not safe for concurrent
// mutation: the owning goroutine is responsible for serializing
// Append, Clear, Reserve, ShrinkTo, and Reinitialize calls.
package recordbuf

import (
	"github.com/flashdb/arrowlog/internal/record"
)

// Buffer holds a sequence of wire-encoded records concatenated with no
// padding, in strictly increasing SeqNo order. The zero value is not
// usable; construct one with WithCapacity.
type Buffer struct {
	count  int
	memory []byte
	first  *uint64
	last   *uint64
}

// WithCapacity returns a new, empty Buffer reserving at least
// capacity bytes up front.
func WithCapacity(capacity int) *Buffer {
	return &Buffer{
		memory: make([]byte, 0, capacity),
	}
}

// Count returns the number of complete records held in the buffer.
func (b *Buffer) Count() int {
	return b.count
}

// Len returns the number of encoded bytes currently held.
func (b *Buffer) Len() int {
	return len(b.memory)
}

// IsEmpty reports whether the buffer holds zero records.
func (b *Buffer) IsEmpty() bool {
	return b.count == 0
}

// Capacity returns the number of bytes the buffer can hold before it
// must reallocate.
func (b *Buffer) Capacity() int {
	return cap(b.memory)
}

// First returns the sequence number of the first record in the
// buffer, or false if the buffer is empty. Cached alongside Last so
// neither requires a decode.
func (b *Buffer) First() (uint64, bool) {
	if b.first == nil {
		return 0, false
	}
	return *b.first, true
}

// Last returns the sequence number of the last appended record, or
// false if the buffer is empty. O(1): it is maintained incrementally
// by Append rather than decoded from the tail.
func (b *Buffer) Last() (uint64, bool) {
	if b.last == nil {
		return 0, false
	}
	return *b.last, true
}

// Append encodes rec at the tail of the buffer iff the buffer is
// empty or rec.SeqNo is strictly greater than the sequence number of
// the last record already held. It reports whether the append was
// accepted; the caller must inspect this return value, since a
// rejected append leaves the buffer completely unchanged.
func (b *Buffer) Append(rec record.Record) bool {
	if b.last != nil && rec.SeqNo <= *b.last {
		return false
	}

	b.memory, _ = record.Encode(b.memory, rec)
	b.count++

	last := rec.SeqNo
	b.last = &last
	if b.first == nil {
		first := rec.SeqNo
		b.first = &first
	}
	return true
}

// Clear resets the buffer to empty while preserving its current
// capacity.
func (b *Buffer) Clear() {
	b.count = 0
	b.memory = b.memory[:0]
	b.first = nil
	b.last = nil
}

// Reserve ensures the buffer can hold at least additional more bytes
// without reallocating, possibly over-allocating to amortize future
// growth.
func (b *Buffer) Reserve(additional int) {
	if cap(b.memory)-len(b.memory) >= additional {
		return
	}
	grown := make([]byte, len(b.memory), len(b.memory)+additional)
	copy(grown, b.memory)
	b.memory = grown
}

// ShrinkTo reduces capacity toward minCapacity, never below the
// buffer's current length.
func (b *Buffer) ShrinkTo(minCapacity int) {
	if minCapacity < len(b.memory) {
		minCapacity = len(b.memory)
	}
	if cap(b.memory) <= minCapacity {
		return
	}
	shrunk := make([]byte, len(b.memory), minCapacity)
	copy(shrunk, b.memory)
	b.memory = shrunk
}

// Bytes exposes the underlying byte region for bulk transfer, e.g.
// handing the whole buffer to storage.AppendTxn.Append in one call.
func (b *Buffer) Bytes() []byte {
	return b.memory
}

// BytesMut exposes the underlying byte region for bulk writes, e.g.
// blitting bytes in from storage before calling Reinitialize. Callers
// must leave the region holding only complete, valid records followed
// by at most one partial trailing record before calling Reinitialize.
func (b *Buffer) BytesMut() *[]byte {
	return &b.memory
}

// Reinitialize walks the byte region decoding records to rebuild
// Count, First, and Last after external bytes have been written
// directly into the region via BytesMut. Any trailing bytes that do
// not form a complete record are truncated so the region ends exactly
// on a record boundary.
func (b *Buffer) Reinitialize() {
	var count int
	var first, last *uint64

	rest := b.memory
	for {
		rec, tail, ok := record.Decode(rest)
		if !ok {
			break
		}
		count++
		seqNo := rec.SeqNo
		if first == nil {
			first = &seqNo
		}
		last = &seqNo
		rest = tail
	}

	b.memory = b.memory[:len(b.memory)-len(rest)]
	b.count = count
	b.first = first
	b.last = last
}

// Iter returns a finite, single-pass, restartable iterator over the
// records currently held, in insertion order. Each call to Iter
// starts a fresh pass from the beginning. Records yielded by the
// iterator borrow bytes from the buffer's region: the iterator (and
// any Record it yields) is invalidated by a subsequent Append, Clear,
// Reserve, ShrinkTo, or Reinitialize call.
func (b *Buffer) Iter() *Iterator {
	return &Iterator{remaining: b.memory}
}

// Iterator yields records from a Buffer's byte region in order.
type Iterator struct {
	remaining []byte
}

// Next returns the next record and true, or the zero Record and false
// once the iterator is exhausted.
func (it *Iterator) Next() (record.Record, bool) {
	rec, rest, ok := record.Decode(it.remaining)
	if !ok {
		return record.Record{}, false
	}
	it.remaining = rest
	return rec, true
}
