// Package storage implements a file-backed, append-only byte log with
// lock-free single-writer / wait-free multi-reader access, explicit
// begin/commit/abort transactions, snapshot isolation for readers,
// and crash recovery on reopen.
//
// At most one append transaction exists at a time per Storage; any
// number of read transactions may run concurrently with it and with
// each other. Readers and the writer never block on one another —
// they block only on the underlying disk I/O.
//
// Ordering contract: every store to the committed length is a
// sync/atomic release, every load is an acquire; the writer flag is
// acquired with an atomic swap and released with an atomic store.
// Go's memory model gives sync/atomic operations on a single variable
// the same happens-before guarantees as acquire/release, so a reader
// that observes a larger length is guaranteed to see every byte
// written up to that offset.
package storage

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
)

// ErrUnexpectedEOF is returned by ReadTxn.ReadExact when fewer bytes
// remain in the transaction's snapshot than the caller's buffer needs.
var ErrUnexpectedEOF = errors.New("storage: unexpected EOF")

// Storage is a file on disk plus the committed length of that file.
// Bytes in [len, file size) are an uncommitted tail written by an
// in-progress or abandoned append transaction and must never be
// observed by a reader.
type Storage struct {
	file *os.File
	path string

	// len is the byte offset one past the last committed byte. Only
	// the committing writer ever stores it, with release ordering;
	// every other access is an acquire load.
	len atomic.Uint64

	// lock is the single-bit exclusive-writer flag: false means
	// released, true means an AppendTxn currently holds it.
	lock atomic.Bool
}

// Create creates a new storage file at path, failing if it already
// exists. The initial committed length is zero.
func Create(path string) (*Storage, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: create %q: %w", path, err)
	}
	return &Storage{file: file, path: path}, nil
}

// Open opens an existing storage file at path, failing if it is
// absent. The committed length is initialized from the file's
// current size on disk — which, if the previous session crashed
// between an append and its commit, may include an uncommitted tail.
// See the package doc and Close for how that tail gets reconciled.
func Open(path string) (*Storage, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: open %q: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("storage: open %q: stat: %w", path, err)
	}

	s := &Storage{file: file, path: path}
	s.len.Store(uint64(info.Size()))
	return s, nil
}

// Path returns the filesystem path this storage was created or opened
// with.
func (s *Storage) Path() string {
	return s.path
}

// Len returns the current committed length, acquired atomically.
func (s *Storage) Len() uint64 {
	return s.len.Load()
}

// Flush forces committed data durably to disk. Go's standard library
// does not expose a portable data-sync-only primitive distinct from a
// full fsync, so this calls the same File.Sync used for metadata
// durability elsewhere; it is stronger than strictly required but
// never weaker.
func (s *Storage) Flush() error {
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("storage: flush: %w", err)
	}
	return nil
}

// AppendTxn attempts to acquire the exclusive writer slot. On
// contention — another AppendTxn is already live — it returns
// (nil, false) instead of blocking or spinning; callers that need to
// retry do so in their own loop. On success it returns a transaction
// observing len with acquire ordering as both its start and next
// write offset.
//
// Callers must terminate the returned transaction exactly once, via
// Commit or Abort, and should additionally `defer txn.Close()`
// immediately after a successful call so that an early return (e.g.
// from an error before Commit/Abort is reached) still releases the
// writer slot and rolls back any partial writes — Close is a no-op
// once Commit or Abort has run.
func (s *Storage) AppendTxn() (*AppendTxn, bool) {
	if s.lock.Swap(true) {
		return nil, false
	}

	start := s.len.Load()
	return &AppendTxn{
		storage: s,
		start:   start,
		next:    start,
	}, true
}

// ReadTxn begins a read transaction with snapshot isolation: it
// observes the committed length with acquire ordering at begin and
// never reads past that offset, even if the writer commits more bytes
// before the transaction ends. Returns (nil, false) if offset is at or
// beyond the current committed length.
func (s *Storage) ReadTxn(offset uint64) (*ReadTxn, bool) {
	length := s.len.Load()
	if offset >= length {
		return nil, false
	}

	return &ReadTxn{
		storage:     s,
		lenSnapshot: length,
		next:        offset,
	}, true
}

// Truncate reduces the file to newLen bytes. It must only be called
// when no append or read transaction is outstanding — truncating
// underneath a live read transaction would violate that transaction's
// snapshot. It is a no-op if newLen is at or beyond the current
// committed length.
func (s *Storage) Truncate(newLen uint64) error {
	if newLen >= s.len.Load() {
		return nil
	}
	if err := s.file.Truncate(int64(newLen)); err != nil {
		return fmt.Errorf("storage: truncate: %w", err)
	}
	s.len.Store(newLen)
	return nil
}

// Destroy closes and removes the backing file, consuming the storage
// handle. Callers must not use s after Destroy returns.
func (s *Storage) Destroy() error {
	_ = s.file.Close()
	if err := os.Remove(s.path); err != nil {
		return fmt.Errorf("storage: destroy %q: %w", s.path, err)
	}
	return nil
}

// Close durably shuts storage down: if the file on disk is longer
// than the committed length — an orphan tail left by an aborted or
// crashed append transaction — it truncates the file to the committed
// length, then flushes and closes the file. After a graceful Close,
// reopening the same path always yields a length equal to the sum of
// bytes actually committed during the session.
func (s *Storage) Close() error {
	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("storage: close: stat: %w", err)
	}

	length := s.len.Load()
	if uint64(info.Size()) > length {
		if err := s.file.Truncate(int64(length)); err != nil {
			return fmt.Errorf("storage: close: truncate: %w", err)
		}
	}

	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("storage: close: sync: %w", err)
	}

	if err := s.file.Close(); err != nil {
		return fmt.Errorf("storage: close: %w", err)
	}
	return nil
}

// AppendTxn is a transient handle representing the single exclusive
// append session a Storage may have at any instant. Bytes written via
// Append land on disk immediately but are not visible to any
// ReadTxn — including ones begun after the Append call — until Commit
// publishes them.
type AppendTxn struct {
	storage *Storage
	start   uint64
	next    uint64
	done    bool
}

// Append writes buf at the transaction's current write offset using
// positional I/O (no seek, so no race with any concurrent reader's
// offset) and advances that offset by len(buf). Multiple Append calls
// within one transaction are permitted and accumulate.
func (t *AppendTxn) Append(buf []byte) error {
	if _, err := t.storage.file.WriteAt(buf, int64(t.next)); err != nil {
		return fmt.Errorf("storage: append: %w", err)
	}
	t.next += uint64(len(buf))
	return nil
}

// Commit publishes the bytes written so far. If flush is true, the
// file is data-synced before publishing, so a crash right after
// Commit returns cannot lose the new bytes. The store of the new
// length with release ordering is the linearization point: any
// ReadTxn that begins after this store observes the new bytes.
//
// If no bytes were written in this transaction, Commit is a no-op
// beyond releasing the writer slot. On error, the transaction is left
// incomplete and still holds the writer slot — callers are expected
// to have `defer txn.Close()` in place, which will best-effort roll
// back and release.
func (t *AppendTxn) Commit(flush bool) (uint64, error) {
	if t.start == t.next {
		t.finish()
		return t.next, nil
	}

	if flush {
		if err := t.storage.file.Sync(); err != nil {
			return 0, fmt.Errorf("storage: commit: sync: %w", err)
		}
	}

	t.storage.len.Store(t.next)
	t.finish()
	return t.next, nil
}

// Abort explicitly rolls back the transaction: if any bytes were
// written, it truncates the file back to the start offset so they
// never become visible to any future reader. Prefer calling Abort
// explicitly over relying on Close so that I/O errors during rollback
// are visible to the caller.
func (t *AppendTxn) Abort() (uint64, error) {
	if t.next != t.start {
		if err := t.storage.file.Truncate(int64(t.start)); err != nil {
			return 0, fmt.Errorf("storage: abort: %w", err)
		}
	}
	t.finish()
	return t.start, nil
}

// Close is the Go stand-in for the implicit-abort-on-drop behavior a
// language with destructors would give this transaction for free: if
// the transaction was abandoned without an explicit Commit or Abort
// (including because one of them returned an error before completing)
// it rolls back any written bytes on a best-effort basis, swallowing
// any error — the next graceful Storage.Close reconciles the file to
// the committed length regardless — and unconditionally releases the
// writer slot. It is a no-op if the transaction already completed.
// Callers should `defer txn.Close()` immediately after a successful
// AppendTxn.
func (t *AppendTxn) Close() error {
	if t.done {
		return nil
	}
	if t.next != t.start {
		_ = t.storage.file.Truncate(int64(t.start))
	}
	t.finish()
	return nil
}

func (t *AppendTxn) finish() {
	t.done = true
	t.storage.lock.Store(false)
}

// ReadTxn is a transient handle over a snapshot of storage as it
// existed when the transaction began. It takes no locks and never
// contends with the writer or with other readers.
type ReadTxn struct {
	storage     *Storage
	lenSnapshot uint64
	next        uint64
}

// Read attempts to fill buf from the transaction's current cursor,
// clamped to the transaction's snapshot, and advances the cursor by
// however many bytes were actually read. It may return fewer bytes
// than len(buf) even when more bytes exist elsewhere in the file —
// callers that need an exact count should use ReadExact.
func (t *ReadTxn) Read(buf []byte) (int, error) {
	remaining := t.Remaining()
	want := len(buf)
	if uint64(want) > remaining {
		want = int(remaining)
	}
	if want == 0 {
		return 0, nil
	}

	n, err := t.storage.file.ReadAt(buf[:want], int64(t.next))
	t.next += uint64(n)
	if err != nil {
		return n, fmt.Errorf("storage: read: %w", err)
	}
	return n, nil
}

// ReadExact fills buf completely, advancing the cursor by len(buf).
// It returns ErrUnexpectedEOF without reading anything if fewer bytes
// remain in the snapshot than len(buf) requires.
func (t *ReadTxn) ReadExact(buf []byte) error {
	if t.Remaining() < uint64(len(buf)) {
		return ErrUnexpectedEOF
	}

	if _, err := t.storage.file.ReadAt(buf, int64(t.next)); err != nil {
		return fmt.Errorf("storage: read_exact: %w", err)
	}
	t.next += uint64(len(buf))
	return nil
}

// Remaining returns how many bytes are left between the cursor and
// the end of this transaction's snapshot.
func (t *ReadTxn) Remaining() uint64 {
	if t.next >= t.lenSnapshot {
		return 0
	}
	return t.lenSnapshot - t.next
}

// Commit releases the transaction (there is nothing to publish for a
// reader) and returns the cursor offset so the caller can resume a
// later ReadTxn from where this one stopped.
func (t *ReadTxn) Commit() uint64 {
	return t.next
}
