package storage

import (
	"encoding/binary"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFailsIfPathExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.storage")

	s1, err := Create(path)
	require.NoError(t, err)
	defer s1.Close()

	_, err = Create(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrExist)
}

func TestOpenFailsIfPathAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.storage")

	_, err := Open(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestDurabilityAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.storage")

	s, err := Create(path)
	require.NoError(t, err)

	txn, ok := s.AppendTxn()
	require.True(t, ok)
	defer txn.Close()

	require.NoError(t, txn.Append([]byte("mouse")))
	require.NoError(t, txn.Append([]byte("trap")))
	newLen, err := txn.Commit(true)
	require.NoError(t, err)
	assert.Equal(t, uint64(len("mousetrap")), newLen)

	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, uint64(len("mousetrap")), reopened.Len())
}

func TestEndToEndScenarioThree(t *testing.T) {
	// Create storage. Write "mouse" + "trap", commit with flush. Write
	// "batman" in a second transaction and abandon it without commit.
	// A read transaction at offset 0 must see exactly "mousetrap".
	path := filepath.Join(t.TempDir(), "test.storage")

	s, err := Create(path)
	require.NoError(t, err)
	defer s.Close()

	txn1, ok := s.AppendTxn()
	require.True(t, ok)
	require.NoError(t, txn1.Append([]byte("mouse")))
	require.NoError(t, txn1.Append([]byte("trap")))
	_, err = txn1.Commit(true)
	require.NoError(t, err)
	require.NoError(t, txn1.Close())

	txn2, ok := s.AppendTxn()
	require.True(t, ok)
	require.NoError(t, txn2.Append([]byte("batman")))
	require.NoError(t, txn2.Close()) // abandoned without commit

	readTxn, ok := s.ReadTxn(0)
	require.True(t, ok)

	buf := make([]byte, readTxn.Remaining())
	require.NoError(t, readTxn.ReadExact(buf))
	assert.Equal(t, "mousetrap", string(buf))
}

func TestAbortRollsBackAndReleasesLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.storage")
	s, err := Create(path)
	require.NoError(t, err)
	defer s.Close()

	txn, ok := s.AppendTxn()
	require.True(t, ok)
	require.NoError(t, txn.Append([]byte("X")))

	start, err := txn.Abort()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), start)
	assert.Equal(t, uint64(0), s.Len())

	// Lock released: a new AppendTxn must succeed.
	txn2, ok := s.AppendTxn()
	require.True(t, ok)
	defer txn2.Close()
}

func TestCloseOnAbandonedTxnRollsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.storage")
	s, err := Create(path)
	require.NoError(t, err)
	defer s.Close()

	func() {
		txn, ok := s.AppendTxn()
		require.True(t, ok)
		defer txn.Close()

		require.NoError(t, txn.Append([]byte("uncommitted")))
		// No explicit Commit or Abort: defer txn.Close() rolls back.
	}()

	assert.Equal(t, uint64(0), s.Len())

	readTxn, ok := s.ReadTxn(0)
	assert.False(t, ok)
	assert.Nil(t, readTxn)
}

func TestSnapshotIsolation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.storage")
	s, err := Create(path)
	require.NoError(t, err)
	defer s.Close()

	txn1, ok := s.AppendTxn()
	require.True(t, ok)
	require.NoError(t, txn1.Append([]byte("first")))
	_, err = txn1.Commit(false)
	require.NoError(t, err)
	require.NoError(t, txn1.Close())

	reader, ok := s.ReadTxn(0)
	require.True(t, ok)
	preCommitRemaining := reader.Remaining()

	txn2, ok := s.AppendTxn()
	require.True(t, ok)
	require.NoError(t, txn2.Append([]byte("second")))
	_, err = txn2.Commit(false)
	require.NoError(t, err)
	require.NoError(t, txn2.Close())

	// The reader began before the second commit; it must not observe it.
	assert.Equal(t, preCommitRemaining, reader.Remaining())

	buf := make([]byte, reader.Remaining())
	require.NoError(t, reader.ReadExact(buf))
	assert.Equal(t, "first", string(buf))
}

func TestAtMostOneWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.storage")
	s, err := Create(path)
	require.NoError(t, err)
	defer s.Close()

	txn1, ok := s.AppendTxn()
	require.True(t, ok)

	txn2, ok := s.AppendTxn()
	assert.False(t, ok)
	assert.Nil(t, txn2)

	require.NoError(t, txn1.Close())

	txn3, ok := s.AppendTxn()
	assert.True(t, ok)
	require.NoError(t, txn3.Close())
}

func TestTruncateIsNoopWhenNotShrinking(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.storage")
	s, err := Create(path)
	require.NoError(t, err)
	defer s.Close()

	txn, ok := s.AppendTxn()
	require.True(t, ok)
	require.NoError(t, txn.Append([]byte("hello")))
	length, err := txn.Commit(false)
	require.NoError(t, err)
	require.NoError(t, txn.Close())

	require.NoError(t, s.Truncate(length))
	require.NoError(t, s.Truncate(length+100))
	assert.Equal(t, length, s.Len())
}

func TestTruncateShrinksFileAndLen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.storage")
	s, err := Create(path)
	require.NoError(t, err)
	defer s.Close()

	txn, ok := s.AppendTxn()
	require.True(t, ok)
	require.NoError(t, txn.Append([]byte("hello world")))
	_, err = txn.Commit(false)
	require.NoError(t, err)
	require.NoError(t, txn.Close())

	require.NoError(t, s.Truncate(5))
	assert.Equal(t, uint64(5), s.Len())

	readTxn, ok := s.ReadTxn(0)
	require.True(t, ok)
	buf := make([]byte, 5)
	require.NoError(t, readTxn.ReadExact(buf))
	assert.Equal(t, "hello", string(buf))
}

func TestDestroyRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.storage")
	s, err := Create(path)
	require.NoError(t, err)

	require.NoError(t, s.Destroy())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

// TestCrashSimulationOrphanTailReconciledOnClose reproduces end-to-end
// scenario 6: a second handle writes an uncommitted tail and is
// abandoned without commit (simulating a crash); closing the original
// handle must reconcile the file back to the committed length.
func TestCrashSimulationOrphanTailReconciledOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.storage")
	s, err := Create(path)
	require.NoError(t, err)

	txn, ok := s.AppendTxn()
	require.True(t, ok)
	require.NoError(t, txn.Append(make([]byte, 100)))
	_, err = txn.Commit(false)
	require.NoError(t, err)
	require.NoError(t, txn.Close())
	require.Equal(t, uint64(100), s.Len())

	// Simulate a second writer crashing mid-transaction: write raw
	// bytes past the committed length directly on the file, bypassing
	// the writer-flag protocol entirely (as a crash would).
	raw, err := os.OpenFile(path, os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = raw.WriteAt(make([]byte, 20), 100)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	require.NoError(t, s.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(100), info.Size())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, uint64(100), reopened.Len())
}

// TestConcurrentWritersAndReaders reproduces end-to-end scenario 5:
// writers race to append distinct big-endian u64 values indexed by an
// atomic counter while readers poll increasing offsets.
func TestConcurrentWritersAndReaders(t *testing.T) {
	const (
		writers    = 5
		readers    = 5
		recordSize = 8
		total      = 2000
	)

	path := filepath.Join(t.TempDir(), "test.storage")
	s, err := Create(path)
	require.NoError(t, err)
	defer s.Close()

	expected := make([][]byte, total)
	for i := range expected {
		b := make([]byte, recordSize)
		binary.BigEndian.PutUint64(b, uint64(i))
		expected[i] = b
	}

	var index atomic.Int64
	var wg sync.WaitGroup

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				txn, ok := s.AppendTxn()
				if !ok {
					continue
				}

				next := index.Add(1) - 1
				if int(next) >= total {
					txn.Close()
					return
				}

				if err := txn.Append(expected[next]); err != nil {
					assert.NoError(t, err)
					txn.Close()
					return
				}
				if _, err := txn.Commit(false); err != nil {
					assert.NoError(t, err)
				}
				txn.Close()
			}
		}()
	}

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			idx := 0
			for idx < total {
				offset := uint64(idx * recordSize)
				readTxn, ok := s.ReadTxn(offset)
				if !ok {
					continue
				}
				if readTxn.Remaining() < recordSize {
					continue
				}

				buf := make([]byte, recordSize)
				if err := readTxn.ReadExact(buf); err != nil {
					assert.NoError(t, err)
					return
				}
				assert.Equal(t, expected[idx], buf)
				idx++
			}
		}()
	}

	wg.Wait()
	require.NoError(t, s.Flush())

	readTxn, ok := s.ReadTxn(0)
	require.True(t, ok)
	all := make([]byte, total*recordSize)
	require.NoError(t, readTxn.ReadExact(all))
	for i := 0; i < total; i++ {
		assert.Equal(t, expected[i], all[i*recordSize:(i+1)*recordSize])
	}
}
