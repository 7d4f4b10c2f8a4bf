package ringfile

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func createTestRing(t *testing.T, capacity, width int) (*Ring, string) {
	filename := filepath.Join(t.TempDir(), "test.ring")
	r, err := Create(filename, capacity, width)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, filename
}

func readAll(t *testing.T, r *Ring, count int) []byte {
	buf := make([]byte, count*r.Width())
	n, err := r.Read(buf, 0, count)
	require.NoError(t, err)
	return buf[:n*r.Width()]
}

func TestRoundTrip(t *testing.T) {
	r, _ := createTestRing(t, 64, 1)
	var all []byte
	for i, chunk := range []string{"hello", " ", "ring", " world", "!"} {
		require.NoError(t, r.Append([]byte(chunk)), "chunk %v", i)
		all = append(all, chunk...)
	}
	require.Equal(t, len(all), r.Used())
	require.Equal(t, all, readAll(t, r, len(all)))
	require.Equal(t, 0, r.Used())
}

func TestWraparound(t *testing.T) {
	r, _ := createTestRing(t, 20, 1)
	require.NoError(t, r.Append([]byte("ABCDEFGHIJK")))
	require.NoError(t, r.Append([]byte("LMNOPQRSTUV")))
	require.Equal(t, 20, r.Used())
	require.Equal(t, "CDEFGHIJKLMNOPQRSTUV", string(readAll(t, r, 20)))
}

func TestWraparoundManyCycles(t *testing.T) {
	// Write more than the capacity many times over, in awkward chunk sizes,
	// and make sure the ring always holds the most recent bytes.
	const capacity = 37
	r, _ := createTestRing(t, capacity, 1)
	var history []byte
	next := byte(0)
	for _, size := range []int{1, 5, 36, 37, 2, 19, 23, 11, 30, 7} {
		chunk := make([]byte, size)
		for i := range chunk {
			chunk[i] = next
			next++
		}
		require.NoError(t, r.Append(chunk))
		history = append(history, chunk...)
		expectUsed := min(len(history), capacity)
		require.Equal(t, expectUsed, r.Used())

		snap := make([]byte, capacity)
		n, err := r.Snapshot(snap, 0, capacity)
		require.NoError(t, err)
		require.Equal(t, history[len(history)-expectUsed:], snap[:n])
	}
}

func TestPartialReads(t *testing.T) {
	r, _ := createTestRing(t, 8, 1)
	require.NoError(t, r.Append([]byte("abcdef")))
	require.Equal(t, "abc", string(readAll(t, r, 3)))
	require.NoError(t, r.Append([]byte("ghijk")))
	require.Equal(t, 8, r.Used())

	// Requesting more than is available returns what there is
	buf := make([]byte, 20)
	n, err := r.Read(buf, 2, 20)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, "defghijk", string(buf[2:10]))

	n, err = r.Read(buf, 0, 1)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, 0, n)
}

func TestReadLimitedByBuffer(t *testing.T) {
	r, _ := createTestRing(t, 10, 1)
	require.NoError(t, r.Append([]byte("0123456789")))
	buf := make([]byte, 4)
	n, err := r.Read(buf, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, "012", string(buf[1:]))
	require.Equal(t, 7, r.Used())
}

func TestOverflow(t *testing.T) {
	r, _ := createTestRing(t, 10, 1)
	require.NoError(t, r.Append([]byte("abc")))
	err := r.Append(bytes.Repeat([]byte{'x'}, 11))
	require.ErrorIs(t, err, ErrOverflow)
	require.Equal(t, 3, r.Used())
	require.Equal(t, "abc", string(readAll(t, r, 3)))

	// Exactly the capacity is fine
	require.NoError(t, r.Append(bytes.Repeat([]byte{'y'}, 10)))
	require.Equal(t, 10, r.Used())
}

func TestUnderflow(t *testing.T) {
	r, _ := createTestRing(t, 10, 1)
	require.NoError(t, r.Append([]byte("abcde")))
	before := r.Stats()
	require.ErrorIs(t, r.Skip(6), ErrUnderflow)
	require.Equal(t, before, r.Stats())

	require.NoError(t, r.Skip(2))
	require.Equal(t, "cde", string(readAll(t, r, 3)))
}

func TestInvalidArguments(t *testing.T) {
	r, _ := createTestRing(t, 10, 1)
	require.NoError(t, r.Append([]byte("abc")))
	before := r.Stats()

	require.ErrorIs(t, r.Write(nil, 0, 1), ErrInvalidArgument)
	require.ErrorIs(t, r.Write([]byte("abc"), 0, 0), ErrInvalidArgument)
	require.ErrorIs(t, r.Write([]byte("abc"), 0, -1), ErrInvalidArgument)
	require.ErrorIs(t, r.Write([]byte("abc"), -1, 1), ErrInvalidArgument)
	require.ErrorIs(t, r.Write([]byte("abc"), 2, 2), ErrInvalidArgument)

	buf := make([]byte, 4)
	_, err := r.Read(nil, 0, 1)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = r.Read(buf, 0, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = r.Read(buf, 4, 1)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = r.Read(buf, -1, 1)
	require.ErrorIs(t, err, ErrInvalidArgument)

	require.ErrorIs(t, r.Skip(0), ErrInvalidArgument)
	require.ErrorIs(t, r.SetCapacity(0), ErrInvalidArgument)

	_, err = r.Snapshot(buf, 0, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = r.Snapshot(buf, 2, 3)
	require.ErrorIs(t, err, ErrOverflow)

	require.Equal(t, before, r.Stats())

	_, err = Create(filepath.Join(t.TempDir(), "zero"), 0, 1)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestGrowPreservesData(t *testing.T) {
	r, _ := createTestRing(t, 11, 1)
	require.NoError(t, r.Append([]byte("ABCDEFGHIJK")))
	require.Equal(t, "ABCD", string(readAll(t, r, 4)))
	require.NoError(t, r.SetCapacity(13))
	require.Equal(t, 13, r.Capacity())
	require.Equal(t, 7, r.Used())
	require.Equal(t, "EFGHIJK", string(readAll(t, r, 7)))
}

func TestGrowWrapped(t *testing.T) {
	r, _ := createTestRing(t, 10, 1)
	require.NoError(t, r.Append([]byte("0123456789")))
	require.NoError(t, r.Skip(6))
	require.NoError(t, r.Append([]byte("abcd"))) // wraps to the start of the data region
	require.NoError(t, r.SetCapacity(20))
	require.Equal(t, 0, r.Stats().ReadPos)
	require.NoError(t, r.Append([]byte("XYZ")))
	require.Equal(t, "6789abcdXYZ", string(readAll(t, r, 20)))
}

func TestShrinkTruncatesOldestFirst(t *testing.T) {
	r, filename := createTestRing(t, 10, 1)
	require.NoError(t, r.Append([]byte("xx")))
	require.NoError(t, r.Skip(2))
	require.NoError(t, r.Append([]byte("ABCDEFGH"))) // 8 used bytes, readPos 2
	require.NoError(t, r.SetCapacity(5))
	require.Equal(t, 5, r.Capacity())
	require.Equal(t, 5, r.Used())

	st, err := os.Stat(filename)
	require.NoError(t, err)
	require.EqualValues(t, HeaderSize+5, st.Size())

	require.Equal(t, "DEFGH", string(readAll(t, r, 5)))
}

func TestShrinkWithoutLoss(t *testing.T) {
	r, _ := createTestRing(t, 10, 1)
	require.NoError(t, r.Append([]byte("abc")))
	require.NoError(t, r.SetCapacity(4))
	require.Equal(t, 3, r.Used())
	require.NoError(t, r.Append([]byte("de")))
	require.Equal(t, "bcde", string(readAll(t, r, 4)))
}

func TestSetCapacityOfEmptyRing(t *testing.T) {
	r, _ := createTestRing(t, 10, 1)
	require.NoError(t, r.Append([]byte("abcdefg")))
	require.NoError(t, r.Skip(7))
	require.NoError(t, r.SetCapacity(3))
	require.Equal(t, Stats{Width: 1, CapacityBytes: 3, UsedBytes: 0, ReadPos: 0}, r.Stats())
	require.NoError(t, r.Append([]byte("xyz")))
	require.Equal(t, "xyz", string(readAll(t, r, 3)))
}

func TestSnapshotNonDestructive(t *testing.T) {
	r, _ := createTestRing(t, 8, 1)
	require.NoError(t, r.Append([]byte("abcdef")))
	require.NoError(t, r.Append([]byte("ghij"))) // wraps, evicts "ab"
	before := r.Stats()

	buf1 := make([]byte, 5)
	n, err := r.Snapshot(buf1, 0, 5)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "fghij", string(buf1))

	buf2 := make([]byte, 5)
	_, err = r.Snapshot(buf2, 0, 5)
	require.NoError(t, err)
	require.Equal(t, buf1, buf2)
	require.Equal(t, before, r.Stats())

	// Asking for more than is buffered returns everything
	big := make([]byte, 20)
	n, err = r.Snapshot(big, 1, 19)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, "cdefghij", string(big[1:9]))

	require.Equal(t, "cdefghij", string(readAll(t, r, 8)))
	n, err = r.Snapshot(buf1, 0, 5)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestReopen(t *testing.T) {
	r, filename := createTestRing(t, 16, 1)
	require.NoError(t, r.Append([]byte("0123456789")))
	require.NoError(t, r.Skip(4))
	require.NoError(t, r.Append([]byte("abcdefghij"))) // wraps
	before := r.Stats()
	require.NoError(t, r.Close())
	require.ErrorIs(t, r.Append([]byte("x")), ErrClosed)
	require.ErrorIs(t, r.Close(), ErrClosed)

	r2, err := OpenBytes(filename, OpenModeReadWrite)
	require.NoError(t, err)
	defer r2.Close()
	require.Equal(t, before, r2.Stats())
	require.Equal(t, "456789abcdefghij", string(readAll(t, r2, 16)))
}

func TestCreateExisting(t *testing.T) {
	_, filename := createTestRing(t, 16, 1)
	_, err := CreateBytes(filename, 16)
	require.ErrorIs(t, err, os.ErrExist)
}

func TestOpenFailures(t *testing.T) {
	dir := t.TempDir()
	_, err := OpenBytes(filepath.Join(dir, "missing"), OpenModeReadOnly)
	require.ErrorIs(t, err, os.ErrNotExist)

	short := filepath.Join(dir, "short")
	require.NoError(t, os.WriteFile(short, []byte{0, 0, 0, 1}, 0644))
	_, err = OpenBytes(short, OpenModeReadOnly)
	require.ErrorIs(t, err, ErrCorruptHeader)

	zero := filepath.Join(dir, "zero")
	require.NoError(t, os.WriteFile(zero, make([]byte, HeaderSize+10), 0644))
	_, err = OpenBytes(zero, OpenModeReadOnly)
	require.ErrorIs(t, err, ErrCorruptHeader)

	r, err := Create(filepath.Join(dir, "odd"), 7, 1)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	_, err = Open(filepath.Join(dir, "odd"), 2, OpenModeReadOnly)
	require.ErrorIs(t, err, ErrWidthMismatch)
}

func TestReadOnly(t *testing.T) {
	r, filename := createTestRing(t, 8, 1)
	require.NoError(t, r.Append([]byte("abc")))
	require.NoError(t, r.Close())

	ro, err := OpenBytes(filename, OpenModeReadOnly)
	require.NoError(t, err)
	defer ro.Close()
	require.ErrorIs(t, ro.Append([]byte("x")), ErrReadOnly)
	require.ErrorIs(t, ro.Skip(1), ErrReadOnly)
	require.ErrorIs(t, ro.SetCapacity(20), ErrReadOnly)
	_, err = ro.Read(make([]byte, 1), 0, 1)
	require.ErrorIs(t, err, ErrReadOnly)

	buf := make([]byte, 3)
	n, err := ro.Snapshot(buf, 0, 3)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, "abc", string(buf))
}

func TestSingleOwner(t *testing.T) {
	_, filename := createTestRing(t, 8, 1)
	_, err := OpenBytes(filename, OpenModeReadWrite)
	require.ErrorIs(t, err, ErrLocked)
}

func TestWidth(t *testing.T) {
	const width = 3
	r, filename := createTestRing(t, 4, width)
	require.Equal(t, 4, r.Capacity())
	require.Equal(t, Stats{Width: width, CapacityBytes: 12}, r.Stats())

	require.ErrorIs(t, r.Append([]byte("ab")), ErrInvalidArgument)
	require.NoError(t, r.Write([]byte("___aaabbbccc"), 1, 3))
	require.NoError(t, r.Append([]byte("dddeee"))) // evicts "aaa"
	require.Equal(t, 4, r.Used())
	require.Equal(t, 12, r.Stats().UsedBytes)

	snap := make([]byte, 2*width)
	n, err := r.Snapshot(snap, 0, 2)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "dddeee", string(snap))

	require.NoError(t, r.SetCapacity(2))
	require.Equal(t, "dddeee", string(readAll(t, r, 2)))
	require.NoError(t, r.Close())

	st, err := os.Stat(filename)
	require.NoError(t, err)
	require.EqualValues(t, HeaderSize+2*width, st.Size())
}

func TestConcurrentProducerConsumer(t *testing.T) {
	// One producer and one consumer. Each element carries its own sequence number,
	// so the consumer can verify that whatever survived eviction is still in order.
	const width = 4
	const total = 5000
	r, _ := createTestRing(t, 64, width)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			v := []byte{byte(i >> 24), byte(i >> 16), byte(i >> 8), byte(i)}
			if err := r.Append(v); err != nil {
				t.Errorf("append: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		last := -1
		buf := make([]byte, 16*width)
		snap := make([]byte, 64*width)
		for last < total-1 {
			if _, err := r.Snapshot(snap, 0, 64); err != nil {
				t.Errorf("snapshot: %v", err)
				return
			}
			n, err := r.Read(buf, 0, 16)
			if err == io.EOF {
				continue
			} else if err != nil {
				t.Errorf("read: %v", err)
				return
			}
			for i := 0; i < n; i++ {
				b := buf[i*width:]
				v := int(b[0])<<24 | int(b[1])<<16 | int(b[2])<<8 | int(b[3])
				if v <= last {
					t.Errorf("out of order: %v after %v", v, last)
					return
				}
				last = v
			}
		}
	}()
	wg.Wait()
	require.Equal(t, 0, r.Used())
}
