// Package ringfile is a fixed-capacity FIFO of fixed-width elements, persisted in a single file.
//
// The file is a 12 byte header (see HeaderSize), followed by a data region of exactly
// 'capacity' bytes. When the ring is full, writes evict the oldest elements. The header
// is rewritten after every mutating call, so that a process restart can resume from the
// last state that was handed back to a caller.
//
// An element width of 1 gives a plain byte ring. Higher layers use a width equal to
// the size of their serialized record, and all counts on the API are then in records.
package ringfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

type OpenMode int

const (
	OpenModeReadOnly OpenMode = iota
	OpenModeReadWrite
)

// Ring is safe for use from multiple goroutines. Every public method holds the
// ring's lock for its full duration, including the final header write.
type Ring struct {
	filename string
	width    int // Size of one element, in bytes
	mode     OpenMode

	lock     sync.Mutex // Guards everything below
	file     *os.File   // nil once closed
	capacity int        // Size of the data region, in bytes
	readPos  int        // Offset of the oldest element, from the start of the data region
	used     int        // Number of buffered bytes
	hbuf     [HeaderSize]byte
}

// Stats is a consistent view of the ring's bookkeeping
type Stats struct {
	Width         int // Element width in bytes
	CapacityBytes int
	UsedBytes     int
	ReadPos       int // Byte offset of the oldest element inside the data region
}

// Create a new ring file that can hold 'capacity' elements of 'width' bytes each.
// Fails if the file already exists.
func Create(filename string, capacity, width int) (*Ring, error) {
	if width <= 0 {
		return nil, fmt.Errorf("%w: element width %v", ErrInvalidArgument, width)
	}
	if capacity <= 0 || capacity > MaxCapacityBytes/width {
		return nil, fmt.Errorf("%w: capacity %v", ErrInvalidArgument, capacity)
	}
	f, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, err
	}
	r := &Ring{
		filename: filename,
		width:    width,
		mode:     OpenModeReadWrite,
		file:     f,
		capacity: capacity * width,
	}
	fail := func(err error) (*Ring, error) {
		f.Close()
		os.Remove(filename)
		return nil, err
	}
	if err := lockFile(f, true); err != nil {
		return fail(err)
	}
	if err := f.Truncate(int64(HeaderSize + r.capacity)); err != nil {
		return fail(err)
	}
	if err := r.writeHeader(); err != nil {
		return fail(err)
	}
	return r, nil
}

// CreateBytes creates a byte ring (element width 1)
func CreateBytes(filename string, capacity int) (*Ring, error) {
	return Create(filename, capacity, 1)
}

// Open an existing ring file.
// The element width is not stored in the file, so the caller must supply the same width
// that the file was created with. A read-write open takes an exclusive lock on the file,
// so only one owner can mutate a ring at a time.
func Open(filename string, width int, mode OpenMode) (*Ring, error) {
	if width <= 0 {
		return nil, fmt.Errorf("%w: element width %v", ErrInvalidArgument, width)
	}
	flag := os.O_RDONLY
	if mode == OpenModeReadWrite {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(filename, flag, 0)
	if err != nil {
		return nil, err
	}
	success := false
	defer func() {
		if !success {
			f.Close()
		}
	}()

	if err := lockFile(f, mode == OpenModeReadWrite); err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.Size() < HeaderSize {
		return nil, fmt.Errorf("%w: file %v is only %v bytes", ErrCorruptHeader, filename, st.Size())
	}
	raw := [HeaderSize]byte{}
	if _, err := f.ReadAt(raw[:], 0); err != nil {
		return nil, err
	}
	h := decodeHeader(raw[:])
	if err := h.validate(width); err != nil {
		return nil, err
	}

	// A resize that was interrupted can leave the data region short
	if mode == OpenModeReadWrite && st.Size() < int64(HeaderSize+h.capacity) {
		if err := f.Truncate(int64(HeaderSize + h.capacity)); err != nil {
			return nil, err
		}
	}

	success = true
	return &Ring{
		filename: filename,
		width:    width,
		mode:     mode,
		file:     f,
		capacity: h.capacity,
		readPos:  h.readPos,
		used:     h.used,
	}, nil
}

// OpenBytes opens a byte ring (element width 1)
func OpenBytes(filename string, mode OpenMode) (*Ring, error) {
	return Open(filename, 1, mode)
}

func (r *Ring) Filename() string {
	return r.filename
}

// Width returns the size of one element, in bytes
func (r *Ring) Width() int {
	return r.width
}

// Capacity returns the maximum number of elements that the ring can hold
func (r *Ring) Capacity() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.capacity / r.width
}

// Used returns the number of buffered elements
func (r *Ring) Used() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.used / r.width
}

func (r *Ring) Stats() Stats {
	r.lock.Lock()
	defer r.lock.Unlock()
	return Stats{
		Width:         r.width,
		CapacityBytes: r.capacity,
		UsedBytes:     r.used,
		ReadPos:       r.readPos,
	}
}

// Write appends src[offset:offset+count] (in elements) to the ring.
// If there is not enough free space, the oldest elements are evicted to make room.
// A single write larger than the entire capacity fails with ErrOverflow, and nothing is written.
func (r *Ring) Write(src []byte, offset, count int) error {
	if src == nil || count <= 0 || offset < 0 || (offset+count)*r.width > len(src) {
		return fmt.Errorf("%w: write of %v elements at %v from buffer of %v bytes", ErrInvalidArgument, count, offset, len(src))
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.checkWritable(); err != nil {
		return err
	}
	n := count * r.width
	if n > r.capacity {
		return fmt.Errorf("%w: write of %v elements exceeds capacity of %v", ErrOverflow, count, r.capacity/r.width)
	}

	// Evicting the oldest bytes doesn't move the write position, so we can write first,
	// and only touch the bookkeeping once the data is in place.
	if err := r.writeRegion(r.writePos(), src[offset*r.width:offset*r.width+n]); err != nil {
		return err
	}
	if free := r.capacity - r.used; n > free {
		evict := n - free
		r.readPos = (r.readPos + evict) % r.capacity
		r.used -= evict
	}
	r.used += n
	return r.writeHeader()
}

// Append writes all of p, which must be a whole number of elements
func (r *Ring) Append(p []byte) error {
	if len(p)%r.width != 0 {
		return fmt.Errorf("%w: %v bytes is not a multiple of element width %v", ErrInvalidArgument, len(p), r.width)
	}
	return r.Write(p, 0, len(p)/r.width)
}

// Read removes up to 'count' of the oldest elements, placing them at dst[offset*width:].
// Returns the number of elements transferred, which is limited by the number of buffered
// elements, and by the space in dst. Returns io.EOF if the ring is empty.
func (r *Ring) Read(dst []byte, offset, count int) (int, error) {
	room := len(dst)/r.width - offset
	if dst == nil || count <= 0 || offset < 0 || room <= 0 {
		return 0, fmt.Errorf("%w: read of %v elements at %v into buffer of %v bytes", ErrInvalidArgument, count, offset, len(dst))
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.checkWritable(); err != nil {
		return 0, err
	}
	if r.used == 0 {
		return 0, io.EOF
	}
	n := min(count, room, r.used/r.width) * r.width
	if err := r.readRegion(r.readPos, dst[offset*r.width:offset*r.width+n]); err != nil {
		return 0, err
	}
	r.readPos = (r.readPos + n) % r.capacity
	r.used -= n
	if err := r.writeHeader(); err != nil {
		return 0, err
	}
	return n / r.width, nil
}

// ReadExact removes exactly 'count' of the oldest elements into dst[offset*width:].
// Unlike Read, it fails with ErrUnderflow (consuming nothing) if fewer than 'count' elements are buffered.
func (r *Ring) ReadExact(dst []byte, offset, count int) error {
	if dst == nil || count <= 0 || offset < 0 || (offset+count)*r.width > len(dst) {
		return fmt.Errorf("%w: read of %v elements at %v into buffer of %v bytes", ErrInvalidArgument, count, offset, len(dst))
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.checkWritable(); err != nil {
		return err
	}
	n := count * r.width
	if n > r.used {
		return fmt.Errorf("%w: read of %v elements, but only %v available", ErrUnderflow, count, r.used/r.width)
	}
	if err := r.readRegion(r.readPos, dst[offset*r.width:offset*r.width+n]); err != nil {
		return err
	}
	r.readPos = (r.readPos + n) % r.capacity
	r.used -= n
	return r.writeHeader()
}

// Skip discards the 'count' oldest elements.
// Fails with ErrUnderflow if fewer than 'count' elements are buffered.
func (r *Ring) Skip(count int) error {
	if count <= 0 {
		return fmt.Errorf("%w: skip of %v elements", ErrInvalidArgument, count)
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.checkWritable(); err != nil {
		return err
	}
	n := count * r.width
	if n > r.used {
		return fmt.Errorf("%w: skip of %v elements, but only %v available", ErrUnderflow, count, r.used/r.width)
	}
	r.readPos = (r.readPos + n) % r.capacity
	r.used -= n
	return r.writeHeader()
}

// Snapshot copies the most recent min(count, Used()) elements into dst[offset*width:],
// oldest first, without consuming them.
// Fails with ErrOverflow if offset+count elements do not fit inside dst.
func (r *Ring) Snapshot(dst []byte, offset, count int) (int, error) {
	if dst == nil || count <= 0 || offset < 0 {
		return 0, fmt.Errorf("%w: snapshot of %v elements at %v", ErrInvalidArgument, count, offset)
	}
	if (offset+count)*r.width > len(dst) {
		return 0, fmt.Errorf("%w: snapshot of %v elements at %v into buffer of %v bytes", ErrOverflow, count, offset, len(dst))
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.file == nil {
		return 0, ErrClosed
	}
	n := min(count*r.width, r.used)
	if n == 0 {
		return 0, nil
	}
	start := (r.readPos + r.used - n) % r.capacity
	if err := r.readRegion(start, dst[offset*r.width:offset*r.width+n]); err != nil {
		return 0, err
	}
	return n / r.width, nil
}

// SetCapacity resizes the ring in place.
// If the ring holds more than 'capacity' elements, the oldest elements are discarded.
func (r *Ring) SetCapacity(capacity int) error {
	if capacity <= 0 || capacity > MaxCapacityBytes/r.width {
		return fmt.Errorf("%w: capacity %v", ErrInvalidArgument, capacity)
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.checkWritable(); err != nil {
		return err
	}
	newCap := capacity * r.width
	if newCap == r.capacity {
		return nil
	}
	grow := newCap > r.capacity

	if r.used == 0 {
		r.readPos = 0
		return r.resizeFile(newCap, grow)
	}

	// Fast path: the data doesn't wrap, and it still fits below the new capacity
	if r.readPos+r.used <= r.capacity && r.readPos+r.used <= newCap {
		return r.resizeFile(newCap, grow)
	}

	// Slow path: pull out the newest bytes that will survive, and lay them down again from offset 0
	keep := min(r.used, newCap)
	buf := make([]byte, keep)
	if err := r.readRegion((r.readPos+r.used-keep)%r.capacity, buf); err != nil {
		return err
	}
	if grow {
		if err := r.file.Truncate(int64(HeaderSize + newCap)); err != nil {
			return err
		}
	}
	if err := r.writeData(0, buf); err != nil {
		return err
	}
	r.capacity = newCap
	r.readPos = 0
	r.used = keep
	if err := r.writeHeader(); err != nil {
		return err
	}
	if !grow {
		return r.file.Truncate(int64(HeaderSize + newCap))
	}
	return nil
}

// Sync flushes the header and data region to stable storage
func (r *Ring) Sync() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.file == nil {
		return ErrClosed
	}
	return r.file.Sync()
}

// Close the file. All subsequent calls fail with ErrClosed.
func (r *Ring) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.file == nil {
		return ErrClosed
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *Ring) checkWritable() error {
	if r.file == nil {
		return ErrClosed
	}
	if r.mode != OpenModeReadWrite {
		return ErrReadOnly
	}
	return nil
}

func (r *Ring) writePos() int {
	return (r.readPos + r.used) % r.capacity
}

// Change the capacity field when no data needs to move.
// When growing, the file is extended before the header claims the space.
// When shrinking, the header is written before the file is cut.
func (r *Ring) resizeFile(newCap int, grow bool) error {
	if grow {
		if err := r.file.Truncate(int64(HeaderSize + newCap)); err != nil {
			return err
		}
	}
	r.capacity = newCap
	if err := r.writeHeader(); err != nil {
		return err
	}
	if !grow {
		return r.file.Truncate(int64(HeaderSize + newCap))
	}
	return nil
}

func (r *Ring) writeHeader() error {
	h := header{capacity: r.capacity, readPos: r.readPos, used: r.used}
	h.encode(r.hbuf[:])
	_, err := r.file.WriteAt(r.hbuf[:], 0)
	return err
}

// Write p at 'pos' in the data region, wrapping around to offset 0 if necessary
func (r *Ring) writeRegion(pos int, p []byte) error {
	first := min(len(p), r.capacity-pos)
	if err := r.writeData(pos, p[:first]); err != nil {
		return err
	}
	if first < len(p) {
		return r.writeData(0, p[first:])
	}
	return nil
}

// Fill p from 'pos' in the data region, wrapping around to offset 0 if necessary
func (r *Ring) readRegion(pos int, p []byte) error {
	first := min(len(p), r.capacity-pos)
	if err := r.readData(pos, p[:first]); err != nil {
		return err
	}
	if first < len(p) {
		return r.readData(0, p[first:])
	}
	return nil
}

func (r *Ring) writeData(pos int, p []byte) error {
	_, err := r.file.WriteAt(p, int64(HeaderSize+pos))
	return err
}

func (r *Ring) readData(pos int, p []byte) error {
	n, err := r.file.ReadAt(p, int64(HeaderSize+pos))
	if errors.Is(err, io.EOF) {
		// A read-only open of a file whose data region was never extended.
		// Unwritten space reads as zeros, just like a sparse file.
		clear(p[n:])
		return nil
	}
	return err
}
