package ringfile

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the number of bytes at the start of the file, before the data region.
// The header is three big-endian int32 values: capacity, readPos, used.
// All three are measured in bytes, regardless of the element width of the ring.
const HeaderSize = 12

// Largest data region that we can describe in an int32 header
const MaxCapacityBytes = 1<<31 - 1

type header struct {
	capacity int
	readPos  int
	used     int
}

func (h *header) encode(dst []byte) {
	binary.BigEndian.PutUint32(dst[0:4], uint32(int32(h.capacity)))
	binary.BigEndian.PutUint32(dst[4:8], uint32(int32(h.readPos)))
	binary.BigEndian.PutUint32(dst[8:12], uint32(int32(h.used)))
}

func decodeHeader(src []byte) header {
	return header{
		capacity: int(int32(binary.BigEndian.Uint32(src[0:4]))),
		readPos:  int(int32(binary.BigEndian.Uint32(src[4:8]))),
		used:     int(int32(binary.BigEndian.Uint32(src[8:12]))),
	}
}

// Check that a decoded header describes a usable ring of the given element width
func (h *header) validate(width int) error {
	if h.capacity <= 0 {
		return fmt.Errorf("%w: capacity %v", ErrCorruptHeader, h.capacity)
	}
	if h.readPos < 0 || h.readPos >= h.capacity {
		return fmt.Errorf("%w: read position %v outside capacity %v", ErrCorruptHeader, h.readPos, h.capacity)
	}
	if h.used < 0 || h.used > h.capacity {
		return fmt.Errorf("%w: used %v outside capacity %v", ErrCorruptHeader, h.used, h.capacity)
	}
	if h.capacity%width != 0 || h.used%width != 0 || h.readPos%width != 0 {
		return fmt.Errorf("%w: capacity %v, used %v, width %v", ErrWidthMismatch, h.capacity, h.used, width)
	}
	return nil
}
