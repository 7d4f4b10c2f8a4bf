package ringfile

import "errors"

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrOverflow        = errors.New("ring overflow")
	ErrUnderflow       = errors.New("ring underflow")
	ErrReadOnly        = errors.New("ring is read-only")
	ErrClosed          = errors.New("ring is closed")
	ErrCorruptHeader   = errors.New("corrupt ring header")
	ErrWidthMismatch   = errors.New("ring size is not a multiple of the element width")
	ErrLocked          = errors.New("ring file is locked by another owner")
)
