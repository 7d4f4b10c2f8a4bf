//go:build unix

package ringfile

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// Take an advisory lock on the whole file, without blocking.
// The lock is released when the file is closed.
func lockFile(f *os.File, exclusive bool) error {
	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	for {
		err := unix.Flock(int(f.Fd()), how|unix.LOCK_NB)
		if err == nil {
			return nil
		} else if errors.Is(err, unix.EINTR) {
			continue
		} else if errors.Is(err, unix.EWOULDBLOCK) {
			return ErrLocked
		}
		return err
	}
}
