package processor

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"syscall"
)

// ErrDecode marks a source file that is not a decodable image. It is never retried.
var ErrDecode = errors.New("undecodable image")

// IsTransient reports whether err is an OS-level I/O failure worth retrying:
// permission problems, locking and generic filesystem errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDecode) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, fs.ErrPermission) {
		return true
	}

	var (
		pathErr *fs.PathError
		linkErr *os.LinkError
		sysErr  *os.SyscallError
		errno   syscall.Errno
	)

	return errors.As(err, &pathErr) ||
		errors.As(err, &linkErr) ||
		errors.As(err, &sysErr) ||
		errors.As(err, &errno)
}
