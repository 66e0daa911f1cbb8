package wayland

import (
	"golang.org/x/sys/unix"
)

// FD is a file descriptor handed over by the compositor. The holder owns it
// and has to Close it; Close is safe to call more than once.
type FD struct {
	fd int
}

func NewFD(fd int) *FD {
	return &FD{fd: fd}
}

// Fd returns the raw descriptor, or -1 once it has been closed.
func (f *FD) Fd() int {
	if f == nil {
		return -1
	}
	return f.fd
}

func (f *FD) Close() error {
	if f == nil || f.fd < 0 {
		return nil
	}
	fd := f.fd
	f.fd = -1
	return unix.Close(fd)
}
