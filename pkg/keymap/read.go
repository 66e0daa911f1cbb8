package keymap

import (
	"bytes"
	"codeberg.org/miketth/wlkeymap/pkg/wayland"
	"errors"
	"fmt"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
	"unicode/utf8"
)

const readChunkSize = 16 * 1024

// Read returns the keymap text behind fd. The descriptor is closed on every
// path. Formats other than xkb_v1 yield ErrUnsupportedFormat.
func Read(fd *wayland.FD, format wayland.KeymapFormat, size uint32) (text string, err error) {
	defer multierr.AppendInvoke(&err, multierr.Close(fd))

	if format != wayland.KeymapFormatXkbV1 {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if fd.Fd() < 0 {
		return "", fmt.Errorf("%w: invalid descriptor", ErrDecode)
	}

	data, err := readAll(fd.Fd(), int(size))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: keymap is empty", ErrDecode)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: keymap is not valid UTF-8", ErrDecode)
	}

	return string(data), nil
}

// readAll reads at most size bytes starting at offset 0, whatever the
// descriptor's current offset is.
func readAll(fd int, size int) ([]byte, error) {
	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		return nil, fmt.Errorf("stat keymap descriptor: %w", err)
	}

	length := size
	if stat.Mode&unix.S_IFMT == unix.S_IFREG && stat.Size < int64(length) {
		length = int(stat.Size)
	}
	if length == 0 {
		return nil, nil
	}

	data, err := mapped(fd, length)
	if err == nil {
		return data, nil
	}

	return pread(fd, length)
}

func mapped(fd int, length int) ([]byte, error) {
	mem, err := unix.Mmap(fd, 0, length, unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap keymap: %w", err)
	}

	data := make([]byte, length)
	copy(data, mem)

	if err := unix.Munmap(mem); err != nil {
		return nil, fmt.Errorf("munmap keymap: %w", err)
	}

	return data, nil
}

func pread(fd int, length int) ([]byte, error) {
	data := make([]byte, 0, length)
	buf := make([]byte, min(readChunkSize, length))

	for len(data) < length {
		want := min(len(buf), length-len(data))
		n, err := unix.Pread(fd, buf[:want], int64(len(data)))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.ESPIPE) {
			return nil, fmt.Errorf("keymap descriptor is not seekable: %w", err)
		}
		if err != nil {
			return nil, fmt.Errorf("read keymap: %w", err)
		}
		if n == 0 {
			break
		}
		data = append(data, buf[:n]...)
	}

	return data, nil
}
