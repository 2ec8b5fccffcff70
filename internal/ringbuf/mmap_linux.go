//go:build linux

package ringbuf

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/wavescope/wavescope/internal/errors"
)

// mapMirrored maps one memfd of size bytes twice into adjacent virtual regions,
// so data[i] and data[i+size] alias the same physical byte.
func mapMirrored(size int) ([]byte, func() error, error) {
	fd, err := unix.MemfdCreate("wavescope-ring", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, nil, mapError("memfd_create", err)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		return nil, nil, mapError("ftruncate", err)
	}

	total := uintptr(2 * size)
	base, err := unix.MmapPtr(-1, 0, nil, total, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, nil, mapError("reserve", err)
	}

	for i := range 2 {
		addr := unsafe.Add(base, i*size)
		if _, err := unix.MmapPtr(fd, 0, addr, uintptr(size),
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_FIXED); err != nil {
			_ = unix.MunmapPtr(base, total)
			return nil, nil, mapError("map", err)
		}
	}

	data := unsafe.Slice((*byte)(base), 2*size)
	release := func() error {
		return unix.MunmapPtr(base, total)
	}
	return data, release, nil
}

func mapError(op string, err error) error {
	return errors.New(err).
		Component(componentRingBuf).
		Category(errors.CategorySystem).
		Context("operation", op).
		Build()
}
