//go:build darwin

package mmap

import (
	"syscall"
	"unsafe"
)

const madvSequential = 2

func mapFile(fd int, length int) ([]byte, error) {
	return syscall.Mmap(fd, 0, length, syscall.PROT_READ, syscall.MAP_SHARED)
}

func unmapFile(b []byte) error {
	return syscall.Munmap(b)
}

// darwin's syscall package has no Madvise wrapper.
func adviseSequential(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	_, _, errno := syscall.Syscall(syscall.SYS_MADVISE,
		uintptr(unsafe.Pointer(&b[0])), uintptr(len(b)), uintptr(madvSequential))
	if errno != 0 {
		return errno
	}
	return nil
}
