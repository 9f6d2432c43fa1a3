//go:build unix

package ctypes

import (
	"golang.org/x/sys/unix"
)

func mapPages(n int) ([]byte, error) {
	ps := unix.Getpagesize()
	size := (n + ps - 1) / ps * ps
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func unmapPages(mem []byte) error {
	return unix.Munmap(mem)
}
