package ctypes

import (
	"fmt"
	"unsafe"
)

// Buffer is native memory outside the Go heap. Unlike a []byte argument it
// may be kept by native code past the end of a call, until Free.
type Buffer struct {
	mem []byte
	n   int
}

// AllocBuffer maps n zeroed bytes, rounded up to whole pages.
func AllocBuffer(n int) (*Buffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("buffer size must be positive, got %d", n)
	}
	mem, err := mapPages(n)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate %d bytes: %w", n, err)
	}
	return &Buffer{mem: mem, n: n}, nil
}

// Bytes is the usable region; it is invalid after Free.
func (b *Buffer) Bytes() []byte {
	if b.mem == nil {
		return nil
	}
	return b.mem[:b.n]
}

func (b *Buffer) Len() int { return b.n }

// Addr is the native address of the first byte, or 0 after Free.
func (b *Buffer) Addr() Pointer {
	if b.mem == nil {
		return 0
	}
	return Pointer(uintptr(unsafe.Pointer(&b.mem[0])))
}

// Free unmaps the memory. Calling it again is a no-op.
func (b *Buffer) Free() error {
	if b.mem == nil {
		return nil
	}
	mem := b.mem
	b.mem = nil
	return unmapPages(mem)
}

func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer(%d bytes at %s)", b.n, b.Addr())
}
