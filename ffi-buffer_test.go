package ctypes

import (
	"strings"
	"testing"
)

func TestAllocBuffer_RejectsBadSizes(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := AllocBuffer(n); err == nil {
			t.Errorf("AllocBuffer(%d) succeeded", n)
		}
	}
}

func TestBuffer_Lifecycle(t *testing.T) {
	b, err := AllocBuffer(100)
	if err != nil {
		t.Fatalf("AllocBuffer failed: %v", err)
	}
	if b.Len() != 100 || len(b.Bytes()) != 100 {
		t.Errorf("Len = %d, Bytes = %d, want 100", b.Len(), len(b.Bytes()))
	}
	for i, c := range b.Bytes() {
		if c != 0 {
			t.Fatalf("byte %d = %d, want 0", i, c)
		}
	}
	copy(b.Bytes(), "abc")
	if GoString(b.Addr()) != "abc" {
		t.Errorf("GoString = %q, want abc", GoString(b.Addr()))
	}
	if !strings.HasPrefix(b.String(), "Buffer(100 bytes at CPointer(0x") {
		t.Errorf("String = %q", b.String())
	}

	if err := b.Free(); err != nil {
		t.Fatalf("Free failed: %v", err)
	}
	if err := b.Free(); err != nil {
		t.Errorf("second Free failed: %v", err)
	}
	if !b.Addr().IsNull() || b.Bytes() != nil {
		t.Error("freed buffer still exposes memory")
	}
}
