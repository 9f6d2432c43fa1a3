package ctypes

import (
	"testing"
)

// libc opens the C library or skips the test.
func libc(t *testing.T) *Library {
	t.Helper()
	lib, err := OpenLibC()
	if err != nil {
		t.Skipf("no C library: %v", err)
	}
	t.Cleanup(func() { _ = lib.Close() })
	return lib
}

func sym(t *testing.T, lib *Library, name string) uintptr {
	t.Helper()
	fn, err := lib.Symbol(name)
	if err != nil {
		t.Skipf("%v", err)
	}
	return fn
}

func TestOpenLibrary_Missing(t *testing.T) {
	if _, err := OpenLibrary("libdefinitely-not-here.so.99"); err == nil {
		t.Fatal("OpenLibrary of a missing library succeeded")
	}
	if _, err := OpenFirst(); err == nil {
		t.Fatal("OpenFirst with no candidates succeeded")
	}
}

func TestLibrary_Symbols(t *testing.T) {
	lib := libc(t)
	if fn, err := lib.Symbol("strlen"); err != nil || fn == 0 {
		t.Errorf("Symbol(strlen) = %#x, %v", fn, err)
	}
	if _, err := lib.Symbol("ctypes_no_such_symbol"); err == nil {
		t.Error("Symbol of a missing name succeeded")
	}
}

func TestLibrary_CloseIsIdempotent(t *testing.T) {
	lib, err := OpenLibC()
	if err != nil {
		t.Skipf("no C library: %v", err)
	}
	if err := lib.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := lib.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if _, err := lib.Symbol("strlen"); err == nil {
		t.Error("Symbol on a closed library succeeded")
	}
}
