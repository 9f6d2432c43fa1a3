package ctypes

import (
	"errors"
	"runtime"
	"strconv"
	"testing"
)

func TestNativeType_EveryCode(t *testing.T) {
	longSize := uintptr(8)
	if runtime.GOOS == "windows" || strconv.IntSize == 32 {
		longSize = 4
	}
	ptrSize := uintptr(strconv.IntSize / 8)

	tests := []struct {
		code   byte
		kind   Kind
		size   uintptr
		signed bool
		class  Class
	}{
		{'v', KindVoid, 0, false, ClassVoid},
		{'c', KindSChar, 1, true, ClassInteger},
		{'C', KindUChar, 1, false, ClassInteger},
		{'s', KindShort, 2, true, ClassInteger},
		{'S', KindUShort, 2, false, ClassInteger},
		{'i', KindInt, 4, true, ClassInteger},
		{'I', KindUInt, 4, false, ClassInteger},
		{'l', KindLong, longSize, true, ClassInteger},
		{'L', KindULong, longSize, false, ClassInteger},
		{'f', KindFloat, 4, true, ClassFloat},
		{'d', KindDouble, 8, true, ClassFloat},
		{'p', KindPointer, ptrSize, false, ClassPointer},
	}
	for _, tt := range tests {
		td, err := NativeType(tt.code)
		if err != nil {
			t.Errorf("NativeType(%q) failed: %v", tt.code, err)
			continue
		}
		if td.Code != tt.code || td.Kind != tt.kind || td.Size != tt.size || td.Signed != tt.signed || td.Class != tt.class {
			t.Errorf("NativeType(%q) = %+v, want kind=%d size=%d signed=%v class=%s",
				tt.code, *td, tt.kind, tt.size, tt.signed, tt.class)
		}
		if td.FFIType() == nil {
			t.Errorf("NativeType(%q) has no libffi type", tt.code)
		}
	}
}

func TestNativeType_LongDoubleIsAtLeastDouble(t *testing.T) {
	td, err := NativeType('D')
	if err != nil {
		t.Fatalf("NativeType('D') failed: %v", err)
	}
	if td.Size < 8 || td.Size > slotSize {
		t.Errorf("long double size = %d, want 8..%d", td.Size, slotSize)
	}
	if td.Class != ClassFloat {
		t.Errorf("long double class = %s, want float", td.Class)
	}
}

func TestNativeType_Idempotent(t *testing.T) {
	for _, c := range []byte(ReturnCodes) {
		a, _ := NativeType(c)
		b, _ := NativeType(c)
		if a == nil || a != b {
			t.Errorf("NativeType(%q) returned different descriptors: %p %p", c, a, b)
		}
	}
}

func TestNativeType_Unknown(t *testing.T) {
	for _, c := range []byte{'x', 'Z', '?', 0, 200} {
		td, err := NativeType(c)
		if td != nil {
			t.Errorf("NativeType(%q) = %v, want nil", c, td)
		}
		if !errors.Is(err, ErrUnknownTypeCode) {
			t.Errorf("NativeType(%q) error = %v, want ErrUnknownTypeCode", c, err)
		}
	}
}

func TestTypeTable_AlphabetOrder(t *testing.T) {
	tt := TypeTable()
	if len(tt) != len(ReturnCodes) {
		t.Fatalf("TypeTable has %d entries, want %d", len(tt), len(ReturnCodes))
	}
	for i, td := range tt {
		if td.Code != ReturnCodes[i] {
			t.Errorf("TypeTable[%d] = %q, want %q", i, td.Code, ReturnCodes[i])
		}
	}
	tt[0] = nil
	if TypeTable()[0] == nil {
		t.Error("TypeTable returned its backing slice")
	}
}

func TestMustType_PanicsOnUnknown(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("mustType('x') did not panic")
		}
	}()
	mustType('x')
}
