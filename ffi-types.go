package ctypes

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/jupiterrider/ffi"
)

// Kind identifies one of the primitive native types.
type Kind uint8

const (
	KindVoid Kind = iota
	KindSChar
	KindUChar
	KindShort
	KindUShort
	KindInt
	KindUInt
	KindLong
	KindULong
	KindFloat
	KindDouble
	KindLongDouble
	KindPointer
)

// Class groups kinds by how values are carried in registers.
type Class uint8

const (
	ClassVoid Class = iota
	ClassInteger
	ClassFloat
	ClassPointer
)

func (c Class) String() string {
	switch c {
	case ClassVoid:
		return "void"
	case ClassInteger:
		return "integer"
	case ClassFloat:
		return "float"
	case ClassPointer:
		return "pointer"
	}
	return "unknown"
}

// TypeDescriptor is the canonical description of one primitive native type.
// Descriptors are process-wide singletons; compare them by pointer.
type TypeDescriptor struct {
	Code   byte
	Kind   Kind
	Name   string
	Size   uintptr
	Align  uintptr
	Signed bool
	Class  Class

	ffi *ffi.Type
}

func (t *TypeDescriptor) String() string {
	return t.Name
}

// Bits is the width of integer and pointer types in bits.
func (t *TypeDescriptor) Bits() int {
	return int(t.Size) * 8
}

// IsVoid reports whether t describes the void type.
func (t *TypeDescriptor) IsVoid() bool {
	return t.Kind == KindVoid
}

// FFIType exposes the libffi type descriptor backing t.
func (t *TypeDescriptor) FFIType() *ffi.Type {
	return t.ffi
}

const (
	// ReturnCodes is the alphabet accepted in the return position.
	ReturnCodes = "vcCsSiIlLfdDp"
	// ParamCodes is the alphabet accepted in parameter positions.
	ParamCodes = "cCsSiIlLfdDp"
)

// typeTable is indexed by type code and filled once by init.
var typeTable [128]*TypeDescriptor

// typeOrder keeps the table in alphabet order for listings.
var typeOrder []*TypeDescriptor

func init() {
	slong, ulong := longTypes()

	def := func(code byte, kind Kind, name string, signed bool, class Class, ft *ffi.Type) {
		t := &TypeDescriptor{
			Code:   code,
			Kind:   kind,
			Name:   name,
			Size:   uintptr(ft.Size),
			Align:  uintptr(ft.Alignment),
			Signed: signed,
			Class:  class,
			ffi:    ft,
		}
		if kind == KindVoid {
			t.Size, t.Align = 0, 0
		}
		typeTable[code] = t
		typeOrder = append(typeOrder, t)
	}

	def('v', KindVoid, "void", false, ClassVoid, &ffi.TypeVoid)
	def('c', KindSChar, "signed char", true, ClassInteger, &ffi.TypeSint8)
	def('C', KindUChar, "unsigned char", false, ClassInteger, &ffi.TypeUint8)
	def('s', KindShort, "signed short", true, ClassInteger, &ffi.TypeSint16)
	def('S', KindUShort, "unsigned short", false, ClassInteger, &ffi.TypeUint16)
	def('i', KindInt, "signed int", true, ClassInteger, &ffi.TypeSint32)
	def('I', KindUInt, "unsigned int", false, ClassInteger, &ffi.TypeUint32)
	def('l', KindLong, "signed long", true, ClassInteger, slong)
	def('L', KindULong, "unsigned long", false, ClassInteger, ulong)
	def('f', KindFloat, "float", true, ClassFloat, &ffi.TypeFloat)
	def('d', KindDouble, "double", true, ClassFloat, &ffi.TypeDouble)
	def('D', KindLongDouble, "long double", true, ClassFloat, &ffi.TypeLongdouble)
	def('p', KindPointer, "pointer", false, ClassPointer, &ffi.TypePointer)
}

// longTypes picks the libffi types matching C long: 32 bits on LLP64 Windows
// and on 32-bit targets, pointer sized everywhere else.
func longTypes() (*ffi.Type, *ffi.Type) {
	if runtime.GOOS == "windows" || strconv.IntSize == 32 {
		return &ffi.TypeSint32, &ffi.TypeUint32
	}
	return &ffi.TypeSint64, &ffi.TypeUint64
}

// NativeType maps a single type code to its descriptor.
func NativeType(code byte) (*TypeDescriptor, error) {
	if code < byte(len(typeTable)) {
		if t := typeTable[code]; t != nil {
			return t, nil
		}
	}
	return nil, &TypeError{Kind: ErrUnknownTypeCode, Code: code, Index: -1}
}

// mustType is for codes already checked by the signature validator.
func mustType(code byte) *TypeDescriptor {
	t, err := NativeType(code)
	if err != nil {
		panic(fmt.Sprintf("ctypes: unvalidated type code %q", code))
	}
	return t
}

// TypeTable returns every descriptor in alphabet order.
func TypeTable() []*TypeDescriptor {
	out := make([]*TypeDescriptor, len(typeOrder))
	copy(out, typeOrder)
	return out
}
