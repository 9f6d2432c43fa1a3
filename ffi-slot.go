package ctypes

import (
	"unsafe"
)

// Scalar is one native value. Exactly one variant is live, chosen by the
// TypeDescriptor it was produced for.
type Scalar interface {
	kind() Kind
}

type (
	SChar      int8
	UChar      uint8
	Short      int16
	UShort     uint16
	Int        int32
	UInt       uint32
	Long       int64
	ULong      uint64
	Float      float32
	Double     float64
	LongDouble float64
	Ptr        uintptr
)

func (SChar) kind() Kind      { return KindSChar }
func (UChar) kind() Kind      { return KindUChar }
func (Short) kind() Kind      { return KindShort }
func (UShort) kind() Kind     { return KindUShort }
func (Int) kind() Kind        { return KindInt }
func (UInt) kind() Kind       { return KindUInt }
func (Long) kind() Kind       { return KindLong }
func (ULong) kind() Kind      { return KindULong }
func (Float) kind() Kind      { return KindFloat }
func (Double) kind() Kind     { return KindDouble }
func (LongDouble) kind() Kind { return KindLongDouble }
func (Ptr) kind() Kind        { return KindPointer }

// slotSize is the storage reserved for one argument or return value; it
// covers the widest primitive (a 16-byte long double).
const slotSize = 16

type slot [slotSize / 8]uint64

// storeScalar writes s into dst using exactly t's width.
func storeScalar(dst unsafe.Pointer, t *TypeDescriptor, s Scalar) {
	switch v := s.(type) {
	case SChar:
		*(*int8)(dst) = int8(v)
	case UChar:
		*(*uint8)(dst) = uint8(v)
	case Short:
		*(*int16)(dst) = int16(v)
	case UShort:
		*(*uint16)(dst) = uint16(v)
	case Int:
		*(*int32)(dst) = int32(v)
	case UInt:
		*(*uint32)(dst) = uint32(v)
	case Long:
		if t.Size == 4 {
			*(*int32)(dst) = int32(v)
		} else {
			*(*int64)(dst) = int64(v)
		}
	case ULong:
		if t.Size == 4 {
			*(*uint32)(dst) = uint32(v)
		} else {
			*(*uint64)(dst) = uint64(v)
		}
	case Float:
		*(*float32)(dst) = float32(v)
	case Double:
		*(*float64)(dst) = float64(v)
	case LongDouble:
		putLongDouble(dst, t.Size, float64(v))
	case Ptr:
		*(*uintptr)(dst) = uintptr(v)
	}
}

// loadScalar reads a value of type t from src.
func loadScalar(src unsafe.Pointer, t *TypeDescriptor) Scalar {
	switch t.Kind {
	case KindSChar:
		return SChar(*(*int8)(src))
	case KindUChar:
		return UChar(*(*uint8)(src))
	case KindShort:
		return Short(*(*int16)(src))
	case KindUShort:
		return UShort(*(*uint16)(src))
	case KindInt:
		return Int(*(*int32)(src))
	case KindUInt:
		return UInt(*(*uint32)(src))
	case KindLong:
		if t.Size == 4 {
			return Long(*(*int32)(src))
		}
		return Long(*(*int64)(src))
	case KindULong:
		if t.Size == 4 {
			return ULong(*(*uint32)(src))
		}
		return ULong(*(*uint64)(src))
	case KindFloat:
		return Float(*(*float32)(src))
	case KindDouble:
		return Double(*(*float64)(src))
	case KindLongDouble:
		return LongDouble(getLongDouble(src, t.Size))
	case KindPointer:
		return Ptr(*(*uintptr)(src))
	}
	return nil
}

// libffi hands back integral results narrower than a register widened to a
// full ffi_arg word, and expects closures to return them the same way. An
// ffi_arg is pointer sized.

// storeReturn writes s into a libffi return buffer.
func storeReturn(dst unsafe.Pointer, t *TypeDescriptor, s Scalar) {
	switch v := s.(type) {
	case SChar:
		putArg(dst, uint64(int64(v)))
	case UChar:
		putArg(dst, uint64(v))
	case Short:
		putArg(dst, uint64(int64(v)))
	case UShort:
		putArg(dst, uint64(v))
	case Int:
		putArg(dst, uint64(int64(v)))
	case UInt:
		putArg(dst, uint64(v))
	case Long:
		if t.Size > unsafe.Sizeof(uintptr(0)) {
			storeScalar(dst, t, s)
			return
		}
		putArg(dst, uint64(int64(v)))
	case ULong:
		if t.Size > unsafe.Sizeof(uintptr(0)) {
			storeScalar(dst, t, s)
			return
		}
		putArg(dst, uint64(v))
	default:
		storeScalar(dst, t, s)
	}
}

// putArg writes the low ffi_arg-sized part of w.
func putArg(dst unsafe.Pointer, w uint64) {
	*(*uintptr)(dst) = uintptr(w)
}

// loadReturn reads a libffi return buffer.
func loadReturn(src unsafe.Pointer, t *TypeDescriptor) Scalar {
	if t.Class != ClassInteger {
		return loadScalar(src, t)
	}
	if t.Size > unsafe.Sizeof(uintptr(0)) {
		return loadScalar(src, t)
	}
	w := uint64(*(*uintptr)(src))
	switch t.Kind {
	case KindSChar:
		return SChar(int8(w))
	case KindUChar:
		return UChar(uint8(w))
	case KindShort:
		return Short(int16(w))
	case KindUShort:
		return UShort(uint16(w))
	case KindInt:
		return Int(int32(w))
	case KindUInt:
		return UInt(uint32(w))
	case KindLong:
		if t.Size == 4 {
			return Long(int32(w))
		}
		return Long(int64(w))
	case KindULong:
		if t.Size == 4 {
			return ULong(uint32(w))
		}
		return ULong(w)
	}
	return nil
}

// zeroReturn clears a libffi return buffer for t.
func zeroReturn(dst unsafe.Pointer, t *TypeDescriptor) {
	if dst == nil || t.IsVoid() {
		return
	}
	n := t.Size
	if w := unsafe.Sizeof(uintptr(0)); n < w {
		n = w
	}
	clear(unsafe.Slice((*byte)(dst), n))
}
