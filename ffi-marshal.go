package ctypes

import (
	"fmt"
	"math"
	"runtime"
	"unsafe"
)

// asParamAttr is consulted when a host object is not directly convertible.
const asParamAttr = "_as_param_"

// Marshaller converts between host values and native scalars.
type Marshaller struct {
	Host Host
}

// ToNative converts a borrowed host value for a slot of type t. Pointer
// slots fed from Go memory pin that memory in f; with a nil f such sources
// are rejected because nothing would keep them alive.
func (m Marshaller) ToNative(v Value, t *TypeDescriptor, f *Frame) (Scalar, error) {
	if t.IsVoid() {
		return nil, &TypeError{Kind: ErrTypeMismatch, Index: -1, Type: t, Got: v, Detail: "void has no slot"}
	}
	s, err := m.convert(m.Host.Native(v), t, f)
	if err == nil {
		return s, nil
	}
	if alt, ok := m.Host.Attr(v, asParamAttr); ok {
		if s, err2 := m.convert(m.Host.Native(alt), t, f); err2 == nil {
			if f != nil {
				f.keepAlive(alt)
			}
			return s, nil
		}
	}
	return nil, err
}

func (m Marshaller) convert(x any, t *TypeDescriptor, f *Frame) (Scalar, error) {
	switch t.Class {
	case ClassInteger:
		return intScalar(x, t)
	case ClassFloat:
		return floatScalar(x, t)
	case ClassPointer:
		return pointerScalar(x, t, f)
	}
	return nil, mismatch(x, t, "")
}

// FromNative converts a native scalar to a new owned host value. The void
// type yields nil, meaning no value.
func (m Marshaller) FromNative(s Scalar, t *TypeDescriptor) Value {
	if t.IsVoid() || s == nil {
		return nil
	}
	switch v := s.(type) {
	case SChar:
		return m.Host.Wrap(int64(v))
	case UChar:
		return m.Host.Wrap(uint64(v))
	case Short:
		return m.Host.Wrap(int64(v))
	case UShort:
		return m.Host.Wrap(uint64(v))
	case Int:
		return m.Host.Wrap(int64(v))
	case UInt:
		return m.Host.Wrap(uint64(v))
	case Long:
		return m.Host.Wrap(int64(v))
	case ULong:
		return m.Host.Wrap(uint64(v))
	case Float:
		return m.Host.Wrap(float64(v))
	case Double:
		return m.Host.Wrap(float64(v))
	case LongDouble:
		return m.Host.Wrap(float64(v))
	case Ptr:
		return m.Host.Wrap(Pointer(v))
	}
	return nil
}

func mismatch(x any, t *TypeDescriptor, detail string) *TypeError {
	return &TypeError{Kind: ErrTypeMismatch, Index: -1, Type: t, Got: x, Detail: detail}
}

// intRange gives the inclusive bounds of t. The upper bound of unsigned
// 64-bit types does not fit an int64, so it is carried separately.
func intRange(t *TypeDescriptor) (lo int64, hi uint64) {
	b := t.Bits()
	if t.Signed {
		return -1 << (b - 1), 1<<(b-1) - 1
	}
	if b == 64 {
		return 0, math.MaxUint64
	}
	return 0, 1<<b - 1
}

func intScalar(x any, t *TypeDescriptor) (Scalar, error) {
	var (
		neg bool
		u   uint64 // magnitude when neg, value otherwise
	)
	switch v := x.(type) {
	case int:
		neg, u = v < 0, absInt(int64(v))
	case int8:
		neg, u = v < 0, absInt(int64(v))
	case int16:
		neg, u = v < 0, absInt(int64(v))
	case int32:
		neg, u = v < 0, absInt(int64(v))
	case int64:
		neg, u = v < 0, absInt(v)
	case uint:
		u = uint64(v)
	case uint8:
		u = uint64(v)
	case uint16:
		u = uint64(v)
	case uint32:
		u = uint64(v)
	case uint64:
		u = v
	case uintptr:
		u = uint64(v)
	case bool:
		if v {
			u = 1
		}
	case float32:
		return intScalar(float64(v), t)
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, mismatch(x, t, "non-integral float")
		}
		if v < 0 {
			if v < math.MinInt64 {
				return nil, mismatch(x, t, "out of range")
			}
			neg, u = true, absInt(int64(v))
		} else {
			if v >= math.MaxUint64 {
				return nil, mismatch(x, t, "out of range")
			}
			u = uint64(v)
		}
	default:
		return nil, mismatch(x, t, "")
	}

	lo, hi := intRange(t)
	if neg {
		if !t.Signed || u > uint64(-(lo+1))+1 {
			return nil, mismatch(x, t, "out of range")
		}
	} else if u > hi {
		return nil, mismatch(x, t, "out of range")
	}

	var i int64
	if neg {
		i = -int64(u - 1) - 1
	} else {
		i = int64(u)
	}
	switch t.Kind {
	case KindSChar:
		return SChar(i), nil
	case KindUChar:
		return UChar(u), nil
	case KindShort:
		return Short(i), nil
	case KindUShort:
		return UShort(u), nil
	case KindInt:
		return Int(i), nil
	case KindUInt:
		return UInt(u), nil
	case KindLong:
		return Long(i), nil
	case KindULong:
		return ULong(u), nil
	}
	return nil, mismatch(x, t, "")
}

func absInt(v int64) uint64 {
	if v < 0 {
		return uint64(-(v + 1)) + 1
	}
	return uint64(v)
}

func floatScalar(x any, t *TypeDescriptor) (Scalar, error) {
	var (
		f       float64
		fromInt bool
	)
	switch v := x.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		if !intToFloatExact(int64(v)) {
			return nil, mismatch(x, t, "not exactly representable")
		}
		f, fromInt = float64(v), true
	case int8:
		f, fromInt = float64(v), true
	case int16:
		f, fromInt = float64(v), true
	case int32:
		f, fromInt = float64(v), true
	case int64:
		if !intToFloatExact(v) {
			return nil, mismatch(x, t, "not exactly representable")
		}
		f, fromInt = float64(v), true
	case uint:
		if !uintToFloatExact(uint64(v)) {
			return nil, mismatch(x, t, "not exactly representable")
		}
		f, fromInt = float64(v), true
	case uint8:
		f, fromInt = float64(v), true
	case uint16:
		f, fromInt = float64(v), true
	case uint32:
		f, fromInt = float64(v), true
	case uint64:
		if !uintToFloatExact(v) {
			return nil, mismatch(x, t, "not exactly representable")
		}
		f, fromInt = float64(v), true
	default:
		return nil, mismatch(x, t, "")
	}
	switch t.Kind {
	case KindFloat:
		if fromInt && float64(float32(f)) != f {
			return nil, mismatch(x, t, "not exactly representable")
		}
		if !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
			return nil, mismatch(x, t, "out of range")
		}
		return Float(f), nil
	case KindDouble:
		return Double(f), nil
	case KindLongDouble:
		return LongDouble(f), nil
	}
	return nil, mismatch(x, t, "")
}

// intToFloatExact reports whether v survives a float64 round trip. 2^63 is
// the one float64 image of an int64 that overflows on the way back.
func intToFloatExact(v int64) bool {
	f := float64(v)
	return f < 0x1p63 && int64(f) == v
}

func uintToFloatExact(v uint64) bool {
	f := float64(v)
	return f < 0x1p64 && uint64(f) == v
}

func pointerScalar(x any, t *TypeDescriptor, f *Frame) (Scalar, error) {
	switch v := x.(type) {
	case nil:
		return Ptr(0), nil
	case Pointer:
		return Ptr(v), nil
	case uintptr:
		return Ptr(v), nil
	case *Buffer:
		if v == nil {
			return Ptr(0), nil
		}
		return Ptr(v.Addr()), nil
	case *Binding:
		if v == nil {
			return Ptr(0), nil
		}
		code := v.Code()
		if code == 0 {
			return nil, mismatch(x, t, "released callback")
		}
		return Ptr(code), nil
	case []byte:
		if len(v) == 0 {
			return Ptr(0), nil
		}
		if f == nil {
			return nil, mismatch(x, t, "Go memory outside a call")
		}
		return Ptr(f.pinBytes(v)), nil
	case string:
		if f == nil {
			return nil, mismatch(x, t, "Go memory outside a call")
		}
		b := make([]byte, len(v)+1)
		copy(b, v)
		return Ptr(f.pinBytes(b)), nil
	}
	return nil, mismatch(x, t, "")
}

// Frame is the transient storage for one native call: argument slots, the
// argument pointer vector, the return slot, and everything that has to stay
// alive and unmoved until the callee returns.
type Frame struct {
	slots []slot
	argv  []unsafe.Pointer
	ret   slot

	host Host
	pin  runtime.Pinner
	keep []Value
}

func newFrame(h Host, n int) *Frame {
	f := &Frame{host: h}
	if n > 0 {
		f.slots = make([]slot, n)
		f.argv = make([]unsafe.Pointer, n)
		for i := range f.slots {
			f.argv[i] = unsafe.Pointer(&f.slots[i])
		}
		f.pin.Pin(&f.slots[0])
		f.pin.Pin(&f.argv[0])
	}
	f.pin.Pin(f)
	return f
}

// set marshals v into argument slot i.
func (f *Frame) set(m Marshaller, i int, v Value, t *TypeDescriptor) error {
	s, err := m.ToNative(v, t, f)
	if err != nil {
		return err
	}
	if t.Class == ClassPointer {
		f.keepAlive(v)
	}
	storeScalar(f.argv[i], t, s)
	return nil
}

func (f *Frame) keepAlive(v Value) {
	if v == nil {
		return
	}
	f.host.Retain(v)
	f.keep = append(f.keep, v)
}

func (f *Frame) pinBytes(b []byte) uintptr {
	f.pin.Pin(&b[0])
	return uintptr(unsafe.Pointer(&b[0]))
}

func (f *Frame) retPtr() unsafe.Pointer {
	return unsafe.Pointer(&f.ret)
}

// release drops every keep-alive reference and unpins the frame.
func (f *Frame) release() {
	for i := len(f.keep) - 1; i >= 0; i-- {
		f.host.Release(f.keep[i])
	}
	f.keep = nil
	f.pin.Unpin()
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame(%d slots, %d kept)", len(f.slots), len(f.keep))
}
