package ctypes

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"unsafe"
)

// Value is an opaque handle to a value in the host language's value model.
type Value = any

// Pointer is a raw native address carried as a host value.
type Pointer uintptr

// IsNull reports whether p is the null pointer.
func (p Pointer) IsNull() bool {
	return p == 0
}

func (p Pointer) String() string {
	if p == 0 {
		return "CPointer(null)"
	}
	return fmt.Sprintf("CPointer(%#x)", uintptr(p))
}

// GoString copies the NUL-terminated C string at p.
func GoString(p Pointer) string {
	if p == 0 {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(uintptr(p)), n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(p))), n))
}

// Host is the collaborator object model. The core borrows every Value it is
// handed; values returned by Call and Wrap are owned by the caller and must be
// given back with Release. Store takes over the reference to v on success;
// releasing an aggregate releases whatever was stored in it.
type Host interface {
	IsCallable(v Value) bool
	Call(fn Value, args []Value) ([]Value, error)
	Attr(obj Value, key string) (Value, bool)
	Len(seq Value) (int, bool)
	Index(seq Value, i int) (Value, bool)
	NewSequence(n int) (Value, error)
	Store(seq Value, i int, v Value) error
	// Native returns a borrowed Go view of v: an integer, float, bool,
	// string, []byte, Pointer, *Buffer, *Binding or nil.
	Native(v Value) any
	// Wrap returns a new owned host value for a Go scalar produced by the
	// core: int64, uint64, float64 or Pointer.
	Wrap(x any) Value
	Retain(v Value)
	Release(v Value)
}

// Args is an ordered, pre-sized argument container for the host call bridge.
type Args interface {
	Len() int
	At(i int) (Value, bool)
}

// ValueList adapts a slice to Args.
type ValueList []Value

func (l ValueList) Len() int { return len(l) }

func (l ValueList) At(i int) (Value, bool) {
	if i < 0 || i >= len(l) {
		return nil, false
	}
	return l[i], true
}

// SequenceArgs adapts a host sequence value to Args.
func SequenceArgs(h Host, seq Value) (Args, error) {
	n, ok := h.Len(seq)
	if !ok {
		return nil, &MarshalError{Kind: ErrArgumentFetchFailed, Index: -1, Err: fmt.Errorf("%T is not a sequence", seq)}
	}
	return hostSeq{h: h, seq: seq, n: n}, nil
}

type hostSeq struct {
	h   Host
	seq Value
	n   int
}

func (s hostSeq) Len() int { return s.n }

func (s hostSeq) At(i int) (Value, bool) { return s.h.Index(s.seq, i) }

// HostFunc is the native callable shape of GoHost.
type HostFunc func(args ...Value) ([]Value, error)

// Attributed lets GoHost values expose attributes beyond map keys.
type Attributed interface {
	Attr(key string) (any, bool)
}

// GoHost is a Host whose values are plain Go values. Sequences are []any,
// callables are HostFunc or any Go func. Retain and Release are no-ops.
type GoHost struct{}

var _ Host = GoHost{}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func (GoHost) IsCallable(v Value) bool {
	if v == nil {
		return false
	}
	if f, ok := v.(HostFunc); ok {
		return f != nil
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Func && !rv.IsNil()
}

func (h GoHost) Call(fn Value, args []Value) ([]Value, error) {
	if f, ok := fn.(HostFunc); ok {
		return f(args...)
	}
	if !h.IsCallable(fn) {
		return nil, &CallableError{Value: fn}
	}
	return callReflect(reflect.ValueOf(fn), args)
}

// callReflect calls an arbitrary Go func. A trailing error result is
// returned as the call's error rather than as a value.
func callReflect(fv reflect.Value, args []Value) ([]Value, error) {
	ft := fv.Type()
	nin := ft.NumIn()
	if ft.IsVariadic() {
		if len(args) < nin-1 {
			return nil, &ArityError{Expected: nin - 1, Actual: len(args)}
		}
	} else if len(args) != nin {
		return nil, &ArityError{Expected: nin, Actual: len(args)}
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		var want reflect.Type
		if ft.IsVariadic() && i >= nin-1 {
			want = ft.In(nin - 1).Elem()
		} else {
			want = ft.In(i)
		}
		if a == nil {
			in[i] = reflect.Zero(want)
			continue
		}
		av := reflect.ValueOf(a)
		switch {
		case av.Type().AssignableTo(want):
			in[i] = av
		case av.Type().ConvertibleTo(want) && convertibleKinds(av.Kind(), want.Kind()):
			cv := av.Convert(want)
			if !numericFits(av, cv) {
				return nil, &TypeError{Kind: ErrTypeMismatch, Index: i, Got: a, Detail: "out of range for " + want.String()}
			}
			in[i] = cv
		default:
			return nil, &TypeError{Kind: ErrTypeMismatch, Index: i, Got: a, Detail: "want " + want.String()}
		}
	}

	out := fv.Call(in)
	if n := len(out); n > 0 && ft.Out(n-1) == errorType {
		if err, _ := out[n-1].Interface().(error); err != nil {
			return nil, err
		}
		out = out[:n-1]
	}
	res := make([]Value, len(out))
	for i, o := range out {
		res[i] = o.Interface()
	}
	return res, nil
}

// convertibleKinds limits reflect conversions to numeric widening and
// narrowing; string<->int conversions are never wanted here.
func convertibleKinds(from, to reflect.Kind) bool {
	return isNumericKind(from) && isNumericKind(to)
}

// numericFits reports whether cv, converted from av, holds the same number.
// Float to float conversions may round but must not overflow.
func numericFits(av, cv reflect.Value) bool {
	if isFloatKind(av.Kind()) && isFloatKind(cv.Kind()) {
		return math.IsInf(cv.Float(), 0) == math.IsInf(av.Float(), 0)
	}
	if isFloatKind(av.Kind()) && math.IsNaN(av.Float()) {
		return false
	}
	if isNegative(av) != isNegative(cv) {
		return false
	}
	return cv.Convert(av.Type()).Equal(av)
}

func isNegative(v reflect.Value) bool {
	switch {
	case v.CanInt():
		return v.Int() < 0
	case v.CanFloat():
		return v.Float() < 0
	}
	return false
}

func isFloatKind(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func (GoHost) Attr(obj Value, key string) (Value, bool) {
	switch o := obj.(type) {
	case map[string]any:
		v, ok := o[key]
		return v, ok
	case Attributed:
		return o.Attr(key)
	}
	return nil, false
}

func (GoHost) Len(seq Value) (int, bool) {
	if s, ok := seq.([]any); ok {
		return len(s), true
	}
	return 0, false
}

func (GoHost) Index(seq Value, i int) (Value, bool) {
	s, ok := seq.([]any)
	if !ok || i < 0 || i >= len(s) {
		return nil, false
	}
	return s[i], true
}

func (GoHost) NewSequence(n int) (Value, error) {
	if n < 0 {
		return nil, errors.New("negative sequence length")
	}
	return make([]any, n), nil
}

func (GoHost) Store(seq Value, i int, v Value) error {
	s, ok := seq.([]any)
	if !ok {
		return fmt.Errorf("%T is not a sequence", seq)
	}
	if i < 0 || i >= len(s) {
		return fmt.Errorf("index %d out of range [0,%d)", i, len(s))
	}
	s[i] = v
	return nil
}

func (GoHost) Native(v Value) any { return v }

func (GoHost) Wrap(x any) Value { return x }

func (GoHost) Retain(Value) {}

func (GoHost) Release(Value) {}
